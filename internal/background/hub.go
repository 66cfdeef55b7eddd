package background

import (
	"strconv"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/five82/tabtime/internal/tracker"
)

const (
	subscriberBuffer = 64
	maxPending       = 256
)

// hub fans push events out to every connected stream and remembers which
// ones are still waiting for an acknowledgement.
type hub struct {
	mu      sync.Mutex
	nextSub int
	nextID  int
	subs    map[int]chan tracker.PushEvent
	pending map[string]int
}

func newHub() *hub {
	return &hub{
		subs:    make(map[int]chan tracker.PushEvent),
		pending: make(map[string]int),
	}
}

// Add registers a stream. cancel closes the channel and is safe to call
// more than once.
func (h *hub) Add() (<-chan tracker.PushEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	id := h.nextSub
	ch := make(chan tracker.PushEvent, subscriberBuffer)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		sub, ok := h.subs[id]
		if ok {
			delete(h.subs, id)
		}
		h.mu.Unlock()
		if ok {
			close(sub)
		}
	}
	return ch, cancel
}

// Count returns the number of connected streams.
func (h *hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast assigns an id to the event and delivers it to every stream
// with room in its buffer. Delivery is best effort.
func (h *hub) Broadcast(kind tracker.PushKind, payload any) (tracker.PushEvent, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return tracker.PushEvent{}, err
		}
		raw = data
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ev := tracker.PushEvent{ID: "evt-" + strconv.Itoa(h.nextID), Kind: kind, Payload: raw}
	if len(h.subs) > 0 {
		h.pending[ev.ID] = h.nextID
		h.expire()
	}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev, nil
}

// Ack marks id as received. It reports whether id was pending.
func (h *hub) Ack(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.pending[id]; !ok {
		return false
	}
	delete(h.pending, id)
	return true
}

// Pending returns the number of unacknowledged events.
func (h *hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// expire forgets the oldest pending events once more than maxPending are
// outstanding.
func (h *hub) expire() {
	if len(h.pending) <= maxPending {
		return
	}
	cutoff := h.nextID - maxPending
	for id, seq := range h.pending {
		if seq <= cutoff {
			delete(h.pending, id)
		}
	}
}
