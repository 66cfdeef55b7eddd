package events

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tabtime/internal/logging"
	"github.com/five82/tabtime/internal/tracker"
)

const recentIDs = 64

// Handler reacts to one push event. It runs inside the event loop and may
// return a command for follow-up work.
type Handler func(ev tracker.PushEvent) tea.Cmd

// Ack is the receipt returned for every dispatched event.
type Ack struct {
	ID        string
	Kind      tracker.PushKind
	Handled   bool
	Duplicate bool
}

type entry struct {
	id int
	fn Handler
}

// Subscriber is a typed handler registry.
type Subscriber struct {
	mu       sync.Mutex
	handlers map[tracker.PushKind][]entry
	nextID   int
	closed   bool
	seen     []string
	logger   logging.Logger
}

// NewSubscriber returns an empty registry.
func NewSubscriber(logger logging.Logger) *Subscriber {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Subscriber{
		handlers: make(map[tracker.PushKind][]entry),
		logger:   logger,
	}
}

// Handle registers fn for kind and returns its unsubscribe handle. Calling
// the handle more than once is a no-op.
func (s *Subscriber) Handle(kind tracker.PushKind, fn Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fn == nil {
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.handlers[kind] = append(s.handlers[kind], entry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(kind, id) })
	}
}

func (s *Subscriber) remove(kind tracker.PushKind, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.handlers[kind]
	for i, e := range list {
		if e.id == id {
			s.handlers[kind] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(s.handlers[kind]) == 0 {
		delete(s.handlers, kind)
	}
}

// Close drops every handler. Later registrations and dispatches are ignored.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	clear(s.handlers)
}

// Len returns the number of registered handlers.
func (s *Subscriber) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, list := range s.handlers {
		n += len(list)
	}
	return n
}

// Dispatch runs the handlers registered for ev.Kind and returns the
// acknowledgement along with any follow-up commands. Events without a
// handler are acknowledged with Handled false. An event ID seen recently is
// acknowledged again but not handled twice.
func (s *Subscriber) Dispatch(ev tracker.PushEvent) (Ack, tea.Cmd) {
	ack := Ack{ID: ev.ID, Kind: ev.Kind}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ack, nil
	}
	if ev.ID != "" && s.markSeen(ev.ID) {
		s.mu.Unlock()
		ack.Handled = true
		ack.Duplicate = true
		return ack, nil
	}
	list := append([]entry(nil), s.handlers[ev.Kind]...)
	s.mu.Unlock()

	if len(list) == 0 {
		s.logger.Debug("push ignored", logging.F("kind", ev.Kind), logging.F("id", ev.ID))
		return ack, nil
	}

	cmds := make([]tea.Cmd, 0, len(list))
	for _, e := range list {
		if cmd := e.fn(ev); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	ack.Handled = true
	return ack, tea.Batch(cmds...)
}

// markSeen records id and reports whether it was already present.
func (s *Subscriber) markSeen(id string) bool {
	for _, seen := range s.seen {
		if seen == id {
			return true
		}
	}
	if len(s.seen) == recentIDs {
		s.seen = s.seen[1:]
	}
	s.seen = append(s.seen, id)
	return false
}
