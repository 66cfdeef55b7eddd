package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tabtime/internal/tracker"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second},
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 20; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

type chanSender chan tea.Msg

func (c chanSender) Send(msg tea.Msg) { c <- msg }

type fakeStream struct {
	mu      sync.Mutex
	opens   int
	results []func() (<-chan tracker.PushEvent, error)
}

func (f *fakeStream) Stream(context.Context) (<-chan tracker.PushEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.opens
	f.opens++
	if i >= len(f.results) {
		ch := make(chan tracker.PushEvent)
		return ch, func() {}, nil
	}
	ch, err := f.results[i]()
	return ch, func() {}, err
}

func (f *fakeStream) Ack(context.Context, string) error { return nil }

func TestStartPump_ForwardsAndReconnects(t *testing.T) {
	first := make(chan tracker.PushEvent, 1)
	first <- tracker.PushEvent{ID: "a", Kind: tracker.PushStatsUpdated}
	close(first)

	stream := &fakeStream{results: []func() (<-chan tracker.PushEvent, error){
		func() (<-chan tracker.PushEvent, error) { return first, nil },
		func() (<-chan tracker.PushEvent, error) { return nil, errors.New("refused") },
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := make(chanSender, 16)
	StartPump(ctx, stream, sender, nil, time.Millisecond)

	var pushes []PushMsg
	var statuses []StreamStatusMsg
	deadline := time.After(2 * time.Second)
	for len(statuses) < 4 {
		select {
		case msg := <-sender:
			switch m := msg.(type) {
			case PushMsg:
				pushes = append(pushes, m)
			case StreamStatusMsg:
				statuses = append(statuses, m)
			}
		case <-deadline:
			t.Fatalf("timed out; pushes=%v statuses=%v", pushes, statuses)
		}
	}

	if len(pushes) != 1 || pushes[0].Event.ID != "a" || pushes[0].Source != SourceStream {
		t.Fatalf("pushes = %#v, want one stream event a", pushes)
	}
	// connected, ended, failed, connected
	if !statuses[0].Connected || statuses[1].Connected || statuses[1].Err != nil {
		t.Fatalf("unexpected first statuses: %#v", statuses[:2])
	}
	if statuses[2].Connected || statuses[2].Failures != 1 || statuses[2].Err == nil {
		t.Fatalf("status[2] = %#v, want failure 1", statuses[2])
	}
	if !statuses[3].Connected {
		t.Fatalf("status[3] = %#v, want reconnected", statuses[3])
	}
}

func TestStartPump_StopsOnCancel(t *testing.T) {
	stream := &fakeStream{}
	ctx, cancel := context.WithCancel(context.Background())
	sender := make(chanSender, 4)
	StartPump(ctx, stream, sender, nil, time.Millisecond)

	select {
	case msg := <-sender:
		if st, ok := msg.(StreamStatusMsg); !ok || !st.Connected {
			t.Fatalf("first msg = %#v, want connected", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pump never connected")
	}
	cancel()

	select {
	case msg := <-sender:
		t.Fatalf("unexpected msg after cancel: %#v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
