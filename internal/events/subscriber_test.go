package events

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tabtime/internal/tracker"
)

type followUp struct{ kind tracker.PushKind }

func TestSubscriber_DispatchRunsHandlers(t *testing.T) {
	s := NewSubscriber(nil)
	var got []string
	s.Handle(tracker.PushStatsUpdated, func(ev tracker.PushEvent) tea.Cmd {
		got = append(got, ev.ID)
		return func() tea.Msg { return followUp{kind: ev.Kind} }
	})

	ack, cmd := s.Dispatch(tracker.PushEvent{ID: "e1", Kind: tracker.PushStatsUpdated})
	if !ack.Handled || ack.ID != "e1" || ack.Kind != tracker.PushStatsUpdated {
		t.Fatalf("ack = %#v, want handled e1", ack)
	}
	if len(got) != 1 || got[0] != "e1" {
		t.Fatalf("handler calls = %v, want [e1]", got)
	}
	if cmd == nil {
		t.Fatal("expected follow-up command")
	}
	if msg, ok := cmd().(followUp); !ok || msg.kind != tracker.PushStatsUpdated {
		t.Fatalf("follow-up msg = %#v", msg)
	}
}

func TestSubscriber_UnknownKindAcknowledgedUnhandled(t *testing.T) {
	s := NewSubscriber(nil)
	ack, cmd := s.Dispatch(tracker.PushEvent{ID: "x", Kind: "SOMETHING_NEW"})
	if ack.Handled {
		t.Fatal("unknown kind should not be handled")
	}
	if ack.ID != "x" {
		t.Fatalf("ack.ID = %q, want x", ack.ID)
	}
	if cmd != nil {
		t.Fatal("unknown kind should not produce a command")
	}
}

func TestSubscriber_UnsubscribeIdempotent(t *testing.T) {
	s := NewSubscriber(nil)
	calls := 0
	h := func(tracker.PushEvent) tea.Cmd { calls++; return nil }
	unsubA := s.Handle(tracker.PushFocusStateChanged, h)
	s.Handle(tracker.PushFocusStateChanged, h)

	unsubA()
	unsubA()
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}

	s.Dispatch(tracker.PushEvent{Kind: tracker.PushFocusStateChanged})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSubscriber_DuplicateIDHandledOnce(t *testing.T) {
	s := NewSubscriber(nil)
	calls := 0
	s.Handle(tracker.PushUserInfoUpdated, func(tracker.PushEvent) tea.Cmd { calls++; return nil })

	ev := tracker.PushEvent{ID: "same", Kind: tracker.PushUserInfoUpdated}
	s.Dispatch(ev)
	ack, _ := s.Dispatch(ev)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !ack.Duplicate || !ack.Handled {
		t.Fatalf("second ack = %#v, want duplicate", ack)
	}
}

func TestSubscriber_CloseDropsHandlers(t *testing.T) {
	s := NewSubscriber(nil)
	calls := 0
	s.Handle(tracker.PushStatsUpdated, func(tracker.PushEvent) tea.Cmd { calls++; return nil })
	s.Close()

	ack, _ := s.Dispatch(tracker.PushEvent{Kind: tracker.PushStatsUpdated})
	if ack.Handled || calls != 0 {
		t.Fatalf("dispatch after Close: ack=%#v calls=%d", ack, calls)
	}
	unsub := s.Handle(tracker.PushStatsUpdated, func(tracker.PushEvent) tea.Cmd { return nil })
	unsub()
	if s.Len() != 0 {
		t.Fatalf("Len() = %d after Close, want 0", s.Len())
	}
}
