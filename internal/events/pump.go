package events

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tabtime/internal/logging"
	"github.com/five82/tabtime/internal/tracker"
)

const (
	defaultRetryInterval = 2 * time.Second
	maxBackoff           = 30 * time.Second
)

// Source names where a push came from.
type Source string

const (
	SourceStream Source = "stream"
	SourceBus    Source = "bus"
)

// Sender can receive messages (matches *tea.Program).
type Sender interface {
	Send(msg tea.Msg)
}

// PushMsg carries one push event into the event loop.
type PushMsg struct {
	Event  tracker.PushEvent
	Source Source
}

// StreamStatusMsg reports stream connectivity changes.
type StreamStatusMsg struct {
	Connected bool
	Failures  int
	Err       error
}

// StartPump launches a goroutine that keeps the push stream open, forwarding
// every event to sender and reconnecting with backoff. It returns
// immediately; the goroutine exits when ctx is cancelled.
func StartPump(ctx context.Context, stream tracker.PushStream, sender Sender, logger logging.Logger, retry time.Duration) {
	if retry <= 0 {
		retry = defaultRetryInterval
	}
	if logger == nil {
		logger = logging.Nop()
	}
	go func() {
		failures := 0
		for {
			err := pumpOnce(ctx, stream, sender, &failures)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				failures++
				logger.Warn("push stream failed", logging.F("failures", failures), logging.F("error", err))
			} else {
				logger.Info("push stream ended")
			}
			sender.Send(StreamStatusMsg{Connected: false, Failures: failures, Err: err})

			timer := time.NewTimer(calculateBackoff(failures, retry))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

func pumpOnce(ctx context.Context, stream tracker.PushStream, sender Sender, failures *int) error {
	events, stop, err := stream.Stream(ctx)
	if err != nil {
		return err
	}
	defer stop()

	*failures = 0
	sender.Send(StreamStatusMsg{Connected: true})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			sender.Send(PushMsg{Event: ev, Source: SourceStream})
		}
	}
}

// calculateBackoff doubles the base interval per consecutive failure, capped
// at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for range failures {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
