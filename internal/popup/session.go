package popup

import (
	"context"

	"github.com/five82/tabtime/internal/events"
	"github.com/five82/tabtime/internal/icons"
	"github.com/five82/tabtime/internal/logging"
	"github.com/five82/tabtime/internal/schedule"
	"github.com/five82/tabtime/internal/state"
)

// Session is everything one mounted popup owns. It is created at mount and
// torn down exactly once when the popup closes; nothing it holds outlives
// it.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	store     *state.Store
	scheduler *schedule.Scheduler
	events    *events.Subscriber
	icons     *icons.Resolver
	logger    logging.Logger

	releases []func()
	closed   bool
}

// SessionOptions configure a Session.
type SessionOptions struct {
	Schedule schedule.Options
	Icons    icons.Options
	Logger   logging.Logger
}

// NewSession mounts a session under parent.
func NewSession(parent context.Context, opts SessionOptions) *Session {
	if parent == nil {
		parent = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	ctx, cancel := context.WithCancel(parent)
	iconOpts := opts.Icons
	iconOpts.Logger = logger
	return &Session{
		ctx:       ctx,
		cancel:    cancel,
		store:     state.NewStore(),
		scheduler: schedule.New(opts.Schedule),
		events:    events.NewSubscriber(logger),
		icons:     icons.NewResolver(iconOpts),
		logger:    logger,
	}
}

// Context is cancelled at teardown.
func (s *Session) Context() context.Context { return s.ctx }

// Store returns the session's state cache.
func (s *Session) Store() *state.Store { return s.store }

// Scheduler returns the session's refresh timers.
func (s *Session) Scheduler() *schedule.Scheduler { return s.scheduler }

// Events returns the push handler registry.
func (s *Session) Events() *events.Subscriber { return s.events }

// Icons returns the session's icon cache.
func (s *Session) Icons() *icons.Resolver { return s.icons }

// Alive reports whether Teardown has not run yet.
func (s *Session) Alive() bool { return s != nil && !s.closed }

// Defer registers a release to run at teardown. Releases run in reverse
// registration order. Registering on a closed session runs release now.
func (s *Session) Defer(release func()) {
	if release == nil {
		return
	}
	if s.closed {
		release()
		return
	}
	s.releases = append(s.releases, release)
}

// Teardown stops the timers, drops push handlers, cancels outstanding
// requests and discards the store. Later calls do nothing.
func (s *Session) Teardown() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	s.scheduler.Teardown()
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
	s.events.Close()
	s.cancel()
	s.store.Discard()
	s.logger.Debug("session torn down")
}
