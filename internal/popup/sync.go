package popup

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tabtime/internal/channel"
	"github.com/five82/tabtime/internal/logging"
	"github.com/five82/tabtime/internal/state"
	"github.com/five82/tabtime/internal/tracker"
)

// Backend is the request side of the background process.
type Backend interface {
	CurrentState(ctx context.Context, opts channel.Options) (tracker.CoreState, error)
	RealtimeStats(ctx context.Context) (tracker.Stats, error)
	TopSites(ctx context.Context, limit int) ([]tracker.SiteUsage, error)
	UserInfo(ctx context.Context) (tracker.UserInfo, error)
	DeepFocusTime(ctx context.Context) (tracker.FocusStats, error)
	OverrideTime(ctx context.Context) (int, error)
	ToggleFocusMode(ctx context.Context) (bool, error)
	BlockCurrentSite(ctx context.Context) (string, error)
	AddBlockedSite(ctx context.Context, domain string) (string, error)
	RemoveBlockedSite(ctx context.Context, domain string) (string, error)
	BlockedSites(ctx context.Context) ([]string, error)
	ExportData(ctx context.Context) ([]byte, error)
}

var _ Backend = (*tracker.Client)(nil)

// Acker confirms receipt of a streamed push.
type Acker interface {
	Ack(ctx context.Context, id string) error
}

// UserBackup is the local cache of last resort for user info.
type UserBackup interface {
	SaveUserInfo(info tracker.UserInfo) error
	LoadUserInfo() (tracker.UserInfo, time.Time, bool, error)
}

var errNoBackup = errors.New("no user info backup")

// Results of asynchronous requests. Each carries the stamp issued when the
// request was sent.
type (
	coreMsg struct {
		stamp state.Seq
		core  tracker.CoreState
		err   error
		force bool
	}
	statsMsg struct {
		stamp state.Seq
		stats tracker.Stats
		err   error
	}
	sitesMsg struct {
		stamp state.Seq
		sites []tracker.SiteUsage
		err   error
	}
	userMsg struct {
		stamp      state.Seq
		info       tracker.UserInfo
		err        error
		fromBackup bool
	}
	deepFocusMsg struct {
		stamp state.Seq
		focus tracker.FocusStats
		err   error
	}
	overrideMsg struct {
		stamp   state.Seq
		minutes int
		err     error
	}
	blockedMsg struct {
		stamp state.Seq
		sites []string
		err   error
	}
	ackedMsg struct {
		id  string
		err error
	}
	backupSavedMsg struct{ err error }
)

// syncer issues requests and applies push events for one session. It only
// touches the store; rendering decisions belong to the model.
type syncer struct {
	session    *Session
	backend    Backend
	backup     UserBackup
	critical   channel.Options
	background channel.Options
	topSites   int
	logger     logging.Logger
}

func (s *syncer) store() *state.Store { return s.session.Store() }

// coreCmd fetches GET_CURRENT_STATE with opts.
func (s *syncer) coreCmd(opts channel.Options, force bool) tea.Cmd {
	stamp := s.store().Issue()
	ctx, backend := s.session.Context(), s.backend
	return func() tea.Msg {
		core, err := backend.CurrentState(ctx, opts)
		return coreMsg{stamp: stamp, core: core, err: err, force: force}
	}
}

func (s *syncer) statsCmd() tea.Cmd {
	stamp := s.store().Issue()
	ctx, backend := s.session.Context(), s.backend
	return func() tea.Msg {
		stats, err := backend.RealtimeStats(ctx)
		return statsMsg{stamp: stamp, stats: stats, err: err}
	}
}

func (s *syncer) sitesCmd() tea.Cmd {
	stamp := s.store().Issue()
	ctx, backend, limit := s.session.Context(), s.backend, s.topSites
	return func() tea.Msg {
		sites, err := backend.TopSites(ctx, limit)
		return sitesMsg{stamp: stamp, sites: sites, err: err}
	}
}

func (s *syncer) userCmd() tea.Cmd {
	stamp := s.store().Issue()
	ctx, backend := s.session.Context(), s.backend
	return func() tea.Msg {
		info, err := backend.UserInfo(ctx)
		return userMsg{stamp: stamp, info: info, err: err}
	}
}

func (s *syncer) deepFocusCmd() tea.Cmd {
	stamp := s.store().Issue()
	ctx, backend := s.session.Context(), s.backend
	return func() tea.Msg {
		focus, err := backend.DeepFocusTime(ctx)
		return deepFocusMsg{stamp: stamp, focus: focus, err: err}
	}
}

func (s *syncer) overrideCmd() tea.Cmd {
	stamp := s.store().Issue()
	ctx, backend := s.session.Context(), s.backend
	return func() tea.Msg {
		minutes, err := backend.OverrideTime(ctx)
		return overrideMsg{stamp: stamp, minutes: minutes, err: err}
	}
}

func (s *syncer) blockedCmd() tea.Cmd {
	stamp := s.store().Issue()
	ctx, backend := s.session.Context(), s.backend
	return func() tea.Msg {
		sites, err := backend.BlockedSites(ctx)
		return blockedMsg{stamp: stamp, sites: sites, err: err}
	}
}

// statisticsCmd is the periodic statistics refresh.
func (s *syncer) statisticsCmd() tea.Cmd {
	return tea.Batch(s.statsCmd(), s.sitesCmd())
}

// enhancedCmd loads every enhanced field in parallel. Each fails on its
// own.
func (s *syncer) enhancedCmd() tea.Cmd {
	return tea.Batch(
		s.statsCmd(),
		s.userCmd(),
		s.deepFocusCmd(),
		s.overrideCmd(),
		s.sitesCmd(),
		s.blockedCmd(),
	)
}

func (s *syncer) loadBackupCmd(stamp state.Seq) tea.Cmd {
	if s.backup == nil {
		return nil
	}
	backup := s.backup
	return func() tea.Msg {
		info, _, ok, err := backup.LoadUserInfo()
		if err == nil && !ok {
			err = errNoBackup
		}
		return userMsg{stamp: stamp, info: info, err: err, fromBackup: true}
	}
}

func (s *syncer) saveBackupCmd(info tracker.UserInfo) tea.Cmd {
	if s.backup == nil {
		return nil
	}
	backup := s.backup
	return func() tea.Msg {
		return backupSavedMsg{err: backup.SaveUserInfo(info)}
	}
}

func (s *syncer) ackCmd(id string, acker Acker) tea.Cmd {
	if id == "" || acker == nil {
		return nil
	}
	ctx := s.session.Context()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, channel.Critical.Timeout)
		defer cancel()
		return ackedMsg{id: id, err: acker.Ack(ctx, id)}
	}
}

// register wires every push kind to its handler. Each handler mutates only
// its own partition.
func (s *syncer) register() {
	sub := s.session.Events()
	for kind, fn := range map[tracker.PushKind]func(tracker.PushEvent) tea.Cmd{
		tracker.PushStatsUpdated:        s.onStatsUpdated,
		tracker.PushFocusStateChanged:   s.onFocusChanged,
		tracker.PushUserInfoUpdated:     s.onUserInfoUpdated,
		tracker.PushOverrideDataUpdated: s.onOverrideUpdated,
		tracker.PushForceStateRefresh:   s.onForceRefresh,
	} {
		s.session.Defer(sub.Handle(kind, fn))
	}
}

func (s *syncer) onStatsUpdated(ev tracker.PushEvent) tea.Cmd {
	stamp := s.store().Issue()
	var next tracker.Stats
	if current := s.store().Snapshot().Enhanced.TodayStats; current != nil {
		next = *current
	}
	if err := ev.DecodePayload(&next); err != nil {
		s.logger.Warn("push payload rejected", logging.F("kind", ev.Kind), logging.F("error", err))
		return nil
	}
	s.store().SetStats(stamp, next)
	return nil
}

func (s *syncer) onFocusChanged(ev tracker.PushEvent) tea.Cmd {
	stamp := s.store().Issue()
	var change struct {
		IsActive *bool `json:"isActive"`
	}
	if err := ev.DecodePayload(&change); err != nil || change.IsActive == nil {
		s.logger.Warn("push payload rejected", logging.F("kind", ev.Kind), logging.F("error", err))
		return nil
	}
	s.store().ApplyCore(stamp, state.FocusPatch(*change.IsActive))
	return nil
}

func (s *syncer) onUserInfoUpdated(ev tracker.PushEvent) tea.Cmd {
	stamp := s.store().Issue()
	var next tracker.UserInfo
	if current := s.store().Snapshot().Enhanced.UserInfo; current != nil {
		next = *current
	}
	if err := ev.DecodePayload(&next); err != nil {
		s.logger.Warn("push payload rejected", logging.F("kind", ev.Kind), logging.F("error", err))
		return nil
	}
	if !s.store().SetUserInfo(stamp, next) {
		return nil
	}
	return s.saveBackupCmd(next)
}

func (s *syncer) onOverrideUpdated(tracker.PushEvent) tea.Cmd {
	return s.overrideCmd()
}

func (s *syncer) onForceRefresh(tracker.PushEvent) tea.Cmd {
	return s.coreCmd(s.background, true)
}
