package popup

import (
	"context"
	"slices"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tabtime/internal/channel"
	"github.com/five82/tabtime/internal/events"
	"github.com/five82/tabtime/internal/icons"
	"github.com/five82/tabtime/internal/logging"
	"github.com/five82/tabtime/internal/prefs"
	"github.com/five82/tabtime/internal/schedule"
	"github.com/five82/tabtime/internal/state"
	"github.com/five82/tabtime/internal/tracker"
)

const (
	defaultTopSites = 10
	noticeTTL       = 4 * time.Second
)

// Options configure the popup.
type Options struct {
	Context   context.Context
	Backend   Backend
	Acker     Acker
	Backup    UserBackup
	Clipboard func(string) error
	Logger    logging.Logger

	Critical   channel.Options
	Background channel.Options
	Schedule   schedule.Options
	Icons      icons.Options

	View      schedule.View
	ThemeName string
	PrefsPath string
	TopSites  int
}

// shown is the projection the view was last rendered from. It only changes
// when the change detector reports a difference.
type shown struct {
	gen            int
	core           *tracker.CoreState
	coreDefault    bool
	stats          *tracker.Stats
	user           *tracker.UserInfo
	userFromBackup bool
	focus          *tracker.FocusStats
	override       *int
	sites          []tracker.SiteUsage
	sitesLoaded    bool
	blocked        []string
	blockedLoaded  bool
	offline        bool
	icons          map[string]icons.Ref
}

type noticeLevel int

const (
	noticeInfo noticeLevel = iota
	noticeError
)

type notice struct {
	id    int
	text  string
	level noticeLevel
}

type noticeExpiredMsg struct{ id int }

type prefsSavedMsg struct{ err error }

// Model is the popup's Bubble Tea model.
type Model struct {
	session   *Session
	sync      *syncer
	acker     Acker
	clipboard func(string) error
	logger    logging.Logger
	prefsPath string

	keys    keyMap
	theme   Theme
	view    schedule.View
	width   int
	height  int
	ready   bool
	spinner spinner.Model
	input   textinput.Model

	showHelp    bool
	inputActive bool
	selected    int
	scroll      int

	coreSettled     bool
	streamConnected bool
	streamDropped   bool
	toggling        bool

	notice    notice
	noticeSeq int

	shown shown
	body  *bodyCache
}

// New mounts a session and builds the model. The caller owns teardown via
// Session().Teardown, which is also triggered by the quit key.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	critical := opts.Critical
	if critical.Timeout <= 0 {
		critical = channel.Critical
	}
	background := opts.Background
	if background.Timeout <= 0 {
		background = channel.Background
	}
	topSites := opts.TopSites
	if topSites <= 0 {
		topSites = defaultTopSites
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = themeOrder[0]
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	view := opts.View
	if view != schedule.ViewUsage {
		view = schedule.ViewFocus
	}

	session := NewSession(opts.Context, SessionOptions{
		Schedule: opts.Schedule,
		Icons:    opts.Icons,
		Logger:   logger,
	})
	s := &syncer{
		session:    session,
		backend:    opts.Backend,
		backup:     opts.Backup,
		critical:   critical,
		background: background,
		topSites:   topSites,
		logger:     logger,
	}
	s.register()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	input := textinput.New()
	input.Placeholder = "example.com"
	input.Prompt = "block › "
	input.CharLimit = 253

	return Model{
		session:   session,
		sync:      s,
		acker:     opts.Acker,
		clipboard: copyFn,
		logger:    logger,
		prefsPath: prefsPath,
		keys:      defaultKeyMap(),
		theme:     GetTheme(themeName),
		view:      view,
		spinner:   sp,
		input:     input,
		shown:     shown{icons: map[string]icons.Ref{}},
		body:      &bodyCache{},
	}
}

// Session returns the mounted session.
func (m Model) Session() *Session { return m.session }

// Renders returns how many times the rendered projection changed.
func (m Model) Renders() int { return m.shown.gen }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.session.Scheduler().Mount(m.view),
		m.sync.coreCmd(m.sync.critical, false),
		m.sync.enhancedCmd(),
		m.spinner.Tick,
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !m.session.Alive() {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-12, 10)
		m.ready = true
		return m, nil

	case tea.FocusMsg:
		if m.session.Scheduler().SetVisible(true) == schedule.StatisticsPolling {
			return m, m.sync.statisticsCmd()
		}
		return m, nil

	case tea.BlurMsg:
		m.session.Scheduler().SetVisible(false)
		return m, nil

	case schedule.TickMsg:
		task, next := m.session.Scheduler().HandleTick(msg)
		switch task {
		case schedule.CriticalFallback:
			return m, tea.Batch(next, m.sync.coreCmd(m.sync.background, false))
		case schedule.StatisticsPolling:
			return m, tea.Batch(next, m.sync.statisticsCmd())
		}
		return m, next

	case spinner.TickMsg:
		if m.coreSettled {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case events.PushMsg:
		ack, cmd := m.session.Events().Dispatch(msg.Event)
		var ackCmd tea.Cmd
		if msg.Source == events.SourceStream {
			ackCmd = m.sync.ackCmd(ack.ID, m.acker)
		}
		gen := m.shown.gen
		reconcileCmd := m.reconcile(false)
		if msg.Event.Kind == tracker.PushUserInfoUpdated && ack.Handled && m.shown.userFromBackup {
			m.shown.userFromBackup = false
			if m.shown.gen == gen {
				m.shown.gen++
			}
		}
		return m, tea.Batch(cmd, ackCmd, reconcileCmd)

	case events.StreamStatusMsg:
		return m.handleStreamStatus(msg)

	case ackedMsg:
		if msg.err != nil {
			m.logger.Warn("push ack failed", logging.F("id", msg.id), logging.F("error", msg.err))
		}
		return m, nil

	case coreMsg:
		return m.handleCore(msg)

	case statsMsg:
		if m.readFailed("stats", msg.err) {
			return m, nil
		}
		m.session.Store().SetStats(msg.stamp, msg.stats)
		cmd := m.reconcile(false)
		return m, cmd

	case sitesMsg:
		if m.readFailed("top sites", msg.err) {
			return m, nil
		}
		m.session.Store().SetTopSites(msg.stamp, msg.sites)
		cmd := m.reconcile(false)
		return m, cmd

	case userMsg:
		return m.handleUser(msg)

	case deepFocusMsg:
		if m.readFailed("deep focus", msg.err) {
			return m, nil
		}
		m.session.Store().SetDeepFocus(msg.stamp, msg.focus)
		cmd := m.reconcile(false)
		return m, cmd

	case overrideMsg:
		if m.readFailed("override time", msg.err) {
			return m, nil
		}
		m.session.Store().SetOverrideMinutes(msg.stamp, msg.minutes)
		cmd := m.reconcile(false)
		return m, cmd

	case blockedMsg:
		if m.readFailed("blocked sites", msg.err) {
			return m, nil
		}
		m.session.Store().SetBlockedSites(msg.stamp, msg.sites)
		cmd := m.reconcile(false)
		return m, cmd

	case iconsMsg:
		changed := false
		for domain, ref := range msg.refs {
			if old, ok := m.shown.icons[domain]; !ok || old != ref {
				changed = true
			}
		}
		if changed {
			next := make(map[string]icons.Ref, len(m.shown.icons)+len(msg.refs))
			for domain, ref := range m.shown.icons {
				next[domain] = ref
			}
			for domain, ref := range msg.refs {
				next[domain] = ref
			}
			m.shown.icons = next
			m.shown.gen++
		}
		return m, nil

	case backupSavedMsg:
		if msg.err != nil {
			m.logger.Warn("user info backup failed", logging.F("error", msg.err))
		}
		return m, nil

	case toggleMsg:
		return m.handleToggleResult(msg)

	case actionMsg:
		return m.handleActionResult(msg)

	case exportMsg:
		return m.handleExportResult(msg)

	case noticeExpiredMsg:
		if msg.id == m.notice.id {
			m.notice = notice{}
		}
		return m, nil

	case prefsSavedMsg:
		if msg.err != nil {
			m.logger.Warn("save prefs failed", logging.F("error", msg.err))
		}
		return m, nil
	}

	if m.inputActive {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleCore(msg coreMsg) (tea.Model, tea.Cmd) {
	store := m.session.Store()
	m.coreSettled = true
	if msg.err != nil {
		store.RecordFailure(msg.err)
		m.logger.Warn("core state refresh failed", logging.F("error", msg.err))
		gen := m.shown.gen
		cmd := m.reconcile(msg.force)
		if m.shown.core == nil {
			// Nothing loaded yet: render defaults instead of an empty view.
			m.shown.core = &tracker.CoreState{}
			m.shown.coreDefault = true
			if m.shown.gen == gen {
				m.shown.gen++
			}
		}
		return m, cmd
	}
	store.RecordSuccess()
	store.ApplyCore(msg.stamp, state.FullPatch(msg.core))
	cmd := m.reconcile(msg.force)
	return m, cmd
}

func (m Model) handleUser(msg userMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if msg.fromBackup {
			m.logger.Debug("user info backup unavailable", logging.F("error", msg.err))
			return m, nil
		}
		m.logger.Debug("user info refresh failed", logging.F("error", msg.err))
		return m, m.sync.loadBackupCmd(msg.stamp)
	}
	if !m.session.Store().SetUserInfo(msg.stamp, msg.info) {
		return m, nil
	}
	gen := m.shown.gen
	cmd := m.reconcile(false)
	if m.shown.userFromBackup != msg.fromBackup {
		m.shown.userFromBackup = msg.fromBackup
		if m.shown.gen == gen {
			m.shown.gen++
		}
	}
	if msg.fromBackup {
		return m, cmd
	}
	return m, tea.Batch(cmd, m.sync.saveBackupCmd(msg.info))
}

func (m Model) handleStreamStatus(msg events.StreamStatusMsg) (tea.Model, tea.Cmd) {
	if !msg.Connected {
		if m.streamConnected {
			m.streamDropped = true
		}
		m.streamConnected = false
		return m, nil
	}
	m.streamConnected = true
	if m.streamDropped {
		// Pushes may have been missed while disconnected.
		m.streamDropped = false
		return m, m.sync.coreCmd(m.sync.background, false)
	}
	return m, nil
}

// readFailed logs a failed read. Reads never raise a notification; the view
// keeps showing the last known value.
func (m Model) readFailed(what string, err error) bool {
	if err == nil {
		return false
	}
	m.logger.Debug("refresh failed", logging.F("field", what), logging.F("error", err))
	return true
}

// reconcile drains the store's dirty flags and copies every concern whose
// rendered projection differs into shown. force skips the comparison.
func (m *Model) reconcile(force bool) tea.Cmd {
	store := m.session.Store()
	dirty := store.TakeDirty()
	snap := store.Snapshot()
	changed := force
	var cmds []tea.Cmd

	if dirty.Has(state.DirtyCore) && snap.HasCore {
		if force || m.shown.coreDefault || state.CoreChanged(snap.Core, m.shown.core) {
			core := snap.Core
			m.shown.core = &core
			m.shown.coreDefault = false
			changed = true
		}
	}
	if dirty.Has(state.DirtyStats) && snap.Enhanced.TodayStats != nil {
		if state.StatsChanged(*snap.Enhanced.TodayStats, m.shown.stats) {
			m.shown.stats = snap.Enhanced.TodayStats
			changed = true
		}
	}
	if dirty.Has(state.DirtyUser) && snap.Enhanced.UserInfo != nil {
		if state.UserChanged(*snap.Enhanced.UserInfo, m.shown.user) {
			m.shown.user = snap.Enhanced.UserInfo
			changed = true
		}
	}
	if dirty.Has(state.DirtyFocus) && snap.Enhanced.DeepFocus != nil {
		if state.FocusChanged(*snap.Enhanced.DeepFocus, m.shown.focus) {
			m.shown.focus = snap.Enhanced.DeepFocus
			changed = true
		}
	}
	if dirty.Has(state.DirtyOverride) && snap.Enhanced.OverrideMinutes != nil {
		if m.shown.override == nil || *m.shown.override != *snap.Enhanced.OverrideMinutes {
			m.shown.override = snap.Enhanced.OverrideMinutes
			changed = true
		}
	}
	if dirty.Has(state.DirtySites) && snap.Enhanced.TopSitesLoaded {
		if !m.shown.sitesLoaded || state.SitesChanged(snap.Enhanced.TopSites, m.shown.sites) {
			m.shown.sites = snap.Enhanced.TopSites
			m.shown.sitesLoaded = true
			m.scroll = min(m.scroll, max(len(m.shown.sites)-1, 0))
			changed = true
			cmds = append(cmds, m.iconsCmd(m.shown.sites))
		}
	}
	if dirty.Has(state.DirtyBlocked) && snap.Enhanced.BlockedLoaded {
		if !m.shown.blockedLoaded || !slices.Equal(snap.Enhanced.BlockedSites, m.shown.blocked) {
			m.shown.blocked = snap.Enhanced.BlockedSites
			m.shown.blockedLoaded = true
			m.selected = min(m.selected, max(len(m.shown.blocked)-1, 0))
			changed = true
		}
	}
	if snap.IsOffline() != m.shown.offline {
		m.shown.offline = snap.IsOffline()
		changed = true
	}

	if changed {
		m.shown.gen++
	}
	return tea.Batch(cmds...)
}

type iconsMsg struct {
	refs map[string]icons.Ref
}

// iconsCmd resolves icons for sites not yet shown with one.
func (m *Model) iconsCmd(sites []tracker.SiteUsage) tea.Cmd {
	var missing []string
	for _, site := range sites {
		if _, ok := m.shown.icons[site.Domain]; !ok {
			missing = append(missing, site.Domain)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	resolver, ctx := m.session.Icons(), m.session.Context()
	return func() tea.Msg {
		return iconsMsg{refs: resolver.Prefetch(ctx, missing)}
	}
}

// notify shows a transient notice.
func (m *Model) notify(level noticeLevel, text string) tea.Cmd {
	m.noticeSeq++
	m.notice = notice{id: m.noticeSeq, text: text, level: level}
	id := m.noticeSeq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

func (m Model) savePrefsCmd() tea.Cmd {
	path, theme, view := m.prefsPath, m.theme.Name, string(m.view)
	return func() tea.Msg {
		return prefsSavedMsg{err: prefs.Update(path, func(p *prefs.Prefs) {
			p.Theme = theme
			p.View = view
		})}
	}
}
