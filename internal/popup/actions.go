package popup

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tabtime/internal/channel"
	"github.com/five82/tabtime/internal/logging"
	"github.com/five82/tabtime/internal/schedule"
	"github.com/five82/tabtime/internal/state"
	"github.com/five82/tabtime/internal/tracker"
)

type actionKind int

const (
	actionBlockCurrent actionKind = iota
	actionAdd
	actionRemove
)

func (a actionKind) failure() string {
	switch a {
	case actionBlockCurrent:
		return "Failed to block site"
	case actionAdd:
		return "Failed to add blocked site"
	default:
		return "Failed to unblock site"
	}
}

// toggleMsg carries the TOGGLE_FOCUS_MODE outcome. stamp is the stamp the
// optimistic value was applied with.
type toggleMsg struct {
	stamp    state.Seq
	previous bool
	value    bool
	err      error
}

type actionMsg struct {
	kind   actionKind
	domain string
	err    error
}

type exportMsg struct {
	bytes int
	err   error
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) && (msg.String() == "ctrl+c" || !m.inputActive) {
		m.session.Teardown()
		return m, tea.Quit
	}

	if m.inputActive {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.closeInput()
			return m, nil
		case key.Matches(msg, m.keys.Confirm):
			return m.submitInput()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Cancel) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		return m, m.savePrefsCmd()
	case key.Matches(msg, m.keys.SwitchView):
		if m.view == schedule.ViewFocus {
			return m.setView(schedule.ViewUsage)
		}
		return m.setView(schedule.ViewFocus)
	case key.Matches(msg, m.keys.FocusView):
		return m.setView(schedule.ViewFocus)
	case key.Matches(msg, m.keys.UsageView):
		return m.setView(schedule.ViewUsage)
	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd()
	case key.Matches(msg, m.keys.Refresh):
		return m, tea.Batch(m.sync.coreCmd(m.sync.background, false), m.sync.enhancedCmd())
	}

	if m.view == schedule.ViewUsage {
		switch {
		case key.Matches(msg, m.keys.Up):
			m.scroll = max(m.scroll-1, 0)
		case key.Matches(msg, m.keys.Down):
			m.scroll = min(m.scroll+1, max(len(m.shown.sites)-1, 0))
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Toggle):
		return m.toggleFocus()
	case key.Matches(msg, m.keys.BlockCurrent):
		return m, m.blockCurrentCmd()
	case key.Matches(msg, m.keys.AddBlocked):
		m.inputActive = true
		m.input.SetValue("")
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Remove):
		return m.removeSelected()
	case key.Matches(msg, m.keys.Up):
		m.selected = max(m.selected-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.selected = min(m.selected+1, max(len(m.shown.blocked)-1, 0))
	}
	return m, nil
}

func (m Model) setView(view schedule.View) (tea.Model, tea.Cmd) {
	if view == m.view {
		return m, nil
	}
	m.view = view
	cmds := []tea.Cmd{m.session.Scheduler().SetView(view), m.savePrefsCmd()}
	if view == schedule.ViewUsage {
		cmds = append(cmds, m.sync.statisticsCmd())
	}
	return m, tea.Batch(cmds...)
}

// toggleFocus applies the flipped value immediately and sends the request.
// A failed request restores the previous value under the same stamp, so a
// push that arrived meanwhile is kept. When the first fetch failed the
// default state is toggled.
func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	store := m.session.Store()
	core, ok := store.Core()
	if (!ok && !m.shown.coreDefault) || m.toggling {
		return m, nil
	}
	m.toggling = true
	stamp := store.Issue()
	store.ApplyCore(stamp, state.FocusPatch(!core.FocusMode))
	cmd := m.reconcile(false)

	ctx, backend, previous := m.session.Context(), m.sync.backend, core.FocusMode
	return m, tea.Batch(cmd, func() tea.Msg {
		value, err := backend.ToggleFocusMode(ctx)
		return toggleMsg{stamp: stamp, previous: previous, value: value, err: err}
	})
}

func (m Model) handleToggleResult(msg toggleMsg) (tea.Model, tea.Cmd) {
	m.toggling = false
	store := m.session.Store()
	if msg.err != nil {
		m.logger.Warn("toggle focus mode failed", logging.F("error", msg.err))
		store.ApplyCore(msg.stamp, state.FocusPatch(msg.previous))
		cmd := tea.Batch(m.reconcile(false), m.notify(noticeError, "Failed to toggle focus mode"))
		return m, cmd
	}
	store.ApplyCore(msg.stamp, state.FocusPatch(msg.value))
	cmd := m.reconcile(false)
	return m, cmd
}

func (m Model) blockCurrentCmd() tea.Cmd {
	ctx, backend := m.session.Context(), m.sync.backend
	return func() tea.Msg {
		domain, err := backend.BlockCurrentSite(ctx)
		return actionMsg{kind: actionBlockCurrent, domain: domain, err: err}
	}
}

func (m *Model) closeInput() {
	m.inputActive = false
	m.input.Blur()
	m.input.SetValue("")
}

// submitInput validates the typed domain before anything is sent.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	domain, err := tracker.NormalizeDomain(m.input.Value())
	if err != nil {
		cmd := m.notify(noticeError, validationText(err))
		return m, cmd
	}
	m.closeInput()
	ctx, backend := m.session.Context(), m.sync.backend
	return m, func() tea.Msg {
		added, err := backend.AddBlockedSite(ctx, domain)
		if added == "" {
			added = domain
		}
		return actionMsg{kind: actionAdd, domain: added, err: err}
	}
}

func (m Model) removeSelected() (tea.Model, tea.Cmd) {
	if m.selected < 0 || m.selected >= len(m.shown.blocked) {
		return m, nil
	}
	domain := m.shown.blocked[m.selected]
	ctx, backend := m.session.Context(), m.sync.backend
	return m, func() tea.Msg {
		removed, err := backend.RemoveBlockedSite(ctx, domain)
		if removed == "" {
			removed = domain
		}
		return actionMsg{kind: actionRemove, domain: removed, err: err}
	}
}

func (m Model) handleActionResult(msg actionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("blocked site action failed",
			logging.F("domain", msg.domain),
			logging.F("error", msg.err),
		)
		text := msg.kind.failure()
		var verr *channel.ValidationError
		if errors.As(msg.err, &verr) {
			text = validationText(msg.err)
		}
		cmd := m.notify(noticeError, text)
		return m, cmd
	}
	var text string
	switch msg.kind {
	case actionRemove:
		text = "Unblocked " + msg.domain
	default:
		text = "Blocked " + msg.domain
	}
	cmd := tea.Batch(m.sync.blockedCmd(), m.notify(noticeInfo, text))
	return m, cmd
}

func (m Model) exportCmd() tea.Cmd {
	ctx, backend, copyFn := m.session.Context(), m.sync.backend, m.clipboard
	return func() tea.Msg {
		data, err := backend.ExportData(ctx)
		if err != nil {
			return exportMsg{err: err}
		}
		if err := copyFn(string(data)); err != nil {
			return exportMsg{err: err}
		}
		return exportMsg{bytes: len(data)}
	}
}

func (m Model) handleExportResult(msg exportMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("export failed", logging.F("error", msg.err))
		cmd := m.notify(noticeError, "Failed to export data")
		return m, cmd
	}
	cmd := m.notify(noticeInfo, "Export copied to clipboard")
	return m, cmd
}

func validationText(err error) string {
	var verr *channel.ValidationError
	if errors.As(err, &verr) && verr.Field == "domain" {
		if verr.Reason == "empty" {
			return "Enter a domain to block"
		}
		return "Invalid domain"
	}
	return "Invalid input"
}
