package popup

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/tabtime/internal/icons"
	"github.com/five82/tabtime/internal/schedule"
)

const (
	minWidth    = 40
	barWidth    = 12
	domainWidth = 22
)

// bodyCache holds the last rendered body. It is rebuilt only when the
// rendered projection or the layout changed.
type bodyCache struct {
	valid bool
	key   bodyKey
	text  string
}

type bodyKey struct {
	gen      int
	theme    string
	view     schedule.View
	width    int
	height   int
	selected int
	scroll   int
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return ""
	}
	if m.showHelp {
		return m.renderHelp()
	}

	width := max(m.width, minWidth)
	sections := []string{
		m.renderHeader(width),
		m.renderTabs(width),
		m.renderBody(width),
	}
	if line := m.renderNotice(); line != "" {
		sections = append(sections, line)
	}
	if m.inputActive {
		sections = append(sections, " "+m.input.View())
	}
	sections = append(sections, m.renderFooter(width))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newBgStyle(m.theme.Surface)

	parts := []string{styles.Logo.Render("tabtime")}
	core := m.shown.core
	switch {
	case core == nil && !m.coreSettled:
		parts = append(parts, bg.Render(m.spinner.View()+" Loading", styles.MutedText))
	case core == nil:
		parts = append(parts, bg.Render("Unavailable", styles.DangerText))
	default:
		if core.FocusMode {
			parts = append(parts, bg.Render("● Focus", styles.SuccessText))
		} else {
			parts = append(parts, bg.Render("○ Focus", styles.MutedText))
		}
		if core.IsTracking {
			label := "Tracking"
			if core.CurrentDomain != "" {
				label += " " + truncate(core.CurrentDomain, 24)
			}
			parts = append(parts, bg.Render(label, styles.InfoText))
		} else {
			parts = append(parts, bg.Render("Paused", styles.WarningText))
		}
	}
	if m.shown.coreDefault {
		parts = append(parts, bg.Render("Unavailable", styles.DangerText))
	}
	if m.shown.offline {
		parts = append(parts, bg.Render("offline", styles.DangerText))
	}

	line := bg.Join(parts, "  ")
	return styles.Header.Width(width).Render(line)
}

func (m Model) renderTabs(width int) string {
	styles := m.theme.Styles()
	tab := func(label string, view schedule.View) string {
		if m.view == view {
			return styles.Selected.Padding(0, 1).Render(label)
		}
		return styles.MutedText.Padding(0, 1).Render(label)
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, tab("1 Focus", schedule.ViewFocus), " ", tab("2 Usage", schedule.ViewUsage))
	return lipgloss.NewStyle().Width(width).Render(row)
}

func (m Model) renderBody(width int) string {
	key := bodyKey{
		gen:      m.shown.gen,
		theme:    m.theme.Name,
		view:     m.view,
		width:    width,
		height:   m.height,
		selected: m.selected,
		scroll:   m.scroll,
	}
	if m.body != nil && m.body.valid && m.body.key == key {
		return m.body.text
	}
	var text string
	if m.view == schedule.ViewUsage {
		text = m.renderUsage(width)
	} else {
		text = m.renderFocus(width)
	}
	if m.body != nil {
		*m.body = bodyCache{valid: true, key: key, text: text}
	}
	return text
}

func (m Model) renderFocus(width int) string {
	styles := m.theme.Styles()
	var lines []string

	switch core := m.shown.core; {
	case core == nil:
		lines = append(lines, styles.FaintText.Render("Focus mode unknown"))
	case core.FocusMode:
		lines = append(lines, styles.ToggleOn.Render("[x] Focus On")+"  "+styles.FaintText.Render("space to turn off"))
	default:
		lines = append(lines, styles.ToggleOff.Render("[ ] Focus Off")+"  "+styles.FaintText.Render("space to turn on"))
	}
	lines = append(lines, "")

	deep := "—"
	if f := m.shown.focus; f != nil {
		deep = fmt.Sprintf("%s · %s", formatMinutes(f.Minutes), pluralize(f.Sessions, "session", "sessions"))
	}
	lines = append(lines, m.field("Deep focus", deep))

	override := "—"
	if o := m.shown.override; o != nil {
		override = formatMinutes(*o)
	}
	lines = append(lines, m.field("Overrides", override))
	lines = append(lines, "")

	lines = append(lines, styles.AccentText.Bold(true).Render("Blocked sites"))
	switch {
	case !m.shown.blockedLoaded:
		lines = append(lines, styles.FaintText.Render("  loading…"))
	case len(m.shown.blocked) == 0:
		lines = append(lines, styles.FaintText.Render("  none · press a to add"))
	default:
		inner := width - 4
		for i, domain := range m.shown.blocked {
			row := padRight("  "+truncate(domain, inner-2), inner)
			if i == m.selected {
				lines = append(lines, styles.Selected.Render(row))
				continue
			}
			lines = append(lines, styles.Text.Render(row))
		}
	}

	return styles.Panel.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderUsage(width int) string {
	styles := m.theme.Styles()
	var lines []string

	user := "—"
	if u := m.shown.user; u != nil {
		user = u.Label()
		if m.shown.userFromBackup {
			user += " (cached)"
		}
	}
	lines = append(lines, m.field("User", user))

	if s := m.shown.stats; s != nil {
		lines = append(lines,
			m.field("Today", formatDuration(s.Total())),
			m.field("Sites", fmt.Sprintf("%d", s.SitesVisited)),
			m.field("Score", fmt.Sprintf("%d%%", s.ProductivityScore)),
		)
	} else {
		lines = append(lines, m.field("Today", "—"))
	}
	lines = append(lines, "")
	lines = append(lines, styles.AccentText.Bold(true).Render("Top sites"))

	switch {
	case !m.shown.sitesLoaded:
		lines = append(lines, styles.FaintText.Render("  loading…"))
	case len(m.shown.sites) == 0:
		lines = append(lines, styles.FaintText.Render("  nothing tracked yet"))
	default:
		var top int64
		for _, site := range m.shown.sites {
			top = max(top, site.TimeSpent)
		}
		rows := m.visibleRows()
		start := min(m.scroll, max(len(m.shown.sites)-rows, 0))
		end := min(start+rows, len(m.shown.sites))
		for _, site := range m.shown.sites[start:end] {
			glyph := m.iconFor(site.Domain).Glyph
			row := fmt.Sprintf("%s %s %s %6s %s",
				glyph,
				padRight(truncate(site.Domain, domainWidth), domainWidth),
				padRight(bar(site.TimeSpent, top, barWidth), barWidth),
				formatDuration(site.Duration()),
				pluralize(site.Visits, "visit", "visits"),
			)
			lines = append(lines, styles.Text.Render(row))
		}
	}

	return styles.Panel.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) iconFor(domain string) icons.Ref {
	if ref, ok := m.shown.icons[domain]; ok {
		return ref
	}
	return icons.Fallback(domain)
}

// visibleRows is the number of top-site rows that fit the window.
func (m Model) visibleRows() int {
	if m.height <= 0 {
		return len(m.shown.sites)
	}
	return max(m.height-14, 3)
}

func (m Model) field(label, value string) string {
	styles := m.theme.Styles()
	return styles.MutedText.Render(padRight(label, 12)) + styles.Text.Render(value)
}

func (m Model) renderNotice() string {
	if m.notice.text == "" {
		return ""
	}
	styles := m.theme.Styles()
	if m.notice.level == noticeError {
		return " " + styles.DangerText.Render("✗ "+m.notice.text)
	}
	return " " + styles.SuccessText.Render("✓ "+m.notice.text)
}

func (m Model) renderFooter(width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newBgStyle(m.theme.Surface)

	var bindings []string
	add := func(keys, desc string) {
		bindings = append(bindings, bg.Render(keys, styles.AccentText)+bg.Spaces(1)+bg.Render(desc, styles.MutedText))
	}
	switch {
	case m.inputActive:
		add("enter", "Block")
		add("esc", "Cancel")
	case m.view == schedule.ViewFocus:
		add("space", "Toggle")
		add("b", "Block current")
		add("a", "Add")
		add("d", "Unblock")
	default:
		add("r", "Refresh")
		add("E", "Export")
	}
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		add(h.Key, h.Desc)
	}
	return styles.Footer.Width(width).Render(bg.Join(bindings, "  "))
}
