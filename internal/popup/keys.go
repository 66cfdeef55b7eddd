package popup

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the popup.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	SwitchView key.Binding
	FocusView  key.Binding
	UsageView  key.Binding
	Export     key.Binding

	// Focus view
	Toggle       key.Binding
	BlockCurrent key.Binding
	AddBlocked   key.Binding
	Remove       key.Binding

	// Usage view
	Refresh key.Binding

	// Navigation
	Up   key.Binding
	Down key.Binding

	// Input
	Confirm key.Binding
	Cancel  key.Binding
}

// defaultKeyMap returns the default key bindings.
func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Close"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		SwitchView: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "Switch view"),
		),
		FocusView: key.NewBinding(
			key.WithKeys("f", "1"),
			key.WithHelp("f", "Focus view"),
		),
		UsageView: key.NewBinding(
			key.WithKeys("u", "2"),
			key.WithHelp("u", "Usage view"),
		),
		Export: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "Export data to clipboard"),
		),

		Toggle: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "Toggle focus mode"),
		),
		BlockCurrent: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "Block current site"),
		),
		AddBlocked: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Add blocked site"),
		),
		Remove: key.NewBinding(
			key.WithKeys("d", "x", "delete"),
			key.WithHelp("d", "Unblock selected site"),
		),

		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh statistics"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel"),
		),
	}
}

// ShortHelp returns key bindings for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SwitchView, k.Help, k.Quit}
}

// FullHelp returns key bindings grouped for the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SwitchView, k.FocusView, k.UsageView, k.Up, k.Down},
		{k.Toggle, k.BlockCurrent, k.AddBlocked, k.Remove},
		{k.Refresh, k.Export},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
