package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds all key bindings for the application.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Top        key.Binding
	Bottom     key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Export     key.Binding
	Rescan     key.Binding
	Force      key.Binding
	Invalidate key.Binding
	Quit       key.Binding
	ForceQuit  key.Binding
	Help       key.Binding
	Close      key.Binding

	// View switching
	ViewElements key.Binding
	ViewCache    key.Binding

	// Sort
	SortVisit key.Binding
	SortSize  key.Binding
	SortMtime key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Top: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "first"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "last"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		Export: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "export"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Force: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "forced rescan"),
		),
		Invalidate: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "invalidate cache"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		ViewElements: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "elements"),
		),
		ViewCache: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "cache"),
		),
		SortVisit: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "sort: visit order"),
		),
		SortSize: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort: size"),
		),
		SortMtime: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "sort: mtime"),
		),
	}
}
