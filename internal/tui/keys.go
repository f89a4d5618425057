package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the editor's global bindings. Every other key goes to the
// text area.
type KeyMap struct {
	Recursive key.Binding
	NextTab   key.Binding
	Save      key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Recursive: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "recursive")),
		NextTab:   key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "next tab")),
		Save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Recursive, k.NextTab, k.Save, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
