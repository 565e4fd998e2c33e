package bubbletea

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	NextHunk key.Binding
	PrevHunk key.Binding
	Select   key.Binding
	Stage    key.Binding
	Unstage  key.Binding
	Discard  key.Binding
	Copy     key.Binding
	Toggle   key.Binding
	Reload   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		NextHunk: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next hunk")),
		PrevHunk: key.NewBinding(key.WithKeys("N", "p"), key.WithHelp("N/p", "prev hunk")),
		Select:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select line")),
		Stage:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stage")),
		Unstage:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unstage")),
		Discard:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "discard")),
		Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy patch")),
		Toggle:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "staged/unstaged")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Stage, k.Unstage, k.Discard, k.Toggle, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.NextHunk, k.PrevHunk},
		{k.Select, k.Stage, k.Unstage, k.Discard, k.Copy},
		{k.Toggle, k.Reload, k.Help, k.Quit},
	}
}
