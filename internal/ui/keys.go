package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit       key.Binding
	NextTicker key.Binding
	PrevTicker key.Binding
	NextWindow key.Binding
	Refresh    key.Binding
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextTicker: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next ticker")),
	PrevTicker: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev ticker")),
	NextWindow: key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "next window")),
	Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.NextTicker, k.NextWindow, k.Refresh, k.Quit}
}
