package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Tab      key.Binding
	Enter    key.Binding
	Add      key.Binding
	Edit     key.Binding
	Deadline key.Binding
	Done     key.Binding
	DoingIt  key.Binding
	NeedHelp key.Binding
	MarkDone key.Binding
	Delete   key.Binding
	Undo     key.Binding
	Scope    key.Binding
	Refresh  key.Binding
	Filter   key.Binding
	Help     key.Binding
	Quit     key.Binding
	Escape   key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left pane")),
	Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right pane")),
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
	Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select/toggle")),
	Add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "post goal")),
	Edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit text")),
	Deadline: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "edit deadline")),
	Done:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "toggle done")),
	DoingIt:  key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "doing it")),
	NeedHelp: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "need help")),
	MarkDone: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "done")),
	Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Undo:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo delete")),
	Scope:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mine/everyone")),
	Refresh:  key.NewBinding(key.WithKeys("r", "R"), key.WithHelp("r", "refresh")),
	Filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Escape:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
}
