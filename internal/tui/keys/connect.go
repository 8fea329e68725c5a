// Package keys holds the key bindings of the session view.
package keys

import "github.com/charmbracelet/bubbles/key"

// ConnectKeys are the bindings of the connect view. Insert mode only uses
// Escape, Enter, ToggleSendMode, Up and Down; everything else applies in
// normal mode.
type ConnectKeys struct {
	Quit       key.Binding
	Help       key.Binding
	InsertMode key.Binding
	Escape     key.Binding

	Enter          key.Binding
	ToggleSendMode key.Binding

	Clear            key.Binding
	ToggleHex        key.Binding
	ToggleASCII      key.Binding
	ToggleTimestamps key.Binding

	Up         key.Binding
	Down       key.Binding
	GotoTop    key.Binding
	GotoBottom key.Binding

	Disconnect key.Binding
	Reconnect  key.Binding
	CycleDefmt key.Binding
	ToggleRTS  key.Binding
	ToggleDTR  key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

func NewConnectKeys() ConnectKeys {
	return ConnectKeys{
		Quit:       bind("q/ctrl+c", "quit", "q", "Q", "ctrl+c"),
		Help:       bind("?", "toggle help", "?"),
		InsertMode: bind("i", "insert mode", "i", "I"),
		Escape:     bind("esc", "normal mode", "esc"),

		Enter:          bind("enter", "send message", "enter"),
		ToggleSendMode: bind("tab", "toggle send mode", "tab"),

		Clear:            bind("c", "clear buffer", "c"),
		ToggleHex:        bind("h", "toggle hex", "h"),
		ToggleASCII:      bind("a", "toggle ascii", "a"),
		ToggleTimestamps: bind("t", "toggle timestamps", "t"),

		Up:         bind("↑/k", "up", "up", "k"),
		Down:       bind("↓/j", "down", "down", "j"),
		GotoTop:    bind("g", "goto top", "g"),
		GotoBottom: bind("G", "follow output", "G"),

		Disconnect: bind("d", "disconnect", "d"),
		Reconnect:  bind("r", "connect again", "r"),
		CycleDefmt: bind("m", "cycle defmt mode", "m"),
		ToggleRTS:  bind("R", "toggle RTS", "R"),
		ToggleDTR:  bind("D", "toggle DTR", "D"),
	}
}

func (k ConnectKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.InsertMode, k.CycleDefmt, k.Disconnect, k.Quit}
}

func (k ConnectKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.InsertMode, k.Escape, k.Enter, k.ToggleSendMode},
		{k.ToggleHex, k.ToggleASCII, k.ToggleTimestamps, k.Clear},
		{k.GotoTop, k.GotoBottom, k.Up, k.Down},
		{k.Disconnect, k.Reconnect, k.CycleDefmt, k.ToggleRTS, k.ToggleDTR},
		{k.Help, k.Quit},
	}
}
