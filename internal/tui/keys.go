package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the application bindings. Navigation keys (j, k, {, }, [[,
// ]], gg, G, h, l, enter, space, H, L, o) belong to the navigator and are
// only listed here for help.
type keyMap struct {
	Quit        key.Binding
	NextTab     key.Binding
	PrevTab     key.Binding
	CloseTab    key.Binding
	Duplicate   key.Binding
	MoveLeft    key.Binding
	MoveRight   key.Binding
	Command     key.Binding
	Filter      key.Binding
	Statuses    key.Binding
	Sort        key.Binding
	Order       key.Binding
	Refresh     key.Binding
	Style       key.Binding
	MergeBase   key.Binding
	PageDown    key.Binding
	PageUp      key.Binding
	Description key.Binding
	NextPage    key.Binding
	PrevPage    key.Binding
	Help        key.Binding

	Navigate key.Binding
	Expand   key.Binding
	Open     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev tab"),
		),
		CloseTab: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close tab"),
		),
		Duplicate: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "duplicate tab"),
		),
		MoveLeft: key.NewBinding(
			key.WithKeys("<"),
			key.WithHelp("<", "move tab left"),
		),
		MoveRight: key.NewBinding(
			key.WithKeys(">"),
			key.WithHelp(">", "move tab right"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter extensions"),
		),
		Statuses: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5"),
			key.WithHelp("1-5", "toggle status"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort key"),
		),
		Order: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "sort order"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Style: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "unified/split"),
		),
		MergeBase: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "merge-base"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("ctrl+d", "page down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("ctrl+u", "page up"),
		),
		Description: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "PR description"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "prev page"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Navigate: key.NewBinding(
			key.WithKeys("j", "k"),
			key.WithHelp("j/k {/} [[/]] gg/G", "move"),
		),
		Expand: key.NewBinding(
			key.WithKeys("h", "l"),
			key.WithHelp("h/l enter H/L", "collapse/expand"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in editor"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Navigate, k.Expand, k.Command, k.Filter, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Navigate, k.Expand, k.Open, k.PageDown, k.PageUp},
		{k.NextTab, k.PrevTab, k.CloseTab, k.Duplicate, k.MoveLeft, k.MoveRight},
		{k.Filter, k.Statuses, k.Sort, k.Order, k.Style, k.MergeBase},
		{k.Command, k.Refresh, k.Description, k.NextPage, k.PrevPage, k.Help, k.Quit},
	}
}
