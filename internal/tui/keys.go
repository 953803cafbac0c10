package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// keyMap holds the bindings of every view. Some keys mean different things
// per view, e.g. n is the next page in the patchset list and the next patch
// in the details view.
type keyMap struct {
	Enter     key.Binding
	Back      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding

	Next key.Binding
	Prev key.Binding

	Bookmarks      key.Binding
	Bookmark       key.Binding
	RemoveBookmark key.Binding
	RefreshLists   key.Binding

	ToggleReply key.Binding
	SendReplies key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),

		Next: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		Prev: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev")),

		Bookmarks:      key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bookmarked")),
		Bookmark:       key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bookmark")),
		RemoveBookmark: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove bookmark")),
		RefreshLists:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "refresh lists")),

		ToggleReply: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "toggle reply")),
		SendReplies: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "send Reviewed-by")),
	}
}

// helpLine renders "key: desc" pairs for a footer.
func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, "  ")
}
