package tui

import (
	"lorepatch/internal/model"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

// mailingListItem wraps MailingList to customize list display.
type mailingListItem struct {
	model.MailingList
}

func (l mailingListItem) FilterValue() string { return l.Name + " " + l.MailingList.Description }
func (l mailingListItem) Title() string       { return l.Name }
func (l mailingListItem) Description() string { return l.MailingList.Description }

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

func listsFooter(k keyMap) string {
	return footerStyle.Render(helpLine(k.Enter, k.Bookmarks, k.RefreshLists, k.Quit) + "  /: filter")
}

func mailingListsToItems(lists []model.MailingList) []list.Item {
	items := make([]list.Item, len(lists))
	for i, l := range lists {
		items[i] = mailingListItem{l}
	}
	return items
}

func indexOfList(lists []model.MailingList, name string) int {
	for i, l := range lists {
		if l.Name == name {
			return i
		}
	}
	return -1
}
