package tui

import (
	"fmt"
	"time"

	"lorepatch/internal/model"

	"github.com/charmbracelet/bubbles/list"
)

// patchsetItem wraps a representative Patch for the list display.
type patchsetItem struct {
	model.Patch
	bookmarked bool
	reviewed   int
}

func (p patchsetItem) FilterValue() string { return p.Patch.Title + " " + p.Author.Name }

func (p patchsetItem) Title() string {
	indicator := "  "
	if p.bookmarked {
		indicator = "* "
	}
	return indicator + p.Patch.Title
}

func (p patchsetItem) Description() string {
	desc := fmt.Sprintf("[%s] %s", p.SeriesLabel(), p.Author.Name)
	if d := trimDate(p.Updated); d != "" {
		desc += "  " + d
	}
	if p.reviewed > 0 {
		desc += fmt.Sprintf("  reviewed: %d", p.reviewed)
	}
	return desc
}

func patchsetsFooter(k keyMap) string {
	return footerStyle.Render(helpLine(k.Enter, k.Next, k.Prev, k.Bookmark, k.Back, k.Quit) + "  *=bookmarked")
}

func bookmarkedFooter(k keyMap) string {
	return footerStyle.Render(helpLine(k.Enter, k.RemoveBookmark, k.Back, k.Quit))
}

func patchsetsToItems(patches []model.Patch, bookmarked []model.Patch, reviewed model.ReviewedPatchsets) []list.Item {
	items := make([]list.Item, len(patches))
	for i, p := range patches {
		items[i] = patchsetItem{
			Patch:      p,
			bookmarked: indexOfPatch(bookmarked, p.ID()) >= 0,
			reviewed:   len(reviewed[p.ID()]),
		}
	}
	return items
}

func indexOfPatch(patches []model.Patch, id string) int {
	for i, p := range patches {
		if p.ID() == id {
			return i
		}
	}
	return -1
}

// trimDate converts an RFC3339 timestamp to a short date string.
func trimDate(rfc3339 string) string {
	if rfc3339 == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, rfc3339); err == nil {
		return t.Format("Jan 2, 2006")
	}
	return rfc3339
}
