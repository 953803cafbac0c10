package tui

import (
	"fmt"
	"strconv"
	"strings"

	"lorepatch/internal/lore"
	"lorepatch/internal/model"
	"lorepatch/internal/util"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			PaddingBottom(1)

	coverStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	diffStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

const defaultWrapWidth = 80

// renderDetails draws the header of a patchset and the current patch, with
// the cover part word-wrapped to width and the diff left untouched.
func renderDetails(rep model.Patch, patches []string, index int, selected []bool, reviewed model.SeriesSet, width int) string {
	if width <= 0 {
		width = defaultWrapWidth
	}

	var b strings.Builder
	header := fmt.Sprintf("%s\nAuthor: %s\nSeries: %s  Patch %d of %d",
		rep.Title, util.FormatSignature(rep.Author.Name, rep.Author.Email), rep.SeriesLabel(), index+1, len(patches))
	if len(reviewed) > 0 {
		nums := make([]string, 0, len(reviewed))
		for _, n := range reviewed.Sorted() {
			nums = append(nums, strconv.Itoa(n))
		}
		header += "\nReviewed: " + strings.Join(nums, ", ")
	}
	header += "\nReply: " + replyMarks(selected, index)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	if index < 0 || index >= len(patches) {
		return b.String()
	}
	cover, diff := lore.SplitCover(patches[index])
	b.WriteString(coverStyle.Render(wordwrap.String(cover, width)))
	if diff != "" {
		b.WriteString("\n")
		b.WriteString(diffStyle.Render(diff))
	}
	return b.String()
}

// replyMarks renders one box per patch, "[x]" when selected for reply,
// with the current patch in angle brackets.
func replyMarks(selected []bool, current int) string {
	marks := make([]string, len(selected))
	for i, sel := range selected {
		mark := "[ ]"
		if sel {
			mark = "[x]"
		}
		if i == current {
			mark = "<" + mark + ">"
		}
		marks[i] = mark
	}
	return strings.Join(marks, " ")
}

func detailsFooter(k keyMap) string {
	return footerStyle.Render(helpLine(k.Next, k.Prev, k.ToggleReply, k.SendReplies, k.Back, k.Quit))
}

// seriesNumber maps a mailbox position to the patch number in the series.
// Mailboxes of series with a cover letter start at 0/N.
func seriesNumber(rep model.Patch, index int) int {
	if rep.IsCoverLetter() {
		return index
	}
	return index + 1
}
