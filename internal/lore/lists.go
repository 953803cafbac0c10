package lore

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"lorepatch/internal/model"
)

// ErrMalformedListPage is returned when the directory page lacks the
// preformatted block holding the listing.
var ErrMalformedListPage = errors.New("malformed mailing list directory page")

// listingBlock is the index of the <pre> block that holds the listing.
const listingBlock = 2

var (
	rePreBlock        = regexp.MustCompile(`(?s)<pre>(.*?)</pre>`)
	reListName        = regexp.MustCompile(`(?s)<a\s*href=".*?">(.*?)</a>`)
	reListDescription = regexp.MustCompile(`(?s)</a>\s*(.*?)\s*\*`)
)

// ParseAvailableLists extracts the mailing lists of one directory page in
// source order. Names and descriptions are paired by position and the
// synthetic "all" inbox is dropped.
func ParseAvailableLists(page string) ([]model.MailingList, error) {
	blocks := rePreBlock.FindAllStringSubmatch(page, -1)
	if len(blocks) <= listingBlock {
		return nil, fmt.Errorf("%w: found %d <pre> blocks", ErrMalformedListPage, len(blocks))
	}
	listing := blocks[listingBlock][1]

	var names, descriptions []string
	for _, m := range reListName.FindAllStringSubmatch(listing, -1) {
		names = append(names, html.UnescapeString(strings.TrimSpace(m[1])))
	}
	for _, m := range reListDescription.FindAllStringSubmatch(listing, -1) {
		descriptions = append(descriptions, html.UnescapeString(strings.TrimSpace(m[1])))
	}

	n := min(len(names), len(descriptions))
	lists := make([]model.MailingList, 0, n)
	for i := 0; i < n; i++ {
		if names[i] == "all" {
			continue
		}
		lists = append(lists, model.MailingList{Name: names[i], Description: descriptions[i]})
	}
	return lists, nil
}

// FetchAvailableLists pages through the archive directory until a page
// yields no lists and returns every list sorted by name.
func FetchAvailableLists(ctx context.Context, fetcher ListDirectoryFetcher) ([]model.MailingList, error) {
	var all []model.MailingList
	for offset := 0; ; offset += PageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := fetcher.FetchListDirectory(ctx, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch list directory at %d: %w", offset, err)
		}
		lists, err := ParseAvailableLists(body)
		if err != nil {
			return nil, fmt.Errorf("parse list directory at %d: %w", offset, err)
		}
		if len(lists) == 0 {
			break
		}
		all = append(all, lists...)
		slog.Debug("list directory page processed", "offset", offset, "lists", len(lists))
	}

	model.SortMailingLists(all)
	return all, nil
}
