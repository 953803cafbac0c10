package lore

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"lorepatch/internal/model"
)

// ErrMalformedFeed is returned when a feed page is not a parseable Atom document.
var ErrMalformedFeed = errors.New("malformed patch feed")

var (
	reTitleTag = regexp.MustCompile(`^\s*\[([^\]]*)\]\s*`)
	reVersion  = regexp.MustCompile(`[vV](\d+)\b`)
	reSeries   = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
)

// ParsePatchFeed decodes one Atom page into its entries, in feed order.
// Entries have their series metadata filled in.
func ParsePatchFeed(body string) (model.PatchFeed, error) {
	var feed model.PatchFeed

	dec := xml.NewDecoder(strings.NewReader(body))
	// public-inbox declares us-ascii.
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&feed); err != nil {
		return model.PatchFeed{}, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	for i := range feed.Patches {
		UpdatePatchMetadata(&feed.Patches[i])
	}
	return feed, nil
}

// UpdatePatchMetadata derives version and series position from the title
// tag and strips the tag from the title. A tag without an "n/m" marker is a
// standalone patch (1/1).
func UpdatePatchMetadata(p *model.Patch) {
	p.Title = strings.TrimSpace(p.Title)
	p.Version = 1
	p.NumberInSeries = 1
	p.TotalInSeries = 1

	m := reTitleTag.FindStringSubmatchIndex(p.Title)
	if m == nil {
		return
	}
	tag := p.Title[m[2]:m[3]]
	if rest := strings.TrimSpace(p.Title[m[1]:]); rest != "" {
		p.Title = rest
	}

	if v := reVersion.FindStringSubmatch(tag); v != nil {
		if n, err := strconv.Atoi(v[1]); err == nil && n > 0 {
			p.Version = n
		}
	}
	if s := reSeries.FindStringSubmatch(tag); s != nil {
		num, err1 := strconv.Atoi(s[1])
		total, err2 := strconv.Atoi(s[2])
		if err1 == nil && err2 == nil {
			p.NumberInSeries = num
			p.TotalInSeries = total
		}
	}
}
