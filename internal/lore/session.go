package lore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lorepatch/internal/model"
)

// DefaultMaxEmptyPages is how many consecutive empty feed pages end a fetch loop.
const DefaultMaxEmptyPages = 3

// MaxWindow caps how many representatives a single page request may make
// a session collect.
const MaxWindow = 10000

var ErrWindowTooLarge = errors.New("requested page is too deep")

// WindowEnd returns pageSize*pageNumber, the number of representatives
// needed to serve that page. The product is checked before it is computed.
func WindowEnd(pageSize, pageNumber int) (int, error) {
	if pageSize <= 0 || pageNumber <= 0 {
		return 0, fmt.Errorf("page %d of size %d: page and size must be positive", pageNumber, pageSize)
	}
	if pageNumber > MaxWindow/pageSize {
		return 0, fmt.Errorf("page %d of size %d: %w (limit %d patchsets)", pageNumber, pageSize, ErrWindowTooLarge, MaxWindow)
	}
	return pageSize * pageNumber, nil
}

// Session tracks the feed of one mailing list. It deduplicates every entry
// it has seen and keeps one representative patch per series and version,
// in the order they were discovered. A Session is not safe for concurrent use.
type Session struct {
	targetList string

	processed       map[string]model.Patch
	representatives []string

	cursor        int
	emptyPages    int
	maxEmptyPages int
	exhausted     bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMaxEmptyPages sets how many consecutive empty pages mark the feed as
// exhausted. Values below one are ignored.
func WithMaxEmptyPages(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.maxEmptyPages = n
		}
	}
}

func NewSession(targetList string, opts ...SessionOption) *Session {
	s := &Session{
		targetList:    targetList,
		processed:     make(map[string]model.Patch),
		maxEmptyPages: DefaultMaxEmptyPages,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) TargetList() string { return s.targetList }

// RepresentativeCount is the number of series collected so far.
func (s *Session) RepresentativeCount() int { return len(s.representatives) }

// Cursor is the offset of the next feed page to request.
func (s *Session) Cursor() int { return s.cursor }

// Exhausted reports whether the archive stopped returning entries.
func (s *Session) Exhausted() bool { return s.exhausted }

// Lookup returns a processed patch by message URL.
func (s *Session) Lookup(messageID string) (model.Patch, bool) {
	p, ok := s.processed[messageID]
	return p, ok
}

// EnsureAtLeast fetches feed pages until n representative patches are
// known or the archive is exhausted. The cursor advances by PageSize after
// every fetch, whatever the page yielded.
func (s *Session) EnsureAtLeast(ctx context.Context, fetcher PatchFeedFetcher, n int) error {
	for len(s.representatives) < n && !s.exhausted {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := fetcher.FetchPatchFeed(ctx, s.targetList, s.cursor)
		if err != nil {
			return fmt.Errorf("fetch %s feed at %d: %w", s.targetList, s.cursor, err)
		}
		feed, err := ParsePatchFeed(body)
		if err != nil {
			return fmt.Errorf("parse %s feed at %d: %w", s.targetList, s.cursor, err)
		}

		s.cursor += PageSize

		if len(feed.Patches) == 0 {
			s.emptyPages++
			if s.emptyPages >= s.maxEmptyPages {
				s.exhausted = true
				slog.Debug("feed exhausted", "list", s.targetList, "cursor", s.cursor, "representatives", len(s.representatives))
			}
			continue
		}
		s.emptyPages = 0

		inserted := s.ingest(feed)
		added := s.selectRepresentatives(inserted)
		slog.Debug("feed page processed",
			"list", s.targetList,
			"entries", len(feed.Patches),
			"new", len(inserted),
			"representatives_added", added,
			"cursor", s.cursor)
	}
	return nil
}

// ingest stores entries not seen before and returns their ids in feed order.
func (s *Session) ingest(feed model.PatchFeed) []string {
	var inserted []string
	for _, p := range feed.Patches {
		id := p.ID()
		if _, ok := s.processed[id]; ok {
			continue
		}
		s.processed[id] = p
		inserted = append(inserted, id)
	}
	return inserted
}

// selectRepresentatives appends the ids that stand for a series. A patch 1/N
// is skipped when it replies to a known cover letter of the same version,
// since the cover letter already represents the series.
func (s *Session) selectRepresentatives(ids []string) int {
	added := 0
	for _, id := range ids {
		p := s.processed[id]

		if p.NumberInSeries > 1 {
			continue
		}
		if p.NumberInSeries == 1 && p.InReplyTo != nil {
			if parent, ok := s.processed[p.InReplyTo.Href]; ok &&
				parent.NumberInSeries == 0 && parent.Version == p.Version {
				continue
			}
		}

		s.representatives = append(s.representatives, id)
		added++
	}
	return added
}

// Page returns representative patches [(page-1)*size, page*size), clipped
// to what is available. It reports false when the window starts past the
// end of the collected representatives.
func (s *Session) Page(pageSize, pageNumber int) ([]model.Patch, bool) {
	n := len(s.representatives)
	if pageSize <= 0 || pageNumber <= 0 || n == 0 {
		return nil, false
	}
	// Compare by division so huge arguments cannot overflow.
	if pageNumber-1 > (n-1)/pageSize {
		return nil, false
	}
	lower := pageSize * (pageNumber - 1)
	upper := lower + min(pageSize, n-lower)

	page := make([]model.Patch, 0, upper-lower)
	for _, id := range s.representatives[lower:upper] {
		p, ok := s.processed[id]
		if !ok {
			slog.Error("representative patch missing from processed set", "list", s.targetList, "message_id", id)
			return nil, false
		}
		page = append(page, p)
	}
	return page, true
}
