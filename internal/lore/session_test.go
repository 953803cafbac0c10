package lore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

type feedEntry struct {
	title   string
	href    string
	replyTo string
}

func atomFeed(entries ...feedEntry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="us-ascii"?>` + "\n")
	b.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom" xmlns:thr="http://purl.org/syndication/thread/1.0">`)
	b.WriteString(`<title>patches</title>`)
	for _, e := range entries {
		b.WriteString(`<entry><author><name>Jane Doe</name><email>jane@example.com</email></author>`)
		fmt.Fprintf(&b, `<title>%s</title><updated>2024-05-01T10:00:00Z</updated>`, e.title)
		fmt.Fprintf(&b, `<link href="%s"/>`, e.href)
		if e.replyTo != "" {
			fmt.Fprintf(&b, `<thr:in-reply-to ref="urn:uuid:x" href="%s"/>`, e.replyTo)
		}
		b.WriteString(`<id>urn:uuid:x</id></entry>`)
	}
	b.WriteString(`</feed>`)
	return b.String()
}

type fakeFeedFetcher struct {
	pages map[int]string
	err   error
	calls []int
}

func (f *fakeFeedFetcher) FetchPatchFeed(_ context.Context, _ string, offset int) (string, error) {
	f.calls = append(f.calls, offset)
	if f.err != nil {
		return "", f.err
	}
	if body, ok := f.pages[offset]; ok {
		return body, nil
	}
	return atomFeed(), nil
}

const archive = "https://lore.kernel.org/test/"

// seriesPage holds: a v1 series with cover letter, a standalone patch, a v2
// series without cover letter, and a v2 patch 1 replying to the v1 cover.
func seriesPage() string {
	return atomFeed(
		feedEntry{title: "[PATCH 0/2] drm: cover", href: archive + "a0/"},
		feedEntry{title: "[PATCH 1/2] drm: one", href: archive + "a1/", replyTo: archive + "a0/"},
		feedEntry{title: "[PATCH 2/2] drm: two", href: archive + "a2/", replyTo: archive + "a0/"},
		feedEntry{title: "[PATCH] mm: single", href: archive + "b/"},
		feedEntry{title: "[PATCH v2 1/2] net: one", href: archive + "c1/"},
		feedEntry{title: "[PATCH v2 2/2] net: two", href: archive + "c2/", replyTo: archive + "c1/"},
		feedEntry{title: "[PATCH v2 1/3] drm: one", href: archive + "d1/", replyTo: archive + "a0/"},
	)
}

func representativeIDs(t *testing.T, s *Session) []string {
	t.Helper()
	page, ok := s.Page(s.RepresentativeCount(), 1)
	if !ok {
		return nil
	}
	ids := make([]string, len(page))
	for i, p := range page {
		ids[i] = strings.TrimPrefix(p.ID(), archive)
	}
	return ids
}

func TestEnsureAtLeast_OneRepresentativePerSeries(t *testing.T) {
	f := &fakeFeedFetcher{pages: map[int]string{0: seriesPage()}}
	s := NewSession("test")

	if err := s.EnsureAtLeast(context.Background(), f, 4); err != nil {
		t.Fatalf("EnsureAtLeast: %v", err)
	}

	got := representativeIDs(t, s)
	want := []string{"a0/", "b/", "c1/", "d1/"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("representatives = %v; want %v", got, want)
	}
	if s.Cursor() != PageSize {
		t.Fatalf("cursor = %d; want %d", s.Cursor(), PageSize)
	}
	if len(f.calls) != 1 {
		t.Fatalf("fetches = %v; want one", f.calls)
	}
}

func TestEnsureAtLeast_IdempotentIngestionAndExhaustion(t *testing.T) {
	f := &fakeFeedFetcher{pages: map[int]string{
		0:        seriesPage(),
		PageSize: seriesPage(),
	}}
	s := NewSession("test")

	if err := s.EnsureAtLeast(context.Background(), f, 5); err != nil {
		t.Fatalf("EnsureAtLeast: %v", err)
	}
	if !s.Exhausted() {
		t.Fatal("expected session to be exhausted")
	}
	if got := s.RepresentativeCount(); got != 4 {
		t.Fatalf("representatives = %d; want 4", got)
	}
	if len(s.processed) != 7 {
		t.Fatalf("processed = %d; want 7", len(s.processed))
	}
	// Two pages with entries, then three empty pages.
	wantCalls := []int{0, 200, 400, 600, 800}
	if fmt.Sprint(f.calls) != fmt.Sprint(wantCalls) {
		t.Fatalf("fetch offsets = %v; want %v", f.calls, wantCalls)
	}

	// An exhausted session does not fetch again.
	if err := s.EnsureAtLeast(context.Background(), f, 10); err != nil {
		t.Fatalf("EnsureAtLeast after exhaustion: %v", err)
	}
	if len(f.calls) != len(wantCalls) {
		t.Fatalf("unexpected fetch after exhaustion: %v", f.calls)
	}
}

func TestEnsureAtLeast_EmptyPageCounterResets(t *testing.T) {
	f := &fakeFeedFetcher{pages: map[int]string{
		0:   atomFeed(feedEntry{title: "[PATCH] a", href: archive + "1/"}),
		400: atomFeed(feedEntry{title: "[PATCH] b", href: archive + "2/"}),
	}}
	s := NewSession("test", WithMaxEmptyPages(2))

	if err := s.EnsureAtLeast(context.Background(), f, 3); err != nil {
		t.Fatalf("EnsureAtLeast: %v", err)
	}
	if got := s.RepresentativeCount(); got != 2 {
		t.Fatalf("representatives = %d; want 2", got)
	}
	wantCalls := []int{0, 200, 400, 600, 800}
	if fmt.Sprint(f.calls) != fmt.Sprint(wantCalls) {
		t.Fatalf("fetch offsets = %v; want %v", f.calls, wantCalls)
	}
}

func TestEnsureAtLeast_TransportError(t *testing.T) {
	f := &fakeFeedFetcher{err: &FetchError{URL: "http://x", Status: 503}}
	s := NewSession("test")

	err := s.EnsureAtLeast(context.Background(), f, 1)
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v; want ErrFetchFailed", err)
	}
	if s.Cursor() != 0 {
		t.Fatalf("cursor advanced on failure: %d", s.Cursor())
	}
}

func TestEnsureAtLeast_MalformedFeed(t *testing.T) {
	f := &fakeFeedFetcher{pages: map[int]string{0: "<html>not a feed"}}
	s := NewSession("test")

	err := s.EnsureAtLeast(context.Background(), f, 1)
	if !errors.Is(err, ErrMalformedFeed) {
		t.Fatalf("err = %v; want ErrMalformedFeed", err)
	}
}

func TestEnsureAtLeast_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFeedFetcher{}
	s := NewSession("test")

	if err := s.EnsureAtLeast(ctx, f, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
	if len(f.calls) != 0 {
		t.Fatalf("fetched with canceled context: %v", f.calls)
	}
}

func TestPage_Boundaries(t *testing.T) {
	f := &fakeFeedFetcher{pages: map[int]string{0: seriesPage()}}
	s := NewSession("test")
	if err := s.EnsureAtLeast(context.Background(), f, 4); err != nil {
		t.Fatalf("EnsureAtLeast: %v", err)
	}

	tests := []struct {
		size, number int
		wantLen      int
		wantOK       bool
	}{
		{3, 1, 3, true},
		{3, 2, 1, true},
		{3, 3, 0, false},
		{5, 1, 4, true}, // size-1 representatives fit in one page
		{4, 2, 0, false},
		{0, 1, 0, false},
		{3, 0, 0, false},
		{1 << 32, 1 << 32, 0, false}, // product overflows int64
		{math.MaxInt, 2, 0, false},
		{2, math.MaxInt, 0, false},
		{math.MaxInt, 1, 4, true},
	}
	for _, tc := range tests {
		page, ok := s.Page(tc.size, tc.number)
		if ok != tc.wantOK || len(page) != tc.wantLen {
			t.Errorf("Page(%d, %d) = %d patches, %v; want %d, %v", tc.size, tc.number, len(page), ok, tc.wantLen, tc.wantOK)
		}
	}

	page, _ := s.Page(3, 2)
	if page[0].ID() != archive+"d1/" || page[0].Version != 2 || page[0].TotalInSeries != 3 {
		t.Fatalf("unexpected last page entry: %+v", page[0])
	}
}

func TestPage_EmptySession(t *testing.T) {
	s := NewSession("test")
	if page, ok := s.Page(1, 1); ok || page != nil {
		t.Fatalf("Page on empty session = %v, %v", page, ok)
	}
}

func TestPage_MissingRepresentative(t *testing.T) {
	f := &fakeFeedFetcher{pages: map[int]string{0: seriesPage()}}
	s := NewSession("test")
	if err := s.EnsureAtLeast(context.Background(), f, 4); err != nil {
		t.Fatalf("EnsureAtLeast: %v", err)
	}
	s.representatives = append(s.representatives, archive+"bogus/")

	if page, ok := s.Page(5, 1); ok || page != nil {
		t.Fatalf("Page with unknown representative = %v, %v; want nil, false", page, ok)
	}
	// Pages that do not reach the broken entry still work.
	if page, ok := s.Page(4, 1); !ok || len(page) != 4 {
		t.Fatalf("Page(4, 1) = %d patches, %v", len(page), ok)
	}
}

func TestWindowEnd(t *testing.T) {
	tests := []struct {
		size, number int
		want         int
		wantTooLarge bool
		wantErr      bool
	}{
		{30, 1, 30, false, false},
		{30, 2, 60, false, false},
		{MaxWindow, 1, MaxWindow, false, false},
		{MaxWindow, 2, 0, true, true},
		{1 << 32, 1 << 32, 0, true, true},
		{math.MaxInt, math.MaxInt, 0, true, true},
		{0, 1, 0, false, true},
		{1, -1, 0, false, true},
	}
	for _, tc := range tests {
		got, err := WindowEnd(tc.size, tc.number)
		if (err != nil) != tc.wantErr || errors.Is(err, ErrWindowTooLarge) != tc.wantTooLarge || got != tc.want {
			t.Errorf("WindowEnd(%d, %d) = %d, %v", tc.size, tc.number, got, err)
		}
	}
}

func TestLookup(t *testing.T) {
	f := &fakeFeedFetcher{pages: map[int]string{0: seriesPage()}}
	s := NewSession("test")
	if err := s.EnsureAtLeast(context.Background(), f, 1); err != nil {
		t.Fatalf("EnsureAtLeast: %v", err)
	}

	p, ok := s.Lookup(archive + "a2/")
	if !ok {
		t.Fatal("a2 not found")
	}
	if p.NumberInSeries != 2 || p.InReplyTo == nil || p.InReplyTo.Href != archive+"a0/" {
		t.Fatalf("unexpected patch: %+v", p)
	}
	if _, ok := s.Lookup(archive + "missing/"); ok {
		t.Fatal("lookup of unknown id succeeded")
	}
	if s.TargetList() != "test" {
		t.Fatalf("target list = %q", s.TargetList())
	}
}
