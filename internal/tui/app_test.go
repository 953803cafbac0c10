package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lorepatch/internal/config"
	"lorepatch/internal/lore"
	"lorepatch/internal/model"

	tea "github.com/charmbracelet/bubbletea"
)

const archiveURL = "https://lore.kernel.org/lkml/"

type fakeArchive struct {
	feed      string
	directory string
}

func (f *fakeArchive) FetchPatchFeed(_ context.Context, _ string, offset int) (string, error) {
	if offset == 0 {
		return f.feed, nil
	}
	return `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`, nil
}

func (f *fakeArchive) FetchListDirectory(_ context.Context, offset int) (string, error) {
	if offset == 0 {
		return f.directory, nil
	}
	return "<pre></pre><pre></pre><pre></pre>", nil
}

func (f *fakeArchive) FetchPatchHTML(context.Context, string, string) (string, error) {
	return "<html>no reply instructions</html>", nil
}

// fakeDownloader writes a fixed mailbox and cover letter instead of running b4.
type fakeDownloader struct {
	mbox, cover string
	calls       int
}

func (d *fakeDownloader) Download(_ context.Context, dir, _ string, _ int) (string, error) {
	d.calls++
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "lkml.0@x.mbx")
	if err := os.WriteFile(path, []byte(d.mbox), 0o644); err != nil {
		return "", err
	}
	if d.cover != "" {
		if err := os.WriteFile(filepath.Join(dir, "lkml.0@x.cover"), []byte(d.cover), 0o644); err != nil {
			return "", err
		}
	}
	return path, nil
}

type fakeMailer struct {
	sent    []lore.ReplyCommand
	sendErr error
}

func (f *fakeMailer) Identity(context.Context) (string, string, error) {
	return "Jane Doe", "jane@example.com", nil
}

func (f *fakeMailer) SendEmail(_ context.Context, cmd lore.ReplyCommand) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, cmd)
	return "", nil
}

type memoryCache struct {
	lastList string
	patches  map[string][]model.Patch
}

func (c *memoryCache) UpsertPatches(_ context.Context, list string, start int, patches []model.Patch) error {
	if c.patches == nil {
		c.patches = make(map[string][]model.Patch)
	}
	cur := c.patches[list]
	for len(cur) < start+len(patches) {
		cur = append(cur, model.Patch{})
	}
	copy(cur[start:], patches)
	c.patches[list] = cur
	return nil
}

func (c *memoryCache) DeletePatches(_ context.Context, list string) error {
	delete(c.patches, list)
	return nil
}

func (c *memoryCache) LoadPatches(_ context.Context, list string) ([]model.Patch, error) {
	return c.patches[list], nil
}

func (c *memoryCache) GetLastList(context.Context) (string, error) { return c.lastList, nil }

func (c *memoryCache) SetLastList(_ context.Context, list string) error {
	c.lastList = list
	return nil
}

func atomFeed(titles ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="us-ascii"?>`)
	b.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom" xmlns:thr="http://purl.org/syndication/thread/1.0">`)
	for i, title := range titles {
		fmt.Fprintf(&b, `<entry><author><name>Jane Doe</name><email>jane@example.com</email></author><title>%s</title><link href="%s%d@x/"/>`, title, archiveURL, i)
		if i > 0 && strings.Contains(titles[0], "0/") {
			fmt.Fprintf(&b, `<thr:in-reply-to href="%s0@x/"/>`, archiveURL)
		}
		b.WriteString(`</entry>`)
	}
	b.WriteString(`</feed>`)
	return b.String()
}

const directory = `<pre></pre><pre></pre><pre>* <a href="lkml/">lkml</a> Linux
* <a href="bpf/">bpf</a> BPF
* footer</pre>`

type harness struct {
	app        *AppModel
	archive    *fakeArchive
	downloader *fakeDownloader
	mailer     *fakeMailer
	cache      *memoryCache
	cfg        *config.Config
}

func newHarness(t *testing.T, feed string) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.PageSize = 2
	cfg.MaxEmptyPages = 1

	h := &harness{
		archive:    &fakeArchive{feed: feed, directory: directory},
		downloader: &fakeDownloader{},
		mailer:     &fakeMailer{},
		cache:      &memoryCache{lastList: "lkml"},
		cfg:        cfg,
	}
	app := NewAppModel(Deps{
		Config:     cfg,
		Archive:    h.archive,
		Downloader: h.downloader,
		Mailer:     h.mailer,
		Cache:      h.cache,
	})
	h.app = &app
	h.app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	h.run(t, h.app.Init())
	return h
}

// run executes cmd and feeds the resulting messages back into Update.
// Commands returned by Update are not run, which keeps status timers out.
func (h *harness) run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if m := c(); m != nil {
				h.app.Update(m)
			}
		}
		return
	}
	if msg != nil {
		h.app.Update(msg)
	}
}

func (h *harness) press(key string) tea.Cmd {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	_, cmd := h.app.Update(msg)
	return cmd
}

func TestLoadLists_SelectsLastList(t *testing.T) {
	h := newHarness(t, atomFeed())

	if h.app.view != viewLists {
		t.Fatalf("view = %v; want lists", h.app.view)
	}
	if len(h.app.listsList.Items()) != 2 {
		t.Fatalf("items = %d", len(h.app.listsList.Items()))
	}
	selected := h.app.listsList.SelectedItem().(mailingListItem)
	if selected.Name != "lkml" {
		t.Fatalf("selected = %q; want the last opened list", selected.Name)
	}
	if _, err := os.Stat(h.cfg.MailingListsPath()); err != nil {
		t.Fatalf("mailing list snapshot not written: %v", err)
	}
}

func TestLoadLists_FailureQuits(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	app := NewAppModel(Deps{Config: cfg, Archive: &fakeArchive{directory: "<html></html>"}})

	_, cmd := app.Update(app.Init()())
	if !errors.Is(app.Err, lore.ErrMalformedListPage) {
		t.Fatalf("err = %v", app.Err)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

func TestPatchsets_Paging(t *testing.T) {
	h := newHarness(t, atomFeed("[PATCH] a", "[PATCH] b", "[PATCH] c"))

	h.run(t, h.press("enter"))
	if h.app.view != viewPatchsets || h.app.pageNumber != 1 {
		t.Fatalf("view/page = %v/%d", h.app.view, h.app.pageNumber)
	}
	if got := len(h.app.patchsetsList.Items()); got != 2 {
		t.Fatalf("page 1 items = %d", got)
	}
	if len(h.cache.patches["lkml"]) != 2 {
		t.Fatalf("cache = %+v", h.cache.patches)
	}

	h.run(t, h.press("n"))
	if h.app.pageNumber != 2 || len(h.app.patchsetsList.Items()) != 1 {
		t.Fatalf("page 2 = %d items on page %d", len(h.app.patchsetsList.Items()), h.app.pageNumber)
	}
	first := h.app.patchsetsList.Items()[0].(patchsetItem)
	if first.Patch.Title != "c" {
		t.Fatalf("page 2 item = %q", first.Patch.Title)
	}

	h.run(t, h.press("n"))
	if h.app.pageNumber != 2 || h.app.status != "No more patchsets" {
		t.Fatalf("past the end: page %d status %q", h.app.pageNumber, h.app.status)
	}

	h.run(t, h.press("p"))
	if h.app.pageNumber != 1 {
		t.Fatalf("page = %d after p", h.app.pageNumber)
	}
	if len(h.cache.patches["lkml"]) != 2 {
		t.Fatalf("page 1 did not reset the cache: %+v", h.cache.patches["lkml"])
	}
	if cmd := h.press("p"); cmd != nil {
		t.Fatal("p on the first page should not fetch")
	}

	h.press("esc")
	if h.app.view != viewLists {
		t.Fatalf("view = %v after esc", h.app.view)
	}
}

func TestPatchsets_DropsResultsOfReplacedSession(t *testing.T) {
	h := newHarness(t, atomFeed("[PATCH] a", "[PATCH] b", "[PATCH] c"))
	h.cache.patches = map[string][]model.Patch{"lkml": {{Title: "old"}}}

	stale := h.press("enter")
	first := h.app.session
	h.press("esc")
	fresh := h.press("enter")
	if h.app.session == first {
		t.Fatal("reopening the list kept the old session")
	}

	h.run(t, stale)
	if !h.app.fetching || len(h.app.patchsetsList.Items()) != 0 {
		t.Fatalf("old session applied: fetching %v, %d items", h.app.fetching, len(h.app.patchsetsList.Items()))
	}
	if cmd := h.press("n"); cmd != nil {
		t.Fatal("paging allowed while the new session is still fetching")
	}

	h.run(t, fresh)
	if h.app.fetching || h.app.pageNumber != 1 || len(h.app.patchsetsList.Items()) != 2 {
		t.Fatalf("new session: fetching %v, page %d, %d items", h.app.fetching, h.app.pageNumber, len(h.app.patchsetsList.Items()))
	}
	if h.app.patchsetsList.Title != "lkml (page 1)" {
		t.Fatalf("title = %q", h.app.patchsetsList.Title)
	}
}

func TestPatchsets_Bookmarks(t *testing.T) {
	h := newHarness(t, atomFeed("[PATCH] a", "[PATCH] b"))
	h.run(t, h.press("enter"))

	h.press("b")
	if len(h.app.bookmarked) != 1 || h.app.bookmarked[0].Title != "a" {
		t.Fatalf("bookmarked = %+v", h.app.bookmarked)
	}
	item := h.app.patchsetsList.SelectedItem().(patchsetItem)
	if !item.bookmarked || !strings.HasPrefix(item.Title(), "* ") {
		t.Fatalf("item not marked: %q", item.Title())
	}

	if msg := h.app.saveBookmarksCmd()(); msg != nil {
		t.Fatalf("save: %v", msg)
	}
	saved, err := lore.LoadBookmarkedPatchsets(h.cfg.BookmarkedPath())
	if err != nil || len(saved) != 1 || saved[0].ID() != archiveURL+"0@x/" {
		t.Fatalf("saved = %+v, %v", saved, err)
	}

	h.press("esc")
	h.press("b")
	if h.app.view != viewBookmarked || len(h.app.bookmarkedList.Items()) != 1 {
		t.Fatalf("bookmarked view = %v with %d items", h.app.view, len(h.app.bookmarkedList.Items()))
	}
	h.press("d")
	if len(h.app.bookmarked) != 0 || len(h.app.bookmarkedList.Items()) != 0 {
		t.Fatalf("bookmark not removed: %+v", h.app.bookmarked)
	}
}

const seriesMbox = `From git@z Thu Jan  1 00:00:00 1970
Subject: [PATCH 1/2] one
Message-Id: <1@x>

first body
--
2.45.0

From git@z Thu Jan  1 00:00:00 1970
Subject: [PATCH 2/2] two
Message-Id: <2@x>

second body
--
2.45.0
`

const seriesCover = `From git@z Thu Jan  1 00:00:00 1970
Subject: [PATCH 0/2] series
Message-Id: <0@x>

intro
--
2.45.0
`

func TestDetails_ReplyAndMarkReviewed(t *testing.T) {
	h := newHarness(t, atomFeed("[PATCH 0/2] series", "[PATCH 1/2] one", "[PATCH 2/2] two"))
	h.downloader.mbox = seriesMbox
	h.downloader.cover = seriesCover

	h.run(t, h.press("enter"))
	if got := len(h.app.patchsetsList.Items()); got != 1 {
		t.Fatalf("representatives = %d; want the cover letter only", got)
	}

	h.run(t, h.press("enter"))
	if h.app.view != viewDetails || len(h.app.patches) != 3 {
		t.Fatalf("details: view %v with %d patches", h.app.view, len(h.app.patches))
	}
	if !strings.HasPrefix(h.app.patches[0], "Subject: [PATCH 0/2]") {
		t.Fatalf("first patch = %q", h.app.patches[0])
	}

	if cmd := h.press("R"); cmd == nil || h.app.status == "" {
		t.Fatal("R without a selection should only set a status")
	}

	h.press("n")
	h.press("r")
	if h.app.patchIndex != 1 || !h.app.replySelected[1] {
		t.Fatalf("selection = %v at %d", h.app.replySelected, h.app.patchIndex)
	}

	h.run(t, h.press("R"))
	if len(h.mailer.sent) != 1 {
		t.Fatalf("sent = %v", h.mailer.sent)
	}
	wantReply := filepath.Join(h.cfg.RepliesPath(), "1@x-reply.mbx")
	if h.mailer.sent[0].ReplyPath() != wantReply {
		t.Fatalf("reply path = %q; want %q", h.mailer.sent[0].ReplyPath(), wantReply)
	}
	reply, err := os.ReadFile(wantReply)
	if err != nil || !strings.HasSuffix(string(reply), "\nReviewed-by: Jane Doe <jane@example.com>\n") {
		t.Fatalf("reply = %q, %v", reply, err)
	}

	key := archiveURL + "0@x/"
	if !h.app.reviewed[key].Has(1) || h.app.replySelected[1] {
		t.Fatalf("reviewed = %v, selection = %v", h.app.reviewed, h.app.replySelected)
	}
	saved, err := lore.LoadReviewedPatchsets(h.cfg.ReviewedPath())
	if err != nil || !saved[key].Has(1) {
		t.Fatalf("saved reviewed = %v, %v", saved, err)
	}

	h.press("esc")
	if h.app.view != viewPatchsets {
		t.Fatalf("view = %v after esc", h.app.view)
	}
}

func TestDetails_SendFailureKeepsSelection(t *testing.T) {
	h := newHarness(t, atomFeed("[PATCH 0/2] series", "[PATCH 1/2] one", "[PATCH 2/2] two"))
	h.downloader.mbox = seriesMbox
	h.downloader.cover = seriesCover
	h.mailer.sendErr = errors.New("smtp down")

	h.run(t, h.press("enter"))
	h.run(t, h.press("enter"))
	h.press("n")
	h.press("r")
	h.run(t, h.press("R"))

	if !strings.Contains(h.app.status, "smtp down") {
		t.Fatalf("status = %q", h.app.status)
	}
	if len(h.app.reviewed) != 0 || !h.app.replySelected[1] {
		t.Fatalf("reviewed = %v, selection = %v", h.app.reviewed, h.app.replySelected)
	}
}

func TestRenderDetails(t *testing.T) {
	rep := model.Patch{
		Title:          "series",
		Author:         model.Author{Name: "Jane Doe", Email: "jane@example.com"},
		Version:        2,
		NumberInSeries: 0,
		TotalInSeries:  2,
	}
	long := strings.Repeat("word ", 30)
	patches := []string{"Subject: cover\n\n" + long + "\n---\n a.c | 1 +\n", "Subject: one\n"}

	out := renderDetails(rep, patches, 1, []bool{false, true}, model.NewSeriesSet(3, 1), 20)
	for _, want := range []string{"Series: v2 0/2  Patch 2 of 2", "Author: Jane Doe <jane@example.com>", "Reviewed: 1, 3", "Reply: [ ] <[x]>", "Subject: one"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out = renderDetails(rep, patches, 0, []bool{false, false}, nil, 20)
	if strings.Contains(out, strings.TrimSpace(long)) {
		t.Fatalf("cover was not wrapped:\n%s", out)
	}
	if !strings.Contains(out, " a.c | 1 +") {
		t.Fatalf("diff missing:\n%s", out)
	}
}

func TestSeriesNumber(t *testing.T) {
	cover := model.Patch{NumberInSeries: 0}
	first := model.Patch{NumberInSeries: 1}
	if seriesNumber(cover, 0) != 0 || seriesNumber(cover, 2) != 2 {
		t.Fatal("cover letter series should start at 0")
	}
	if seriesNumber(first, 0) != 1 || seriesNumber(first, 1) != 2 {
		t.Fatal("series without cover letter should start at 1")
	}
}

func TestFooters(t *testing.T) {
	k := defaultKeyMap()
	if got := helpLine(k.Next, k.Prev); got != "n: next  p: prev" {
		t.Fatalf("helpLine = %q", got)
	}
	if out := detailsFooter(k); !strings.Contains(out, "R: send Reviewed-by") {
		t.Fatalf("details footer = %q", out)
	}
	if out := listsFooter(k); !strings.Contains(out, "s: refresh lists") || !strings.Contains(out, "/: filter") {
		t.Fatalf("lists footer = %q", out)
	}
}
