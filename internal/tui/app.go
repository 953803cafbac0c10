package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"lorepatch/internal/config"
	"lorepatch/internal/lore"
	"lorepatch/internal/model"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type viewState int

const (
	viewLoading    viewState = iota
	viewLists                // mailing lists
	viewPatchsets            // latest patchsets of one list
	viewBookmarked           // bookmarked patchsets
	viewDetails              // one patchset, patch by patch
)

// Archive is the read side of the lore client.
type Archive interface {
	lore.PatchFeedFetcher
	lore.ListDirectoryFetcher
	lore.PatchHTMLFetcher
}

// Downloader fetches a patchset mailbox and returns its path.
type Downloader interface {
	Download(ctx context.Context, outputDir, messageID string, version int) (string, error)
}

// Mailer reads the reviewer identity and sends prepared replies.
type Mailer interface {
	Identity(ctx context.Context) (name, email string, err error)
	SendEmail(ctx context.Context, cmd lore.ReplyCommand) (string, error)
}

// PatchCache keeps fetched pages between runs.
type PatchCache interface {
	DeletePatches(ctx context.Context, list string) error
	UpsertPatches(ctx context.Context, list string, start int, patches []model.Patch) error
	LoadPatches(ctx context.Context, list string) ([]model.Patch, error)
	GetLastList(ctx context.Context) (string, error)
	SetLastList(ctx context.Context, list string) error
}

// Deps are the collaborators of the application. Cache may be nil.
type Deps struct {
	Config     *config.Config
	Archive    Archive
	Downloader Downloader
	Mailer     Mailer
	Cache      PatchCache
}

type AppModel struct {
	// Core state
	deps   Deps
	cfg    *config.Config
	keys   keyMap
	Err    error
	status string

	// View state machine
	view       viewState
	detailFrom viewState // view that esc returns to from details

	lists      []model.MailingList
	session    *lore.Session
	pageNumber int
	fetching   bool
	bookmarked []model.Patch
	reviewed   model.ReviewedPatchsets

	// Details
	representative *model.Patch
	patches        []string
	replySelected  []bool
	patchIndex     int

	// Sub-models
	listsList      list.Model
	patchsetsList  list.Model
	bookmarkedList list.Model
	detailsView    viewport.Model

	// Layout
	width, height int
}

func NewAppModel(deps Deps) AppModel {
	ll := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	ll.Title = "Mailing lists"
	// Remove esc from the list's built-in Quit binding so it doesn't exit on home
	ll.KeyMap.Quit.SetKeys("q")

	m := AppModel{
		deps:           deps,
		cfg:            deps.Config,
		keys:           defaultKeyMap(),
		status:         "Loading mailing lists...",
		view:           viewLoading,
		reviewed:       make(model.ReviewedPatchsets),
		listsList:      ll,
		patchsetsList:  list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0),
		bookmarkedList: list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0),
		detailsView:    viewport.New(0, 0),
	}

	bookmarked, err := lore.LoadBookmarkedPatchsets(m.cfg.BookmarkedPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load bookmarked patchsets", "error", err)
	}
	m.bookmarked = bookmarked

	reviewed, err := lore.LoadReviewedPatchsets(m.cfg.ReviewedPath())
	switch {
	case err == nil:
		m.reviewed = reviewed
	case !errors.Is(err, os.ErrNotExist):
		slog.Warn("failed to load reviewed patchsets", "error", err)
	}

	m.refreshBookmarkedList()
	return m
}

func (m *AppModel) Init() tea.Cmd {
	return m.loadListsCmd(false)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listH := msg.Height - 4 // room for footer
		m.listsList.SetSize(msg.Width, listH)
		m.patchsetsList.SetSize(msg.Width, listH)
		m.bookmarkedList.SetSize(msg.Width, listH)
		m.detailsView.Width = msg.Width
		m.detailsView.Height = msg.Height - 4
		if m.view == viewDetails {
			m.renderDetails()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case listsLoadedMsg:
		if msg.err != nil {
			if m.view == viewLoading {
				m.Err = msg.err
				m.status = "Loading mailing lists failed!"
				return m, tea.Quit
			}
			m.status = fmt.Sprintf("Refreshing lists failed: %v", msg.err)
			return m, clearStatusAfter(3 * time.Second)
		}
		m.lists = msg.lists
		m.listsList.SetItems(mailingListsToItems(m.lists))
		m.listsList.Title = fmt.Sprintf("Mailing lists (%d)", len(m.lists))
		if i := indexOfList(m.lists, msg.lastList); i >= 0 {
			m.listsList.Select(i)
		}
		if m.view == viewLoading {
			m.view = viewLists
		}
		m.status = ""
		return m, nil

	case cachedPatchsetsMsg:
		// Only useful while the first live page is still on its way.
		if m.session == nil || msg.session != m.session || !m.fetching || len(m.patchsetsList.Items()) > 0 {
			return m, nil
		}
		patches := msg.patches
		if len(patches) > m.cfg.PageSize {
			patches = patches[:m.cfg.PageSize]
		}
		m.patchsetsList.SetItems(patchsetsToItems(patches, m.bookmarked, m.reviewed))
		m.patchsetsList.Title = fmt.Sprintf("%s (cached)", m.session.TargetList())
		return m, nil

	case patchsetsLoadedMsg:
		if m.session == nil || msg.session != m.session {
			return m, nil
		}
		m.fetching = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Fetching patchsets failed: %v", msg.err)
			return m, nil
		}
		if !msg.ok {
			if msg.page > 1 {
				m.status = "No more patchsets"
				return m, clearStatusAfter(2 * time.Second)
			}
			m.patchsetsList.SetItems(nil)
			m.status = "No patchsets found"
			return m, nil
		}
		m.pageNumber = msg.page
		m.patchsetsList.SetItems(patchsetsToItems(msg.patches, m.bookmarked, m.reviewed))
		m.patchsetsList.Select(0)
		m.patchsetsList.Title = fmt.Sprintf("%s (page %d)", m.session.TargetList(), msg.page)
		m.status = ""
		return m, nil

	case patchsetOpenedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Opening patchset failed: %v", msg.err)
			return m, clearStatusAfter(3 * time.Second)
		}
		rep := msg.representative
		m.representative = &rep
		m.patches = msg.patches
		m.replySelected = make([]bool, len(msg.patches))
		m.patchIndex = 0
		m.detailFrom = m.view
		m.view = viewDetails
		m.status = ""
		m.renderDetails()
		m.detailsView.GotoTop()
		return m, nil

	case repliesSentMsg:
		if len(msg.numbers) > 0 {
			set, ok := m.reviewed[msg.key]
			if !ok {
				set = model.NewSeriesSet()
				m.reviewed[msg.key] = set
			}
			for _, n := range msg.numbers {
				set.Add(n)
			}
			if err := lore.SaveReviewedPatchsets(m.reviewed, m.cfg.ReviewedPath()); err != nil {
				slog.Error("failed to save reviewed patchsets", "error", err)
			}
		}
		if msg.err != nil {
			m.status = fmt.Sprintf("Sending replies failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("Sent %d replies", len(msg.numbers))
			for i := range m.replySelected {
				m.replySelected[i] = false
			}
		}
		if m.view == viewDetails {
			m.renderDetails()
		}
		return m, clearStatusAfter(3 * time.Second)

	case statusMsg:
		m.status = string(msg)
		return m, nil
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewLists:
		m.listsList, cmd = m.listsList.Update(msg)
	case viewPatchsets:
		m.patchsetsList, cmd = m.patchsetsList.Update(msg)
	case viewBookmarked:
		m.bookmarkedList, cmd = m.bookmarkedList.Update(msg)
	case viewDetails:
		m.detailsView, cmd = m.detailsView.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys

	// Global keys
	if key.Matches(msg, k.ForceQuit) {
		return m, tea.Quit
	}

	switch m.view {
	case viewLoading:
		if key.Matches(msg, k.Quit) {
			return m, tea.Quit
		}
		return m, nil

	case viewLists:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.listsList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.listsList, cmd = m.listsList.Update(msg)
			return m, cmd
		}
		switch {
		case key.Matches(msg, k.Quit):
			return m, tea.Quit
		case key.Matches(msg, k.Enter):
			return m.openSelectedList()
		case key.Matches(msg, k.Bookmarks):
			m.refreshBookmarkedList()
			m.view = viewBookmarked
			return m, nil
		case key.Matches(msg, k.RefreshLists):
			m.status = "Refreshing mailing lists..."
			return m, m.loadListsCmd(true)
		}
		var cmd tea.Cmd
		m.listsList, cmd = m.listsList.Update(msg)
		return m, cmd

	case viewPatchsets:
		if m.patchsetsList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.patchsetsList, cmd = m.patchsetsList.Update(msg)
			return m, cmd
		}
		switch {
		case key.Matches(msg, k.Quit):
			return m, tea.Quit
		case key.Matches(msg, k.Back):
			m.view = viewLists
			return m, nil
		case key.Matches(msg, k.Next):
			return m.turnPage(m.pageNumber + 1)
		case key.Matches(msg, k.Prev):
			if m.pageNumber <= 1 {
				return m, nil
			}
			return m.turnPage(m.pageNumber - 1)
		case key.Matches(msg, k.Bookmark):
			return m.toggleBookmark()
		case key.Matches(msg, k.Enter):
			return m.openPatchset(m.patchsetsList.SelectedItem())
		}
		var cmd tea.Cmd
		m.patchsetsList, cmd = m.patchsetsList.Update(msg)
		return m, cmd

	case viewBookmarked:
		switch {
		case key.Matches(msg, k.Quit):
			return m, tea.Quit
		case key.Matches(msg, k.Back):
			m.view = viewLists
			return m, nil
		case key.Matches(msg, k.RemoveBookmark):
			return m.removeBookmark()
		case key.Matches(msg, k.Enter):
			return m.openPatchset(m.bookmarkedList.SelectedItem())
		}
		var cmd tea.Cmd
		m.bookmarkedList, cmd = m.bookmarkedList.Update(msg)
		return m, cmd

	case viewDetails:
		switch {
		case key.Matches(msg, k.Quit):
			return m, tea.Quit
		case key.Matches(msg, k.Back):
			m.view = m.detailFrom
			m.representative = nil
			m.patches = nil
			m.replySelected = nil
			return m, nil
		case key.Matches(msg, k.Next):
			if m.patchIndex+1 < len(m.patches) {
				m.patchIndex++
				m.renderDetails()
				m.detailsView.GotoTop()
			}
			return m, nil
		case key.Matches(msg, k.Prev):
			if m.patchIndex > 0 {
				m.patchIndex--
				m.renderDetails()
				m.detailsView.GotoTop()
			}
			return m, nil
		case key.Matches(msg, k.ToggleReply):
			if m.patchIndex < len(m.replySelected) {
				m.replySelected[m.patchIndex] = !m.replySelected[m.patchIndex]
				m.renderDetails()
			}
			return m, nil
		case key.Matches(msg, k.SendReplies):
			return m.sendReplies()
		}
		var cmd tea.Cmd
		m.detailsView, cmd = m.detailsView.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *AppModel) openSelectedList() (tea.Model, tea.Cmd) {
	selected := m.listsList.SelectedItem()
	if selected == nil {
		return m, nil
	}
	name := selected.(mailingListItem).Name

	m.session = lore.NewSession(name, lore.WithMaxEmptyPages(m.cfg.MaxEmptyPages))
	m.pageNumber = 1
	m.fetching = true
	m.patchsetsList.SetItems(nil)
	m.patchsetsList.Title = name
	m.view = viewPatchsets
	m.status = "Fetching patchsets..."

	return m, tea.Batch(
		m.loadCachedCmd(m.session),
		m.fetchPageCmd(m.session, 1),
		m.rememberListCmd(name),
	)
}

func (m *AppModel) turnPage(page int) (tea.Model, tea.Cmd) {
	if m.session == nil || m.fetching {
		return m, nil
	}
	m.fetching = true
	m.status = fmt.Sprintf("Fetching page %d...", page)
	return m, m.fetchPageCmd(m.session, page)
}

func (m *AppModel) toggleBookmark() (tea.Model, tea.Cmd) {
	selected := m.patchsetsList.SelectedItem()
	if selected == nil {
		return m, nil
	}
	item := selected.(patchsetItem)

	if i := indexOfPatch(m.bookmarked, item.ID()); i >= 0 {
		m.bookmarked = append(m.bookmarked[:i], m.bookmarked[i+1:]...)
		item.bookmarked = false
		m.status = "Bookmark removed"
	} else {
		m.bookmarked = append(m.bookmarked, item.Patch)
		item.bookmarked = true
		m.status = "Bookmarked"
	}
	m.patchsetsList.SetItem(m.patchsetsList.Index(), item)
	m.refreshBookmarkedList()
	return m, tea.Batch(m.saveBookmarksCmd(), clearStatusAfter(2*time.Second))
}

func (m *AppModel) removeBookmark() (tea.Model, tea.Cmd) {
	selected := m.bookmarkedList.SelectedItem()
	if selected == nil {
		return m, nil
	}
	if i := indexOfPatch(m.bookmarked, selected.(patchsetItem).ID()); i >= 0 {
		m.bookmarked = append(m.bookmarked[:i], m.bookmarked[i+1:]...)
	}
	m.refreshBookmarkedList()
	m.status = "Bookmark removed"
	return m, tea.Batch(m.saveBookmarksCmd(), clearStatusAfter(2*time.Second))
}

func (m *AppModel) refreshBookmarkedList() {
	m.bookmarkedList.SetItems(patchsetsToItems(m.bookmarked, m.bookmarked, m.reviewed))
	m.bookmarkedList.Title = fmt.Sprintf("Bookmarked patchsets (%d)", len(m.bookmarked))
}

func (m *AppModel) openPatchset(selected list.Item) (tea.Model, tea.Cmd) {
	if selected == nil {
		return m, nil
	}
	rep := selected.(patchsetItem).Patch
	m.status = "Downloading patchset..."
	return m, m.openPatchsetCmd(rep)
}

func (m *AppModel) sendReplies() (tea.Model, tea.Cmd) {
	if m.representative == nil {
		return m, nil
	}
	var numbers []int
	for i, sel := range m.replySelected {
		if sel {
			numbers = append(numbers, seriesNumber(*m.representative, i))
		}
	}
	if len(numbers) == 0 {
		m.status = "No patches selected for reply (r to select)"
		return m, clearStatusAfter(2 * time.Second)
	}
	selected := make([]bool, len(m.replySelected))
	copy(selected, m.replySelected)
	m.status = fmt.Sprintf("Sending %d replies...", len(numbers))
	return m, m.sendRepliesCmd(*m.representative, m.patches, selected, numbers)
}

func (m *AppModel) renderDetails() {
	if m.representative == nil {
		return
	}
	reviewed := m.reviewed[m.representative.ID()]
	m.detailsView.SetContent(renderDetails(*m.representative, m.patches, m.patchIndex, m.replySelected, reviewed, m.detailsView.Width))
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	// Error state
	if m.Err != nil {
		return "Error: " + m.Err.Error() + "\n"
	}

	// Loading
	if m.view == viewLoading {
		if m.status != "" {
			return m.status + "\n"
		}
		return "Loading...\n"
	}

	var b strings.Builder

	switch m.view {
	case viewLists:
		b.WriteString(m.listsList.View())
		b.WriteString("\n")
		b.WriteString(listsFooter(m.keys))
	case viewPatchsets:
		b.WriteString(m.patchsetsList.View())
		b.WriteString("\n")
		b.WriteString(patchsetsFooter(m.keys))
	case viewBookmarked:
		b.WriteString(m.bookmarkedList.View())
		b.WriteString("\n")
		b.WriteString(bookmarkedFooter(m.keys))
	case viewDetails:
		b.WriteString(m.detailsView.View())
		b.WriteString("\n")
		b.WriteString(detailsFooter(m.keys))
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}

	return b.String()
}
