package api

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"lorepatch/internal/lore"
	"lorepatch/internal/model"
)

// Archive is the part of the lore client the API reads from.
type Archive interface {
	lore.PatchFeedFetcher
	lore.ListDirectoryFetcher
}

// PatchCache receives every page served so the TUI can start from it.
type PatchCache interface {
	DeletePatches(ctx context.Context, list string) error
	UpsertPatches(ctx context.Context, list string, start int, patches []model.Patch) error
}

// Service owns one session per list. Sessions are not safe for concurrent
// use, so every call holds mu.
type Service struct {
	mu            sync.Mutex
	archive       Archive
	cache         PatchCache
	listsPath     string
	maxEmptyPages int
	sessions      map[string]*lore.Session
}

// NewService builds a Service. cache may be nil.
func NewService(archive Archive, cache PatchCache, listsPath string, maxEmptyPages int) *Service {
	return &Service{
		archive:       archive,
		cache:         cache,
		listsPath:     listsPath,
		maxEmptyPages: maxEmptyPages,
		sessions:      make(map[string]*lore.Session),
	}
}

// SessionCount returns how many lists have a live session.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Lists returns the mailing lists from the snapshot, fetching and saving
// them first when no snapshot exists.
func (s *Service) Lists(ctx context.Context) ([]model.MailingList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lists, err := lore.LoadAvailableLists(s.listsPath)
	if err == nil {
		return lists, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable mailing list snapshot", "path", s.listsPath, "error", err)
	}

	lists, err = lore.FetchAvailableLists(ctx, s.archive)
	if err != nil {
		return nil, err
	}
	if err := lore.SaveAvailableLists(lists, s.listsPath); err != nil {
		slog.Error("failed to save mailing list snapshot", "path", s.listsPath, "error", err)
	}
	return lists, nil
}

// PageResult is one page of representatives.
type PageResult struct {
	List      string        `json:"list"`
	Page      int           `json:"page"`
	Size      int           `json:"size"`
	Exhausted bool          `json:"exhausted"`
	Patches   []model.Patch `json:"patches"`
}

// Page fetches until the requested page can be served. ok is false when
// the page lies past the end of the list.
func (s *Service) Page(ctx context.Context, list string, size, number int) (PageResult, bool, error) {
	need, err := lore.WindowEnd(size, number)
	if err != nil {
		return PageResult{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(list)
	if err := sess.EnsureAtLeast(ctx, s.archive, need); err != nil {
		return PageResult{}, false, err
	}
	patches, ok := sess.Page(size, number)
	if !ok {
		return PageResult{}, false, nil
	}

	if s.cache != nil {
		if number == 1 {
			// Positions cached by an earlier run may be stale.
			if err := s.cache.DeletePatches(ctx, list); err != nil {
				slog.Warn("failed to clear cached patches", "list", list, "error", err)
			}
		}
		if err := s.cache.UpsertPatches(ctx, list, (number-1)*size, patches); err != nil {
			slog.Warn("failed to cache patches", "list", list, "error", err)
		}
	}
	return PageResult{List: list, Page: number, Size: size, Exhausted: sess.Exhausted(), Patches: patches}, true, nil
}

// Lookup finds a patch in the session of list without fetching.
func (s *Service) Lookup(list, messageID string) (model.Patch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[list]
	if !ok {
		return model.Patch{}, false
	}
	return sess.Lookup(messageID)
}

func (s *Service) session(list string) *lore.Session {
	sess, ok := s.sessions[list]
	if !ok {
		sess = lore.NewSession(list, lore.WithMaxEmptyPages(s.maxEmptyPages))
		s.sessions[list] = sess
	}
	return sess
}
