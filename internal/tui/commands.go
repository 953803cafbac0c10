package tui

import (
	"context"
	"fmt"
	"log/slog"

	"lorepatch/internal/lore"
	"lorepatch/internal/model"
	"lorepatch/internal/util"

	tea "github.com/charmbracelet/bubbletea"
)

// Commands

func (m *AppModel) loadListsCmd(refresh bool) tea.Cmd {
	archive, cache, path := m.deps.Archive, m.deps.Cache, m.cfg.MailingListsPath()
	return func() tea.Msg {
		ctx := context.Background()

		lastList := ""
		if cache != nil {
			lastList, _ = cache.GetLastList(ctx)
		}

		if !refresh {
			lists, err := lore.LoadAvailableLists(path)
			if err == nil && len(lists) > 0 {
				return listsLoadedMsg{lists: lists, lastList: lastList}
			}
		}

		lists, err := lore.FetchAvailableLists(ctx, archive)
		if err != nil {
			return listsLoadedMsg{err: err}
		}
		if err := lore.SaveAvailableLists(lists, path); err != nil {
			slog.Error("failed to save mailing lists", "path", path, "error", err)
		}
		return listsLoadedMsg{lists: lists, lastList: lastList}
	}
}

func (m *AppModel) loadCachedCmd(sess *lore.Session) tea.Cmd {
	cache := m.deps.Cache
	if cache == nil {
		return nil
	}
	return func() tea.Msg {
		list := sess.TargetList()
		patches, err := cache.LoadPatches(context.Background(), list)
		if err != nil {
			slog.Warn("failed to load cached patches", "list", list, "error", err)
			return nil
		}
		return cachedPatchsetsMsg{session: sess, patches: patches}
	}
}

func (m *AppModel) rememberListCmd(list string) tea.Cmd {
	cache := m.deps.Cache
	if cache == nil {
		return nil
	}
	return func() tea.Msg {
		if err := cache.SetLastList(context.Background(), list); err != nil {
			slog.Warn("failed to remember list", "list", list, "error", err)
		}
		return nil
	}
}

func (m *AppModel) fetchPageCmd(sess *lore.Session, page int) tea.Cmd {
	archive, cache, size := m.deps.Archive, m.deps.Cache, m.cfg.PageSize
	return func() tea.Msg {
		ctx := context.Background()
		list := sess.TargetList()

		need, err := lore.WindowEnd(size, page)
		if err != nil {
			return patchsetsLoadedMsg{session: sess, page: page, err: err}
		}
		if err := sess.EnsureAtLeast(ctx, archive, need); err != nil {
			return patchsetsLoadedMsg{session: sess, page: page, err: err}
		}
		patches, ok := sess.Page(size, page)
		if ok && cache != nil {
			if page == 1 {
				// Positions cached by an earlier run may be stale.
				if err := cache.DeletePatches(ctx, list); err != nil {
					slog.Warn("failed to clear cached patches", "list", list, "error", err)
				}
			}
			if err := cache.UpsertPatches(ctx, list, (page-1)*size, patches); err != nil {
				slog.Warn("failed to cache patches", "list", list, "error", err)
			}
		}
		return patchsetsLoadedMsg{session: sess, page: page, patches: patches, ok: ok, exhausted: sess.Exhausted()}
	}
}

func (m *AppModel) openPatchsetCmd(rep model.Patch) tea.Cmd {
	downloader, dir := m.deps.Downloader, m.cfg.PatchsetsPath()
	return func() tea.Msg {
		path, err := downloader.Download(context.Background(), dir, rep.ID(), rep.Version)
		if err != nil {
			return patchsetOpenedMsg{err: err}
		}
		patches, err := lore.SplitPatchset(path)
		if err != nil {
			return patchsetOpenedMsg{err: err}
		}
		if len(patches) == 0 {
			return patchsetOpenedMsg{err: fmt.Errorf("no patches in %s", path)}
		}
		return patchsetOpenedMsg{representative: rep, patches: patches}
	}
}

func (m *AppModel) saveBookmarksCmd() tea.Cmd {
	bookmarked := make([]model.Patch, len(m.bookmarked))
	copy(bookmarked, m.bookmarked)
	path := m.cfg.BookmarkedPath()
	return func() tea.Msg {
		if err := lore.SaveBookmarkedPatchsets(bookmarked, path); err != nil {
			slog.Error("failed to save bookmarks", "path", path, "error", err)
			return statusMsg(fmt.Sprintf("Saving bookmarks failed: %v", err))
		}
		return nil
	}
}

// sendRepliesCmd writes a Reviewed-by reply for every selected patch and
// sends them one by one. numbers are the series numbers of the selection;
// on failure only the replies already sent are reported.
func (m *AppModel) sendRepliesCmd(rep model.Patch, patches []string, selected []bool, numbers []int) tea.Cmd {
	archive, mailer := m.deps.Archive, m.deps.Mailer
	opts := lore.ReplyOptions{
		Dir:              m.cfg.RepliesPath(),
		TargetList:       util.ListFromMessageURL(rep.ID()),
		SendEmailOptions: m.cfg.GitSendEmailOptions,
	}
	reviewer := m.cfg.Reviewer
	return func() tea.Msg {
		ctx := context.Background()
		key := rep.ID()

		name, email := util.ParseSender(reviewer)
		if email == "" {
			var err error
			name, email, err = mailer.Identity(ctx)
			if err != nil {
				return repliesSentMsg{key: key, err: fmt.Errorf("read git identity: %w", err)}
			}
		}
		opts.Signature = util.FormatSignature(name, email)

		cmds, err := lore.PrepareReplies(ctx, archive, patches, selected, opts)
		if err != nil {
			return repliesSentMsg{key: key, err: err}
		}
		for i, cmd := range cmds {
			if _, err := mailer.SendEmail(ctx, cmd); err != nil {
				return repliesSentMsg{key: key, numbers: numbers[:i], err: err}
			}
		}
		return repliesSentMsg{key: key, numbers: numbers}
	}
}
