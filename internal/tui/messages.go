package tui

import (
	"lorepatch/internal/lore"
	"lorepatch/internal/model"
)

// Async message types for Bubble Tea commands.

type listsLoadedMsg struct {
	lists    []model.MailingList
	lastList string
	err      error
}

// Page messages carry the session that asked for them. A list reopened
// meanwhile has a new session, so late results of the old one are dropped.

type cachedPatchsetsMsg struct {
	session *lore.Session
	patches []model.Patch
}

type patchsetsLoadedMsg struct {
	session   *lore.Session
	page      int
	patches   []model.Patch
	ok        bool // false when the page lies past the end of the list
	exhausted bool
	err       error
}

type patchsetOpenedMsg struct {
	representative model.Patch
	patches        []string
	err            error
}

type repliesSentMsg struct {
	key     string // representative message URL
	numbers []int  // series numbers replied to
	err     error
}

type statusMsg string
