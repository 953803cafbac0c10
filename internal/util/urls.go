package util

import (
	"net/url"
	"strings"
)

// ListFromMessageURL returns the list segment of an archive message URL,
// "lkml" for "https://lore.kernel.org/lkml/1234@host/". It returns "" when
// the URL has no path.
func ListFromMessageURL(messageURL string) string {
	u, err := url.Parse(messageURL)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	list, _, _ := strings.Cut(path, "/")
	return list
}
