package lore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrPatchNotFound is returned when a patchset path does not name a regular file.
var ErrPatchNotFound = errors.New("patchset file not found")

// mboxSeparator opens every message in mailboxes written by b4.
const mboxSeparator = "From git@z Thu Jan  1 00:00:00 1970"

const (
	mboxExt  = ".mbx"
	coverExt = ".cover"
)

// SplitPatchset reads a downloaded mailbox and returns its messages in
// archive order. When a sibling cover letter file exists (".cover" in place
// of ".mbx") its messages come first.
func SplitPatchset(patchsetPath string) ([]string, error) {
	info, err := os.Stat(patchsetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", patchsetPath, ErrPatchNotFound)
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a file: %w", patchsetPath, ErrPatchNotFound)
	}

	var patches []string

	coverPath := strings.Replace(patchsetPath, mboxExt, coverExt, 1)
	if coverPath != patchsetPath {
		if ci, err := os.Stat(coverPath); err == nil && ci.Mode().IsRegular() {
			cover, err := extractPatchesFromFile(coverPath)
			if err != nil {
				return nil, err
			}
			patches = append(patches, cover...)
		}
	}

	msgs, err := extractPatchesFromFile(patchsetPath)
	if err != nil {
		return nil, err
	}
	return append(patches, msgs...), nil
}

func extractPatchesFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	patches, err := ExtractPatches(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return patches, nil
}

// ExtractPatches splits a mailbox stream into message texts. A message
// starts at its Subject line and ends either on the line after the "--"
// signature delimiter or right before the next mbox separator.
func ExtractPatches(r io.Reader) ([]string, error) {
	var (
		patches         []string
		current         strings.Builder
		reading         bool
		sawSignatureEnd bool
	)
	flush := func() {
		patches = append(patches, current.String())
		current.Reset()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimRight(line, " \t\r")

		switch {
		case strings.HasPrefix(line, "Subject: "):
			reading = true
		case reading && trimmed == "--":
			sawSignatureEnd = true
		case sawSignatureEnd:
			current.WriteString(line)
			current.WriteByte('\n')
			flush()
			reading = false
			sawSignatureEnd = false
		case reading && trimmed == mboxSeparator:
			flush()
			reading = false
		}

		if reading {
			current.WriteString(line)
			current.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if current.Len() > 0 {
		flush()
	}
	return patches, nil
}

// SplitCover splits a patch at the first line consisting solely of "---".
// The cover keeps everything up to and including that line; the diff is the
// rest. Without such a line the whole text is the cover.
func SplitCover(patch string) (cover, diff string) {
	offset := 0
	for offset < len(patch) {
		end := strings.IndexByte(patch[offset:], '\n')
		var line string
		next := len(patch)
		if end >= 0 {
			line = patch[offset : offset+end]
			next = offset + end + 1
		} else {
			line = patch[offset:]
		}
		if strings.TrimRight(line, "\r") == "---" {
			return patch[:next], patch[next:]
		}
		offset = next
	}
	return patch, ""
}
