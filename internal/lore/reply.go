package lore

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrMissingMessageID is returned when a patch selected for reply has no
// Message-Id header.
var ErrMissingMessageID = errors.New("patch has no Message-Id header")

var (
	reMessageID     = regexp.MustCompile(`(?m)^Message-Id: <(.*?)>`)
	reReplyCommand  = regexp.MustCompile(`(?s)git-send-email\(1\):(.*?)/path/to/YOUR_REPLY`)
	reLongOption    = regexp.MustCompile(`--[^\s=]+=[^\s]+`)
	replyHeaderDrop = []string{"From: ", "Date: ", "Message-Id: "}
)

// ReplyCommand is an external invocation that sends one reply.
type ReplyCommand struct {
	Name string
	Args []string
}

func (c ReplyCommand) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// ReplyPath is the last argument, the reply file to send.
func (c ReplyCommand) ReplyPath() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// GenerateReplyTemplate turns a raw patch into a reply skeleton. Headers
// are kept except sender, date and message id, the subject gets a "Re: "
// prefix, and every body line is quoted with "> ".
func GenerateReplyTemplate(patch string) string {
	var b strings.Builder
	lines := strings.Split(strings.TrimSuffix(patch, "\n"), "\n")
	if patch == "" {
		lines = nil
	}

	i := 0
headers:
	for ; i < len(lines); i++ {
		line := strings.TrimSuffix(lines[i], "\r")
		switch {
		case strings.HasPrefix(line, "Subject: "):
			b.WriteString(strings.Replace(line, "Subject: ", "Subject: Re: ", 1))
			b.WriteByte('\n')
		case hasAnyPrefix(line, replyHeaderDrop):
			// dropped
		case strings.TrimSpace(line) != "":
			b.WriteString(line)
			b.WriteByte('\n')
		case b.Len() > 0:
			b.WriteByte('\n')
			i++
			break headers
		}
	}

	for ; i < len(lines); i++ {
		b.WriteString("> ")
		b.WriteString(strings.TrimSuffix(lines[i], "\r"))
		b.WriteByte('\n')
	}
	return b.String()
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// BuildReplyCommand returns a "git send-email" invocation seeded with the
// baseline options, followed by the long options of the reply instructions
// embedded in the patch's HTML page. Pages without those instructions yield
// the baseline only. The caller appends the reply file.
func BuildReplyCommand(patchHTML, baselineOptions string) ReplyCommand {
	cmd := ReplyCommand{Name: "git", Args: []string{"send-email"}}
	cmd.Args = append(cmd.Args, strings.Fields(baselineOptions)...)

	m := reReplyCommand.FindStringSubmatch(patchHTML)
	if m == nil {
		return cmd
	}
	for _, opt := range reLongOption.FindAllString(m[1], -1) {
		cmd.Args = append(cmd.Args, html.UnescapeString(opt))
	}
	return cmd
}

// ExtractMessageID returns the bare Message-Id of a raw patch.
func ExtractMessageID(patch string) (string, bool) {
	m := reMessageID.FindStringSubmatch(patch)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ReplyOptions controls PrepareReplies.
type ReplyOptions struct {
	Dir              string // where reply files are written
	TargetList       string
	Signature        string // "Name <email>" for the Reviewed-by trailer
	SendEmailOptions string // baseline git send-email options
}

// PrepareReplies writes a Reviewed-by reply for every selected patch and
// returns one send command per reply, in patch order.
func PrepareReplies(ctx context.Context, fetcher PatchHTMLFetcher, patches []string, selected []bool, opts ReplyOptions) ([]ReplyCommand, error) {
	if len(patches) != len(selected) {
		return nil, fmt.Errorf("prepare replies: %d patches but %d selection flags", len(patches), len(selected))
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reply dir: %w", err)
	}

	var cmds []ReplyCommand
	for i, patch := range patches {
		if !selected[i] {
			continue
		}
		messageID, ok := ExtractMessageID(patch)
		if !ok {
			return nil, fmt.Errorf("patch %d: %w", i, ErrMissingMessageID)
		}

		reply := GenerateReplyTemplate(patch) + fmt.Sprintf("\nReviewed-by: %s\n", opts.Signature)
		replyPath := filepath.Join(opts.Dir, messageID+"-reply.mbx")
		if err := os.WriteFile(replyPath, []byte(reply), 0o644); err != nil {
			return nil, fmt.Errorf("write reply: %w", err)
		}

		body, err := fetcher.FetchPatchHTML(ctx, opts.TargetList, messageID)
		if err != nil {
			return nil, fmt.Errorf("fetch patch %s: %w", messageID, err)
		}

		cmd := BuildReplyCommand(body, opts.SendEmailOptions)
		cmd.Args = append(cmd.Args, replyPath)
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}
