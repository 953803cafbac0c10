package lore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Runner executes an external program.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs programs with os/exec, discarding stdout and keeping
// stderr for error reports.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Downloader fetches whole patchsets as mailboxes with b4.
type Downloader struct {
	runner  Runner
	baseURL string
}

func NewDownloader(runner Runner, baseURL string) *Downloader {
	if runner == nil {
		runner = ExecRunner{}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Downloader{runner: runner, baseURL: strings.TrimRight(baseURL, "/")}
}

// Download writes the given version of the series containing messageID to
// outputDir and returns the mailbox path. Nothing runs when the mailbox is
// already there.
func (d *Downloader) Download(ctx context.Context, outputDir, messageID string, version int) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create patchset dir: %w", err)
	}

	mboxName := d.MboxName(messageID)
	path := filepath.Join(outputDir, mboxName)
	if _, err := os.Stat(path); err == nil {
		slog.Debug("patchset already downloaded", "path", path)
		return path, nil
	}

	err := d.runner.Run(ctx, "b4",
		"--quiet", "am",
		"--use-version", strconv.Itoa(version),
		messageID,
		"--outdir", outputDir,
		"--mbox-name", mboxName,
	)
	if err != nil {
		return "", fmt.Errorf("download patchset %s: %w", messageID, err)
	}
	return path, nil
}

// MboxName derives a file name from a message URL:
// "https://lore.kernel.org/list/id@host/" becomes "list.id@host.mbx".
func (d *Downloader) MboxName(messageID string) string {
	name := messageID
	for _, prefix := range d.prefixes() {
		name = strings.TrimPrefix(name, prefix)
	}
	name = strings.ReplaceAll(name, "/", ".")
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	return name + "mbx"
}

func (d *Downloader) prefixes() []string {
	host := strings.TrimPrefix(strings.TrimPrefix(d.baseURL, "https://"), "http://")
	return []string{"https://" + host + "/", "http://" + host + "/"}
}
