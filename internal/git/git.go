// Package git wraps the git subprocess calls lorepatch needs: reading the
// reviewer identity and sending prepared replies.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"lorepatch/internal/lore"
)

// ErrIdentityMissing is returned when no user.email is configured.
var ErrIdentityMissing = errors.New("git user.email is not configured")

// GitError contains raw output from a failed git command.
type GitError struct {
	Command string // The git subcommand that failed (e.g., "config", "send-email")
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *GitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Command, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// Git runs git in a working directory. An empty directory uses the
// process's current directory, so only global configuration applies
// outside a repository.
type Git struct {
	workDir string
}

// NewGit creates a new Git wrapper for the given directory.
func NewGit(workDir string) *Git {
	return &Git{workDir: workDir}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if g.workDir != "" {
		cmd.Dir = g.workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", g.wrapError(err, stdout.String(), stderr.String(), args)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (g *Git) wrapError(err error, stdout, stderr string, args []string) error {
	command := ""
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			command = arg
			break
		}
	}
	if command == "" && len(args) > 0 {
		command = args[0]
	}

	return &GitError{
		Command: command,
		Args:    args,
		Stdout:  strings.TrimSpace(stdout),
		Stderr:  strings.TrimSpace(stderr),
		Err:     err,
	}
}

// ConfigGet returns the value of a config key, or "" when it is unset.
func (g *Git) ConfigGet(ctx context.Context, key string) (string, error) {
	out, err := g.run(ctx, "config", "--get", key)
	if err != nil {
		var gitErr *GitError
		// git config --get exits 1 when the key is not set
		if errors.As(err, &gitErr) && exitCode(gitErr.Err) == 1 {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// Identity returns the configured user.name and user.email. The name may be
// empty; a missing email is ErrIdentityMissing.
func (g *Git) Identity(ctx context.Context) (name, email string, err error) {
	name, err = g.ConfigGet(ctx, "user.name")
	if err != nil {
		return "", "", err
	}
	email, err = g.ConfigGet(ctx, "user.email")
	if err != nil {
		return "", "", err
	}
	if email == "" {
		return "", "", ErrIdentityMissing
	}
	return name, email, nil
}

// SendEmail executes one prepared reply command and returns git's output.
func (g *Git) SendEmail(ctx context.Context, cmd lore.ReplyCommand) (string, error) {
	if cmd.Name != "git" {
		return "", fmt.Errorf("not a git command: %s", cmd)
	}
	slog.Info("sending reply", "reply", cmd.ReplyPath(), "dir", g.workDir)
	return g.run(ctx, cmd.Args...)
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
