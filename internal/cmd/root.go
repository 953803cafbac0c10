// Package cmd implements the lorepatch command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lorepatch/internal/config"
	"lorepatch/internal/logging"
	"lorepatch/internal/lore"
)

// Command groups for help output.
const (
	GroupBrowse = "browse"
	GroupMbox   = "mbox"
	GroupServe  = "serve"
)

var (
	cfgFile      string
	flagDataDir  string
	flagLogLevel string
	flagPageSize int
	flagBaseURL  string

	// cfg is loaded before any command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lorepatch",
	Short: "Browse and review patches from lore.kernel.org",
	Long: `lorepatch follows the patch feeds of public-inbox mailing list archives.

Without a subcommand it starts the interactive browser: pick a mailing
list, page through the latest patchsets, open one, and reply to the
patches you reviewed with a Reviewed-by trailer via git send-email.

Settings come from ~/.config/lorepatch/config.yaml, LOREPATCH_* environment
variables (a .env file in the working directory is honored) and the
flags below, in that order.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runTUI,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupBrowse, Title: "Browsing:"},
		&cobra.Group{ID: GroupMbox, Title: "Mailboxes:"},
		&cobra.Group{ID: GroupServe, Title: "Serving:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.config/lorepatch/config.yaml)")
	pf.StringVar(&flagDataDir, "data-dir", "", "directory for snapshots, cache and downloads")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.IntVar(&flagPageSize, "page-size", 0, "patchsets per page")
	pf.StringVar(&flagBaseURL, "base-url", "", "archive base URL")
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig builds cfg from file and environment, then applies flags the
// user set explicitly. Logging goes to stderr until a command redirects it.
func loadConfig(cmd *cobra.Command, _ []string) error {
	config.LoadDotEnv()

	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		c.DataDir = flagDataDir
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("page-size") {
		c.PageSize = flagPageSize
	}
	if flags.Changed("base-url") {
		c.LoreBaseURL = flagBaseURL
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	level, _ := config.ParseLevel(c.LogLevel)
	logging.Setup(cmd.ErrOrStderr(), level)
	slog.Debug("configuration loaded", "data_dir", c.DataDir, "base_url", c.LoreBaseURL)

	cfg = c
	return nil
}

func newClient() *lore.Client {
	return lore.NewClient(
		lore.WithBaseURL(cfg.LoreBaseURL),
		lore.WithTimeout(cfg.HTTPTimeout),
	)
}

// newDownloader points b4 at the archive root the client reads from.
func newDownloader(client *lore.Client) *lore.Downloader {
	return lore.NewDownloader(lore.ExecRunner{}, client.BaseURL())
}
