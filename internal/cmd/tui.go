package cmd

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"lorepatch/internal/config"
	"lorepatch/internal/git"
	"lorepatch/internal/lockfile"
	"lorepatch/internal/logging"
	"lorepatch/internal/store"
	"lorepatch/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:     "tui",
	GroupID: GroupBrowse,
	Short:   "Start the interactive patch browser (default)",
	Long: `Start the interactive patch browser.

Keys:
  lists       enter: open  b: bookmarks  s: refresh lists  /: filter  q: quit
  patchsets   n/p: next/prev page  b: toggle bookmark  enter: open  esc: back
  bookmarks   enter: open  d: remove  esc: back
  details     n/p: next/prev patch  r: toggle reply  R: send Reviewed-by  esc: back

Logs go to <data_dir>/lorepatch.log while the browser owns the terminal.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	lock, err := lockfile.Acquire(cfg.DataDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	level, _ := config.ParseLevel(cfg.LogLevel)
	logFile, err := logging.SetupFile(cfg.LogPath(), level)
	if err != nil {
		return err
	}
	defer logFile.Close()

	cache, err := store.NewSQLiteStore(cfg.CachePath())
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	client := newClient()
	appModel := tui.NewAppModel(tui.Deps{
		Config:     cfg,
		Archive:    client,
		Downloader: newDownloader(client),
		Mailer:     git.NewGit(cfg.GitRepoPath),
		Cache:      cache,
	})
	slog.Info("starting browser", "data_dir", cfg.DataDir)

	p := tea.NewProgram(&appModel, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("run browser: %w", err)
	}
	if m, ok := finalModel.(*tui.AppModel); ok && m.Err != nil {
		return m.Err
	}
	return nil
}
