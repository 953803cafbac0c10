package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lorepatch/internal/api"
	"lorepatch/internal/config"
	"lorepatch/internal/lockfile"
	"lorepatch/internal/logging"
	"lorepatch/internal/store"
)

var (
	serveAddr    string
	serveLogFile bool
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: GroupServe,
	Short:   "Serve patch feeds as JSON over HTTP",
	Long: `Start a read-only HTTP API over the patch feeds.

Endpoints:
  GET /health
  GET /lists
  GET /lists/{list}/patches?page=N&size=S
  GET /lists/{list}/patch?id=<message-url>

Examples:
  lorepatch serve
  lorepatch serve --addr :9000
  lorepatch serve --log-file`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default listen_addr from config)")
	serveCmd.Flags().BoolVar(&serveLogFile, "log-file", false, "Log to <data_dir>/lorepatch.log instead of stderr")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	lock, err := lockfile.Acquire(cfg.DataDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	if serveLogFile {
		level, _ := config.ParseLevel(cfg.LogLevel)
		logFile, err := logging.SetupFile(cfg.LogPath(), level)
		if err != nil {
			return err
		}
		defer logFile.Close()
	}

	cache, err := store.NewSQLiteStore(cfg.CachePath())
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	addr := cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	client := newClient()
	svc := api.NewService(client, cache, cfg.MailingListsPath(), cfg.MaxEmptyPages)
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(svc, cfg.PageSize, slog.Default()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Deep pages may walk many feed pages before answering.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr, "base_url", client.BaseURL())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
