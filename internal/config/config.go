// Package config loads lorepatch settings. Later sources override earlier
// ones: built-in defaults, the YAML file, then LOREPATCH_* environment
// variables. Command-line flags are applied by the caller, which then
// calls Validate again.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "LOREPATCH_"

type Config struct {
	LoreBaseURL         string        `yaml:"lore_base_url"`
	PageSize            int           `yaml:"page_size"`
	DataDir             string        `yaml:"data_dir"`
	PatchsetsDir        string        `yaml:"patchsets_dir"`
	GitSendEmailOptions string        `yaml:"git_send_email_options"`
	GitRepoPath         string        `yaml:"git_repo_path"`
	HTTPTimeout         time.Duration `yaml:"http_timeout"`
	ListenAddr          string        `yaml:"listen_addr"`
	LogLevel            string        `yaml:"log_level"`
	MaxEmptyPages       int           `yaml:"max_empty_pages"`

	// Reviewer overrides the git identity in Reviewed-by trailers,
	// e.g. "Jane Doe <jane@example.com>".
	Reviewer string `yaml:"reviewer"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LoreBaseURL:         "https://lore.kernel.org",
		PageSize:            30,
		DataDir:             defaultDataDir(),
		GitSendEmailOptions: "--dry-run --suppress-cc=all",
		HTTPTimeout:         30 * time.Second,
		ListenAddr:          "127.0.0.1:8080",
		LogLevel:            "info",
		MaxEmptyPages:       3,
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "lorepatch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".lorepatch")
	}
	return filepath.Join(home, ".local", "share", "lorepatch")
}

// DefaultPath returns $XDG_CONFIG_HOME/lorepatch/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "lorepatch", "config.yaml")
}

// LoadDotEnv loads a .env file into the process environment. A missing
// file is not an error.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. An empty path means DefaultPath, which may be absent;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.PatchsetsDir = expandHome(cfg.PatchsetsDir)
	cfg.GitRepoPath = expandHome(cfg.GitRepoPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LoreBaseURL = envStr("LORE_BASE_URL", c.LoreBaseURL)
	c.PageSize = envInt("PAGE_SIZE", c.PageSize)
	c.DataDir = envStr("DATA_DIR", c.DataDir)
	c.PatchsetsDir = envStr("PATCHSETS_DIR", c.PatchsetsDir)
	c.GitSendEmailOptions = envStr("GIT_SEND_EMAIL_OPTIONS", c.GitSendEmailOptions)
	c.GitRepoPath = envStr("GIT_REPO_PATH", c.GitRepoPath)
	c.HTTPTimeout = envDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.ListenAddr = envStr("LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.MaxEmptyPages = envInt("MAX_EMPTY_PAGES", c.MaxEmptyPages)
	c.Reviewer = envStr("REVIEWER", c.Reviewer)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.LoreBaseURL) == "" {
		return fmt.Errorf("lore_base_url must not be empty")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.MaxEmptyPages < 1 {
		return fmt.Errorf("max_empty_pages must be positive, got %d", c.MaxEmptyPages)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return level, nil
}

// PatchsetsPath is where downloaded mailboxes go.
func (c *Config) PatchsetsPath() string {
	if c.PatchsetsDir != "" {
		return c.PatchsetsDir
	}
	return filepath.Join(c.DataDir, "patchsets")
}

// RepliesPath is where reply files are written before sending.
func (c *Config) RepliesPath() string {
	return filepath.Join(c.DataDir, "replies")
}

func (c *Config) BookmarkedPath() string {
	return filepath.Join(c.DataDir, "bookmarked_patchsets.json")
}

func (c *Config) MailingListsPath() string {
	return filepath.Join(c.DataDir, "mailing_lists.json")
}

func (c *Config) ReviewedPath() string {
	return filepath.Join(c.DataDir, "reviewed_patchsets.json")
}

func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "lorepatch.log")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func envStr(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		slog.Warn("ignoring invalid integer", "key", envPrefix+key, "value", v)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(envPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("ignoring invalid duration", "key", envPrefix+key, "value", v)
	}
	return fallback
}
