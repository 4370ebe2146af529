// Package config loads the bot configuration from a JSON5 file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/titanous/json5"
)

const (
	DefaultConfigPath = "~/.whatdidwesay/config.json5"
	DefaultDBPath     = "~/.whatdidwesay/messages.db"
)

// Config is the root configuration.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Database DatabaseConfig `json:"database"`
	Archive  ArchiveConfig  `json:"archive"`
	Search   SearchConfig   `json:"search"`
	Log      LogConfig      `json:"log"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout int    `json:"poll_timeout"` // seconds
	LinkBase    string `json:"link_base"`
	DedupeTTL   int    `json:"dedupe_ttl"` // seconds
}

type DatabaseConfig struct {
	Path          string `json:"path"`
	UserCacheSize int    `json:"user_cache_size"`
}

type ArchiveConfig struct {
	OnFailure    string `json:"on_failure"` // halt | continue | disable_scope
	ChannelPosts bool   `json:"channel_posts"`
	DefaultAllow bool   `json:"default_allow"`
}

type SearchConfig struct {
	Limit          int `json:"limit"`
	RatePerMinute  int `json:"rate_per_minute"` // /q per chat, 0 disables
	Burst          int `json:"burst"`
	InlineCacheTTL int `json:"inline_cache_ttl"` // seconds
}

type LogConfig struct {
	Level  string `json:"level"`  // debug | info | warn | error
	Format string `json:"format"` // text | json
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollTimeout: 30,
			LinkBase:    "https://t.me/c",
			DedupeTTL:   600,
		},
		Database: DatabaseConfig{
			Path:          DefaultDBPath,
			UserCacheSize: 4096,
		},
		Archive: ArchiveConfig{
			OnFailure:    "halt",
			ChannelPosts: true,
			DefaultAllow: true,
		},
		Search: SearchConfig{
			Limit:          20,
			RatePerMinute:  20,
			Burst:          5,
			InlineCacheTTL: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config at path over the defaults and applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ExpandHome(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	// TELOXIDE_TOKEN is accepted for deployments carried over from older setups.
	for _, key := range []string{"TELOXIDE_TOKEN", "TELEGRAM_BOT_TOKEN"} {
		if v := os.Getenv(key); v != "" {
			c.Telegram.Token = v
		}
	}
	if v := os.Getenv("WHATDIDWESAY_DB"); v != "" {
		c.Database.Path = v
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Archive.OnFailure) {
	case "", "halt", "continue", "disable_scope":
	default:
		errs = append(errs, fmt.Errorf("archive.on_failure: unknown policy %q", c.Archive.OnFailure))
	}
	if c.Search.Limit < 0 {
		errs = append(errs, fmt.Errorf("search.limit must not be negative, got %d", c.Search.Limit))
	}
	if c.Search.RatePerMinute < 0 || c.Search.Burst < 0 {
		errs = append(errs, errors.New("search.rate_per_minute and search.burst must not be negative"))
	}
	if c.Telegram.PollTimeout < 0 {
		errs = append(errs, fmt.Errorf("telegram.poll_timeout must not be negative, got %d", c.Telegram.PollTimeout))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// DBPath returns the database path with ~ expanded.
func (c *Config) DBPath() string {
	return ExpandHome(c.Database.Path)
}

func (c *Config) DedupeTTL() time.Duration {
	return time.Duration(c.Telegram.DedupeTTL) * time.Second
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
