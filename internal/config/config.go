// Package config loads agent configuration from TOML with defaults and
// validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Errors returned by configuration loading.
var (
	// ErrInvalidServerURL indicates a missing or non-websocket endpoint.
	ErrInvalidServerURL = errors.New("server url must use ws:// or wss://")

	// ErrInvalidInterval indicates a non-positive duration setting.
	ErrInvalidInterval = errors.New("interval must be positive")
)

// Duration is a time.Duration that unmarshals from TOML strings such as
// "500ms" or "2s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// Config is the full agent configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Sync    SyncConfig    `toml:"sync"`
	Journal JournalConfig `toml:"journal"`
}

// ServerConfig describes the sync endpoint.
type ServerConfig struct {
	// URL is the websocket endpoint of the sync consumer.
	URL string `toml:"url"`

	// DialTimeout bounds connection establishment.
	DialTimeout Duration `toml:"dial_timeout"`
}

// SyncConfig tunes the per-buffer protocol.
type SyncConfig struct {
	// RetryInterval is the fixed delay between resync attempts.
	RetryInterval Duration `toml:"retry_interval"`

	// CloseTimeout bounds delivery of a routed Close event.
	CloseTimeout Duration `toml:"close_timeout"`
}

// JournalConfig controls the acknowledged-version journal.
type JournalConfig struct {
	// Enabled turns the journal on.
	Enabled bool `toml:"enabled"`

	// Path is the bbolt database file.
	Path string `toml:"path"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			URL:         "ws://127.0.0.1:8990/sync",
			DialTimeout: Duration{10 * time.Second},
		},
		Sync: SyncConfig{
			RetryInterval: Duration{time.Second},
			CloseTimeout:  Duration{5 * time.Second},
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    "bufsync.db",
		},
	}
}

// Load reads a TOML file over the defaults. A missing file is not an
// error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for usability.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.Server.URL)
	}
	if c.Server.DialTimeout.Duration <= 0 {
		return fmt.Errorf("%w: server.dial_timeout", ErrInvalidInterval)
	}
	if c.Sync.RetryInterval.Duration <= 0 {
		return fmt.Errorf("%w: sync.retry_interval", ErrInvalidInterval)
	}
	if c.Sync.CloseTimeout.Duration <= 0 {
		return fmt.Errorf("%w: sync.close_timeout", ErrInvalidInterval)
	}
	return nil
}
