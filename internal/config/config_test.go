package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	content := `
[server]
url = "wss://sync.example.com/buffers"
dial_timeout = "3s"

[sync]
retry_interval = "250ms"

[journal]
enabled = true
path = "/tmp/acks.db"
`
	path := filepath.Join(t.TempDir(), "bufsync.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.URL != "wss://sync.example.com/buffers" {
		t.Errorf("URL = %q", cfg.Server.URL)
	}
	if cfg.Server.DialTimeout.Duration != 3*time.Second {
		t.Errorf("DialTimeout = %v", cfg.Server.DialTimeout)
	}
	if cfg.Sync.RetryInterval.Duration != 250*time.Millisecond {
		t.Errorf("RetryInterval = %v", cfg.Sync.RetryInterval)
	}
	// Unset fields keep their defaults.
	if cfg.Sync.CloseTimeout.Duration != 5*time.Second {
		t.Errorf("CloseTimeout = %v, want default 5s", cfg.Sync.CloseTimeout)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Path != "/tmp/acks.db" {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"http url", func(c *Config) { c.Server.URL = "http://x" }, ErrInvalidServerURL},
		{"empty url", func(c *Config) { c.Server.URL = "" }, ErrInvalidServerURL},
		{"zero retry", func(c *Config) { c.Sync.RetryInterval.Duration = 0 }, ErrInvalidInterval},
		{"negative dial", func(c *Config) { c.Server.DialTimeout.Duration = -time.Second }, ErrInvalidInterval},
		{"zero close", func(c *Config) { c.Sync.CloseTimeout.Duration = 0 }, ErrInvalidInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_BadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[server\nurl="), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
