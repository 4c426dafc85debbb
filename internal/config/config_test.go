package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"captor/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Queue.MaxRetries != 3 {
		t.Fatalf("expected max_retries 3, got %d", cfg.Queue.MaxRetries)
	}
	if cfg.Queue.InitialBackoffMS != 5000 {
		t.Fatalf("expected initial backoff 5000ms, got %d", cfg.Queue.InitialBackoffMS)
	}
	if cfg.Calendar.Mode != config.CalendarModeSuggest {
		t.Fatalf("expected suggest mode, got %q", cfg.Calendar.Mode)
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "captor.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[classifier]
base_url = "https://classify.example.com/v2"
api_key = "secret"

[queue]
max_retries = 5
initial_backoff_ms = 1000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Classifier.BaseURL != "https://classify.example.com/v2" {
		t.Fatalf("unexpected classifier base url: %q", cfg.Classifier.BaseURL)
	}
	if cfg.Queue.MaxRetries != 5 {
		t.Fatalf("expected max_retries override, got %d", cfg.Queue.MaxRetries)
	}
	// Unset sections keep defaults.
	if cfg.Queue.BackoffMultiplier != 3 {
		t.Fatalf("expected default multiplier, got %d", cfg.Queue.BackoffMultiplier)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero backoff", func(c *config.Config) { c.Queue.InitialBackoffMS = 0 }},
		{"zero multiplier", func(c *config.Config) { c.Queue.BackoffMultiplier = 0 }},
		{"negative retries", func(c *config.Config) { c.Queue.MaxRetries = -1 }},
		{"bad calendar mode", func(c *config.Config) { c.Calendar.Mode = "always" }},
		{"calendar enabled without url", func(c *config.Config) { c.Calendar.Enabled = true }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDatabasePaths(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = "/tmp/captor-data"
	cfg.Paths.LogDir = "/tmp/captor-logs"
	if got := cfg.DatabasePath(); got != "/tmp/captor-data/captor.db" {
		t.Fatalf("unexpected database path: %q", got)
	}
	if got := cfg.QueueDatabasePath(); got != "/tmp/captor-logs/queue.db" {
		t.Fatalf("unexpected queue database path: %q", got)
	}
}
