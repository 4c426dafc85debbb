package testsupport

import (
	"path/filepath"
	"testing"

	"captor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Classifier.BaseURL = "http://127.0.0.1:0"
	cfg.Classifier.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithClassifierURL points the classifier client at a test server.
func WithClassifierURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Classifier.BaseURL = url
	}
}

// WithCalendar enables calendar sync in the given mode.
func WithCalendar(mode string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Calendar.Enabled = true
		cfg.Calendar.Mode = mode
	}
}
