package testsupport

import (
	"testing"

	"captor/internal/config"
	"captor/internal/queue"
	"captor/internal/store"
)

// MustOpenStore opens an entity store for the config and closes it when the
// test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// MustOpenQueue opens a sync queue store for the config and closes it when
// the test finishes.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	q, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() {
		_ = q.Close()
	})
	return q
}
