package testsupport

import (
	"context"
	"testing"

	"ffui/internal/config"
	"ffui/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedJob persists a job for tests using the provided store.
func SeedJob(t testing.TB, store *queue.Store, job *queue.Job) {
	t.Helper()

	if err := store.Upsert(context.Background(), job); err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
}
