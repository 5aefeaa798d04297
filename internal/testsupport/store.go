package testsupport

import (
	"context"
	"testing"

	"loom/internal/config"
	"loom/internal/lease"
)

// MustOpenStore opens a lease.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *lease.Store {
	t.Helper()

	store, err := lease.Open(cfg)
	if err != nil {
		t.Fatalf("lease.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewPendingJob marks a segment script pending for tests using the provided
// store and returns the resulting job.
func NewPendingJob(t testing.TB, store *lease.Store, script lease.SegmentScript) *lease.Job {
	t.Helper()

	if script.Program == "" {
		script.Program = "daybreak"
	}
	if script.ScriptText == "" {
		script.ScriptText = "placeholder script text for tests"
	}
	job, err := store.MarkPending(context.Background(), script)
	if err != nil {
		t.Fatalf("store.MarkPending: %v", err)
	}
	return job
}
