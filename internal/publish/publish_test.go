package publish_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"loom/internal/blob"
	"loom/internal/lease"
	"loom/internal/publish"
	"loom/internal/testsupport"
)

func TestAssertPublishableAggregatesBlockers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewFSStoreFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFSStoreFromConfig: %v", err)
	}
	ctx := context.Background()

	// intro ready, main_themes pending, closing absent, no episode artifact.
	intro := testsupport.NewPendingJob(t, store, lease.SegmentScript{
		EpisodeID: "ep-1", SegmentKey: "intro", EpisodeDate: "2026-03-02",
		VoiceID: "voice-a", ModelID: "model-a",
	})
	claim, err := store.Claim(ctx, "ep-1", "intro", intro.Fingerprint(), time.Now())
	if err != nil || claim == nil {
		t.Fatalf("Claim: claim=%v err=%v", claim, err)
	}
	if err := store.Commit(ctx, "ep-1", "intro", claim.Job.JobKey, "daybreak/a.mp3", 20); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	testsupport.NewPendingJob(t, store, lease.SegmentScript{
		EpisodeID: "ep-1", SegmentKey: "main_themes", EpisodeDate: "2026-03-02",
		VoiceID: "voice-a", ModelID: "model-a",
	})

	gate := publish.NewGate(cfg, store, blobs)
	err = gate.AssertPublishable(ctx, "2026-03-02")

	var notReady *publish.NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("expected NotReadyError, got %v", err)
	}
	if len(notReady.MissingSegments) != 1 || notReady.MissingSegments[0] != "closing" {
		t.Fatalf("unexpected missing %v", notReady.MissingSegments)
	}
	if len(notReady.SegmentsNotDone) != 1 || !strings.HasPrefix(notReady.SegmentsNotDone[0], "main_themes") {
		t.Fatalf("unexpected not-done %v", notReady.SegmentsNotDone)
	}
	if !notReady.ArtifactMissing {
		t.Fatal("expected artifact missing")
	}
	msg := err.Error()
	for _, want := range []string{"closing", "main_themes", "artifact"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error must mention %q: %s", want, msg)
		}
	}
}

func TestAssertPublishablePasses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewFSStoreFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFSStoreFromConfig: %v", err)
	}
	ctx := context.Background()

	for _, key := range cfg.Program.RequiredSegments {
		job := testsupport.NewPendingJob(t, store, lease.SegmentScript{
			EpisodeID: "ep-1", SegmentKey: key, EpisodeDate: "2026-03-02",
			VoiceID: "voice-a", ModelID: "model-a",
		})
		claim, err := store.Claim(ctx, "ep-1", key, job.Fingerprint(), time.Now())
		if err != nil || claim == nil {
			t.Fatalf("Claim %s: claim=%v err=%v", key, claim, err)
		}
		if err := store.Commit(ctx, "ep-1", key, claim.Job.JobKey, "daybreak/"+key+".mp3", 30); err != nil {
			t.Fatalf("Commit %s: %v", key, err)
		}
	}
	episodePath := blob.EpisodePath(cfg.Program.Slug, "2026-03-02")
	if err := blobs.Upload(ctx, episodePath, []byte("episode")); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	gate := publish.NewGate(cfg, store, blobs)
	if err := gate.AssertPublishable(ctx, "2026-03-02"); err != nil {
		t.Fatalf("expected publishable, got %v", err)
	}
}
