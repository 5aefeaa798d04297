package stitch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"loom/internal/blob"
	"loom/internal/config"
	"loom/internal/lease"
	"loom/internal/logging"
	"loom/internal/stitch"
	"loom/internal/testsupport"
)

// stubMediaTools installs ffmpeg/ffprobe stand-ins on PATH. The ffmpeg stub
// writes a marker payload to its final argument; the ffprobe stub reports a
// fixed duration.
func stubMediaTools(t *testing.T) {
	t.Helper()
	binDir := t.TempDir()

	ffmpeg := "#!/bin/sh\nfor arg; do last=\"$arg\"; done\nprintf 'stitched-audio' > \"$last\"\n"
	if err := os.WriteFile(filepath.Join(binDir, "ffmpeg"), []byte(ffmpeg), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	ffprobe := "#!/bin/sh\nprintf '{\"format\":{\"duration\":\"351.2\"}}'\n"
	if err := os.WriteFile(filepath.Join(binDir, "ffprobe"), []byte(ffprobe), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() { _ = os.Setenv("PATH", oldPath) })
}

func seedReadyEpisode(t *testing.T, cfg *config.Config, store *lease.Store, blobs blob.Store, date string) {
	t.Helper()
	ctx := context.Background()
	for _, key := range cfg.Program.RequiredSegments {
		script := lease.SegmentScript{
			EpisodeID:     "ep-" + date,
			SegmentKey:    key,
			Program:       cfg.Program.Slug,
			EpisodeDate:   date,
			ScriptVersion: 1,
			ScriptText:    "script text",
			VoiceID:       "voice-a",
			ModelID:       "model-a",
		}
		job := testsupport.NewPendingJob(t, store, script)
		claim, err := store.Claim(ctx, job.EpisodeID, key, job.Fingerprint(), time.Now())
		if err != nil || claim == nil {
			t.Fatalf("Claim %s: claim=%v err=%v", key, claim, err)
		}
		storagePath := blob.SegmentPath(cfg.Program.Slug, date, key, 1, claim.Job.JobKey)
		if err := blobs.Upload(ctx, storagePath, []byte("segment-audio-"+key)); err != nil {
			t.Fatalf("Upload %s: %v", key, err)
		}
		if err := store.Commit(ctx, job.EpisodeID, key, claim.Job.JobKey, storagePath, 30); err != nil {
			t.Fatalf("Commit %s: %v", key, err)
		}
	}
}

func TestStitchEpisodeProducesArtifact(t *testing.T) {
	stubMediaTools(t)
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewFSStoreFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFSStoreFromConfig: %v", err)
	}
	seedReadyEpisode(t, cfg, store, blobs, "2026-03-02")

	stitcher := stitch.New(cfg, store, blobs, logging.NewNop())
	result, err := stitcher.StitchEpisode(context.Background(), "2026-03-02")
	if err != nil {
		t.Fatalf("StitchEpisode: %v", err)
	}
	if result.StoragePath != "daybreak/episodes/2026-03-02/episode.mp3" {
		t.Fatalf("unexpected storage path %s", result.StoragePath)
	}
	if result.DurationSeconds != 351.2 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds)
	}
	if result.SegmentCount != len(cfg.Program.RequiredSegments) {
		t.Fatalf("unexpected segment count %d", result.SegmentCount)
	}

	payload, err := blobs.Download(context.Background(), result.StoragePath)
	if err != nil {
		t.Fatalf("Download episode: %v", err)
	}
	if string(payload) != "stitched-audio" {
		t.Fatalf("unexpected episode payload %q", payload)
	}
}

func TestStitchEpisodeRefusesIncompleteDate(t *testing.T) {
	stubMediaTools(t)
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewFSStoreFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFSStoreFromConfig: %v", err)
	}

	stitcher := stitch.New(cfg, store, blobs, logging.NewNop())
	_, err = stitcher.StitchEpisode(context.Background(), "2026-03-02")
	if err == nil {
		t.Fatal("expected stitch of empty date to fail")
	}
}

func TestScannerStitchesAndSkipsExisting(t *testing.T) {
	stubMediaTools(t)
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	blobs, err := blob.NewFSStoreFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFSStoreFromConfig: %v", err)
	}
	seedReadyEpisode(t, cfg, store, blobs, "2026-03-02")

	stitcher := stitch.New(cfg, store, blobs, logging.NewNop())
	scanner := stitch.NewScanner(cfg, store, blobs, stitcher, logging.NewNop())

	stitched, err := scanner.RunOnce(context.Background(), "test")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stitched != 1 {
		t.Fatalf("expected one episode stitched, got %d", stitched)
	}

	run, err := store.GetBatchRun(context.Background(), cfg.Program.Slug, "2026-03-02", 1, lease.RunDailyStitch)
	if err != nil {
		t.Fatalf("GetBatchRun: %v", err)
	}
	if run == nil || run.Status != lease.RunCompleted {
		t.Fatalf("expected completed run, got %+v", run)
	}

	// A second pass finds the artifact in place and does nothing.
	stitched, err = scanner.RunOnce(context.Background(), "test")
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if stitched != 0 {
		t.Fatalf("expected no new stitches, got %d", stitched)
	}
}
