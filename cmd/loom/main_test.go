package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"loom/internal/blob"
	"loom/internal/config"
	"loom/internal/lease"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
storage_dir = %q
work_dir = %q

[tts]
api_key = "test"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "storage"),
		filepath.Join(base, "work"),
	)
	path := filepath.Join(base, "loom.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestStatusCommandEmptyStore(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out := runCommand(t, "--config", cfgPath, "status")
	if !strings.Contains(out, "Program: daybreak") {
		t.Fatalf("expected program header, got:\n%s", out)
	}
	if !strings.Contains(out, "Pending") || !strings.Contains(out, "Total") {
		t.Fatalf("expected stats table, got:\n%s", out)
	}
}

func TestJobsListEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out := runCommand(t, "--config", cfgPath, "jobs", "list")
	if !strings.Contains(out, "No jobs found.") {
		t.Fatalf("expected empty message, got:\n%s", out)
	}
}

func TestJobsListRejectsUnknownStatus(t *testing.T) {
	cfgPath := writeTestConfig(t)
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "jobs", "list", "--status", "bogus"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestConfigShow(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out := runCommand(t, "--config", cfgPath, "config", "show")
	if !strings.Contains(out, cfgPath) {
		t.Fatalf("expected resolved path in output, got:\n%s", out)
	}
	if !strings.Contains(out, "intro, main_themes, closing") {
		t.Fatalf("expected segment list, got:\n%s", out)
	}
}

// stubStitchTools installs an ffmpeg stand-in that writes a marker payload to
// its output argument and an ffprobe reporting a fixed duration.
func stubStitchTools(t *testing.T) {
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

func TestStitchCommandLogsProgress(t *testing.T) {
	stubStitchTools(t)
	cfgPath := writeTestConfig(t)

	cfg, _, _, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := lease.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	blobs, err := blob.NewFSStoreFromConfig(cfg)
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	ctx := context.Background()
	for _, key := range cfg.Program.RequiredSegments {
		script := lease.SegmentScript{
			EpisodeID:     "ep-1",
			SegmentKey:    key,
			Program:       cfg.Program.Slug,
			EpisodeDate:   "2026-03-02",
			ScriptVersion: 1,
			ScriptText:    "Good morning and welcome to the show.",
			VoiceID:       "voice-a",
			ModelID:       "model-a",
		}
		job, err := store.MarkPending(ctx, script)
		if err != nil {
			t.Fatalf("MarkPending %s: %v", key, err)
		}
		claim, err := store.Claim(ctx, job.EpisodeID, key, job.Fingerprint(), time.Now())
		if err != nil {
			t.Fatalf("Claim %s: %v", key, err)
		}
		if claim == nil {
			t.Fatalf("expected claim for %s", key)
		}
		path := blob.SegmentPath(cfg.Program.Slug, "2026-03-02", key, 1, claim.Job.JobKey)
		if err := blobs.Upload(ctx, path, []byte("segment-audio")); err != nil {
			t.Fatalf("Upload %s: %v", key, err)
		}
		if err := store.Commit(ctx, job.EpisodeID, key, claim.Job.JobKey, path, 42); err != nil {
			t.Fatalf("Commit %s: %v", key, err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	out := runCommand(t, "--config", cfgPath, "stitch", "2026-03-02")
	if !strings.Contains(out, "Stitched 2026-03-02") {
		t.Fatalf("expected stitch summary, got:\n%s", out)
	}

	logData, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "loom.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(logData), "episode stitched") {
		t.Fatalf("expected stitch progress in log, got:\n%s", logData)
	}
}

func TestSegmentDisplayName(t *testing.T) {
	cases := map[string]string{
		"intro":       "Intro",
		"main_themes": "Main Themes",
		"closing":     "Closing",
	}
	for key, want := range cases {
		if got := segmentDisplayName(key); got != want {
			t.Errorf("segmentDisplayName(%q) = %q, want %q", key, got, want)
		}
	}
}
