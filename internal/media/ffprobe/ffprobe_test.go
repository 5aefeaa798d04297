package ffprobe_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"loom/internal/media/ffprobe"
	"loom/internal/testsupport"
)

func stubFFprobe(t *testing.T, output string) {
	t.Helper()
	binDir := t.TempDir()
	script := "#!/bin/sh\nprintf '" + output + "'\n"
	if err := os.WriteFile(filepath.Join(binDir, "ffprobe"), []byte(script), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() { _ = os.Setenv("PATH", oldPath) })
}

func TestFileDuration(t *testing.T) {
	stubFFprobe(t, `{"format":{"duration":"42.5","size":"120000"}}`)

	input := filepath.Join(t.TempDir(), "segment.mp3")
	testsupport.WriteAudioFixture(t, input, 2048)

	duration, err := ffprobe.FileDuration(context.Background(), "ffprobe", input)
	if err != nil {
		t.Fatalf("FileDuration: %v", err)
	}
	if duration != 42.5 {
		t.Fatalf("duration = %v, want 42.5", duration)
	}
}

func TestFileDurationRejectsMissingDuration(t *testing.T) {
	stubFFprobe(t, `{"format":{"size":"120000"}}`)

	input := filepath.Join(t.TempDir(), "segment.mp3")
	testsupport.WriteAudioFixture(t, input, 2048)

	if _, err := ffprobe.FileDuration(context.Background(), "ffprobe", input); err == nil {
		t.Fatal("expected error when ffprobe reports no duration")
	}
}

func TestPayloadDuration(t *testing.T) {
	stubFFprobe(t, `{"format":{"duration":"12.0"}}`)

	workDir := t.TempDir()
	duration, err := ffprobe.PayloadDuration(context.Background(), "ffprobe", workDir, []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("PayloadDuration: %v", err)
	}
	if duration != 12.0 {
		t.Fatalf("duration = %v, want 12", duration)
	}

	// Scratch files are cleaned up.
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read workdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty workdir, found %d entries", len(entries))
	}
}

func TestPayloadDurationRejectsEmptyPayload(t *testing.T) {
	if _, err := ffprobe.PayloadDuration(context.Background(), "ffprobe", t.TempDir(), nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
