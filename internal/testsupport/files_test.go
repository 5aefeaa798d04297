package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAudioFixtureShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures", "segment.mp3")
	WriteAudioFixture(t, path, 64)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if len(data) != 64 {
		t.Fatalf("fixture size = %d, want 64", len(data))
	}
	if !bytes.HasPrefix(data, []byte("ID3")) {
		t.Fatalf("fixture must open with an ID3 tag, got % x", data[:4])
	}
	if data[10] != 0xFF || data[11] != 0xFB {
		t.Fatalf("expected frame-sync filler after the tag, got % x", data[10:12])
	}
}

func TestWriteAudioFixtureMinimumSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.mp3")
	WriteAudioFixture(t, path, 0)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat fixture: %v", err)
	}
	if info.Size() != 1 {
		t.Fatalf("fixture size = %d, want 1", info.Size())
	}
}
