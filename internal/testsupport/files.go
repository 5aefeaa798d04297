package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// mp3Tag is a minimal empty ID3v2.3 header, enough for tools that sniff the
// container before reading frames.
var mp3Tag = []byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0, 0}

// WriteAudioFixture fills the target path with the requested number of bytes
// shaped like the MP3 captures the synthesis service returns: an ID3v2 tag
// followed by MPEG frame-sync filler. A size <= 0 writes a single byte.
func WriteAudioFixture(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	payload := make([]byte, size)
	offset := copy(payload, mp3Tag)
	for i := offset; i < len(payload); i += 2 {
		payload[i] = 0xFF
		if i+1 < len(payload) {
			payload[i+1] = 0xFB
		}
	}

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
