package audioqa

import (
	"fmt"
	"os"
)

// spillPayload writes the payload to a scratch file for the external
// measurement tools and returns the path plus a cleanup func.
func spillPayload(workDir string, payload []byte) (string, func(), error) {
	tmp, err := os.CreateTemp(workDir, "qa-*.mp3")
	if err != nil {
		return "", nil, fmt.Errorf("qa scratch file: %w", err)
	}
	path := tmp.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("write qa scratch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close qa scratch file: %w", err)
	}
	return path, cleanup, nil
}
