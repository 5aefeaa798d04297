package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"loom/internal/config"
)

// FSStore keeps artifacts on the local filesystem under a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at the given directory.
func NewFSStore(root string) (*FSStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("blob store root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// NewFSStoreFromConfig roots the store at the configured storage directory.
func NewFSStoreFromConfig(cfg *config.Config) (*FSStore, error) {
	return NewFSStore(cfg.Paths.StorageDir)
}

// Root returns the directory backing the store.
func (s *FSStore) Root() string {
	return s.root
}

func (s *FSStore) resolve(storagePath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(storagePath))
	if cleaned == "." || cleaned == "" || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage path %q", storagePath)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Upload writes the payload under the storage path, replacing any existing
// artifact. The write lands in a temp file first so readers never observe a
// partial artifact.
func (s *FSStore) Upload(ctx context.Context, storagePath string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(storagePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create upload temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

// Download reads an artifact. A missing path returns ErrNotFound and an
// empty artifact is treated as corrupt.
func (s *FSStore) Download(ctx context.Context, storagePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("artifact %s is empty", storagePath)
	}
	return payload, nil
}

// Exists reports whether an artifact is present at the storage path.
func (s *FSStore) Exists(ctx context.Context, storagePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	target, err := s.resolve(storagePath)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat artifact: %w", err)
	}
	return !info.IsDir(), nil
}
