package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FSStore implements Store on a local directory. Each artifact is one file
// named by its reference; O_EXCL creation enforces write-once semantics.
type FSStore struct {
	dir string
}

// NewFSStore creates the backing directory if needed and returns the store.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Put(_ context.Context, data []byte, ext string) (string, error) {
	ref := s.NewRef(ext)
	path := filepath.Join(s.dir, ref)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create artifact %s: %w", ref, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write artifact %s: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close artifact %s: %w", ref, err)
	}
	return ref, nil
}

func (s *FSStore) Get(_ context.Context, ref string) ([]byte, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", ref, err)
	}
	return data, nil
}

func (s *FSStore) Path(ref string) (string, error) {
	// References are flat filenames; reject anything path-like.
	if ref == "" || strings.ContainsAny(ref, `/\`) || strings.Contains(ref, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(s.dir, ref), nil
}

func (s *FSStore) NewRef(ext string) string {
	return uuid.New().String() + ext
}

var _ Store = (*FSStore)(nil)
