package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store persists uploaded proof files (payment receipts, delivery photos)
// and hands back an opaque reference for the proof_ref columns.
type Store interface {
	Save(name string, r io.Reader) (string, error)
	Open(ref string) (io.ReadCloser, error)
	Delete(ref string) error
}

// FSStore is a filesystem-backed Store. References are relative paths under
// the root directory, namespaced by a random prefix so uploads never collide.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Save writes the file and returns its reference. The original extension is
// kept so clients can infer a content type on download.
func (s *FSStore) Save(name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	ref := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(s.root, ref))
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	return ref, nil
}

// Open returns the stored file for a reference. The reference is validated
// against path traversal before touching the filesystem.
func (s *FSStore) Open(ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *FSStore) Delete(ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *FSStore) resolve(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) {
		return "", fmt.Errorf("invalid blob reference %q", ref)
	}
	return filepath.Join(s.root, ref), nil
}
