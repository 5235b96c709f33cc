// Package local implements adapters.ObjectStore on the local filesystem,
// grounded on the teacher's FileBlobStore (atomic temp-file+rename puts).
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// Store persists artifacts under a root directory, one file per key.
type Store struct {
	root string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, orcherrors.StorageError(fmt.Errorf("create object store root: %w", err))
	}
	return &Store{root: dir}, nil
}

func (s *Store) keyToPath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", &orcherrors.InvalidInput{Reason: "object store key must not contain path traversal"}
	}
	return filepath.Join(s.root, clean), nil
}

func (s *Store) Put(_ context.Context, key string, r io.Reader) error {
	path, err := s.keyToPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return orcherrors.StorageError(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return orcherrors.StorageError(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return orcherrors.StorageError(err)
	}
	if err := tmp.Close(); err != nil {
		return orcherrors.StorageError(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return orcherrors.StorageError(err)
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.keyToPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &orcherrors.NotFound{ID: key}
		}
		return nil, orcherrors.StorageError(err)
	}
	return f, nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.keyToPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, orcherrors.StorageError(err)
}

func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.keyToPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return orcherrors.StorageError(err)
	}
	return nil
}
