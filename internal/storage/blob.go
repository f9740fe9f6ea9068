package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// blobTempPrefix names in-flight writes.
const blobTempPrefix = ".blob-"

// DiskBlobStore keeps blobs as files under a root directory. Writes go to a
// temporary file in the target directory and are renamed into place, so readers
// never observe partial content.
type DiskBlobStore struct {
	root string
}

// NewDiskBlobStore creates the root directory if needed.
func NewDiskBlobStore(root string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute blob root: %w", err)
	}
	return &DiskBlobStore{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *DiskBlobStore) Root() string {
	return s.root
}

func (s *DiskBlobStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Key returns the blob key for an absolute path under the root.
func (s *DiskBlobStore) Key(path string) (string, bool) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// LocalPath returns the file backing key.
func (s *DiskBlobStore) LocalPath(key string) (string, bool) {
	p, err := s.path(key)
	if err != nil {
		return "", false
	}
	return p, true
}

func (s *DiskBlobStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *DiskBlobStore) Read(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("blob %s: %w", key, ErrNotFound)
	}
	return data, err
}

func (s *DiskBlobStore) Write(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, blobTempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close blob %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename blob %s: %w", key, err)
	}
	return nil
}

func (s *DiskBlobStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeletePrefix removes the directory holding every blob under prefix.
func (s *DiskBlobStore) DeletePrefix(_ context.Context, prefix string) error {
	p, err := s.path(prefix)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

func (s *DiskBlobStore) Size(_ context.Context, key string) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("blob %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
