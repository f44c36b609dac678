package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalStore persists uploaded book files on disk under a content root.
// Stored names are always relative to the root.
type LocalStore struct {
	baseDir string
}

// NewLocalStore ensures the content root exists and returns a handle.
// Creation is recursive and idempotent.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create content directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// SaveStream copies from reader into the named file and returns the stored
// relative name.
func (s *LocalStore) SaveStream(filename string, r io.Reader) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare content directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create content file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("write content stream: %w", err)
	}
	return filename, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStore) Open(filename string) (*os.File, error) {
	file, err := os.Open(s.resolve(filename))
	if err != nil {
		return nil, fmt.Errorf("open content file: %w", err)
	}
	return file, nil
}

// Exists reports whether a stored file is present.
func (s *LocalStore) Exists(filename string) bool {
	info, err := os.Stat(s.resolve(filename))
	return err == nil && !info.IsDir()
}

// Delete removes a stored file. A missing file is not an error: deletion is
// best-effort and a file already gone counts as handled.
func (s *LocalStore) Delete(filename string) error {
	if err := os.Remove(s.resolve(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete content file: %w", err)
	}
	return nil
}

// List returns the relative names of every stored file.
func (s *LocalStore) List() ([]string, error) {
	names := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list content files: %w", err)
	}
	return names, nil
}

// SweepOrphans deletes every stored file for which keep returns false and
// returns the removed names. Used to reconcile files orphaned by a crash
// between the file write and the catalog insert. Files younger than minAge
// are skipped so an upload currently between its two writes is never
// reaped.
func (s *LocalStore) SweepOrphans(minAge time.Duration, keep func(name string) bool) ([]string, error) {
	cutoff := time.Now().Add(-minAge)
	removed := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if keep(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := s.Delete(name); err != nil {
			return err
		}
		removed = append(removed, name)
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep content files: %w", err)
	}
	return removed, nil
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *LocalStore) Path(filename string) string {
	return s.resolve(filename)
}

func (s *LocalStore) resolve(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(s.baseDir, filename)
}
