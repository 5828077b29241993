package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DirStore keeps one file per catalog in a directory.
type DirStore struct {
	dir    string
	logger *slog.Logger
	onSave func(name string, modTime time.Time)
}

// NewDirStore creates dir if needed and returns a store over it.
func NewDirStore(dir string, logger *slog.Logger) (*DirStore, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("cache directory ready", "dir", dir)
	return &DirStore{dir: dir, logger: logger}, nil
}

// OnSave registers fn to be told the name and modification time of every
// file Save is about to put in place. Register before the store is shared.
func (s *DirStore) OnSave(fn func(name string, modTime time.Time)) {
	s.onSave = fn
}

// Dir returns the cache directory.
func (s *DirStore) Dir() string { return s.dir }

func (s *DirStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Has reports whether a regular file is cached under name.
func (s *DirStore) Has(name string) bool {
	fi, err := os.Stat(s.path(name))
	found := err == nil && fi.Mode().IsRegular()
	s.logger.Debug("cache check", "name", name, "found", found)
	return found
}

// Load returns the cached content of name.
func (s *DirStore) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s from cache: %w", name, err)
	}
	s.logger.Info("loaded from cache", "name", name, "bytes", len(data))
	return data, nil
}

// Save writes data under name, replacing any previous copy atomically.
func (s *DirStore) Save(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".quid-*")
	if err != nil {
		return fmt.Errorf("saving %s to cache: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("saving %s to cache: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving %s to cache: %w", name, err)
	}
	// The rename keeps the temp file's modification time.
	if s.onSave != nil {
		if fi, err := os.Stat(tmp.Name()); err == nil {
			s.onSave(filepath.Base(name), fi.ModTime())
		}
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("saving %s to cache: %w", name, err)
	}
	s.logger.Info("saved to cache", "name", name, "bytes", len(data))
	return nil
}

// Close is a no-op.
func (s *DirStore) Close() error { return nil }
