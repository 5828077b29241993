// Package cache keeps local copies of retrieved catalog files.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// ErrNotFound is returned by Load when no copy is cached under the name.
var ErrNotFound = errors.New("not cached")

// Store holds catalog files by name. Implementations are safe for
// concurrent use.
type Store interface {
	Has(name string) bool
	Load(name string) ([]byte, error)
	Save(name string, data []byte) error
	Close() error
}

// Open returns the store for backend ("dir" or "badger") rooted at dir.
func Open(backend, dir string, logger *slog.Logger) (Store, error) {
	switch backend {
	case "", "dir":
		return NewDirStore(dir, logger)
	case "badger":
		return OpenBadger(BadgerConfig{Path: dir, SyncWrites: true, Logger: logger})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// Key returns the cache name for a remote catalog path: its base name,
// without the quotes mainframe data set names are written with.
func Key(remotePath string) string {
	p := strings.ReplaceAll(strings.TrimSpace(remotePath), `\`, "/")
	return strings.Trim(path.Base(p), `'"`)
}
