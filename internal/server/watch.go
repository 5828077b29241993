package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch drops loaded datasets whenever one of their cached catalogs in dir is
// written, created, removed or renamed by someone other than this process.
// Saves reported through NoteSave and hidden temp files are ignored. It
// returns once the watch is established; watching stops when ctx is
// cancelled.
func (s *Server) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	s.logger.Info("watching catalog cache", "dir", dir)

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
					ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					s.logger.Debug("catalog cache changed", "file", ev.Name, "op", ev.Op.String())
					s.cacheFileChanged(ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("cache watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (s *Server) cacheFileChanged(path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return
	}
	var modTime time.Time
	fi, err := os.Stat(path)
	switch {
	case err == nil:
		modTime = fi.ModTime()
	case errors.Is(err, fs.ErrNotExist):
	default:
		s.logger.Warn("checking changed cache file", "file", path, "error", err)
	}
	s.catalogChanged(name, modTime, err != nil)
}
