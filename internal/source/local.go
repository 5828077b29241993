package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Local reads catalogs from a directory, for exports copied by hand and
// for tests. Remote paths resolve inside Root.
type Local struct {
	Root string
}

// Fetch reads the file at remotePath under Root.
func (l *Local) Fetch(ctx context.Context, remotePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := filepath.Join(l.Root, filepath.Clean(string(filepath.Separator)+remotePath))
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", remotePath, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", remotePath, err)
	}
	return data, nil
}
