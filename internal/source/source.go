// Package source retrieves raw catalog files from where they are published.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phobologic/quid/internal/config"
)

// ErrNotFound is returned when the remote catalog does not exist.
var ErrNotFound = errors.New("catalog not found")

// Fetcher downloads one catalog file.
type Fetcher interface {
	Fetch(ctx context.Context, remotePath string) ([]byte, error)
}

// New returns the Fetcher selected by cfg.Source.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Source {
	case config.SourceFTP:
		return &FTP{
			Addr:     cfg.TDMAddress,
			User:     cfg.FTPUser,
			Password: cfg.FTPPassword,
			Timeout:  cfg.FTPTimeout,
			Logger:   logger,
		}, nil
	case config.SourceS3:
		return NewS3(S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
	case config.SourceFile:
		return &Local{Root: cfg.FileRoot}, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}
