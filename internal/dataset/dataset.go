// Package dataset loads the two catalogs of one environment and indexes
// them.
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/quid/internal/cache"
	"github.com/phobologic/quid/internal/config"
	"github.com/phobologic/quid/internal/index"
	"github.com/phobologic/quid/internal/model"
	"github.com/phobologic/quid/internal/parse"
	"github.com/phobologic/quid/internal/source"
)

// Sentinel errors reported by Validate.
var (
	ErrNoData     = errors.New("no catalog data")
	ErrNoCallData = fmt.Errorf("%w: call catalog (DOCSP) is empty", ErrNoData)
	ErrNoFileData = fmt.Errorf("%w: file catalog (DOCFIC) is empty", ErrNoData)
)

var tracer = otel.Tracer("quid.dataset")

// Dataset is one environment's decoded and indexed catalogs. It is not
// modified after Load returns.
type Dataset struct {
	Environment string
	Calls       []model.CallRecord
	Files       []model.FileRecord
	Index       *index.Index
	LoadedAt    time.Time
}

// Validate reports ErrNoCallData or ErrNoFileData when a catalog decoded to
// nothing. Callers check this before building trees.
func (d *Dataset) Validate() error {
	if len(d.Calls) == 0 {
		return ErrNoCallData
	}
	if len(d.Files) == 0 {
		return ErrNoFileData
	}
	return nil
}

// Observer is told about every load attempt.
type Observer interface {
	ObserveLoad(env string, calls, files int, elapsed time.Duration, err error)
}

// Options tunes a Loader.
type Options struct {
	// UseCache reads catalogs from the cache when a copy exists. Fetched
	// catalogs are saved to the cache either way.
	UseCache bool
	Logger   *slog.Logger
	Observer Observer
}

// Loader produces Datasets.
type Loader struct {
	cfg      *config.Config
	fetcher  source.Fetcher
	store    cache.Store
	useCache bool
	logger   *slog.Logger
	observer Observer
}

// NewLoader returns a Loader. store may be nil to disable caching.
func NewLoader(cfg *config.Config, fetcher source.Fetcher, store cache.Store, opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		useCache: opts.UseCache,
		logger:   logger,
		observer: opts.Observer,
	}
}

// Load fetches both catalogs of envName concurrently, decodes and indexes
// them. Empty catalogs are not an error here; see Dataset.Validate.
func (l *Loader) Load(ctx context.Context, envName string) (*Dataset, error) {
	ctx, span := tracer.Start(ctx, "dataset.Load",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("quid.environment", envName)),
	)
	defer span.End()
	start := time.Now()

	ds, err := l.load(ctx, envName)

	calls, files := 0, 0
	if ds != nil {
		calls, files = len(ds.Calls), len(ds.Files)
	}
	span.SetAttributes(
		attribute.Int("quid.call_records", calls),
		attribute.Int("quid.file_records", files),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if l.observer != nil {
		l.observer.ObserveLoad(strings.ToUpper(envName), calls, files, time.Since(start), err)
	}
	return ds, err
}

func (l *Loader) load(ctx context.Context, envName string) (*Dataset, error) {
	env, err := l.cfg.Environment(envName)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Environment: strings.ToUpper(strings.TrimSpace(envName))}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := l.catalog(gctx, env.DOCSP)
		if err != nil {
			return fmt.Errorf("DOCSP: %w", err)
		}
		ds.Calls, err = parse.Calls(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("DOCSP: %w", err)
		}
		l.logger.Info("loaded call catalog", "environment", ds.Environment, "records", len(ds.Calls))
		return nil
	})
	g.Go(func() error {
		data, err := l.catalog(gctx, env.DOCFIC)
		if err != nil {
			return fmt.Errorf("DOCFIC: %w", err)
		}
		ds.Files, err = parse.Files(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("DOCFIC: %w", err)
		}
		l.logger.Info("loaded file catalog", "environment", ds.Environment, "records", len(ds.Files))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", ds.Environment, err)
	}

	ds.Index = index.Build(ds.Calls, ds.Files)
	ds.LoadedAt = time.Now()

	st := ds.Index.Stats()
	l.logger.Info("catalogs indexed",
		"environment", ds.Environment,
		"call_programs", st.CallPrograms,
		"call_edges", st.CallEdges,
		"file_programs", st.FilePrograms,
		"file_usages", st.FileUsages)
	return ds, nil
}

// catalog returns the raw content of remotePath, from the cache when allowed
// and present, otherwise from the source.
func (l *Loader) catalog(ctx context.Context, remotePath string) ([]byte, error) {
	if strings.TrimSpace(remotePath) == "" {
		return nil, errors.New("catalog path is empty")
	}
	name := cache.Key(remotePath)

	if l.useCache && l.store != nil && l.store.Has(name) {
		data, err := l.store.Load(name)
		if err == nil {
			return data, nil
		}
		l.logger.Error("cache load failed, downloading", "name", name, "error", err)
	}

	data, err := l.fetcher.Fetch(ctx, remotePath)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", remotePath, err)
	}

	if l.store != nil {
		if err := l.store.Save(name, data); err != nil {
			l.logger.Warn("could not cache catalog", "name", name, "error", err)
		}
	}
	return data, nil
}
