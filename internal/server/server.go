// Package server serves dependency trees over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/phobologic/quid/internal/cache"
	"github.com/phobologic/quid/internal/config"
	"github.com/phobologic/quid/internal/dataset"
	"github.com/phobologic/quid/internal/graph"
	"github.com/phobologic/quid/internal/metrics"
)

// Loader produces the dataset of one environment.
type Loader interface {
	Load(ctx context.Context, env string) (*dataset.Dataset, error)
}

// Options tunes a Server.
type Options struct {
	Logger *slog.Logger
	// Metrics receives build, load and request observations. May be nil.
	Metrics *metrics.Metrics
	// Gatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server holds loaded datasets and answers dependency requests.
type Server struct {
	cfg      *config.Config
	loader   Loader
	datasets *lru.Cache[string, *dataset.Dataset]
	loads    singleflight.Group
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	// mu guards generation and ownSaves. generation advances on every purge
	// so a load that raced one is served but not kept.
	mu         sync.Mutex
	generation uint64
	ownSaves   map[string]time.Time
}

// New returns a Server. Datasets are loaded lazily on first request.
func New(cfg *config.Config, loader Loader, opts Options) (*Server, error) {
	size := cfg.Server.DatasetCacheSize
	if size < 1 {
		size = 1
	}
	datasets, err := lru.New[string, *dataset.Dataset](size)
	if err != nil {
		return nil, fmt.Errorf("creating dataset cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      cfg,
		loader:   loader,
		datasets: datasets,
		logger:   logger,
		metrics:  opts.Metrics,
		gatherer: gatherer,
		ownSaves: make(map[string]time.Time),
	}, nil
}

// Purge drops every loaded dataset; the next request reloads.
func (s *Server) Purge() {
	s.mu.Lock()
	s.generation++
	n := s.datasets.Len()
	s.datasets.Purge()
	s.mu.Unlock()
	s.logger.Info("dataset cache purged", "datasets", n)
}

// NoteSave records a catalog this process wrote to the watched cache, so the
// watcher does not mistake it for an outside change. It matches the
// cache.DirStore OnSave hook.
func (s *Server) NoteSave(name string, modTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownSaves[name] = modTime
}

// catalogChanged drops the datasets built from the cached catalog name
// unless the file is exactly what this process last saved under that name.
// modTime is ignored when removed is set.
func (s *Server) catalogChanged(name string, modTime time.Time, removed bool) {
	s.mu.Lock()
	if own, ok := s.ownSaves[name]; ok && !removed && own.Equal(modTime) {
		s.mu.Unlock()
		return
	}
	envs := s.environmentsUsing(name)
	if len(envs) == 0 {
		s.mu.Unlock()
		return
	}
	s.generation++
	var dropped []string
	for _, env := range envs {
		if s.datasets.Remove(env) {
			dropped = append(dropped, env)
		}
	}
	s.mu.Unlock()
	s.logger.Info("cached catalog changed", "file", name, "dropped", dropped)
}

// environmentsUsing lists the environments one of whose catalogs is cached
// under name.
func (s *Server) environmentsUsing(name string) []string {
	var envs []string
	for env, e := range s.cfg.Environments {
		if cache.Key(e.DOCSP) == name || cache.Key(e.DOCFIC) == name {
			envs = append(envs, env)
		}
	}
	return envs
}

func (s *Server) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// keep caches ds unless a purge happened since gen was read.
func (s *Server) keep(env string, ds *dataset.Dataset, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.logger.Debug("dataset changed during load, not kept", "environment", env)
		return
	}
	s.datasets.Add(env, ds)
}

// Loaded returns the environments currently held in memory.
func (s *Server) Loaded() []string {
	return s.datasets.Keys()
}

// dataset returns the dataset of env, loading it at most once for any number
// of concurrent callers. The load outlives a cancelled caller since others
// may be waiting on it. Datasets with an empty catalog are not kept.
func (s *Server) dataset(ctx context.Context, env string) (*dataset.Dataset, error) {
	if ds, ok := s.datasets.Get(env); ok {
		return ds, nil
	}
	v, err, _ := s.loads.Do(env, func() (any, error) {
		if ds, ok := s.datasets.Get(env); ok {
			return ds, nil
		}
		gen := s.currentGeneration()
		ds, err := s.loader.Load(context.WithoutCancel(ctx), env)
		if err != nil {
			return nil, err
		}
		if err := ds.Validate(); err != nil {
			return nil, err
		}
		s.keep(env, ds, gen)
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dataset.Dataset), nil
}

func (s *Server) builder(ds *dataset.Dataset) *graph.Builder {
	opts := []graph.Option{
		graph.WithMaxDepth(s.cfg.MaxDepth),
		graph.WithStopPrograms(s.cfg.StopPrograms),
		graph.WithLogger(s.logger),
	}
	if s.metrics != nil {
		opts = append(opts, graph.WithObserver(s.metrics))
	}
	return graph.NewBuilder(ds.Index, opts...)
}

// environment resolves the requested environment name, falling back to the
// configured default.
func (s *Server) environment(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.cfg.DefaultEnvironment
	}
	return strings.ToUpper(name)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
