package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/phobologic/quid/internal/cache"
	"github.com/phobologic/quid/internal/dataset"
	"github.com/phobologic/quid/internal/metrics"
	"github.com/phobologic/quid/internal/server"
	"github.com/phobologic/quid/internal/source"
)

func newServeCmd(stderr io.Writer) *cobra.Command {
	var (
		addr     string
		useCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve dependency trees over HTTP",
		Long: `Serve dependency trees over HTTP.

POST /get_dependencies/ with {"program_name": "...", "environment": "..."}
returns the same tree "quid build" writes. Catalogs are loaded on first use
per environment and kept in memory. With the dir cache backend, changes to
the cache directory drop the in-memory copies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, stderr)
			if err != nil {
				return err
			}
			defer e.closeLog()

			if addr == "" {
				addr = e.cfg.Server.Addr
			}

			fetcher, err := source.New(e.cfg, e.logger)
			if err != nil {
				return err
			}
			store, err := cache.Open(e.cfg.CacheBackend, e.cfg.CacheDirectory, e.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			loader := dataset.NewLoader(e.cfg, fetcher, store, dataset.Options{
				UseCache: useCache,
				Logger:   e.logger,
				Observer: m,
			})
			srv, err := server.New(e.cfg, loader, server.Options{
				Logger:   e.logger,
				Metrics:  m,
				Gatherer: reg,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if dir, ok := store.(*cache.DirStore); ok && e.cfg.Server.WatchCache {
				dir.OnSave(srv.NoteSave)
				if err := srv.Watch(ctx, dir.Dir()); err != nil {
					return err
				}
			}
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8000)")
	cmd.Flags().BoolVar(&useCache, "use-cache", true, "read catalogs from the cache when present")
	return cmd
}
