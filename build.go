package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/quid/internal/cache"
	"github.com/phobologic/quid/internal/dataset"
	"github.com/phobologic/quid/internal/graph"
	"github.com/phobologic/quid/internal/model"
	"github.com/phobologic/quid/internal/source"
	"github.com/phobologic/quid/internal/toon"
)

type buildOptions struct {
	environment string
	program     string
	output      string
	format      string
	useCache    bool
	maxDepth    int
}

func newBuildCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the dependency tree of one program",
		Long: `Build the dependency tree of one program.

Both catalogs of the environment are retrieved (or read from the cache with
--use-cache), the program's calls are expanded recursively and every node is
annotated with the files it uses. The tree is written to ./<PROGRAM>.json
unless -o is given; -o - writes to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.environment, "environment", "e", "", "environment whose catalogs to use")
	f.StringVarP(&opts.program, "program", "p", "", "root program name")
	f.StringVarP(&opts.output, "output", "o", "", "output path, - for stdout (default ./<PROGRAM>.<format>)")
	f.StringVar(&opts.format, "format", "json", "output format: json or toon")
	f.BoolVar(&opts.useCache, "use-cache", false, "read catalogs from the cache when present")
	f.IntVar(&opts.maxDepth, "max-depth", -1, "maximum expansion depth (default from config)")
	_ = cmd.MarkFlagRequired("environment")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func runBuild(cmd *cobra.Command, opts buildOptions, stdout, stderr io.Writer) error {
	format := strings.ToLower(opts.format)
	if format != "json" && format != "toon" {
		return fmt.Errorf("unsupported format %q (want json or toon)", opts.format)
	}
	program := strings.TrimSpace(opts.program)
	if program == "" {
		return fmt.Errorf("program name is empty")
	}

	e, err := setup(cmd, stderr)
	if err != nil {
		return err
	}
	defer e.closeLog()

	fetcher, err := source.New(e.cfg, e.logger)
	if err != nil {
		return err
	}
	store, err := cache.Open(e.cfg.CacheBackend, e.cfg.CacheDirectory, e.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	loader := dataset.NewLoader(e.cfg, fetcher, store, dataset.Options{
		UseCache: opts.useCache,
		Logger:   e.logger,
	})
	ds, err := loader.Load(cmd.Context(), opts.environment)
	if err != nil {
		return err
	}
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("environment %s: %w", ds.Environment, err)
	}

	maxDepth := e.cfg.MaxDepth
	if opts.maxDepth >= 0 {
		maxDepth = opts.maxDepth
	}
	builder := graph.NewBuilder(ds.Index,
		graph.WithMaxDepth(maxDepth),
		graph.WithStopPrograms(e.cfg.StopPrograms),
		graph.WithLogger(e.logger),
	)
	tree := builder.Build(cmd.Context(), program)

	data, err := encode(tree, format)
	if err != nil {
		return err
	}

	out := opts.output
	if out == "" {
		out = program + "." + format
	}
	if out == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	e.logger.Info("tree written",
		"program", program,
		"path", out,
		"nodes", tree.Size(),
		"max_depth", builder.MaxDepth())
	return nil
}

func encode(tree *model.CallNode, format string) ([]byte, error) {
	if format == "toon" {
		return []byte(toon.Encode(tree)), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("encoding tree: %w", err)
	}
	return buf.Bytes(), nil
}
