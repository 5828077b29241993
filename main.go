// quid builds the call and file-usage tree of a mainframe program from its
// DOCSP and DOCFIC catalogs.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/phobologic/quid/internal/config"
	"github.com/phobologic/quid/internal/logging"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "quid",
		Short:         "Program call and file dependency trees from DOCSP/DOCFIC catalogs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("quid {{.Version}}\n")
	root.PersistentFlags().StringP("config", "c", defaultConfigPath, "configuration file")

	root.AddCommand(
		newBuildCmd(stdout, stderr),
		newServeCmd(stderr),
		newInitCmd(stdout, stderr),
	)
	return root
}

// env is what every command needs once the config is loaded.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func setup(cmd *cobra.Command, stderr io.Writer) (*env, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := logging.New(logging.Config{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		JSON:  cfg.LogFormat == "json",
		Out:   stderr,
	})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, closeLog: closeLog}, nil
}
