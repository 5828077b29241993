package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration file",
		Long: `Write a starter configuration file.

path defaults to ./config.yaml. An existing file is never overwritten.
With --dry-run the configuration is printed instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := defaultConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			return runInit(path, dryRun, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the configuration without writing it")
	return cmd
}

func runInit(path string, dryRun bool, stdout, stderr io.Writer) error {
	if dryRun {
		_, _ = fmt.Fprint(stdout, starterConfig)
		return nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s already exists", path)
	}
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.WriteString(starterConfig); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote starter configuration to %s\n", path)
	return nil
}

// starterConfig is written by `quid init`. Every key is shown with its
// default except the environment table and the TDM address.
const starterConfig = `# quid configuration.
#
# Secrets can be left empty here and supplied through the environment
# (or a .env file): QUID_FTP_USER, QUID_FTP_PASSWORD, QUID_TDM_ADDRESS,
# QUID_S3_ACCESS_KEY, QUID_S3_SECRET_KEY.

# Catalog locations per environment. Names are case-insensitive.
Environments:
  DEV:
    DOCSP: "'HLQ.DEV.DOCSP'"
    DOCFIC: "'HLQ.DEV.DOCFIC'"
DefaultEnvironment: DEV

# Where catalogs are retrieved from: ftp, s3 or file.
Source: ftp
TDMAddress: tdm.example.com:21
FTPUser: ""
FTPPassword: ""
FTPTimeout: 30s

# Used when Source is s3.
S3:
  Endpoint: ""
  Region: us-east-1
  Bucket: ""
  UseSSL: true

# Used when Source is file: catalog paths are resolved under this directory.
FileRoot: ""

# Local copies of retrieved catalogs. CacheBackend is dir or badger.
CacheDirectory: cache
CacheBackend: dir

# Expansion stops below this depth. Programs matching StopPrograms
# (gitignore-style patterns such as "ILBO*") are listed but not expanded.
MaxDepth: 10
StopPrograms: []

# LogFile: "" logs to stderr only. LogFormat is text or json.
LogFile: quid.log
LogLevel: info
LogFormat: text

Server:
  Addr: ":8000"
  DatasetCacheSize: 8
  WatchCache: true
`
