// Package config loads quid's configuration file.
//
// The file is YAML. Since YAML is a superset of JSON, a legacy config.json
// (Environments, TDMAddress, FTPUser, FTPPassword, CacheDirectory) loads
// unchanged. A .env file in the working directory and
// QUID_* environment variables override secrets and addresses.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/quid/internal/graph"
)

// ErrUnknownEnvironment is returned for an environment missing from the
// Environments table.
var ErrUnknownEnvironment = errors.New("unknown environment")

// Catalog sources.
const (
	SourceFTP  = "ftp"
	SourceS3   = "s3"
	SourceFile = "file"
)

// Cache backends.
const (
	CacheDir    = "dir"
	CacheBadger = "badger"
)

// Config is the full configuration.
type Config struct {
	Environments       map[string]Environment `yaml:"Environments" validate:"required,min=1,dive"`
	DefaultEnvironment string                 `yaml:"DefaultEnvironment"`

	Source      string        `yaml:"Source" validate:"oneof=ftp s3 file"`
	TDMAddress  string        `yaml:"TDMAddress" validate:"required_if=Source ftp"`
	FTPUser     string        `yaml:"FTPUser"`
	FTPPassword string        `yaml:"FTPPassword"`
	FTPTimeout  time.Duration `yaml:"FTPTimeout" validate:"gte=0"`
	S3          S3            `yaml:"S3"`
	FileRoot    string        `yaml:"FileRoot" validate:"required_if=Source file"`

	CacheDirectory string `yaml:"CacheDirectory" validate:"required"`
	CacheBackend   string `yaml:"CacheBackend" validate:"oneof=dir badger"`

	MaxDepth     int      `yaml:"MaxDepth" validate:"gte=0"`
	StopPrograms []string `yaml:"StopPrograms"`

	LogFile   string `yaml:"LogFile"`
	LogLevel  string `yaml:"LogLevel" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"LogFormat" validate:"oneof=text json"`

	Server Server `yaml:"Server"`
}

// Environment locates the two catalogs of one environment on the source.
type Environment struct {
	DOCSP  string `yaml:"DOCSP" validate:"required"`
	DOCFIC string `yaml:"DOCFIC" validate:"required"`
}

// S3 configures the S3-compatible catalog source.
type S3 struct {
	Endpoint  string `yaml:"Endpoint"`
	Region    string `yaml:"Region"`
	AccessKey string `yaml:"AccessKey"`
	SecretKey string `yaml:"SecretKey"`
	Bucket    string `yaml:"Bucket"`
	UseSSL    bool   `yaml:"UseSSL"`
}

// Server configures `quid serve`.
type Server struct {
	Addr             string `yaml:"Addr" validate:"required"`
	DatasetCacheSize int    `yaml:"DatasetCacheSize" validate:"gte=1"`
	WatchCache       bool   `yaml:"WatchCache"`
}

var validate = validator.New()

// Default returns the configuration used for every key the file omits.
func Default() *Config {
	return &Config{
		Environments:       map[string]Environment{},
		DefaultEnvironment: "DEV",
		Source:             SourceFTP,
		FTPTimeout:         30 * time.Second,
		S3:                 S3{Region: "us-east-1", UseSSL: true},
		CacheDirectory:     "cache",
		CacheBackend:       CacheDir,
		MaxDepth:           graph.DefaultMaxDepth,
		LogFile:            "quid.log",
		LogLevel:           "info",
		LogFormat:          "text",
		Server: Server{
			Addr:             ":8000",
			DatasetCacheSize: 8,
			WatchCache:       true,
		},
	}
}

// Load reads the file at path, applies .env and QUID_* overrides and
// validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over Default, applies QUID_* overrides and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.TDMAddress = firstNonEmpty(os.Getenv("QUID_TDM_ADDRESS"), c.TDMAddress)
	c.FTPUser = firstNonEmpty(os.Getenv("QUID_FTP_USER"), c.FTPUser)
	c.FTPPassword = firstNonEmpty(os.Getenv("QUID_FTP_PASSWORD"), c.FTPPassword)
	c.CacheDirectory = firstNonEmpty(os.Getenv("QUID_CACHE_DIR"), c.CacheDirectory)
	c.S3.Endpoint = firstNonEmpty(os.Getenv("QUID_S3_ENDPOINT"), c.S3.Endpoint)
	c.S3.AccessKey = firstNonEmpty(os.Getenv("QUID_S3_ACCESS_KEY"), c.S3.AccessKey)
	c.S3.SecretKey = firstNonEmpty(os.Getenv("QUID_S3_SECRET_KEY"), c.S3.SecretKey)
}

func (c *Config) normalize() {
	envs := make(map[string]Environment, len(c.Environments))
	for name, env := range c.Environments {
		envs[strings.ToUpper(strings.TrimSpace(name))] = env
	}
	c.Environments = envs
	c.DefaultEnvironment = strings.ToUpper(strings.TrimSpace(c.DefaultEnvironment))
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Source == SourceS3 {
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return errors.New("invalid config: S3 source requires S3.Endpoint and S3.Bucket")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return errors.New("invalid config: S3 source requires S3.AccessKey and S3.SecretKey")
		}
	}
	return nil
}

// Environment returns the catalog locations for name, matched
// case-insensitively.
func (c *Config) Environment(name string) (Environment, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	env, ok := c.Environments[key]
	if !ok {
		return Environment{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownEnvironment, name,
			strings.Join(c.EnvironmentNames(), ", "))
	}
	return env, nil
}

// EnvironmentNames returns the configured environment names, sorted.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
