package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/worker"
)

// envPrefix prefixes every environment variable read by the binary.
const envPrefix = "SHELLCACHE_"

// Config holds the shellcache command configuration. Environment variables
// are read first; flags override them.
type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	Origin   string `env:"ORIGIN"`
	Version  string `env:"VERSION" envDefault:"dev"`
	BasePath string `env:"BASE_PATH" envDefault:"/"`

	// ManifestPath points at an optional YAML shell manifest.
	ManifestPath string `env:"MANIFEST"`

	// StoragePath selects the persistent sqlite store. Empty keeps
	// partitions in memory.
	StoragePath   string `env:"STORAGE_PATH"`
	MemoryMaxSize int64  `env:"MEMORY_MAX_BYTES"`

	WriteMode          string        `env:"WRITE_MODE" envDefault:"await"`
	FetchTimeout       time.Duration `env:"FETCH_TIMEOUT"`
	InstallConcurrency int           `env:"INSTALL_CONCURRENCY" envDefault:"4"`
	InstallAttempts    int           `env:"INSTALL_ATTEMPTS" envDefault:"3"`
	SkipWaiting        bool          `env:"SKIP_WAITING" envDefault:"true"`

	BreakerMaxFailures int           `env:"BREAKER_MAX_FAILURES" envDefault:"5"`
	BreakerReset       time.Duration `env:"BREAKER_RESET" envDefault:"30s"`
	UpstreamMaxActive  int           `env:"UPSTREAM_MAX_CONCURRENT" envDefault:"64"`

	LogLevel        string  `env:"LOG_LEVEL" envDefault:"info"`
	TracingExporter string  `env:"TRACING_EXPORTER" envDefault:"none"`
	TraceSamplePct  float64 `env:"TRACE_SAMPLE_PCT" envDefault:"1"`
	MetricsExporter string  `env:"METRICS_EXPORTER" envDefault:"prometheus"`

	AdminJWTSecret    string   `env:"ADMIN_JWT_SECRET"`
	AdminJWTIssuer    string   `env:"ADMIN_JWT_ISSUER"`
	AdminAPIKeyHashes []string `env:"ADMIN_API_KEY_HASHES" envSeparator:","`
	AdminRole         string   `env:"ADMIN_ROLE"`
}

// ParseConfig loads environment variables from environ, then parses args
// into fs on top of them.
func ParseConfig(fs *flag.FlagSet, args []string, environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "upstream origin URL")
	fs.StringVar(&cfg.Version, "version", cfg.Version, "controller version tag")
	fs.StringVar(&cfg.BasePath, "base-path", cfg.BasePath, "deployment base path")
	fs.StringVar(&cfg.ManifestPath, "manifest", cfg.ManifestPath, "path to a YAML shell manifest")
	fs.StringVar(&cfg.StoragePath, "storage", cfg.StoragePath, "sqlite database path (empty: in memory)")
	fs.StringVar(&cfg.WriteMode, "write-mode", cfg.WriteMode, "write-through mode: await or best-effort")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "per-request network timeout (0: none)")
	fs.BoolVar(&cfg.SkipWaiting, "skip-waiting", cfg.SkipWaiting, "activate new versions right after install")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.TracingExporter, "tracing-exporter", cfg.TracingExporter, "trace exporter: otlp, jaeger, stdout, none")
	fs.StringVar(&cfg.MetricsExporter, "metrics-exporter", cfg.MetricsExporter, "metrics exporter: otlp, prometheus, stdout, none")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Origin) == "" {
		return errors.New("origin is required (-origin or SHELLCACHE_ORIGIN)")
	}
	if _, err := cache.ParseWriteMode(c.WriteMode); err != nil {
		return err
	}
	if c.FetchTimeout < 0 {
		return errors.New("fetch timeout must be >= 0")
	}
	return nil
}

// Manifest is the YAML shell manifest. Empty fields keep the values derived
// from the base path.
type Manifest struct {
	Version         string   `yaml:"version"`
	BasePath        string   `yaml:"base_path"`
	Shell           []string `yaml:"shell"`
	RootDocument    string   `yaml:"root_document"`
	OfflineDocument string   `yaml:"offline_document"`
	Manifest        string   `yaml:"manifest"`
	Icon            string   `yaml:"icon"`
	Placeholder     string   `yaml:"placeholder"`
	AssetPrefix     string   `yaml:"asset_prefix"`
	UploadPrefix    string   `yaml:"upload_prefix"`
	WriteMode       string   `yaml:"write_mode"`
}

// LoadManifest reads a YAML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// WorkerConfig builds the controller configuration. Manifest values win over
// the environment for the layout fields they set.
func (c Config) WorkerConfig(m *Manifest) (worker.Config, error) {
	if m == nil {
		m = &Manifest{}
	}
	version := firstNonEmpty(m.Version, c.Version)
	base := firstNonEmpty(m.BasePath, c.BasePath)

	cfg := worker.DefaultConfig(base, version)
	setIfNotEmpty(&cfg.RootDocument, m.RootDocument)
	setIfNotEmpty(&cfg.OfflineDocument, m.OfflineDocument)
	setIfNotEmpty(&cfg.Manifest, m.Manifest)
	setIfNotEmpty(&cfg.Icon, m.Icon)
	setIfNotEmpty(&cfg.Placeholder, m.Placeholder)
	setIfNotEmpty(&cfg.AssetPrefix, m.AssetPrefix)
	setIfNotEmpty(&cfg.UploadPrefix, m.UploadPrefix)
	if len(m.Shell) > 0 {
		cfg.ShellURLs = append([]string(nil), m.Shell...)
	}

	mode, err := cache.ParseWriteMode(firstNonEmpty(m.WriteMode, c.WriteMode))
	if err != nil {
		return worker.Config{}, err
	}
	cfg.WriteMode = mode
	cfg.FetchTimeout = c.FetchTimeout
	cfg.SkipWaiting = c.SkipWaiting
	if c.InstallConcurrency > 0 {
		cfg.InstallConcurrency = c.InstallConcurrency
	}
	if c.InstallAttempts > 0 {
		cfg.InstallAttempts = c.InstallAttempts
	}

	if err := cfg.Validate(); err != nil {
		return worker.Config{}, err
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func setIfNotEmpty(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
