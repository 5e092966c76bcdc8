package worker

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/shellcache/cache"
)

// Default partition prefixes.
const (
	DefaultShellPrefix   = "lph-shell-"
	DefaultRuntimePrefix = "lph-runtime-"
)

// Config describes one controller version. All paths are absolute.
type Config struct {
	// Version is embedded in both partition names. Bumping it is the only
	// cache invalidation mechanism.
	Version string

	// BasePath is the deployment base path, e.g. "/app/".
	BasePath string

	// ShellPrefix and RuntimePrefix build the partition names.
	// Default: "lph-shell-" and "lph-runtime-"
	ShellPrefix   string
	RuntimePrefix string

	// RootDocument is the key all navigations collapse to.
	RootDocument string
	// OfflineDocument is the last-resort document.
	OfflineDocument string
	Manifest        string
	Icon            string
	// Placeholder is served for media that is neither online nor cached.
	Placeholder string

	// ShellURLs is the install list. Default: base, root, offline,
	// manifest, icon, placeholder.
	ShellURLs []string

	// AssetPrefix identifies content-hashed build output.
	AssetPrefix string
	// UploadPrefix identifies user-uploaded media.
	UploadPrefix string

	// WriteMode selects awaited or background write-through.
	// Default: cache.WriteAwait
	WriteMode cache.WriteMode

	// FetchTimeout bounds each network call on the request path. A timeout
	// counts as a network failure. Zero means no timeout.
	FetchTimeout time.Duration

	// InstallConcurrency caps parallel shell fetches.
	// Default: 4
	InstallConcurrency int

	// InstallAttempts is the number of tries per shell resource.
	// Default: 1
	InstallAttempts int

	// SkipWaiting activates the controller right after install.
	SkipWaiting bool
}

// DefaultConfig derives the layout under basePath for version.
func DefaultConfig(basePath, version string) Config {
	base := normalizeBase(basePath)
	cfg := Config{
		Version:            version,
		BasePath:           base,
		ShellPrefix:        DefaultShellPrefix,
		RuntimePrefix:      DefaultRuntimePrefix,
		RootDocument:       base + "index.html",
		OfflineDocument:    base + "offline.html",
		Manifest:           base + "manifest.webmanifest",
		Icon:               base + "icon-192.png",
		Placeholder:        base + "placeholder.svg",
		AssetPrefix:        base + "assets/",
		UploadPrefix:       base + "uploads/",
		WriteMode:          cache.WriteAwait,
		InstallConcurrency: 4,
		InstallAttempts:    1,
		SkipWaiting:        true,
	}
	cfg.ShellURLs = []string{
		base,
		cfg.RootDocument,
		cfg.OfflineDocument,
		cfg.Manifest,
		cfg.Icon,
		cfg.Placeholder,
	}
	return cfg
}

func normalizeBase(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func (c *Config) applyDefaults() {
	if c.ShellPrefix == "" {
		c.ShellPrefix = DefaultShellPrefix
	}
	if c.RuntimePrefix == "" {
		c.RuntimePrefix = DefaultRuntimePrefix
	}
	if c.InstallConcurrency <= 0 {
		c.InstallConcurrency = 4
	}
	if c.InstallAttempts <= 0 {
		c.InstallAttempts = 1
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidConfig)
	}
	if c.ShellPartition() == c.RuntimePartition() {
		return fmt.Errorf("%w: shell and runtime partitions must differ", ErrInvalidConfig)
	}
	if len(c.ShellURLs) == 0 {
		return fmt.Errorf("%w: shell list is empty", ErrInvalidConfig)
	}
	for _, u := range c.ShellURLs {
		if !strings.HasPrefix(u, "/") {
			return fmt.Errorf("%w: shell url %q is not absolute", ErrInvalidConfig, u)
		}
	}
	paths := map[string]string{
		"root document":    c.RootDocument,
		"offline document": c.OfflineDocument,
		"placeholder":      c.Placeholder,
		"asset prefix":     c.AssetPrefix,
		"upload prefix":    c.UploadPrefix,
	}
	for name, p := range paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: %s %q is not absolute", ErrInvalidConfig, name, p)
		}
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("%w: fetch timeout is negative", ErrInvalidConfig)
	}
	if c.WriteMode != cache.WriteAwait && c.WriteMode != cache.WriteBestEffort {
		return fmt.Errorf("%w: unknown write mode %d", ErrInvalidConfig, c.WriteMode)
	}
	return nil
}

// ShellPartition returns the shell partition name.
func (c Config) ShellPartition() string {
	return c.shellPrefix() + c.Version
}

// RuntimePartition returns the runtime partition name.
func (c Config) RuntimePartition() string {
	return c.runtimePrefix() + c.Version
}

// AllowList returns the partition names that survive activation.
func (c Config) AllowList() []string {
	return []string{c.ShellPartition(), c.RuntimePartition()}
}

func (c Config) shellPrefix() string {
	if c.ShellPrefix == "" {
		return DefaultShellPrefix
	}
	return c.ShellPrefix
}

func (c Config) runtimePrefix() string {
	if c.RuntimePrefix == "" {
		return DefaultRuntimePrefix
	}
	return c.RuntimePrefix
}
