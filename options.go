package formreport

import (
	"log/slog"
	"time"
)

// config holds the settings shared by collectors and renderers.
type config struct {
	chromePath   string
	timeout      time.Duration
	noSandbox    bool
	headless     string
	autoDownload bool
	assetDir     string
	maxImageSize int64
	templates    Templates
	logger       *slog.Logger
}

func defaultConfig() config {
	return config{
		timeout:      30 * time.Second,
		headless:     "new",
		maxImageSize: 5 << 20,
		logger:       slog.Default(),
	}
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg
}

// Option configures a [Collector] or a [Renderer].
type Option func(*config)

// WithChromePath sets the path to the Chrome or Chromium executable used by
// [HTMLRenderer]. By default chromedp searches standard locations.
func WithChromePath(path string) Option {
	return func(c *config) {
		c.chromePath = path
	}
}

// WithTimeout sets the maximum duration for a single render.
// Defaults to 30 seconds. A zero or negative value disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *config) {
		c.noSandbox = true
	}
}

// WithAutoDownload fetches a Chromium build when no browser path is given.
// The download is cached between runs.
func WithAutoDownload() Option {
	return func(c *config) {
		c.autoDownload = true
	}
}

// WithAssetDir sets the directory that relative font and image paths in a
// [Template] are resolved against.
func WithAssetDir(dir string) Option {
	return func(c *config) {
		c.assetDir = dir
	}
}

// WithMaxImageSize limits the size of uploaded images accepted by a
// [Collector]. Defaults to 5 MiB.
func WithMaxImageSize(n int64) Option {
	return func(c *config) {
		c.maxImageSize = n
	}
}

// WithTemplates sets where renderers look up the template of a report kind.
// Kinds without a template fall back to [DefaultTemplate].
func WithTemplates(t Templates) Option {
	return func(c *config) {
		c.templates = t
	}
}

// WithTemplate renders every report kind with the same template.
func WithTemplate(t *Template) Option {
	return WithTemplates(fixedTemplate{t})
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
