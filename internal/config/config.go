// Package config loads the formreport configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	formreport "github.com/porticus-lab/go-form-report"
)

// Config is the content of formreport.toml.
type Config struct {
	Server  ServerConfig              `toml:"server"`
	Render  RenderConfig              `toml:"render"`
	Assets  AssetsConfig              `toml:"assets"`
	Google  GoogleConfig              `toml:"google"`
	Journal JournalConfig             `toml:"journal"`
	Targets []formreport.ExportTarget `toml:"targets"`
}

// ServerConfig configures the web form.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// Mode is the gin mode: debug, release or test.
	Mode string `toml:"mode"`
}

// RenderConfig selects and configures the document renderers.
type RenderConfig struct {
	// Engine is "pdf" for the built-in layout engine or "html" for
	// printing through headless Chrome.
	Engine       string `toml:"engine"`
	TemplateDir  string `toml:"template_dir"`
	ChromePath   string `toml:"chrome_path"`
	NoSandbox    bool   `toml:"no_sandbox"`
	AutoDownload bool   `toml:"auto_download"`
	Timeout      string `toml:"timeout"`
}

// AssetsConfig locates fonts and images referenced by templates.
type AssetsConfig struct {
	Dir        string `toml:"dir"`
	MaxImageKB int64  `toml:"max_image_kb"`
}

// GoogleConfig configures the cloud sinks.
type GoogleConfig struct {
	Credentials  string `toml:"credentials"`
	Endpoint     string `toml:"endpoint"`
	AppendHeader bool   `toml:"append_header"`
}

// JournalConfig configures the export history.
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
			Mode: "release",
		},
		Render: RenderConfig{
			Engine:      "pdf",
			TemplateDir: "templates",
			Timeout:     "30s",
		},
		Assets: AssetsConfig{
			Dir:        "assets",
			MaxImageKB: 5 << 10,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join("data", "journal.db"),
		},
	}
}

// Load reads the configuration at path. A missing file yields the defaults.
// Environment variables override the file:
//
//	FORMREPORT_CREDENTIALS (else GOOGLE_APPLICATION_CREDENTIALS)
//	FORMREPORT_CHROME_PATH
//	FORMREPORT_ADDR
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("config file not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FORMREPORT_CREDENTIALS"); v != "" {
		c.Google.Credentials = v
	}
	if c.Google.Credentials == "" {
		c.Google.Credentials = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if v := os.Getenv("FORMREPORT_CHROME_PATH"); v != "" {
		c.Render.ChromePath = v
	}
	if v := os.Getenv("FORMREPORT_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Save writes cfg to path as TOML.
func Save(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the engine, timeout and export targets.
func (c *Config) Validate() error {
	switch c.Render.Engine {
	case "pdf", "html":
	default:
		return fmt.Errorf("config: render.engine must be pdf or html, got %q", c.Render.Engine)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}

	seen := map[string]bool{formreport.LocalTarget().Name: true}
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("config: targets[%d] has no name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("config: duplicate target %q", t.Name)
		}
		seen[t.Name] = true
		switch t.Kind {
		case formreport.TargetSheets:
			if t.SpreadsheetID == "" {
				return fmt.Errorf("config: target %q needs spreadsheet_id", t.Name)
			}
		case formreport.TargetDrive:
			if t.FolderID == "" {
				return fmt.Errorf("config: target %q needs folder_id", t.Name)
			}
		default:
			return fmt.Errorf("config: target %q has unknown kind %q", t.Name, t.Kind)
		}
	}
	return nil
}

// Timeout parses render.timeout. An empty value means no timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.Render.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Render.Timeout)
	if err != nil {
		return 0, fmt.Errorf("config: render.timeout: %w", err)
	}
	return d, nil
}

// ExportTargets returns the local download target followed by the
// configured ones.
func (c *Config) ExportTargets() []formreport.ExportTarget {
	return append([]formreport.ExportTarget{formreport.LocalTarget()}, c.Targets...)
}

// Target looks up an export target by name.
func (c *Config) Target(name string) (formreport.ExportTarget, error) {
	for _, t := range c.ExportTargets() {
		if t.Name == name {
			return t, nil
		}
	}
	return formreport.ExportTarget{}, fmt.Errorf("%w: no target named %q", formreport.ErrUnsupportedTarget, name)
}

// RemoteTargets reports whether any target needs the cloud sinks.
func (c *Config) RemoteTargets() bool {
	return len(c.Targets) > 0
}

// Options returns the collector and renderer options described by the
// configuration.
func (c *Config) Options(logger *slog.Logger) []formreport.Option {
	timeout, _ := c.Timeout()
	opts := []formreport.Option{
		formreport.WithTimeout(timeout),
		formreport.WithAssetDir(c.Assets.Dir),
		formreport.WithLogger(logger),
	}
	if c.Assets.MaxImageKB > 0 {
		opts = append(opts, formreport.WithMaxImageSize(c.Assets.MaxImageKB<<10))
	}
	if c.Render.TemplateDir != "" {
		opts = append(opts, formreport.WithTemplates(formreport.TemplateDir(c.Render.TemplateDir)))
	}
	if c.Render.ChromePath != "" {
		opts = append(opts, formreport.WithChromePath(c.Render.ChromePath))
	}
	if c.Render.NoSandbox {
		opts = append(opts, formreport.WithNoSandbox())
	}
	if c.Render.AutoDownload {
		opts = append(opts, formreport.WithAutoDownload())
	}
	return opts
}
