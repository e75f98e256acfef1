// Package config loads mermaid-studio settings with viper. Values come from
// defaults, then an optional YAML file, then MERMAID_STUDIO_* environment
// variables, then command-line flags bound by the CLI.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/ankek/mermaid-studio/internal/mermaid"
)

// EnvPrefix prefixes environment overrides, e.g. MERMAID_STUDIO_SERVER_PORT.
const EnvPrefix = "MERMAID_STUDIO"

// Setting keys.
const (
	KeyServerHost            = "server.host"
	KeyServerPort            = "server.port"
	KeyServerReadTimeout     = "server.read_timeout"
	KeyServerShutdownTimeout = "server.shutdown_timeout"
	KeyRendererBackend       = "renderer.backend"
	KeyRendererKrokiURL      = "renderer.kroki_url"
	KeyRendererMMDCPath      = "renderer.mmdc_path"
	KeyRendererPuppeteer     = "renderer.puppeteer_config"
	KeyRendererTimeout       = "renderer.timeout"
	KeyRendererRetryMax      = "renderer.retry_max"
	KeyEditorDebounce        = "editor.debounce"
	KeyEditorSessionTTL      = "editor.session_ttl"
	KeyExportFontFile        = "export.font_file"
	KeyExportMaxPixels       = "export.max_pixels"
	KeyThemesDir             = "themes.dir"
	KeyStorePath             = "store.path"
	KeyLogLevel              = "log.level"
	KeyLogFormat             = "log.format"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Editor   EditorConfig   `mapstructure:"editor"`
	Export   ExportConfig   `mapstructure:"export"`
	Themes   ThemesConfig   `mapstructure:"themes"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RendererConfig selects the Mermaid render backend.
type RendererConfig struct {
	Backend         string        `mapstructure:"backend"`
	KrokiURL        string        `mapstructure:"kroki_url"`
	MMDCPath        string        `mapstructure:"mmdc_path"`
	PuppeteerConfig string        `mapstructure:"puppeteer_config"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryMax        int           `mapstructure:"retry_max"`
}

// EditorConfig configures editor sessions.
type EditorConfig struct {
	Debounce   time.Duration `mapstructure:"debounce"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// ExportConfig configures the export pipeline.
type ExportConfig struct {
	FontFile  string `mapstructure:"font_file"`
	MaxPixels int    `mapstructure:"max_pixels"`
}

// ThemesConfig points at extra HCL theme files.
type ThemesConfig struct {
	Dir string `mapstructure:"dir"`
}

// StoreConfig locates the draft database. An empty path keeps drafts in
// memory for the life of the process.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerHost, "127.0.0.1")
	v.SetDefault(KeyServerPort, 8080)
	v.SetDefault(KeyServerReadTimeout, 15*time.Second)
	v.SetDefault(KeyServerShutdownTimeout, 10*time.Second)
	v.SetDefault(KeyRendererBackend, mermaid.BackendKroki)
	v.SetDefault(KeyRendererKrokiURL, "https://kroki.io")
	v.SetDefault(KeyRendererMMDCPath, "mmdc")
	v.SetDefault(KeyRendererPuppeteer, "")
	v.SetDefault(KeyRendererTimeout, 30*time.Second)
	v.SetDefault(KeyRendererRetryMax, 3)
	v.SetDefault(KeyEditorDebounce, 1500*time.Millisecond)
	v.SetDefault(KeyEditorSessionTTL, 30*time.Minute)
	v.SetDefault(KeyExportFontFile, "")
	v.SetDefault(KeyExportMaxPixels, 0)
	v.SetDefault(KeyThemesDir, "")
	v.SetDefault(KeyStorePath, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads the configuration into v and returns it validated. An explicit
// configFile must exist; otherwise mermaid-studio.yaml is looked up in the
// working directory and in the user config directory, and may be absent.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("mermaid-studio")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "mermaid-studio"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("%s must be between 1 and 65535, got %d", KeyServerPort, c.Server.Port))
	}
	if c.Server.Host == "" {
		result = multierror.Append(result, fmt.Errorf("%s must not be empty", KeyServerHost))
	}

	durations := []struct {
		key string
		d   time.Duration
	}{
		{KeyServerReadTimeout, c.Server.ReadTimeout},
		{KeyServerShutdownTimeout, c.Server.ShutdownTimeout},
		{KeyRendererTimeout, c.Renderer.Timeout},
		{KeyEditorDebounce, c.Editor.Debounce},
		{KeyEditorSessionTTL, c.Editor.SessionTTL},
	}
	for _, d := range durations {
		if d.d <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be positive, got %s", d.key, d.d))
		}
	}

	switch c.Renderer.Backend {
	case mermaid.BackendKroki:
		u, err := url.Parse(c.Renderer.KrokiURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("%s must be an http(s) URL, got %q", KeyRendererKrokiURL, c.Renderer.KrokiURL))
		}
	case mermaid.BackendMMDC:
		if c.Renderer.MMDCPath == "" {
			result = multierror.Append(result, fmt.Errorf("%s must be set for the %s backend", KeyRendererMMDCPath, mermaid.BackendMMDC))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("%s must be %s or %s, got %q",
			KeyRendererBackend, mermaid.BackendKroki, mermaid.BackendMMDC, c.Renderer.Backend))
	}
	if c.Renderer.RetryMax < 0 {
		result = multierror.Append(result, fmt.Errorf("%s must not be negative", KeyRendererRetryMax))
	}
	if c.Export.MaxPixels < 0 {
		result = multierror.Append(result, fmt.Errorf("%s must not be negative", KeyExportMaxPixels))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		result = multierror.Append(result, fmt.Errorf("%s must be json or console, got %q", KeyLogFormat, c.Log.Format))
	}

	return result.ErrorOrNil()
}

// RendererOptions converts the renderer settings for mermaid.NewFactory.
func (c *Config) RendererOptions() mermaid.Options {
	return mermaid.Options{
		Backend:         c.Renderer.Backend,
		KrokiURL:        c.Renderer.KrokiURL,
		MMDCPath:        c.Renderer.MMDCPath,
		PuppeteerConfig: c.Renderer.PuppeteerConfig,
		Timeout:         c.Renderer.Timeout,
		RetryMax:        c.Renderer.RetryMax,
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
