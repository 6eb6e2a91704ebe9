// Package config loads and validates archiver configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Pool modes.
const (
	PoolModeProcess = "process"
	PoolModeInProc  = "inproc"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Docs    DocsConfig    `mapstructure:"docs"`
	Output  OutputConfig  `mapstructure:"output"`
	Pool    PoolConfig    `mapstructure:"pool"`
	Capture CaptureConfig `mapstructure:"capture"`
	Media   MediaConfig   `mapstructure:"media"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DocsConfig locates the markdown documents to scan.
type DocsConfig struct {
	Dir    string `mapstructure:"dir"`
	Suffix string `mapstructure:"suffix"`
	// Sample is the document used by link-test when no file is given.
	Sample string `mapstructure:"sample"`
}

// OutputConfig sets where artifacts are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Size int    `mapstructure:"size"`
	Mode string `mapstructure:"mode"`
}

// CaptureConfig configures the browser used for screenshots.
type CaptureConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	Headless       bool    `mapstructure:"headless"`
	NoSandbox      bool    `mapstructure:"no_sandbox"`
	ExecPath       string  `mapstructure:"exec_path"`
	ViewportWidth  int     `mapstructure:"viewport_width"`
	ViewportHeight int     `mapstructure:"viewport_height"`
	FullPage       bool    `mapstructure:"full_page"`
	NavTimeoutSec  int     `mapstructure:"nav_timeout_seconds"`
	OverlayWaitMs  int     `mapstructure:"overlay_wait_ms"`
	DomainQPS      float64 `mapstructure:"domain_qps"`
}

// MediaConfig controls side downloads of videos and photos.
type MediaConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	MaxBytes   int64  `mapstructure:"max_bytes"`
	TimeoutSec int    `mapstructure:"timeout_seconds"`
	YTDLPPath  string `mapstructure:"ytdlp_path"`
}

// StorageConfig configures the optional GCS mirror.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file, and ARCHIVER_*
// environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARCHIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("docs.dir", "./docs/")
	v.SetDefault("docs.suffix", ".md")
	v.SetDefault("docs.sample", "./docs/file 1.md")
	v.SetDefault("output.dir", "./output/")
	v.SetDefault("pool.size", 2)
	v.SetDefault("pool.mode", PoolModeProcess)
	v.SetDefault("capture.user_agent", "")
	v.SetDefault("capture.headless", true)
	v.SetDefault("capture.no_sandbox", true)
	v.SetDefault("capture.exec_path", "")
	v.SetDefault("capture.viewport_width", 1366)
	v.SetDefault("capture.viewport_height", 768)
	v.SetDefault("capture.full_page", true)
	v.SetDefault("capture.nav_timeout_seconds", 45)
	v.SetDefault("capture.overlay_wait_ms", 3000)
	v.SetDefault("capture.domain_qps", 1.0)
	v.SetDefault("media.enabled", true)
	v.SetDefault("media.max_bytes", int64(512<<20))
	v.SetDefault("media.timeout_seconds", 300)
	v.SetDefault("media.ytdlp_path", "yt-dlp")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Docs.Dir) == "" {
		return fmt.Errorf("docs.dir must be set")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.Pool.Size <= 0 {
		return fmt.Errorf("pool.size must be > 0")
	}
	switch c.Pool.Mode {
	case PoolModeProcess, PoolModeInProc:
	default:
		return fmt.Errorf("pool.mode must be %q or %q, got %q", PoolModeProcess, PoolModeInProc, c.Pool.Mode)
	}
	if c.Capture.NavTimeoutSec <= 0 {
		return fmt.Errorf("capture.nav_timeout_seconds must be > 0")
	}
	if c.Capture.OverlayWaitMs < 0 {
		return fmt.Errorf("capture.overlay_wait_ms must be >= 0")
	}
	if c.Capture.DomainQPS < 0 {
		return fmt.Errorf("capture.domain_qps must be >= 0")
	}
	if c.Media.MaxBytes < 0 {
		return fmt.Errorf("media.max_bytes must be >= 0")
	}
	if c.Media.Enabled && c.Media.TimeoutSec <= 0 {
		return fmt.Errorf("media.timeout_seconds must be > 0 when media is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}

// NavigationTimeout is the per-page navigation budget.
func (c CaptureConfig) NavigationTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// OverlayWait caps consent overlay dismissal.
func (c CaptureConfig) OverlayWait() time.Duration {
	return time.Duration(c.OverlayWaitMs) * time.Millisecond
}

// Timeout bounds a single media download.
func (c MediaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}
