package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "./docs/", cfg.Docs.Dir)
	require.Equal(t, ".md", cfg.Docs.Suffix)
	require.Equal(t, "./output/", cfg.Output.Dir)
	require.Equal(t, 2, cfg.Pool.Size)
	require.Equal(t, PoolModeProcess, cfg.Pool.Mode)
	require.True(t, cfg.Capture.Headless)
	require.Equal(t, 45*time.Second, cfg.Capture.NavigationTimeout())
	require.Equal(t, 3*time.Second, cfg.Capture.OverlayWait())
	require.Equal(t, int64(512<<20), cfg.Media.MaxBytes)
	require.Equal(t, 5*time.Minute, cfg.Media.Timeout())
	require.False(t, cfg.Metrics.Enabled)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
docs:
  dir: ./notes/
  suffix: .markdown
output:
  dir: ./shots/
pool:
  size: 6
  mode: inproc
capture:
  user_agent: archiver-bot
  headless: false
  full_page: false
  nav_timeout_seconds: 10
  overlay_wait_ms: 0
  domain_qps: 0.5
media:
  enabled: false
  max_bytes: 1024
storage:
  gcs_bucket: archive-bucket
  prefix: runs
metrics:
  enabled: true
  addr: 127.0.0.1:9100
logging:
  development: false
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./notes/", cfg.Docs.Dir)
	require.Equal(t, ".markdown", cfg.Docs.Suffix)
	require.Equal(t, "./shots/", cfg.Output.Dir)
	require.Equal(t, 6, cfg.Pool.Size)
	require.Equal(t, PoolModeInProc, cfg.Pool.Mode)
	require.Equal(t, "archiver-bot", cfg.Capture.UserAgent)
	require.False(t, cfg.Capture.Headless)
	require.False(t, cfg.Capture.FullPage)
	require.Equal(t, 10*time.Second, cfg.Capture.NavigationTimeout())
	require.Zero(t, cfg.Capture.OverlayWait())
	require.InDelta(t, 0.5, cfg.Capture.DomainQPS, 1e-9)
	require.False(t, cfg.Media.Enabled)
	require.Equal(t, int64(1024), cfg.Media.MaxBytes)
	require.Equal(t, "archive-bucket", cfg.Storage.GCSBucket)
	require.Equal(t, "runs", cfg.Storage.Prefix)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ARCHIVER_POOL_SIZE", "5")
	t.Setenv("ARCHIVER_OUTPUT_DIR", "/tmp/archive-out")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Pool.Size)
	require.Equal(t, "/tmp/archive-out", cfg.Output.Dir)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool:\n  mode: threads\n"), 0o600))
	_, err = Load(path)
	require.ErrorContains(t, err, "pool.mode")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Docs:    DocsConfig{Dir: "docs"},
		Output:  OutputConfig{Dir: "out"},
		Pool:    PoolConfig{Size: 1, Mode: PoolModeProcess},
		Capture: CaptureConfig{NavTimeoutSec: 1},
		Media:   MediaConfig{Enabled: true, TimeoutSec: 1},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "docs dir", mutate: func(c *Config) { c.Docs.Dir = " " }, want: "docs.dir"},
		{name: "output dir", mutate: func(c *Config) { c.Output.Dir = "" }, want: "output.dir"},
		{name: "pool size", mutate: func(c *Config) { c.Pool.Size = 0 }, want: "pool.size"},
		{name: "pool mode", mutate: func(c *Config) { c.Pool.Mode = "threads" }, want: "pool.mode"},
		{name: "nav timeout", mutate: func(c *Config) { c.Capture.NavTimeoutSec = 0 }, want: "capture.nav_timeout_seconds"},
		{name: "overlay wait", mutate: func(c *Config) { c.Capture.OverlayWaitMs = -1 }, want: "capture.overlay_wait_ms"},
		{name: "domain qps", mutate: func(c *Config) { c.Capture.DomainQPS = -1 }, want: "capture.domain_qps"},
		{name: "media bytes", mutate: func(c *Config) { c.Media.MaxBytes = -1 }, want: "media.max_bytes"},
		{name: "media timeout", mutate: func(c *Config) { c.Media.TimeoutSec = 0 }, want: "media.timeout_seconds"},
		{name: "metrics addr", mutate: func(c *Config) { c.Metrics.Enabled = true }, want: "metrics.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}
