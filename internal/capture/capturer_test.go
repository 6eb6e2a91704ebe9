package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/archive"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{OverlayWait: -time.Second}.withDefaults()
	require.Equal(t, 1366, cfg.ViewportWidth)
	require.Equal(t, 768, cfg.ViewportHeight)
	require.Equal(t, 45*time.Second, cfg.NavigationTimeout)
	require.Zero(t, cfg.OverlayWait)
	require.Equal(t, 5*time.Minute, cfg.MediaTimeout)

	cfg = Config{ViewportWidth: 800, NavigationTimeout: time.Second}.withDefaults()
	require.Equal(t, 800, cfg.ViewportWidth)
	require.Equal(t, time.Second, cfg.NavigationTimeout)
}

func TestNewRequiresStore(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{}, nil, zap.NewNop())
	require.Error(t, err)
}

func TestCaptureRejectsUnsupportedLinks(t *testing.T) {
	t.Parallel()

	c := &Capturer{logger: zap.NewNop()}
	for _, link := range []string{"", "mailto:someone@example.com", "/relative/path", "ftp://host/file", "https://"} {
		_, err := c.Capture(context.Background(), archive.Job{Link: link})
		require.ErrorIs(t, err, ErrUnsupportedLink, link)
	}
}

func TestHostLimiterFollowsDomainQPS(t *testing.T) {
	t.Parallel()

	require.Nil(t, newHostLimiter(0, zap.NewNop()))
	require.NotNil(t, newHostLimiter(1.5, zap.NewNop()))
}

func TestAllocatorOptions(t *testing.T) {
	t.Parallel()

	base := len(allocatorOptions(Config{}))
	full := allocatorOptions(Config{NoSandbox: true, UserAgent: "ua", ExecPath: "/usr/bin/chromium"})
	require.Len(t, full, base+3)
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()
	require.Eventually(t, func() bool { return child.Err() != nil }, time.Second, 5*time.Millisecond)
}

func TestFactoryReportsInitFailure(t *testing.T) {
	t.Parallel()

	factory := Factory(Config{}, nil, zap.NewNop())
	_, err := factory(context.Background())
	require.Error(t, err)
}
