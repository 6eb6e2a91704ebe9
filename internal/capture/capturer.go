package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/archive"
	"github.com/JakeFAU/link-archiver/internal/policy/ratelimit"
)

// ErrUnsupportedLink is returned for links that are not absolute http(s) URLs.
var ErrUnsupportedLink = errors.New("unsupported link")

// Config controls the browser and screenshot behavior.
type Config struct {
	UserAgent         string
	Headless          bool
	NoSandbox         bool
	ExecPath          string
	ViewportWidth     int
	ViewportHeight    int
	FullPage          bool
	NavigationTimeout time.Duration
	// OverlayWait caps the time spent dismissing consent overlays.
	OverlayWait time.Duration
	// DomainQPS limits page loads per host; 0 disables the limit.
	DomainQPS    float64
	MediaTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1366
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 768
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.OverlayWait < 0 {
		c.OverlayWait = 0
	}
	if c.MediaTimeout <= 0 {
		c.MediaTimeout = 5 * time.Minute
	}
	return c
}

// Capturer screenshots pages with one headless Chrome owned for its lifetime.
// Calls to Capture are serialized by the worker that owns it.
type Capturer struct {
	cfg    Config
	store  archive.ArtifactStore
	sites  []Site
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	hosts *ratelimit.Limiter
}

// New launches the browser and waits for it to come up. A browser that cannot
// be started is returned as an error.
func New(ctx context.Context, cfg Config, store archive.ArtifactStore, logger *zap.Logger, sites ...Site) (*Capturer, error) {
	if store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	warm := make(chan error, 1)
	go func() { warm <- chromedp.Run(browserCtx) }()
	select {
	case err := <-warm:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("chromedp warmup: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", ctx.Err())
	}

	return &Capturer{
		cfg:           cfg,
		store:         store,
		sites:         sites,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		hosts:         newHostLimiter(cfg.DomainQPS, logger),
	}, nil
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Close tears down the browser and allocator contexts.
func (c *Capturer) Close(_ context.Context) error {
	if c == nil {
		return nil
	}
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}

// Capture renders job.Link in a fresh tab, stores a PNG screenshot at
// <DestinationDir>/<SafeFilename>.png, and then lets matching sites fetch
// their media. Only navigation, rendering and the screenshot write can fail
// the capture.
func (c *Capturer) Capture(ctx context.Context, job archive.Job) (archive.Result, error) {
	target, err := url.Parse(job.Link)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return archive.Result{}, fmt.Errorf("%w: %q", ErrUnsupportedLink, job.Link)
	}
	if err := c.hosts.Wait(ctx, target.Hostname()); err != nil {
		return archive.Result{}, fmt.Errorf("capture rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, c.cfg.NavigationTimeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	type observer struct {
		site  string
		fetch MediaFunc
	}
	var observers []observer
	for _, s := range c.sites {
		if s.Match(target) {
			observers = append(observers, observer{site: s.Name(), fetch: s.Observe(tabCtx)})
		}
	}

	if err := chromedp.Run(taskCtx, c.navigate(job.Link)); err != nil {
		return archive.Result{}, fmt.Errorf("navigate %s: %w", job.Link, err)
	}
	c.dismissOverlays(taskCtx, job.Link)

	var (
		html     string
		finalURL string
		shot     []byte
	)
	if err := chromedp.Run(taskCtx,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		c.screenshot(&shot),
	); err != nil {
		return archive.Result{}, fmt.Errorf("screenshot %s: %w", job.Link, err)
	}

	page := Page{
		Link:           job.Link,
		FinalURL:       finalURL,
		HTML:           html,
		DestinationDir: job.DestinationDir,
		BaseName:       SafeFilename(job.Link),
		store:          c.store,
	}
	uri, err := page.Save(ctx, ".png", "image/png", bytes.NewReader(shot))
	if err != nil {
		return archive.Result{}, fmt.Errorf("store screenshot: %w", err)
	}
	result := archive.Result{Screenshot: uri}

	for _, obs := range observers {
		mediaCtx, cancel := context.WithTimeout(ctx, c.cfg.MediaTimeout)
		uris, err := obs.fetch(mediaCtx, page)
		cancel()
		if err != nil {
			c.logger.Warn("media download failed",
				zap.String("site", obs.site),
				zap.String("link", job.Link),
				zap.Error(err),
			)
		}
		result.Media = append(result.Media, uris...)
	}
	return result, nil
}

func (c *Capturer) navigate(link string) chromedp.Tasks {
	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.EmulateViewport(int64(c.cfg.ViewportWidth), int64(c.cfg.ViewportHeight)),
	}
	if c.cfg.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(c.cfg.UserAgent))
	}
	return append(tasks,
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (c *Capturer) screenshot(buf *[]byte) chromedp.Action {
	if c.cfg.FullPage {
		// Quality 100 produces PNG.
		return chromedp.FullScreenshot(buf, 100)
	}
	return chromedp.CaptureScreenshot(buf)
}

// dismissOverlays clicks consent buttons found in the rendered page. It never
// fails the capture and gives up once OverlayWait has elapsed.
func (c *Capturer) dismissOverlays(ctx context.Context, link string) {
	if c.cfg.OverlayWait <= 0 {
		return
	}
	overlayCtx, cancel := context.WithTimeout(ctx, c.cfg.OverlayWait)
	defer cancel()

	var html string
	if err := chromedp.Run(overlayCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return
	}
	for _, sel := range consentSelectors(html) {
		if overlayCtx.Err() != nil {
			return
		}
		if err := chromedp.Run(overlayCtx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
			c.logger.Debug("overlay click skipped", zap.String("link", link), zap.String("selector", sel), zap.Error(err))
			continue
		}
		c.logger.Debug("overlay dismissed", zap.String("link", link), zap.String("selector", sel))
	}
}

func newHostLimiter(qps float64, logger *zap.Logger) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		RPS: qps,
		OnDelay: func(host string, waited time.Duration) {
			logger.Debug("page load delayed by host budget", zap.String("host", host), zap.Duration("waited", waited))
		},
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Factory returns a CapturerFactory that launches a new browser per worker.
func Factory(cfg Config, store archive.ArtifactStore, logger *zap.Logger, sites ...Site) archive.CapturerFactory {
	return func(ctx context.Context) (archive.Capturer, error) {
		return New(ctx, cfg, store, logger, sites...)
	}
}
