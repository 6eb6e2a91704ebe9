package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// ErrTooLarge is returned when a media response exceeds the configured cap.
var ErrTooLarge = errors.New("media exceeds size limit")

// DownloaderConfig controls media downloads.
type DownloaderConfig struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBytes caps a single download; 0 disables the cap.
	MaxBytes int64
}

// Media is a downloaded asset held in memory.
type Media struct {
	URL         string
	ContentType string
	Body        []byte
}

// Downloader fetches media files over HTTP with a colly collector.
type Downloader struct {
	cfg  DownloaderConfig
	base *colly.Collector
}

// NewDownloader builds a Downloader.
func NewDownloader(cfg DownloaderConfig) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(newHTTPTransport())
	if cfg.MaxBytes > 0 {
		// One extra byte lets an oversized body be told apart from an exact fit.
		c.MaxBodySize = int(cfg.MaxBytes) + 1
	} else {
		c.MaxBodySize = 0
	}
	return &Downloader{cfg: cfg, base: c}
}

// Fetch downloads rawURL. Non-2xx responses and bodies above MaxBytes are
// errors.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (Media, error) {
	var (
		media    Media
		fetchErr error
	)
	collector := d.base.Clone()
	collector.SetRequestTimeout(d.cfg.Timeout)
	if d.cfg.UserAgent != "" {
		collector.UserAgent = d.cfg.UserAgent
	}
	collector.OnResponse(func(r *colly.Response) {
		media = Media{
			URL:         r.Request.URL.String(),
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return Media{}, fmt.Errorf("download canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Media{}, fmt.Errorf("download %s: %w", rawURL, err)
		}
	}
	if fetchErr != nil {
		return Media{}, fmt.Errorf("download %s: %w", rawURL, fetchErr)
	}
	if d.cfg.MaxBytes > 0 && int64(len(media.Body)) > d.cfg.MaxBytes {
		return Media{}, fmt.Errorf("download %s: %w (%d bytes)", rawURL, ErrTooLarge, d.cfg.MaxBytes)
	}
	return media, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
