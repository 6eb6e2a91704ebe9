package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// VideoFetcher downloads the best available video for link into dir and
// returns the path of the written file.
type VideoFetcher interface {
	FetchVideo(ctx context.Context, link, dir string) (string, error)
}

// YTDLP runs the yt-dlp binary.
type YTDLP struct {
	// Path defaults to "yt-dlp" on PATH.
	Path     string
	MaxBytes int64
}

// FetchVideo implements VideoFetcher.
func (y YTDLP) FetchVideo(ctx context.Context, link, dir string) (string, error) {
	if strings.TrimSpace(link) == "" {
		return "", fmt.Errorf("video URL is required")
	}
	bin := y.Path
	if bin == "" {
		bin = "yt-dlp"
	}
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--restrict-filenames",
		"-f", "bv*+ba/b",
		"-o", filepath.Join(dir, "video.%(ext)s"),
		"--print", "after_move:filepath",
	}
	if y.MaxBytes > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(y.MaxBytes, 10))
	}
	args = append(args, link)

	// #nosec G204 -- binary path comes from configuration.
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		// --max-filesize skips oversized videos without failing.
		return "", fmt.Errorf("yt-dlp produced no file for %s", link)
	}
	return path, nil
}

// VideoHost handles YouTube and Vimeo pages.
type VideoHost struct {
	fetcher VideoFetcher
	logger  *zap.Logger
}

// NewVideoHost builds the video host handler.
func NewVideoHost(fetcher VideoFetcher, logger *zap.Logger) *VideoHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoHost{fetcher: fetcher, logger: logger}
}

// Name implements Site.
func (v *VideoHost) Name() string { return "video" }

// Match implements Site.
func (v *VideoHost) Match(u *url.URL) bool {
	return hostIn(u, "youtube.com", "youtu.be", "vimeo.com")
}

// Observe implements Site. Nothing is needed from the tab; the rendered HTML
// decides whether the page carries a video.
func (v *VideoHost) Observe(context.Context) MediaFunc {
	return v.fetch
}

func (v *VideoHost) fetch(ctx context.Context, page Page) ([]string, error) {
	if !isVideoPage(page.HTML) {
		v.logger.Debug("no video on page", zap.String("link", page.Link))
		return nil, nil
	}
	if v.fetcher == nil {
		return nil, errors.New("no video fetcher configured")
	}

	tmp, err := os.MkdirTemp("", "archiver-video-*")
	if err != nil {
		return nil, fmt.Errorf("video temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmp); rmErr != nil {
			v.logger.Debug("remove video temp dir", zap.Error(rmErr))
		}
	}()

	path, err := v.fetcher.FetchVideo(ctx, page.Link, tmp)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path was produced inside our temp dir.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer func() { _ = f.Close() }()

	ext := filepath.Ext(path)
	uri, err := page.Save(ctx, ext, mime.TypeByExtension(ext), f)
	if err != nil {
		return nil, fmt.Errorf("store video: %w", err)
	}
	return []string{uri}, nil
}

// isVideoPage reports whether the Open Graph tags describe a video.
func isVideoPage(html string) bool {
	if html == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	if doc.Find(`meta[property="og:video"], meta[property="og:video:url"], meta[property="og:video:secure_url"]`).Length() > 0 {
		return true
	}
	ogType, _ := doc.Find(`meta[property="og:type"]`).Attr("content")
	return strings.HasPrefix(strings.ToLower(ogType), "video")
}
