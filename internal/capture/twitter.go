package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// tweetEndpoints are the GraphQL operations whose responses carry media.
var tweetEndpoints = []string{"TweetResultByRestId", "TweetDetail"}

const defaultTweetGrace = 5 * time.Second

// Twitter handles twitter.com and x.com status pages. It reads the tweet
// JSON the page itself fetches and downloads every photo at original size and
// the highest-bitrate MP4 of every video.
type Twitter struct {
	downloader *Downloader
	logger     *zap.Logger
	// grace bounds the wait for tweet JSON after the page has loaded.
	grace time.Duration
}

// NewTwitter builds the Twitter/X handler.
func NewTwitter(downloader *Downloader, logger *zap.Logger) *Twitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Twitter{downloader: downloader, logger: logger, grace: defaultTweetGrace}
}

// Name implements Site.
func (t *Twitter) Name() string { return "twitter" }

// Match implements Site.
func (t *Twitter) Match(u *url.URL) bool {
	return hostIn(u, "twitter.com", "x.com")
}

// Observe implements Site by listening for tweet responses in the tab.
func (t *Twitter) Observe(tabCtx context.Context) MediaFunc {
	obs := &tweetObserver{
		tabCtx:  tabCtx,
		pending: make(map[network.RequestID]struct{}),
		arrived: make(chan struct{}),
		logger:  t.logger,
	}
	chromedp.ListenTarget(tabCtx, obs.onEvent)
	return func(ctx context.Context, page Page) ([]string, error) {
		bodies := obs.collect(ctx, t.grace)
		var assets []mediaAsset
		for _, body := range bodies {
			found, err := parseTweetMedia(body)
			if err != nil {
				t.logger.Debug("skip tweet payload", zap.Error(err))
				continue
			}
			assets = append(assets, found...)
		}
		return t.save(ctx, page, dedupeAssets(assets))
	}
}

func (t *Twitter) save(ctx context.Context, page Page, assets []mediaAsset) ([]string, error) {
	if t.downloader == nil {
		return nil, errors.New("no downloader configured")
	}
	var (
		uris   []string
		errs   []error
		photos int
		videos int
	)
	for _, asset := range assets {
		media, err := t.downloader.Fetch(ctx, asset.URL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var suffix, contentType string
		switch asset.Kind {
		case mediaPhoto:
			photos++
			ext := path.Ext(urlPath(asset.URL))
			if ext == "" {
				ext = ".jpg"
			}
			suffix = fmt.Sprintf("_photo%d%s", photos, ext)
			contentType = media.ContentType
		default:
			videos++
			suffix = fmt.Sprintf("_video%d.mp4", videos)
			contentType = "video/mp4"
		}
		uri, err := page.Save(ctx, suffix, contentType, bytes.NewReader(media.Body))
		if err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", asset.URL, err))
			continue
		}
		uris = append(uris, uri)
	}
	return uris, errors.Join(errs...)
}

type tweetObserver struct {
	tabCtx context.Context
	logger *zap.Logger

	mu      sync.Mutex
	pending map[network.RequestID]struct{}
	bodies  [][]byte
	closed  bool
	wg      sync.WaitGroup
	arrived chan struct{}
	once    sync.Once
}

func (o *tweetObserver) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response == nil || !isTweetEndpoint(e.Response.URL) {
			return
		}
		o.mu.Lock()
		o.pending[e.RequestID] = struct{}{}
		o.mu.Unlock()
	case *network.EventLoadingFinished:
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.pending[e.RequestID]; !ok || o.closed {
			return
		}
		delete(o.pending, e.RequestID)
		o.wg.Add(1)
		// CDP calls cannot be made from inside the listener.
		go o.fetchBody(e.RequestID)
	}
}

func (o *tweetObserver) fetchBody(id network.RequestID) {
	defer o.wg.Done()
	c := chromedp.FromContext(o.tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(o.tabCtx, c.Target))
	if err != nil {
		o.logger.Debug("read tweet response", zap.Error(err))
		return
	}
	o.mu.Lock()
	o.bodies = append(o.bodies, body)
	o.mu.Unlock()
	o.once.Do(func() { close(o.arrived) })
}

// collect waits up to grace for the first tweet body, stops accepting new
// ones, and returns everything read so far.
func (o *tweetObserver) collect(ctx context.Context, grace time.Duration) [][]byte {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-o.arrived:
	case <-timer.C:
	case <-ctx.Done():
	}

	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bodies
}

func isTweetEndpoint(raw string) bool {
	for _, ep := range tweetEndpoints {
		if strings.Contains(raw, "/"+ep) {
			return true
		}
	}
	return false
}

type mediaKind string

const (
	mediaPhoto mediaKind = "photo"
	mediaVideo mediaKind = "video"
)

type mediaAsset struct {
	Kind mediaKind
	URL  string
}

// parseTweetMedia walks a tweet GraphQL payload and returns the media it
// references, in a stable order.
func parseTweetMedia(body []byte) ([]mediaAsset, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode tweet payload: %w", err)
	}
	var out []mediaAsset
	walkJSON(doc, func(obj map[string]any) {
		if asset, ok := mediaFromEntity(obj); ok {
			out = append(out, asset)
		}
	})
	return out, nil
}

func walkJSON(v any, visit func(map[string]any)) {
	switch node := v.(type) {
	case map[string]any:
		visit(node)
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkJSON(node[k], visit)
		}
	case []any:
		for _, item := range node {
			walkJSON(item, visit)
		}
	}
}

func mediaFromEntity(obj map[string]any) (mediaAsset, bool) {
	kind, _ := obj["type"].(string)
	switch kind {
	case "photo":
		raw, _ := obj["media_url_https"].(string)
		if raw == "" {
			return mediaAsset{}, false
		}
		return mediaAsset{Kind: mediaPhoto, URL: originalPhotoURL(raw)}, true
	case "video", "animated_gif":
		info, _ := obj["video_info"].(map[string]any)
		variants, _ := info["variants"].([]any)
		best, bestRate := "", -1.0
		for _, v := range variants {
			variant, _ := v.(map[string]any)
			if ct, _ := variant["content_type"].(string); ct != "video/mp4" {
				continue
			}
			rate, _ := variant["bitrate"].(float64)
			u, _ := variant["url"].(string)
			if u != "" && rate > bestRate {
				best, bestRate = u, rate
			}
		}
		if best == "" {
			return mediaAsset{}, false
		}
		return mediaAsset{Kind: mediaVideo, URL: best}, true
	}
	return mediaAsset{}, false
}

func originalPhotoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("name", "orig")
	u.RawQuery = q.Encode()
	return u.String()
}

func dedupeAssets(in []mediaAsset) []mediaAsset {
	seen := make(map[string]struct{}, len(in))
	out := make([]mediaAsset, 0, len(in))
	for _, a := range in {
		if _, ok := seen[a.URL]; ok {
			continue
		}
		seen[a.URL] = struct{}{}
		out = append(out, a)
	}
	return out
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}
