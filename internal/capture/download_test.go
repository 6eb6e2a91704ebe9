package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newMediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		case "/big.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write([]byte(strings.Repeat("v", 64)))
		case "/ua":
			_, _ = w.Write([]byte(r.UserAgent()))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloaderFetch(t *testing.T) {
	t.Parallel()

	srv := newMediaServer(t)
	d := NewDownloader(DownloaderConfig{UserAgent: "archiver-test", Timeout: 5 * time.Second, MaxBytes: 1024})

	media, err := d.Fetch(context.Background(), srv.URL+"/photo.jpg")
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(media.Body))
	require.Equal(t, "image/jpeg", media.ContentType)

	// Repeated URLs are fetched again.
	_, err = d.Fetch(context.Background(), srv.URL+"/photo.jpg")
	require.NoError(t, err)

	media, err = d.Fetch(context.Background(), srv.URL+"/ua")
	require.NoError(t, err)
	require.Equal(t, "archiver-test", string(media.Body))
}

func TestDownloaderRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	srv := newMediaServer(t)
	d := NewDownloader(DownloaderConfig{MaxBytes: 16})

	_, err := d.Fetch(context.Background(), srv.URL+"/big.mp4")
	require.ErrorIs(t, err, ErrTooLarge)

	unlimited := NewDownloader(DownloaderConfig{})
	media, err := unlimited.Fetch(context.Background(), srv.URL+"/big.mp4")
	require.NoError(t, err)
	require.Len(t, media.Body, 64)
}

func TestDownloaderHTTPError(t *testing.T) {
	t.Parallel()

	srv := newMediaServer(t)
	d := NewDownloader(DownloaderConfig{})
	_, err := d.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
}

func TestDownloaderCanceled(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewDownloader(DownloaderConfig{}).Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
