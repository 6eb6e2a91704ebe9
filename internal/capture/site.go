package capture

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/link-archiver/internal/archive"
)

// Page is the rendered state of a captured link handed to site handlers.
type Page struct {
	Link           string
	FinalURL       string
	HTML           string
	DestinationDir string
	// BaseName is the SafeFilename of Link.
	BaseName string

	store archive.ArtifactStore
}

// Save writes an artifact next to the screenshot as <BaseName><suffix>.
func (p Page) Save(ctx context.Context, suffix, contentType string, r io.Reader) (string, error) {
	return p.store.PutObject(ctx, filepath.Join(p.DestinationDir, p.BaseName+suffix), contentType, r)
}

// MediaFunc retrieves side media for a rendered page and returns the URIs it
// stored. A non-nil error never fails the capture.
type MediaFunc func(ctx context.Context, page Page) ([]string, error)

// Site is a handler for a family of sites with downloadable media.
type Site interface {
	Name() string
	Match(u *url.URL) bool
	// Observe is called with the tab context before navigation. The returned
	// func runs once the screenshot has been stored.
	Observe(tabCtx context.Context) MediaFunc
}

func hostIn(u *url.URL, domains ...string) bool {
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
