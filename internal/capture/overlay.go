package capture

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// knownConsentSelectors cover the common consent management platforms.
var knownConsentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"#L2AGLb",
	"button.fc-cta-consent",
	"#didomi-notice-agree-button",
	`button[data-testid="uc-accept-all-button"]`,
}

var consentPhrases = map[string]struct{}{
	"accept":             {},
	"accept all":         {},
	"accept all cookies": {},
	"accept cookies":     {},
	"agree":              {},
	"i agree":            {},
	"allow all":          {},
	"allow all cookies":  {},
	"got it":             {},
	"i accept":           {},
	"ok":                 {},
}

var plainID = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

const maxOverlaySelectors = 4

// consentSelectors inspects rendered HTML for cookie or consent buttons and
// returns CSS selectors that click them, most specific first.
func consentSelectors(html string) []string {
	if html == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(sel string) {
		if _, ok := seen[sel]; ok || len(out) >= maxOverlaySelectors {
			return
		}
		seen[sel] = struct{}{}
		out = append(out, sel)
	}

	for _, sel := range knownConsentSelectors {
		if doc.Find(sel).Length() > 0 {
			add(sel)
		}
	}
	known := strings.Join(knownConsentSelectors, ", ")
	doc.Find(`button, [role="button"]`).Each(func(_ int, s *goquery.Selection) {
		if s.Is(known) || !isConsentLabel(s.Text(), s.AttrOr("aria-label", "")) {
			return
		}
		tag := goquery.NodeName(s)
		if id := s.AttrOr("id", ""); plainID.MatchString(id) {
			add(tag + "#" + id)
			return
		}
		if aria := s.AttrOr("aria-label", ""); aria != "" && !strings.ContainsAny(aria, `"\`) {
			add(tag + `[aria-label="` + aria + `"]`)
		}
	})
	return out
}

func isConsentLabel(labels ...string) bool {
	for _, l := range labels {
		if _, ok := consentPhrases[normalizeLabel(l)]; ok {
			return true
		}
	}
	return false
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
