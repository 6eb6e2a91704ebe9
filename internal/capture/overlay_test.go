package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsentSelectors(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<div id="banner">
			<button id="onetrust-accept-btn-handler">Accept All Cookies</button>
			<button id="reject">Reject</button>
			<button id="cookie-ok">  Got
				it </button>
			<div role="button" aria-label="Allow all">✓</div>
			<button aria-label='say "hi"'>OK</button>
			<button class="x">I agree</button>
		</div>
	</body></html>`

	require.Equal(t, []string{
		"#onetrust-accept-btn-handler",
		"button#cookie-ok",
		`div[aria-label="Allow all"]`,
	}, consentSelectors(html))
}

func TestConsentSelectorsNone(t *testing.T) {
	t.Parallel()

	require.Nil(t, consentSelectors(""))
	require.Empty(t, consentSelectors(`<html><body><button id="buy">Buy now</button></body></html>`))
}
