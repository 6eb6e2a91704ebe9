package capture

import (
	"crypto/sha1" // #nosec G505 -- used for a stable filename suffix, not security.
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

const maxFilenameBytes = 200

// SafeFilename derives the artifact base name for link. The http(s) scheme is
// dropped and every character outside [A-Za-z0-9._-] becomes '_'. Names longer than
// 200 bytes are cut and suffixed with a digest of the link so they stay
// unique.
func SafeFilename(link string) string {
	trimmed := strings.TrimPrefix(link, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		if r < utf8.RuneSelf && isSafe(byte(r)) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	name := b.String()
	if name == "" {
		name = "_"
	}
	if len(name) <= maxFilenameBytes {
		return name
	}

	sum := sha1.Sum([]byte(link)) // #nosec G401 -- filename digest only.
	digest := hex.EncodeToString(sum[:])[:16]
	return name[:maxFilenameBytes-len(digest)-1] + "_" + digest
}

func isSafe(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '_', c == '-':
		return true
	}
	return false
}
