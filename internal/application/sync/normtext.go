package sync

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentStripper decomposes characters and drops combining marks, turning
// "Açaí" into "Acai"
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldName produces the comparison form used by the catalog price fallback:
// accents and emoji stripped, punctuation dropped, whitespace collapsed,
// lower-cased. "🍔 X-Bacon" and "x-bacon" fold to the same string.
func foldName(s string) string {
	stripped, _, err := transform.String(accentStripper, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-' || r == '_':
			b.WriteRune(' ')
		}
		// Everything else (emoji, symbols, punctuation) is dropped
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
