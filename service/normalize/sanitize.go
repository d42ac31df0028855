package normalize

import "strings"

// unicodeSpaceReplacer maps the Unicode whitespace variants that break
// single-byte PDF text encoding onto a plain ASCII space. Form input pasted
// from listing sites and word processors carries these routinely.
var unicodeSpaceReplacer = strings.NewReplacer(
	" ", " ", // no-break space
	" ", " ", // narrow no-break space
	" ", " ", // en space
	" ", " ", // em space
	" ", " ", // three-per-em space
	" ", " ", // four-per-em space
	" ", " ", // six-per-em space
	" ", " ", // figure space
	" ", " ", // punctuation space
	" ", " ", // thin space
	" ", " ", // hair space
	" ", " ", // medium mathematical space
)

// Sanitize returns text safe for single-byte PDF text encoding: every
// Unicode whitespace variant becomes a plain ASCII space and the result is
// trimmed. Sanitize is idempotent. Every string must pass through here
// immediately before it is drawn into a document; unsanitized text triggers
// a fatal encoding error from the renderer.
func Sanitize(text string) string {
	return strings.TrimSpace(unicodeSpaceReplacer.Replace(text))
}
