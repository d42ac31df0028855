package normalize

import (
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_UnicodeSpaceVariants(t *testing.T) {
	variants := []struct {
		name string
		r    rune
	}{
		{"no-break space", ' '},
		{"narrow no-break space", ' '},
		{"en space", ' '},
		{"em space", ' '},
		{"three-per-em space", ' '},
		{"four-per-em space", ' '},
		{"six-per-em space", ' '},
		{"figure space", ' '},
		{"punctuation space", ' '},
		{"thin space", ' '},
		{"hair space", ' '},
		{"medium mathematical space", ' '},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			got := Sanitize("123" + string(v.r) + "Main St")
			assert.Equal(t, "123 Main St", got)

			for _, r := range got {
				assert.LessOrEqual(t, r, unicode.MaxLatin1)
			}
		})
	}
}

func TestSanitize_TrimsResult(t *testing.T) {
	assert.Equal(t, "Jane Doe", Sanitize("  Jane Doe  "))
	assert.Equal(t, "", Sanitize("   "))
	assert.Equal(t, "", Sanitize(""))
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"123 Main St",
		"  plain ascii  ",
		"Åsa Öberg", // latin-1 text passes through untouched
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once))
	}
}

func TestSanitize_PreservesNonSpaceContent(t *testing.T) {
	// Only whitespace is normalized; other characters are left alone even
	// when they fall outside the drawable range.
	assert.Equal(t, "“smart quotes”", Sanitize("“smart quotes”"))
	assert.Equal(t, "café", Sanitize("café"))
}
