// Package cache implements the two-tier response cache: normalized prompt
// keys over a pluggable store (in-process memory or Redis) with TTL handling,
// plus the disk-level audio cache key helper used by playback.
package cache

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes to NFD, removes combining marks, and recomposes.
// "previsão" and "previsao" must land on the same key.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey canonicalizes a prompt for cache lookup: lower-case, accents
// stripped, punctuation removed, whitespace collapsed. Trivial rephrasings of
// the same question ("Liga a Luz da Sala", "liga a luz da sala?") hit the
// same entry.
func NormalizeKey(s string) string {
	lowered := strings.ToLower(s)
	stripped, _, err := transform.String(stripAccents, lowered)
	if err != nil {
		// Transform failures only happen on invalid UTF-8; fall back to the
		// lowered input rather than failing a cache lookup.
		stripped = lowered
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			// Punctuation and whitespace both collapse into one separator.
			space = true
		}
	}
	return b.String()
}
