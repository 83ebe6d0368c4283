// Package transcript cleans raw STT output before routing. Three stages,
// applied in order:
//
//  1. Hallucination filter: whisper-style models emit stock phrases on
//     silence; those become the empty transcript.
//  2. Configured word fixes: known mistranscriptions mapped to the intended
//     word, case-insensitively.
//  3. Phonetic vocabulary snap: words that sound like a domain word (device
//     nicknames, room names) are replaced when string similarity agrees.
package transcript

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// jaroWinklerFloor is the similarity a phonetic match must also clear before
// a word is snapped onto vocabulary. Metaphone alone is too eager on short
// Portuguese words.
const jaroWinklerFloor = 0.82

// hallucinations are stock phrases speech models produce for silent or
// near-silent audio. Compared against the normalized (lowercase, trimmed,
// punctuation-stripped) transcript.
var hallucinations = map[string]bool{
	"obrigado":                           true,
	"obrigada":                           true,
	"thank you":                          true,
	"thanks for watching":                true,
	"legendas pela comunidade amara org": true,
	"tchau":                              true,
}

type vocabEntry struct {
	word    string
	primary string
	alt     string
}

// Corrector applies the hygiene stages. Safe for concurrent use after
// construction; all state is read-only.
type Corrector struct {
	fixes map[string]string
	vocab []vocabEntry
}

// NewCorrector builds a corrector. fixes maps lowercase mistranscriptions to
// replacements; vocab lists domain words eligible as fuzzy snap targets.
func NewCorrector(fixes map[string]string, vocab []string) *Corrector {
	c := &Corrector{fixes: make(map[string]string, len(fixes))}
	for k, v := range fixes {
		c.fixes[strings.ToLower(k)] = v
	}
	for _, w := range vocab {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		p, a := matchr.DoubleMetaphone(w)
		c.vocab = append(c.vocab, vocabEntry{word: w, primary: p, alt: a})
	}
	return c
}

// Clean runs all stages over a raw transcript. An empty return means the
// transcript should be discarded as noise.
func (c *Corrector) Clean(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	if c.isHallucination(text) {
		return ""
	}

	words := strings.Fields(text)
	for i, w := range words {
		core, prefix, suffix := splitPunct(w)
		if core == "" {
			continue
		}
		lower := strings.ToLower(core)

		if fix, ok := c.fixes[lower]; ok {
			words[i] = prefix + fix + suffix
			continue
		}
		if snap, ok := c.snap(lower); ok {
			words[i] = prefix + snap + suffix
		}
	}
	return strings.Join(words, " ")
}

func (c *Corrector) isHallucination(text string) bool {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	normalized := strings.Join(strings.Fields(b.String()), " ")
	if normalized == "" {
		// Pure punctuation is the classic silence artifact.
		return true
	}
	return hallucinations[normalized]
}

// snap returns the vocabulary word that word phonetically matches, if the
// surface similarity also clears the floor. Exact vocabulary words pass
// through untouched.
func (c *Corrector) snap(word string) (string, bool) {
	p, a := matchr.DoubleMetaphone(word)
	for _, v := range c.vocab {
		if v.word == word {
			return "", false
		}
	}
	for _, v := range c.vocab {
		if !phoneticEqual(p, a, v) {
			continue
		}
		if matchr.JaroWinkler(word, v.word, false) >= jaroWinklerFloor {
			return v.word, true
		}
	}
	return "", false
}

func phoneticEqual(p, a string, v vocabEntry) bool {
	if p == "" && a == "" {
		return false
	}
	return p == v.primary || (a != "" && a == v.alt) || (a != "" && a == v.primary) || (v.alt != "" && p == v.alt)
}

// splitPunct separates leading and trailing punctuation from a token so fixes
// keep the sentence's punctuation intact.
func splitPunct(w string) (core, prefix, suffix string) {
	runes := []rune(w)
	start, end := 0, len(runes)
	for start < end && !unicode.IsLetter(runes[start]) && !unicode.IsNumber(runes[start]) {
		start++
	}
	for end > start && !unicode.IsLetter(runes[end-1]) && !unicode.IsNumber(runes[end-1]) {
		end--
	}
	return string(runes[start:end]), string(runes[:start]), string(runes[end:])
}
