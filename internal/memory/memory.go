// Package memory stores past utterances and retrieves the ones relevant to a
// new prompt, which the router feeds to the LLM as conversation context.
package memory

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// Utterance is one remembered user request.
type Utterance struct {
	Text       string
	ObservedAt time.Time
}

// Store persists and retrieves utterances. Implementations must be safe for
// concurrent use.
type Store interface {
	// SaveUtterance records one user request.
	SaveUtterance(ctx context.Context, text string) error

	// Retrieve returns up to limit past utterances relevant to prompt,
	// newest first.
	Retrieve(ctx context.Context, prompt string, limit int) ([]Utterance, error)

	// Close releases backend resources.
	Close()
}

// Keywords extracts the content words of a prompt used for retrieval
// matching. Short words carry no signal and are dropped.
func Keywords(prompt string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len([]rune(w)) > 3 {
			out = append(out, w)
		}
	}
	return out
}

// FormatContext renders retrieved utterances as a context block for the LLM
// system prompt. Empty input yields an empty string.
func FormatContext(utterances []Utterance) string {
	if len(utterances) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Pedidos anteriores relevantes:\n")
	for _, u := range utterances {
		b.WriteString("- ")
		b.WriteString(u.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// NopStore discards everything. Used when no database is configured.
type NopStore struct{}

var _ Store = NopStore{}

// SaveUtterance implements [Store].
func (NopStore) SaveUtterance(context.Context, string) error { return nil }

// Retrieve implements [Store].
func (NopStore) Retrieve(context.Context, string, int) ([]Utterance, error) { return nil, nil }

// Close implements [Store].
func (NopStore) Close() {}
