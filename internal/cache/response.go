package cache

import (
	"context"
	"log/slog"
	"time"
)

// ResponseCache maps normalized prompts to previously generated answers so
// repeated questions skip the LLM entirely.
type ResponseCache struct {
	store Store
	ttl   time.Duration
}

// New creates a ResponseCache over store. Entries live for ttl; zero means
// forever.
func New(store Store, ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: store, ttl: ttl}
}

// Lookup returns the cached answer for prompt, if a live entry exists.
func (c *ResponseCache) Lookup(ctx context.Context, prompt string) (string, bool) {
	key := NormalizeKey(prompt)
	if key == "" {
		return "", false
	}
	val, ok, err := c.store.Get(ctx, key)
	if err != nil {
		// A broken cache degrades to a miss; the pipeline must keep moving.
		slog.Warn("response cache: lookup failed", "err", err)
		return "", false
	}
	return val, ok
}

// Save stores an answer under the normalized prompt, replacing any previous
// entry. Failures are logged and swallowed: caching is an optimization, never
// a reason to fail a request.
func (c *ResponseCache) Save(ctx context.Context, prompt, response string) {
	key := NormalizeKey(prompt)
	if key == "" || response == "" {
		return
	}
	if err := c.store.Set(ctx, key, response, c.ttl); err != nil {
		slog.Warn("response cache: save failed", "err", err)
	}
}

// Sweep removes expired entries and returns how many were dropped.
func (c *ResponseCache) Sweep(ctx context.Context) int {
	n, err := c.store.Purge(ctx)
	if err != nil {
		slog.Warn("response cache: sweep failed", "err", err)
		return 0
	}
	return n
}

// Close releases the underlying store.
func (c *ResponseCache) Close() error { return c.store.Close() }
