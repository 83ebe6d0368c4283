package cache

import (
	"context"
	"time"
)

// Store is the backing key/value layer of the response cache. Keys are
// already normalized when they reach the store.
type Store interface {
	// Get returns the stored value and whether a live (non-expired) entry
	// exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous entry. A zero ttl
	// means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Purge removes expired entries where the backend does not do so itself.
	// It returns the number of entries removed.
	Purge(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
