package skill

import "sync"

// StatusBoard holds the latest device-state snapshot per nickname. Each
// device has a single writer (its poller goroutine) that replaces the whole
// snapshot atomically; readers never block writers and never observe a
// half-updated snapshot.
type StatusBoard struct {
	snapshots sync.Map // nickname → map[string]any
}

// NewStatusBoard creates an empty StatusBoard.
func NewStatusBoard() *StatusBoard { return &StatusBoard{} }

// Publish replaces the snapshot for nickname. The caller must not modify
// snapshot after publishing it.
func (b *StatusBoard) Publish(nickname string, snapshot map[string]any) {
	b.snapshots.Store(nickname, snapshot)
}

// Get returns the latest snapshot for nickname. The returned map must be
// treated as read-only.
func (b *StatusBoard) Get(nickname string) (map[string]any, bool) {
	v, ok := b.snapshots.Load(nickname)
	if !ok {
		return nil, false
	}
	return v.(map[string]any), true
}
