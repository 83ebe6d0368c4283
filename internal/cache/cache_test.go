package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Liga a Luz da Sala", "liga a luz da sala"},
		{"liga a luz da sala?", "liga a luz da sala"},
		{"  Previsão,   do TEMPO!  ", "previsao do tempo"},
		{"qual é a previsão?", "qual e a previsao"},
		{"???", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizationEquivalence(t *testing.T) {
	a := NormalizeKey("Liga a Luz da Sala")
	b := NormalizeKey("liga a luz da sala?")
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || got != "v" {
		t.Fatalf("Get() = (%q, %v, %v), want (v, true, nil)", got, ok, err)
	}
	if _, ok, _ := s.Get(ctx, "missing"); ok {
		t.Fatal("Get(missing) reported a hit")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Set(ctx, "k", "v", time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("fresh entry missed")
	}

	now = now.Add(2 * time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("expired entry still served")
	}

	// Expired entries are eligible for overwrite.
	s.Set(ctx, "k", "v2", time.Hour)
	got, ok, _ := s.Get(ctx, "k")
	if !ok || got != "v2" {
		t.Fatalf("overwritten entry = (%q, %v), want (v2, true)", got, ok)
	}
}

func TestMemoryStorePurge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Set(ctx, "old", "v", time.Minute)
	s.Set(ctx, "fresh", "v", time.Hour)
	s.Set(ctx, "eternal", "v", 0)

	now = now.Add(30 * time.Minute)
	removed, err := s.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("Purge() removed %d, want 1", removed)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	s, err := NewRedisStore(ctx, srv.Addr(), 0)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer s.Close()

	if err := s.Set(ctx, "k", "v", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || got != "v" {
		t.Fatalf("Get() = (%q, %v, %v), want (v, true, nil)", got, ok, err)
	}

	// TTL is delegated to the server.
	srv.FastForward(2 * time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("expired redis entry still served")
	}
}

func TestResponseCacheNormalizesOnBothSides(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore(), time.Hour)

	c.Save(ctx, "Liga a Luz da Sala", "ligada")
	got, ok := c.Lookup(ctx, "liga a luz da sala?")
	if !ok || got != "ligada" {
		t.Fatalf("Lookup() = (%q, %v), want (ligada, true)", got, ok)
	}
}

func TestResponseCacheIgnoresEmptyKeysAndValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := New(store, time.Hour)

	c.Save(ctx, "???", "resposta")
	c.Save(ctx, "pergunta", "")
	if store.Len() != 0 {
		t.Fatalf("store holds %d entries, want 0", store.Len())
	}
	if _, ok := c.Lookup(ctx, "!!!"); ok {
		t.Fatal("empty-key lookup reported a hit")
	}
}
