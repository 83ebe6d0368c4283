package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const watcherYAML = `
server:
  log_level: info
wake:
  scorer_url: "http://localhost:9321"
`

const watcherUpdatedYAML = `
server:
  log_level: debug
wake:
  scorer_url: "http://localhost:9321"
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

func TestWatcherInitialLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, watcherYAML)

	w, err := NewWatcher(path, nil, WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	if got := w.Current().Server.LogLevel; got != LogInfo {
		t.Fatalf("log_level = %q, want %q", got, LogInfo)
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, watcherYAML)

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, func(_, new *Config) {
		select {
		case changed <- new:
		default:
		}
	}, WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	writeConfigFile(t, path, watcherUpdatedYAML)

	select {
	case cfg := <-changed:
		if cfg.Server.LogLevel != LogDebug {
			t.Fatalf("new log_level = %q, want %q", cfg.Server.LogLevel, LogDebug)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("change callback was not invoked")
	}

	if got := w.Current().Server.LogLevel; got != LogDebug {
		t.Fatalf("Current() log_level = %q, want %q", got, LogDebug)
	}
}

func TestWatcherKeepsPreviousConfigOnInvalidEdit(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, watcherYAML)

	var mu sync.Mutex
	calls := 0
	w, err := NewWatcher(path, func(_, _ *Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	writeConfigFile(t, path, watcherInvalidYAML)
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 0 {
		t.Fatalf("callback fired %d times for an invalid edit, want 0", got)
	}
	if lvl := w.Current().Server.LogLevel; lvl != LogInfo {
		t.Fatalf("Current() log_level = %q, want the previous %q", lvl, LogInfo)
	}
}

func TestWatcherIgnoresTouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, watcherYAML)

	var mu sync.Mutex
	calls := 0
	w, err := NewWatcher(path, func(_, _ *Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("touch: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	got := calls
	mu.Unlock()
	if got != 0 {
		t.Fatalf("callback fired %d times for a touch-only change, want 0", got)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, watcherYAML)

	w, err := NewWatcher(path, nil, WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestWatcherInitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("NewWatcher() succeeded for a missing file")
	}
}
