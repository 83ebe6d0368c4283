package playback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fantasma-ai/fantasma/internal/cache"
	"github.com/fantasma-ai/fantasma/internal/observe"
	"github.com/fantasma-ai/fantasma/internal/request"
	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/tts"
)

// Option configures a Controller.
type Option func(*Controller)

// WithDiskCache stores rendered phrases under dir, keyed by content hash, so
// fixed phrases (greetings, fillers, canned errors) skip synthesis entirely.
func WithDiskCache(dir string) Option {
	return func(c *Controller) { c.cacheDir = dir }
}

// WithAPISpeech also plays answers to API-originated requests out loud.
func WithAPISpeech(enabled bool) Option {
	return func(c *Controller) { c.speakAPI = enabled }
}

// WithMetrics overrides the metrics instance (tests).
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller owns speech output. At most one pipeline runs at a time; a new
// Speak (or an explicit Stop) hard-cancels whatever is currently rendering or
// playing.
type Controller struct {
	synth    tts.Provider
	sink     Sink
	tracker  *request.Tracker
	metrics  *observe.Metrics
	cacheDir string
	speakAPI bool

	speaking atomic.Bool

	mu      sync.Mutex
	current *pipeline
}

// New creates a Controller.
func New(synth tts.Provider, sink Sink, tracker *request.Tracker, opts ...Option) *Controller {
	c := &Controller{synth: synth, sink: sink, tracker: tracker, metrics: observe.DefaultMetrics()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Speaking reports whether audio is currently being rendered or played. The
// wake detector consults this to avoid triggering on the assistant's own
// voice.
func (c *Controller) Speaking() bool { return c.speaking.Load() }

// Stop hard-cancels the in-flight pipeline, if any, and waits until it has
// fully unwound. Safe to call from any goroutine.
func (c *Controller) Stop() {
	c.mu.Lock()
	p := c.current
	c.current = nil
	c.mu.Unlock()
	if p == nil {
		return
	}
	p.Cancel()
	<-p.Done()
}

// Speak renders text and plays it. The call blocks until playback finishes,
// is cancelled, or fails.
//
// Output policy, in order: empty text is a no-op; API-originated requests are
// silent unless configured otherwise; a request that is no longer active
// produces nothing. The lifecycle is re-checked between rendering and
// playing, so an utterance superseded during synthesis is dropped before a
// single sample is audible.
func (c *Controller) Speak(ctx context.Context, text string, req *request.Request, useCache bool) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if req != nil && req.Origin == request.OriginAPI && !c.speakAPI {
		return nil
	}
	if !c.tracker.Active(req) {
		slog.Debug("playback: dropping output for inactive request", "request", reqID(req))
		return nil
	}

	// Displace and install in one critical section, then wait for the
	// displaced pipeline to unwind. Exactly one pipeline is ever reachable
	// from c.current, and every displaced one is cancelled before this Speak
	// touches the sink, so two concurrent Speaks cannot interleave audio.
	p, pctx := newPipeline(ctx)
	c.mu.Lock()
	displaced := c.current
	c.current = p
	c.mu.Unlock()
	if displaced != nil {
		displaced.Cancel()
		<-displaced.Done()
	}
	defer p.finish()

	c.speaking.Store(true)
	defer c.speaking.Store(false)

	if !p.to(StateRendering) {
		return nil
	}
	buf, err := c.render(pctx, text, useCache)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("playback: render %q: %w", clip(text), err)
	}
	if buf.Empty() {
		return nil
	}

	if !c.tracker.Active(req) {
		slog.Debug("playback: request superseded during rendering", "request", reqID(req))
		return nil
	}
	if !p.to(StatePlaying) {
		return nil
	}

	if err := c.sink.Play(pctx, buf); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("playback: play: %w", err)
	}
	return nil
}

// Close stops any playback and releases the sink.
func (c *Controller) Close() error {
	c.Stop()
	return c.sink.Close()
}

// render produces the buffer for text, via the disk cache when allowed.
func (c *Controller) render(ctx context.Context, text string, useCache bool) (audio.Buffer, error) {
	cachePath := ""
	if useCache && c.cacheDir != "" {
		cachePath = c.cachePath(text)
		if buf, ok := readCached(cachePath); ok {
			return buf, nil
		}
	}

	start := time.Now()
	buf, err := c.synth.Synthesize(ctx, text)
	c.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return audio.Buffer{}, err
	}
	buf = normalizeGain(buf)

	if cachePath != "" {
		writeCached(cachePath, buf)
	}
	return buf, nil
}

func (c *Controller) cachePath(text string) string {
	sum := sha256.Sum256([]byte(cache.NormalizeKey(text)))
	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:])+".wav")
}

func readCached(path string) (audio.Buffer, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return audio.Buffer{}, false
	}
	buf, err := audio.DecodeWAV(data)
	if err != nil {
		slog.Warn("playback: corrupt cache file, ignoring", "path", path, "err", err)
		return audio.Buffer{}, false
	}
	return buf, true
}

// writeCached is best effort: a read-only disk costs synthesis time, not
// correctness.
func writeCached(path string, buf audio.Buffer) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Warn("playback: cannot create cache dir", "err", err)
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, audio.EncodeWAV(buf), 0o644); err != nil {
		slog.Warn("playback: cache write failed", "err", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		slog.Warn("playback: cache rename failed", "err", err)
		_ = os.Remove(tmp)
	}
}

// normalizeGain scales quiet renditions towards a comfortable peak. It never
// amplifies more than 4x and never touches buffers already near full scale.
func normalizeGain(buf audio.Buffer) audio.Buffer {
	peak := audio.Peak(buf.PCM)
	if peak == 0 || peak >= 0.7 {
		return buf
	}
	gain := 0.9 / peak
	if gain > 4 {
		gain = 4
	}
	out := make([]int16, len(buf.PCM))
	for i, s := range buf.PCM {
		v := float64(s) * gain
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return audio.Buffer{PCM: out, SampleRate: buf.SampleRate}
}

func reqID(r *request.Request) string {
	if r == nil {
		return "system"
	}
	return r.ID
}

func clip(s string) string {
	if len(s) <= 32 {
		return s
	}
	return s[:32] + "…"
}
