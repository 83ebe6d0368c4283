package skill

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/fantasma-ai/fantasma/internal/cache"
	"github.com/fantasma-ai/fantasma/internal/memory"
	"github.com/fantasma-ai/fantasma/internal/observe"
	"github.com/fantasma-ai/fantasma/internal/request"
	"github.com/fantasma-ai/fantasma/pkg/provider/llm"
)

// Canned responses. The assistant speaks Portuguese; these are the fixed
// phrases used when no real answer can be produced.
const (
	answerNotUnderstood = "Desculpa, não percebi."
	answerBusy          = "Estou um pouco ocupado agora. Tenta outra vez daqui a pouco."
	answerDegraded      = "Desculpa, não consigo responder a isso agora."
)

// SpeakFunc plays an answer for a request. useCache allows the playback
// layer to reuse previously rendered audio for fixed phrases.
type SpeakFunc func(ctx context.Context, text string, req *request.Request, useCache bool) error

// RouterConfig tunes the fallback chain behind the skills.
type RouterConfig struct {
	// SystemPrompt is the persona sent with every completion.
	SystemPrompt string

	// Filler is spoken before a (slow) LLM round trip. Empty disables it.
	Filler string

	// LLMTimeout bounds each completion call.
	LLMTimeout time.Duration

	// BusyCPUPercent short-circuits the LLM stage when host CPU usage is
	// above this value. Zero disables the guard.
	BusyCPUPercent float64

	// Temperature and MaxTokens are forwarded to the completion backend.
	Temperature float64
	MaxTokens   int

	// ContextLimit is how many remembered utterances are retrieved as
	// completion context.
	ContextLimit int
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithSpeakFunc attaches the playback callback. Without it the router is
// silent and only returns text (useful for tests and API-only setups).
func WithSpeakFunc(speak SpeakFunc) RouterOption {
	return func(r *Router) { r.speak = speak }
}

// WithCPUPercentFunc overrides the host load probe.
func WithCPUPercentFunc(f func(ctx context.Context) (float64, error)) RouterOption {
	return func(r *Router) { r.cpuPercent = f }
}

// WithMetrics overrides the metrics instance (tests).
func WithMetrics(m *observe.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// Router resolves an utterance to an answer: skills first, then the response
// cache, then the LLM with remembered context.
type Router struct {
	registry *Registry
	cache    *cache.ResponseCache
	provider llm.Provider
	mem      memory.Store
	tracker  *request.Tracker
	cfg      RouterConfig

	speak      SpeakFunc
	cpuPercent func(ctx context.Context) (float64, error)
	metrics    *observe.Metrics
}

// NewRouter creates a Router.
func NewRouter(reg *Registry, respCache *cache.ResponseCache, provider llm.Provider, mem memory.Store, tracker *request.Tracker, cfg RouterConfig, opts ...RouterOption) *Router {
	r := &Router{
		registry:   reg,
		cache:      respCache,
		provider:   provider,
		mem:        mem,
		tracker:    tracker,
		cfg:        cfg,
		cpuPercent: hostCPUPercent,
		metrics:    observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route answers text on behalf of req and returns the answer. It always
// returns something speakable; internal failures degrade to canned phrases
// instead of propagating. A request superseded mid-route returns "" and
// produces no output.
func (r *Router) Route(ctx context.Context, text string, req *request.Request) string {
	text = strings.TrimSpace(text)
	if text == "" {
		r.say(ctx, answerNotUnderstood, req, true)
		return answerNotUnderstood
	}
	lower := strings.ToLower(text)

	// 1. Skills, in registry order, with fallthrough.
	for _, s := range r.registry.Snapshot() {
		if !Matches(s, lower) {
			continue
		}
		answer, err := s.Handle(ctx, lower, text)
		if !r.tracker.Active(req) {
			return ""
		}
		if err != nil {
			slog.Warn("router: skill failed, falling through", "skill", s.Name(), "err", err)
			r.metrics.RecordSkill(ctx, s.Name(), "error")
			continue
		}
		if answer == "" {
			slog.Debug("router: skill declined", "skill", s.Name())
			r.metrics.RecordSkill(ctx, s.Name(), "declined")
			continue
		}
		slog.Info("router: skill answered", "skill", s.Name())
		r.metrics.RecordSkill(ctx, s.Name(), "answered")
		r.say(ctx, answer, req, false)
		return answer
	}

	// 2. Response cache.
	answer, ok := r.cache.Lookup(ctx, text)
	r.metrics.RecordCacheLookup(ctx, ok)
	if ok {
		slog.Info("router: cache hit")
		r.say(ctx, answer, req, true)
		return answer
	}

	// 3. LLM. Refuse outright on an overloaded host; otherwise acknowledge
	// first so the user knows the answer is coming.
	if r.overloaded(ctx) {
		r.say(ctx, answerBusy, req, true)
		return answerBusy
	}
	if r.cfg.Filler != "" {
		r.say(ctx, r.cfg.Filler, req, true)
	}

	answer = r.complete(ctx, text)
	if !r.tracker.Active(req) {
		return ""
	}
	if answer == "" {
		r.say(ctx, answerDegraded, req, true)
		return answerDegraded
	}
	r.cache.Save(ctx, text, answer)
	r.say(ctx, answer, req, false)
	return answer
}

// complete runs the LLM fallback and returns "" on any failure.
func (r *Router) complete(ctx context.Context, text string) string {
	if r.cfg.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.LLMTimeout)
		defer cancel()
	}

	system := r.cfg.SystemPrompt
	if past := r.remembered(ctx, text); past != "" {
		system = strings.TrimSpace(system + "\n\n" + past)
	}

	start := time.Now()
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: text}},
		Temperature:  r.cfg.Temperature,
		MaxTokens:    r.cfg.MaxTokens,
	})
	r.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.Warn("router: completion failed", "err", err)
		return ""
	}

	if err := r.mem.SaveUtterance(ctx, text); err != nil {
		slog.Warn("router: remember utterance failed", "err", err)
	}
	return strings.TrimSpace(resp.Content)
}

// remembered retrieves past utterances relevant to text, formatted as a
// context block. A broken store degrades to no context.
func (r *Router) remembered(ctx context.Context, text string) string {
	if r.cfg.ContextLimit <= 0 {
		return ""
	}
	past, err := r.mem.Retrieve(ctx, text, r.cfg.ContextLimit)
	if err != nil {
		slog.Warn("router: memory retrieval failed", "err", err)
		return ""
	}
	return memory.FormatContext(past)
}

// overloaded reports whether the host is too busy for an LLM round trip.
func (r *Router) overloaded(ctx context.Context) bool {
	if r.cfg.BusyCPUPercent <= 0 {
		return false
	}
	pct, err := r.cpuPercent(ctx)
	if err != nil {
		slog.Warn("router: cpu probe failed", "err", err)
		return false
	}
	if pct > r.cfg.BusyCPUPercent {
		slog.Warn("router: host overloaded, skipping completion", "cpu_percent", pct)
		return true
	}
	return false
}

// say plays text for req when a speak callback is attached. Playback
// failures are logged; the textual answer is still returned to the caller.
func (r *Router) say(ctx context.Context, text string, req *request.Request, useCache bool) {
	if r.speak == nil {
		return
	}
	if err := r.speak(ctx, text, req, useCache); err != nil {
		slog.Warn("router: playback failed", "err", err)
	}
}

func hostCPUPercent(ctx context.Context) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, 150*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, nil
	}
	return pcts[0], nil
}
