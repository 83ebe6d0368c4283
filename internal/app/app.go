// Package app wires all fantasma subsystems into a running assistant.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems from configuration, Run executes the listening loop and the
// control plane, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithSource, WithSink,
// WithCacheStore, …). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fantasma-ai/fantasma/internal/cache"
	"github.com/fantasma-ai/fantasma/internal/capture"
	"github.com/fantasma-ai/fantasma/internal/config"
	"github.com/fantasma-ai/fantasma/internal/memory"
	"github.com/fantasma-ai/fantasma/internal/observe"
	"github.com/fantasma-ai/fantasma/internal/playback"
	"github.com/fantasma-ai/fantasma/internal/request"
	"github.com/fantasma-ai/fantasma/internal/server"
	"github.com/fantasma-ai/fantasma/internal/skill"
	"github.com/fantasma-ai/fantasma/internal/skill/builtin"
	"github.com/fantasma-ai/fantasma/internal/transcript"
	"github.com/fantasma-ai/fantasma/internal/wake"
	"github.com/fantasma-ai/fantasma/pkg/audio"
	"github.com/fantasma-ai/fantasma/pkg/provider/llm"
	"github.com/fantasma-ai/fantasma/pkg/provider/stt"
	"github.com/fantasma-ai/fantasma/pkg/provider/tts"
	"github.com/fantasma-ai/fantasma/pkg/provider/vad"
	wakeprov "github.com/fantasma-ai/fantasma/pkg/provider/wake"
)

// sttTimeout bounds one transcription round trip.
const sttTimeout = 30 * time.Second

// sourceBackoff is the wait before reacquiring a failed capture process.
const sourceBackoff = 2 * time.Second

// Providers holds one interface value per external collaborator. Populated
// by main.go from the config.
type Providers struct {
	Wake wakeprov.Scorer
	VAD  vad.Engine
	STT  stt.Provider
	LLM  llm.Provider
	TTS  tts.Provider
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects the audio source instead of spawning the configured
// capture process.
func WithSource(src audio.Source) Option {
	return func(a *App) { a.source = src }
}

// WithSink injects the playback sink instead of spawning the configured
// player process.
func WithSink(s playback.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithCacheStore injects the response cache store instead of creating one
// from config.
func WithCacheStore(s cache.Store) Option {
	return func(a *App) { a.cacheStore = s }
}

// WithMemoryStore injects the utterance memory store.
func WithMemoryStore(s memory.Store) Option {
	return func(a *App) { a.mem = s }
}

// WithSkills replaces the built-in skill set.
func WithSkills(skills ...skill.Skill) Option {
	return func(a *App) { a.skills = skills }
}

// App owns all subsystem lifetimes and orchestrates the voice pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	tracker    *request.Tracker
	queue      *audio.FrameQueue
	detector   *wake.Detector
	recorder   *capture.Recorder
	corrector  atomic.Pointer[transcript.Corrector]
	speech     *playback.Controller
	respCache  *cache.ResponseCache
	mem        memory.Store
	registry   *skill.Registry
	router     *skill.Router
	httpServer *server.Server
	hub        *server.Hub
	metrics    *observe.Metrics

	// Injectable collaborators.
	source     audio.Source
	sink       playback.Sink
	cacheStore cache.Store
	skills     []skill.Skill

	// workers tracks in-flight respond goroutines.
	workers sync.WaitGroup

	// closers are called in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		tracker:   request.NewTracker(),
		hub:       server.NewHub(),
		metrics:   observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}

	a.queue = audio.NewFrameQueue(cfg.Audio.QueueDepth)

	if err := a.initCache(ctx); err != nil {
		return nil, fmt.Errorf("app: init cache: %w", err)
	}
	if err := a.initMemory(ctx); err != nil {
		return nil, fmt.Errorf("app: init memory: %w", err)
	}
	if err := a.initPlayback(); err != nil {
		return nil, fmt.Errorf("app: init playback: %w", err)
	}
	if err := a.initSkills(); err != nil {
		return nil, fmt.Errorf("app: init skills: %w", err)
	}
	a.initPipeline()

	a.httpServer = server.New(cfg.Server.ListenAddr, a.router, a.registry, a.tracker,
		server.WithHub(a.hub))
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initCache(ctx context.Context) error {
	if a.cacheStore == nil {
		switch a.cfg.Cache.Backend {
		case config.CacheRedis:
			store, err := cache.NewRedisStore(ctx, a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisDB)
			if err != nil {
				return err
			}
			a.cacheStore = store
		default:
			a.cacheStore = cache.NewMemoryStore()
		}
	}
	ttl := time.Duration(a.cfg.Cache.TTLHours * float64(time.Hour))
	a.respCache = cache.New(a.cacheStore, ttl)
	a.closers = append(a.closers, a.respCache.Close)
	return nil
}

func (a *App) initMemory(ctx context.Context) error {
	if a.mem != nil {
		return nil
	}
	if dsn := a.cfg.Memory.PostgresDSN; dsn != "" {
		store, err := memory.NewPostgresStore(ctx, dsn)
		if err != nil {
			return err
		}
		a.mem = store
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		return nil
	}
	slog.Info("app: no database configured, utterance memory disabled")
	a.mem = memory.NopStore{}
	return nil
}

func (a *App) initPlayback() error {
	if a.sink == nil {
		sink, err := playback.NewExecSink(a.cfg.Playback.PlayerCommand)
		if err != nil {
			return err
		}
		a.sink = sink
	}

	opts := []playback.Option{
		playback.WithAPISpeech(a.cfg.Playback.SpeakAPIResponses),
		playback.WithMetrics(a.metrics),
	}
	if dir := a.cfg.Playback.CacheDir; dir != "" {
		opts = append(opts, playback.WithDiskCache(dir))
	}
	a.speech = playback.New(a.providers.TTS, a.sink, a.tracker, opts...)
	a.closers = append(a.closers, a.speech.Close)
	return nil
}

func (a *App) initSkills() error {
	if a.skills == nil {
		skills, err := buildSkills(a.cfg.Skills)
		if err != nil {
			return err
		}
		a.skills = skills
	}
	a.registry = skill.NewRegistry(a.skills...)

	a.router = skill.NewRouter(a.registry, a.respCache, a.providers.LLM, a.mem, a.tracker,
		skill.RouterConfig{
			SystemPrompt:   a.cfg.Router.SystemPrompt,
			Filler:         a.cfg.Router.Filler,
			LLMTimeout:     time.Duration(a.cfg.Router.LLMTimeoutSeconds * float64(time.Second)),
			BusyCPUPercent: a.cfg.Router.BusyCPUPercent,
			Temperature:    a.cfg.Router.Temperature,
			MaxTokens:      a.cfg.Router.MaxTokens,
			ContextLimit:   a.cfg.Memory.ContextLimit,
		},
		skill.WithSpeakFunc(a.speech.Speak),
		skill.WithMetrics(a.metrics))
	return nil
}

func (a *App) initPipeline() {
	a.corrector.Store(transcript.NewCorrector(a.cfg.Transcript.PhoneticFixes, a.cfg.Transcript.Vocabulary))

	a.detector = wake.NewDetector(a.providers.Wake, wake.Config{
		Threshold:       a.cfg.Wake.Threshold,
		StrictThreshold: a.cfg.Wake.StrictThreshold,
		NoiseCeiling:    a.cfg.Wake.NoiseCeiling,
		Persistence:     a.cfg.Wake.Persistence,
		Cooldown:        time.Duration(a.cfg.Wake.CooldownSeconds * float64(time.Second)),
		QuietHours: wake.QuietHours{
			Enabled: a.cfg.Wake.QuietHours.Enabled,
			Start:   a.cfg.Wake.QuietHours.Start,
			End:     a.cfg.Wake.QuietHours.End,
		},
	},
		wake.WithSpeakingFunc(a.speech.Speaking),
		wake.WithObserver(func(score float64, _ bool) {
			a.metrics.WakeScore.Record(context.Background(), score)
		}))

	a.recorder = capture.NewRecorder(a.queue, a.providers.VAD, capture.Config{
		SampleRate:       a.cfg.Audio.SampleRate,
		FrameMs:          a.cfg.Audio.FrameMs,
		TrailingSilence:  time.Duration(a.cfg.Capture.TrailingSilenceMs) * time.Millisecond,
		MaxDuration:      time.Duration(a.cfg.Capture.MaxSeconds * float64(time.Second)),
		SpeechThreshold:  a.cfg.Capture.SpeechThreshold,
		SilenceThreshold: a.cfg.Capture.SilenceThreshold,
	})
}

// buildSkills assembles the built-in skill set allowed by cfg, in routing
// priority order.
func buildSkills(cfg config.SkillsConfig) ([]skill.Skill, error) {
	disabled := make(map[string]bool, len(cfg.Disabled))
	for _, name := range cfg.Disabled {
		disabled[name] = true
	}

	var skills []skill.Skill
	add := func(s skill.Skill) {
		if !disabled[s.Name()] {
			skills = append(skills, s)
		}
	}

	if len(cfg.Plugs) > 0 {
		devices := make([]builtin.PlugDevice, 0, len(cfg.Plugs))
		for _, p := range cfg.Plugs {
			devices = append(devices, builtin.PlugDevice{
				Nickname:     p.Nickname,
				URL:          p.URL,
				Kind:         builtin.PlugKind(p.Kind),
				PollInterval: time.Duration(p.PollSeconds) * time.Second,
			})
		}
		add(builtin.NewPlugs(devices, skill.NewStatusBoard()))
	}

	add(builtin.NewSysStats())

	if cfg.Weather.Latitude != 0 || cfg.Weather.Longitude != 0 {
		add(builtin.NewWeather(cfg.Weather.Latitude, cfg.Weather.Longitude, cfg.Weather.LocationName))
	}

	if cfg.Notify.Token != "" {
		notify, err := builtin.NewNotify(cfg.Notify.Token, cfg.Notify.ChannelID)
		if err != nil {
			return nil, err
		}
		add(notify)
	}

	// Calc last among the skills: its triggers include everyday words.
	add(builtin.Calc{})
	return skills, nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the listening loop, the control plane, the skill daemons and
// the cache housekeeping, and blocks until ctx is cancelled or a subsystem
// fails fatally.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.httpServer.Run(ctx) })

	// A faulty daemon takes down its own skill only, never the assistant.
	for _, d := range a.registry.Daemons() {
		g.Go(func() error {
			if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("app: skill daemon failed", "err", err)
			}
			return nil
		})
	}

	g.Go(func() error { return a.housekeeping(ctx) })

	if a.voiceEnabled() {
		g.Go(func() error { return a.pumpLoop(ctx) })
		g.Go(func() error { return a.listenLoop(ctx) })
	} else {
		slog.Warn("app: no audio input configured, running API-only")
	}

	err := g.Wait()
	a.workers.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown releases all subsystems. Safe to call more than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		a.workers.Wait()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				slog.Warn("app: close failed", "err", err)
			}
		}
	})
}

// Reload applies a changed configuration to the running assistant. Only the
// sections that can change without a restart are applied: the skill set and
// the transcript hygiene rules. Daemons of newly added skills start on the
// next boot; everything else (audio, providers, server) needs a restart.
func (a *App) Reload(cfg *config.Config) {
	skills, err := buildSkills(cfg.Skills)
	if err != nil {
		slog.Warn("app: reload: rebuilding skills failed, keeping previous set", "err", err)
	} else {
		a.registry.Replace(skills)
		slog.Info("app: reload: skill set replaced", "skills", len(skills))
	}
	a.corrector.Store(transcript.NewCorrector(cfg.Transcript.PhoneticFixes, cfg.Transcript.Vocabulary))
}

func (a *App) voiceEnabled() bool {
	return a.source != nil || len(a.cfg.Audio.InputCommand) > 0
}

// pumpLoop keeps frames flowing from the capture source into the queue. A
// spawned capture process that dies is reacquired with backoff; an injected
// source ends the loop when it fails.
func (a *App) pumpLoop(ctx context.Context) error {
	for {
		src := a.source
		spawned := src == nil
		if spawned {
			cmd := a.cfg.Audio.InputCommand
			src = audio.NewExecSource(cmd[0], cmd[1:], a.cfg.Audio.SampleRate, a.cfg.Audio.FrameSamples())
		}

		err := audio.Pump(ctx, src, a.queue)
		if spawned {
			_ = src.Close()
		}
		if ctx.Err() != nil {
			return nil
		}
		if !spawned {
			return fmt.Errorf("app: audio source failed: %w", err)
		}

		slog.Warn("app: capture process died, reacquiring", "err", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sourceBackoff):
		}
	}
}

// listenLoop drives the wake detector and, on a trigger, records and
// dispatches one utterance.
func (a *App) listenLoop(ctx context.Context) error {
	for {
		frame, err := a.queue.Pop(ctx)
		if err != nil {
			return nil
		}
		if a.detector.Feed(ctx, frame) == wake.Triggered {
			a.handleTrigger(ctx)
		}
	}
}

// handleTrigger runs the wake-to-capture sequence inline (the detector must
// not score its own greeting), then hands the utterance to a worker so
// listening resumes immediately.
func (a *App) handleTrigger(ctx context.Context) {
	slog.Info("app: wake word triggered")
	a.metrics.WakeTriggers.Add(ctx, 1)
	a.hub.Publish(server.Event{Type: server.EventWake})

	if a.tracker.Current() != nil {
		a.metrics.BargeIns.Add(ctx, 1)
	}
	a.speech.Stop()

	req := a.tracker.Begin(request.OriginVoice)
	a.metrics.ActiveRequests.Add(ctx, 1)

	if err := a.speech.Speak(ctx, a.cfg.Router.Greeting, req, true); err != nil {
		slog.Warn("app: greeting failed", "err", err)
	}

	// Frames queued while greeting played are stale.
	a.queue.Drain()

	buf, err := a.recorder.Capture(ctx)
	if err != nil {
		slog.Error("app: capture failed", "err", err)
		a.finish(ctx, req)
		return
	}
	if buf.Empty() {
		slog.Info("app: no speech after trigger, back to listening")
		a.finish(ctx, req)
		return
	}

	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		a.respond(ctx, buf, req)
	}()
}

// respond transcribes, routes and answers one utterance.
func (a *App) respond(ctx context.Context, buf audio.Buffer, req *request.Request) {
	defer a.finish(ctx, req)

	text := a.transcribe(ctx, buf)
	if text != "" {
		slog.Info("app: heard", "text", text)
		a.hub.Publish(server.Event{Type: server.EventTranscript, Text: text})
	}
	if !a.tracker.Active(req) {
		return
	}

	start := time.Now()
	answer := a.router.Route(ctx, text, req)
	a.metrics.RouteDuration.Record(ctx, time.Since(start).Seconds())

	if answer != "" {
		a.hub.Publish(server.Event{Type: server.EventResponse, Text: answer})
	}
}

// transcribe runs STT and the hygiene pass. Failures degrade to an empty
// transcript, which the router answers with the canned fallback.
func (a *App) transcribe(ctx context.Context, buf audio.Buffer) string {
	sttCtx, cancel := context.WithTimeout(ctx, sttTimeout)
	defer cancel()

	start := time.Now()
	res, err := a.providers.STT.Transcribe(sttCtx, buf)
	a.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.Error("app: transcription failed", "err", err)
		return ""
	}
	return a.corrector.Load().Clean(res.Text)
}

func (a *App) finish(ctx context.Context, req *request.Request) {
	a.tracker.Complete(req)
	a.metrics.ActiveRequests.Add(ctx, -1)
}

// housekeeping sweeps the response cache and publishes queue drop counts.
func (a *App) housekeeping(ctx context.Context) error {
	interval := time.Duration(a.cfg.Cache.SweepMinutes) * time.Minute
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastDropped int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := a.respCache.Sweep(ctx); n > 0 {
				slog.Debug("app: cache sweep", "expired", n)
			}
			dropped := a.queue.Dropped()
			if delta := dropped - lastDropped; delta > 0 {
				a.metrics.DroppedFrames.Add(ctx, delta)
				slog.Warn("app: audio frames dropped", "count", delta)
			}
			lastDropped = dropped
		}
	}
}
