package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fantasma-ai/fantasma/internal/cache"
	"github.com/fantasma-ai/fantasma/internal/config"
	"github.com/fantasma-ai/fantasma/internal/memory"
	"github.com/fantasma-ai/fantasma/internal/playback"
	"github.com/fantasma-ai/fantasma/internal/skill"
	"github.com/fantasma-ai/fantasma/pkg/audio"
	llmmock "github.com/fantasma-ai/fantasma/pkg/provider/llm/mock"
	sttmock "github.com/fantasma-ai/fantasma/pkg/provider/stt/mock"
	ttsmock "github.com/fantasma-ai/fantasma/pkg/provider/tts/mock"
	vadmock "github.com/fantasma-ai/fantasma/pkg/provider/vad/mock"
	wakemock "github.com/fantasma-ai/fantasma/pkg/provider/wake/mock"
)

// chanSource feeds frames pushed by the test, blocking in between.
type chanSource struct {
	frames chan audio.Frame
}

func newChanSource() *chanSource {
	return &chanSource{frames: make(chan audio.Frame, 64)}
}

func (s *chanSource) ReadFrame(ctx context.Context) (audio.Frame, error) {
	select {
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	case f := <-s.frames:
		return f, nil
	}
}

func (s *chanSource) Close() error { return nil }

func (s *chanSource) push(n int) {
	for i := 0; i < n; i++ {
		s.frames <- audio.Frame{PCM: make([]int16, 480), SampleRate: 16000}
	}
}

// lightSkill answers any utterance mentioning "luz".
type lightSkill struct{}

func (lightSkill) Name() string                   { return "light" }
func (lightSkill) TriggerType() skill.TriggerType { return skill.TriggerContains }
func (lightSkill) Triggers() []string             { return []string{"luz"} }
func (lightSkill) Handle(context.Context, string, string) (string, error) {
	return "Feito.", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0"},
		Audio:  config.AudioConfig{SampleRate: 16000, FrameMs: 30, QueueDepth: 64},
		Wake: config.WakeConfig{
			Threshold:       0.5,
			StrictThreshold: 0.75,
			NoiseCeiling:    0.2,
			Persistence:     2,
		},
		Capture: config.CaptureConfig{
			MaxSeconds:        2,
			TrailingSilenceMs: 90,
			SpeechThreshold:   0.015,
			SilenceThreshold:  0.008,
		},
		Router: config.RouterConfig{Greeting: "Sim?"},
		Cache:  config.CacheConfig{Backend: config.CacheMemory, TTLHours: 1, SweepMinutes: 1},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPipelineAnswersUtterance(t *testing.T) {
	src := newChanSource()
	sink := &playback.BufferSink{}
	synth := &ttsmock.Provider{}
	stt := sttmock.Texts("liga a luz da sala")

	providers := &Providers{
		Wake: wakemock.Scores(0.9, 0.9),
		VAD:  &vadmock.Engine{Session: vadmock.Speech(true, true, true)},
		STT:  stt,
		LLM:  llmmock.Replies("nunca usado"),
		TTS:  synth,
	}

	a, err := New(context.Background(), testConfig(), providers,
		WithSource(src),
		WithSink(sink),
		WithCacheStore(cache.NewMemoryStore()),
		WithMemoryStore(memory.NopStore{}),
		WithSkills(lightSkill{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Two high-scoring frames trip the detector.
	src.push(2)

	// The greeting is the first thing played after the trigger.
	waitFor(t, "greeting", func() bool { return len(sink.Played()) >= 1 })
	time.Sleep(100 * time.Millisecond) // let the post-greeting drain pass

	// The utterance: three speech frames, then enough silence to stop.
	src.push(8)

	waitFor(t, "answer playback", func() bool { return len(sink.Played()) >= 2 })

	got := synth.Synthesized()
	if len(got) != 2 || got[0] != "Sim?" || got[1] != "Feito." {
		t.Fatalf("synthesized = %v, want [Sim? Feito.]", got)
	}
	if len(stt.Buffers) != 1 || len(stt.Buffers[0].PCM) == 0 {
		t.Fatalf("stt received %d buffers, want one non-empty", len(stt.Buffers))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	a.Shutdown()
}

func TestFalseTriggerReturnsToListening(t *testing.T) {
	src := newChanSource()
	sink := &playback.BufferSink{}
	stt := sttmock.Texts("nunca chamado")

	providers := &Providers{
		Wake: wakemock.Scores(0.9, 0.9),
		VAD:  &vadmock.Engine{}, // never reports speech
		STT:  stt,
		LLM:  llmmock.Replies(""),
		TTS:  &ttsmock.Provider{},
	}

	cfg := testConfig()
	cfg.Capture.MaxSeconds = 0.2

	a, err := New(context.Background(), cfg, providers,
		WithSource(src),
		WithSink(sink),
		WithCacheStore(cache.NewMemoryStore()),
		WithMemoryStore(memory.NopStore{}),
		WithSkills(lightSkill{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	src.push(2)
	waitFor(t, "greeting", func() bool { return len(sink.Played()) >= 1 })
	time.Sleep(100 * time.Millisecond)
	src.push(20) // silence only; capture gives up at the hard limit

	// The request must complete without anything reaching STT.
	waitFor(t, "request completion", func() bool { return a.tracker.Current() == nil })
	if len(stt.Buffers) != 0 {
		t.Fatal("empty capture reached the transcriber")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// brokenDaemonSkill has a background entry point that fails at startup.
type brokenDaemonSkill struct{}

func (brokenDaemonSkill) Name() string                   { return "broken" }
func (brokenDaemonSkill) TriggerType() skill.TriggerType { return skill.TriggerNone }
func (brokenDaemonSkill) Triggers() []string             { return nil }
func (brokenDaemonSkill) Handle(context.Context, string, string) (string, error) {
	return "", nil
}
func (brokenDaemonSkill) Run(context.Context) error {
	return errors.New("gateway unreachable")
}

func TestDaemonFailureDoesNotStopAssistant(t *testing.T) {
	providers := &Providers{
		Wake: wakemock.Scores(),
		VAD:  &vadmock.Engine{},
		STT:  sttmock.Texts("nunca chamado"),
		LLM:  llmmock.Replies(""),
		TTS:  &ttsmock.Provider{},
	}

	a, err := New(context.Background(), testConfig(), providers,
		WithSource(newChanSource()),
		WithSink(&playback.BufferSink{}),
		WithCacheStore(cache.NewMemoryStore()),
		WithMemoryStore(memory.NopStore{}),
		WithSkills(lightSkill{}, brokenDaemonSkill{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("Run() returned early after a daemon failure: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestReloadReplacesSkillsAndTranscriptFixes(t *testing.T) {
	providers := &Providers{
		Wake: wakemock.Scores(),
		VAD:  &vadmock.Engine{},
		STT:  sttmock.Texts("nunca chamado"),
		LLM:  llmmock.Replies(""),
		TTS:  &ttsmock.Provider{},
	}

	a, err := New(context.Background(), testConfig(), providers,
		WithSource(newChanSource()),
		WithSink(&playback.BufferSink{}),
		WithCacheStore(cache.NewMemoryStore()),
		WithMemoryStore(memory.NopStore{}),
		WithSkills(lightSkill{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	updated := testConfig()
	updated.Skills = config.SkillsConfig{
		Disabled: []string{"sysstats"},
		Plugs: []config.PlugConfig{
			{Nickname: "luz da sala", URL: "http://10.0.0.9", Kind: config.PlugToggle},
		},
	}
	updated.Transcript.PhoneticFixes = map[string]string{"fantasia": "fantasma"}

	a.Reload(updated)

	names := make([]string, 0)
	for _, s := range a.registry.Snapshot() {
		names = append(names, s.Name())
	}
	want := []string{"plugs", "calc"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("skills after reload = %v, want %v", names, want)
	}

	if got := a.corrector.Load().Clean("liga a fantasia"); got != "liga a fantasma" {
		t.Fatalf("Clean() = %q, want the reloaded fix applied", got)
	}
}

func TestBuildSkillsHonoursDisabled(t *testing.T) {
	skills, err := buildSkills(config.SkillsConfig{
		Disabled: []string{"sysstats"},
		Plugs: []config.PlugConfig{
			{Nickname: "luz da sala", URL: "http://10.0.0.9", Kind: config.PlugToggle},
		},
	})
	if err != nil {
		t.Fatalf("buildSkills() error = %v", err)
	}

	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name())
	}
	want := []string{"plugs", "calc"}
	if len(names) != len(want) {
		t.Fatalf("skills = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("skills = %v, want %v", names, want)
		}
	}
}
