// Command fantasma is the main entry point for the Fantasma voice assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/fantasma-ai/fantasma/internal/app"
	"github.com/fantasma-ai/fantasma/internal/config"
	"github.com/fantasma-ai/fantasma/internal/observe"
	"github.com/fantasma-ai/fantasma/pkg/provider/llm/anyllm"
	sttopenai "github.com/fantasma-ai/fantasma/pkg/provider/stt/openai"
	"github.com/fantasma-ai/fantasma/pkg/provider/tts/piper"
	"github.com/fantasma-ai/fantasma/pkg/provider/vad/energy"
	"github.com/fantasma-ai/fantasma/pkg/provider/wake/httpscore"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "fantasma: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "fantasma: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("fantasma starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_, updated *config.Config) {
		application.Reload(updated)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("assistant ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	application.Shutdown()

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders constructs the external model clients declared in cfg.
func buildProviders(cfg *config.Config) (*app.Providers, error) {
	ps := &app.Providers{
		Wake: httpscore.New(cfg.Wake.ScorerURL),
		VAD:  energy.New(),
	}

	var sttOpts []sttopenai.Option
	if cfg.Providers.STT.APIKey != "" {
		sttOpts = append(sttOpts, sttopenai.WithAPIKey(cfg.Providers.STT.APIKey))
	}
	if cfg.Providers.STT.BaseURL != "" {
		sttOpts = append(sttOpts, sttopenai.WithBaseURL(cfg.Providers.STT.BaseURL))
	}
	if cfg.Providers.STT.Language != "" {
		sttOpts = append(sttOpts, sttopenai.WithLanguage(cfg.Providers.STT.Language))
	}
	sttProvider, err := sttopenai.New(cfg.Providers.STT.Model, sttOpts...)
	if err != nil {
		return nil, fmt.Errorf("create stt provider: %w", err)
	}
	ps.STT = sttProvider
	slog.Info("provider created", "kind", "stt", "model", cfg.Providers.STT.Model)

	var llmOpts []anyllmlib.Option
	if cfg.Providers.LLM.APIKey != "" {
		llmOpts = append(llmOpts, anyllmlib.WithAPIKey(cfg.Providers.LLM.APIKey))
	}
	if cfg.Providers.LLM.BaseURL != "" {
		llmOpts = append(llmOpts, anyllmlib.WithBaseURL(cfg.Providers.LLM.BaseURL))
	}
	llmProvider, err := anyllm.New(cfg.Providers.LLM.Provider, cfg.Providers.LLM.Model, llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Provider, err)
	}
	ps.LLM = llmProvider
	slog.Info("provider created", "kind", "llm",
		"name", cfg.Providers.LLM.Provider, "model", cfg.Providers.LLM.Model)

	var ttsOpts []piper.Option
	if cfg.Providers.TTS.Voice != "" {
		ttsOpts = append(ttsOpts, piper.WithVoice(cfg.Providers.TTS.Voice))
	}
	if cfg.Providers.TTS.SampleRate > 0 {
		ttsOpts = append(ttsOpts, piper.WithOutputRate(cfg.Providers.TTS.SampleRate))
	}
	ps.TTS = piper.New(cfg.Providers.TTS.BaseURL, ttsOpts...)
	slog.Info("provider created", "kind", "tts", "voice", cfg.Providers.TTS.Voice)

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Fantasma — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printEntry("STT", cfg.Providers.STT.Model)
	printEntry("LLM", cfg.Providers.LLM.Provider+" / "+cfg.Providers.LLM.Model)
	printEntry("TTS", cfg.Providers.TTS.Voice)
	printEntry("Wake scorer", cfg.Wake.ScorerURL)
	if len(cfg.Audio.InputCommand) > 0 {
		printEntry("Audio input", cfg.Audio.InputCommand[0])
	} else {
		printEntry("Audio input", "(API only)")
	}
	if cfg.Memory.PostgresDSN != "" {
		printEntry("Memory", "postgres")
	} else {
		printEntry("Memory", "(disabled)")
	}
	printEntry("Cache", string(cfg.Cache.Backend))
	fmt.Printf("║  Skills disabled : %-19d ║\n", len(cfg.Skills.Disabled))
	fmt.Printf("║  Smart plugs     : %-19d ║\n", len(cfg.Skills.Plugs))
	if cfg.Server.ListenAddr != "" {
		printEntry("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printEntry(kind, value string) {
	if value == "" || value == " / " {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
