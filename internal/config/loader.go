package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values with working defaults so a minimal config
// file stays minimal.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":5000"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.FrameMs == 0 {
		cfg.Audio.FrameMs = 30
	}
	if cfg.Audio.QueueDepth == 0 {
		cfg.Audio.QueueDepth = 64
	}

	if cfg.Wake.Threshold == 0 {
		cfg.Wake.Threshold = 0.5
	}
	if cfg.Wake.StrictThreshold == 0 {
		cfg.Wake.StrictThreshold = 0.75
	}
	if cfg.Wake.NoiseCeiling == 0 {
		cfg.Wake.NoiseCeiling = 0.2
	}
	if cfg.Wake.Persistence == 0 {
		cfg.Wake.Persistence = 2
	}
	if cfg.Wake.CooldownSeconds == 0 {
		cfg.Wake.CooldownSeconds = 2
	}

	if cfg.Capture.MaxSeconds == 0 {
		cfg.Capture.MaxSeconds = 10
	}
	if cfg.Capture.TrailingSilenceMs == 0 {
		cfg.Capture.TrailingSilenceMs = 1500
	}

	if cfg.Router.Greeting == "" {
		cfg.Router.Greeting = "Sim?"
	}
	if cfg.Router.Filler == "" {
		cfg.Router.Filler = "Só um momento."
	}
	if cfg.Router.LLMTimeoutSeconds == 0 {
		cfg.Router.LLMTimeoutSeconds = 30
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheMemory
	}
	if cfg.Cache.TTLHours == 0 {
		cfg.Cache.TTLHours = 24
	}
	if cfg.Cache.SweepMinutes == 0 {
		cfg.Cache.SweepMinutes = 30
	}

	if cfg.Memory.ContextLimit == 0 {
		cfg.Memory.ContextLimit = 5
	}

	if len(cfg.Playback.PlayerCommand) == 0 {
		cfg.Playback.PlayerCommand = []string{
			"aplay", "-q", "-f", "S16_LE", "-c", "1", "-r", "{rate}",
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_ms must be positive, got %d", cfg.Audio.FrameMs))
	}

	if cfg.Wake.Threshold < 0 || cfg.Wake.Threshold > 1 {
		errs = append(errs, fmt.Errorf("wake.threshold must be in 0..1, got %v", cfg.Wake.Threshold))
	}
	if cfg.Wake.StrictThreshold < cfg.Wake.Threshold {
		errs = append(errs, fmt.Errorf("wake.strict_threshold %v must not be below wake.threshold %v", cfg.Wake.StrictThreshold, cfg.Wake.Threshold))
	}
	if cfg.Wake.Persistence < 1 {
		errs = append(errs, fmt.Errorf("wake.persistence must be at least 1, got %d", cfg.Wake.Persistence))
	}
	if qh := cfg.Wake.QuietHours; qh.Enabled {
		if qh.Start < 0 || qh.Start > 23 || qh.End < 0 || qh.End > 23 {
			errs = append(errs, fmt.Errorf("wake.quiet_hours start/end must be hours 0..23, got %d..%d", qh.Start, qh.End))
		}
	}

	if cfg.Capture.MaxSeconds <= 0 {
		errs = append(errs, fmt.Errorf("capture.max_seconds must be positive, got %v", cfg.Capture.MaxSeconds))
	}
	if cfg.Capture.SilenceThreshold > cfg.Capture.SpeechThreshold {
		errs = append(errs, fmt.Errorf("capture.silence_threshold %v must not exceed capture.speech_threshold %v", cfg.Capture.SilenceThreshold, cfg.Capture.SpeechThreshold))
	}

	if !cfg.Cache.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("cache.backend %q is invalid; valid values: memory, redis", cfg.Cache.Backend))
	}
	if cfg.Cache.Backend == CacheRedis && cfg.Cache.RedisAddr == "" {
		errs = append(errs, fmt.Errorf("cache.redis_addr is required when cache.backend is redis"))
	}

	seen := map[string]bool{}
	for i, plug := range cfg.Skills.Plugs {
		if plug.Nickname == "" {
			errs = append(errs, fmt.Errorf("skills.plugs[%d].nickname must not be empty", i))
		}
		if seen[plug.Nickname] {
			errs = append(errs, fmt.Errorf("skills.plugs[%d]: duplicate nickname %q", i, plug.Nickname))
		}
		seen[plug.Nickname] = true
		if plug.URL == "" {
			errs = append(errs, fmt.Errorf("skills.plugs[%d].url must not be empty", i))
		}
		if plug.Kind != "" && !plug.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("skills.plugs[%d].kind %q is invalid; valid values: toggle, sensor", i, plug.Kind))
		}
	}

	if cfg.Skills.Notify.Token != "" && cfg.Skills.Notify.ChannelID == "" {
		errs = append(errs, fmt.Errorf("skills.notify.channel_id is required when a token is set"))
	}

	return errors.Join(errs...)
}
