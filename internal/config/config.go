// Package config provides the configuration schema, loader and file watcher
// for the fantasma voice assistant.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	Wake       WakeConfig       `yaml:"wake"`
	Capture    CaptureConfig    `yaml:"capture"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Router     RouterConfig     `yaml:"router"`
	Cache      CacheConfig      `yaml:"cache"`
	Memory     MemoryConfig     `yaml:"memory"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Skills     SkillsConfig     `yaml:"skills"`
}

// ServerConfig holds network and logging settings for the control plane.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":5000").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig describes the capture stream.
type AudioConfig struct {
	// InputCommand is the argv of the external capture process. It must write
	// mono S16_LE PCM at SampleRate to stdout. Empty disables the voice loop
	// (API-only operation).
	InputCommand []string `yaml:"input_command"`

	// SampleRate of the capture stream in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FrameMs is the frame length submitted to wake scoring and VAD.
	FrameMs int `yaml:"frame_ms"`

	// QueueDepth bounds the frame queue between capture and detection.
	QueueDepth int `yaml:"queue_depth"`
}

// FrameSamples returns the number of samples per frame.
func (a AudioConfig) FrameSamples() int {
	return a.SampleRate * a.FrameMs / 1000
}

// WakeConfig tunes wake-word detection.
type WakeConfig struct {
	// ScorerURL is the base URL of the wake-word scoring sidecar.
	ScorerURL string `yaml:"scorer_url"`

	// Threshold is the per-frame score needed to advance the trigger streak.
	Threshold float64 `yaml:"threshold"`

	// StrictThreshold replaces Threshold for frames whose RMS level exceeds
	// NoiseCeiling, shielding against loud-room false positives.
	StrictThreshold float64 `yaml:"strict_threshold"`

	// NoiseCeiling is the normalized RMS level above which StrictThreshold
	// applies.
	NoiseCeiling float64 `yaml:"noise_ceiling"`

	// Persistence is how many consecutive frames must stay above threshold
	// before the wake word triggers.
	Persistence int `yaml:"persistence"`

	// CooldownSeconds suppresses re-triggering after a trigger.
	CooldownSeconds float64 `yaml:"cooldown_seconds"`

	// QuietHours optionally disables triggering during a daily window.
	QuietHours QuietHoursConfig `yaml:"quiet_hours"`
}

// QuietHoursConfig is a daily hour window during which the assistant never
// wakes. Start may be after End for windows that wrap midnight (23 to 7).
type QuietHoursConfig struct {
	Enabled bool `yaml:"enabled"`
	Start   int  `yaml:"start"`
	End     int  `yaml:"end"`
}

// CaptureConfig tunes utterance recording.
type CaptureConfig struct {
	// MaxSeconds is the hard recording limit.
	MaxSeconds float64 `yaml:"max_seconds"`

	// TrailingSilenceMs ends the recording after this much silence once
	// speech has been heard.
	TrailingSilenceMs int `yaml:"trailing_silence_ms"`

	// SpeechThreshold and SilenceThreshold tune the energy VAD.
	SpeechThreshold  float64 `yaml:"speech_threshold"`
	SilenceThreshold float64 `yaml:"silence_threshold"`
}

// ProvidersConfig declares the external model services.
type ProvidersConfig struct {
	STT STTConfig `yaml:"stt"`
	LLM LLMConfig `yaml:"llm"`
	TTS TTSConfig `yaml:"tts"`
}

// STTConfig selects the transcription backend.
type STTConfig struct {
	// Model is the transcription model name (e.g. "whisper-1").
	Model string `yaml:"model"`

	// APIKey authenticates against the backend. Local servers accept anything.
	APIKey string `yaml:"api_key"`

	// BaseURL points at a whisper-compatible server. Empty means the OpenAI
	// default endpoint.
	BaseURL string `yaml:"base_url"`

	// Language fixes the transcription language (ISO-639-1).
	Language string `yaml:"language"`
}

// LLMConfig selects the completion backend.
type LLMConfig struct {
	// Provider is an any-llm provider name: openai, anthropic, gemini,
	// ollama, deepseek, mistral, groq, llamacpp, llamafile.
	Provider string `yaml:"provider"`

	// Model is the model identifier for that provider.
	Model string `yaml:"model"`

	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// TTSConfig selects the synthesis backend.
type TTSConfig struct {
	// BaseURL of the piper HTTP server.
	BaseURL string `yaml:"base_url"`

	// Voice is the piper voice model name.
	Voice string `yaml:"voice"`

	// SampleRate resamples synthesized audio for the player. Zero keeps the
	// voice model's native rate.
	SampleRate int `yaml:"sample_rate"`
}

// RouterConfig tunes the skill router and its LLM fallback.
type RouterConfig struct {
	// SystemPrompt is the assistant persona sent with every completion.
	SystemPrompt string `yaml:"system_prompt"`

	// Greeting is spoken right after the wake word triggers.
	Greeting string `yaml:"greeting"`

	// Filler is spoken while a slow LLM answer is being generated.
	Filler string `yaml:"filler"`

	// LLMTimeoutSeconds bounds each completion call.
	LLMTimeoutSeconds float64 `yaml:"llm_timeout_seconds"`

	// BusyCPUPercent short-circuits the LLM stage when host CPU usage is
	// above this value. Zero disables the guard.
	BusyCPUPercent float64 `yaml:"busy_cpu_percent"`

	// Temperature and MaxTokens are passed to the completion backend.
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// CacheBackend selects the response cache store.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
)

// IsValid reports whether b is a recognised cache backend.
func (b CacheBackend) IsValid() bool {
	return b == CacheMemory || b == CacheRedis
}

// CacheConfig tunes the response cache.
type CacheConfig struct {
	Backend CacheBackend `yaml:"backend"`

	// RedisAddr is the host:port of the Redis server (backend: redis).
	RedisAddr string `yaml:"redis_addr"`

	// RedisDB selects the Redis logical database.
	RedisDB int `yaml:"redis_db"`

	// TTLHours is how long cached answers stay valid.
	TTLHours float64 `yaml:"ttl_hours"`

	// SweepMinutes is the interval of the expired-entry sweep (memory backend).
	SweepMinutes int `yaml:"sweep_minutes"`
}

// MemoryConfig configures long-term utterance memory.
type MemoryConfig struct {
	// PostgresDSN enables the PostgreSQL store when non-empty.
	PostgresDSN string `yaml:"postgres_dsn"`

	// ContextLimit is how many remembered utterances are retrieved as LLM
	// context.
	ContextLimit int `yaml:"context_limit"`
}

// PlaybackConfig tunes speech output.
type PlaybackConfig struct {
	// PlayerCommand is the argv of the external playback process. It must
	// read mono S16_LE PCM from stdin; the literal argument "{rate}" is
	// replaced with the buffer's sample rate.
	PlayerCommand []string `yaml:"player_command"`

	// CacheDir holds rendered phrases keyed by content hash. Empty disables
	// the disk cache.
	CacheDir string `yaml:"cache_dir"`

	// SpeakAPIResponses also plays answers to API-originated requests out
	// loud. Off by default: API callers read the JSON response.
	SpeakAPIResponses bool `yaml:"speak_api_responses"`
}

// TranscriptConfig tunes the transcript hygiene pass.
type TranscriptConfig struct {
	// PhoneticFixes maps common mistranscriptions to their intended words,
	// applied case-insensitively on word boundaries.
	PhoneticFixes map[string]string `yaml:"phonetic_fixes"`

	// Vocabulary lists domain words (names, rooms) that fuzzy correction may
	// snap near-misses onto.
	Vocabulary []string `yaml:"vocabulary"`
}

// SkillsConfig configures the built-in skills.
type SkillsConfig struct {
	// Disabled lists skill names excluded from the registry.
	Disabled []string `yaml:"disabled"`

	Weather WeatherConfig `yaml:"weather"`
	Notify  NotifyConfig  `yaml:"notify"`
	Plugs   []PlugConfig  `yaml:"plugs"`
}

// WeatherConfig points the weather skill at a default location.
type WeatherConfig struct {
	Latitude     float64 `yaml:"latitude"`
	Longitude    float64 `yaml:"longitude"`
	LocationName string  `yaml:"location_name"`
}

// NotifyConfig configures the Discord notification skill.
type NotifyConfig struct {
	// Token is the Discord bot token. Empty disables the skill.
	Token string `yaml:"token"`

	// ChannelID is the channel notifications are sent to and read from.
	ChannelID string `yaml:"channel_id"`
}

// PlugKind distinguishes switchable devices from read-only sensors.
type PlugKind string

const (
	PlugToggle PlugKind = "toggle"
	PlugSensor PlugKind = "sensor"
)

// IsValid reports whether k is a recognised plug kind.
func (k PlugKind) IsValid() bool {
	return k == PlugToggle || k == PlugSensor
}

// PlugConfig describes one smart-plug relay or sensor.
type PlugConfig struct {
	// Nickname is how the device is referred to in speech ("luz da sala").
	Nickname string `yaml:"nickname"`

	// URL is the base URL of the device's HTTP relay.
	URL string `yaml:"url"`

	// Kind is "toggle" or "sensor".
	Kind PlugKind `yaml:"kind"`

	// PollSeconds is the status poll interval. Zero disables polling.
	PollSeconds int `yaml:"poll_seconds"`
}
