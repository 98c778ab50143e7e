// Package config provides the configuration schema and loader for the
// Duplex voice engine.
package config

import "time"

// LogLevel controls log verbosity for the Duplex process.
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

// Config is the root configuration structure for Duplex.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Capture    CaptureConfig    `yaml:"capture"`
	VAD        VADConfig        `yaml:"vad"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Providers  ProvidersConfig  `yaml:"providers"`
}

// ServerConfig holds network and logging settings for the state/health
// endpoints.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on
	// (e.g., ":8080"). Empty disables the server entirely.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig holds microphone acquisition settings.
type CaptureConfig struct {
	// SampleRate is the capture rate in Hz. 0 means 16000.
	SampleRate int `yaml:"sample_rate"`

	// EchoCancellation, NoiseSuppression, and AutoGainControl request the
	// matching device-side processing. All default to enabled; set the
	// field explicitly to false to opt out.
	EchoCancellation *bool `yaml:"echo_cancellation"`
	NoiseSuppression *bool `yaml:"noise_suppression"`
	AutoGainControl  *bool `yaml:"auto_gain_control"`

	// TickInterval is the sampling-loop cadence. 0 means 16ms, roughly the
	// refresh cadence of a 60 Hz display.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// VADConfig holds voice-activity thresholds. Zero values take the detector
// defaults (0.05 speech, 0.01 silence, 1500ms trailing silence).
type VADConfig struct {
	// SpeechThreshold is the volume strictly above which speech is
	// confirmed.
	SpeechThreshold float64 `yaml:"speech_threshold"`

	// SilenceThreshold is the volume below which the trailing-silence
	// timer arms while speaking.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// TrailingSilence is how long silence must persist before an utterance
	// is considered finished.
	TrailingSilence time.Duration `yaml:"trailing_silence"`
}

// PipelineConfig holds per-turn pipeline behaviour.
type PipelineConfig struct {
	// StageTimeout bounds each external service call. 0 means 10s.
	StageTimeout time.Duration `yaml:"stage_timeout"`

	// MinTranscriptLength is the noise floor for transcripts in
	// characters. 0 means 3.
	MinTranscriptLength int `yaml:"min_transcript_length"`

	// MaxTokens caps reply length. 0 means the provider default.
	MaxTokens int `yaml:"max_tokens"`

	// SystemPrompt is the persona injected ahead of every conversation.
	SystemPrompt string `yaml:"system_prompt"`

	// HistoryLimit is the number of retained exchange pairs. 0 means 20.
	HistoryLimit int `yaml:"history_limit"`

	// StatsWindow is the number of latency samples kept per stage for the
	// dashboard percentiles. 0 means 100.
	StatsWindow int `yaml:"stats_window"`
}

// VocabularyConfig configures transcript correction against known terms.
type VocabularyConfig struct {
	// Terms lists proper nouns and domain words STT tends to mangle.
	// Empty disables correction.
	Terms []string `yaml:"terms"`

	// PhoneticThreshold and FuzzyThreshold tune match acceptance. Zero
	// values take the corrector defaults (0.70 and 0.85).
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
	FuzzyThreshold    float64 `yaml:"fuzzy_threshold"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage.
type ProvidersConfig struct {
	STT   ProviderEntry `yaml:"stt"`
	Reply ProviderEntry `yaml:"reply"`
	TTS   ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai",
	// "elevenlabs", "whisper-native").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "whisper-1"). For local STT this is the model file path.
	Model string `yaml:"model"`

	// Language hints the spoken language to STT providers (e.g., "en").
	Language string `yaml:"language"`

	// Voice is the provider-specific voice identifier for TTS.
	Voice string `yaml:"voice"`

	// SpeedFactor adjusts TTS speaking rate in the range [0.5, 2.0].
	// 0 means the provider default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

func boolDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// EchoCancellationEnabled resolves the echo-cancellation flag, defaulting
// to enabled.
func (c CaptureConfig) EchoCancellationEnabled() bool { return boolDefault(c.EchoCancellation, true) }

// NoiseSuppressionEnabled resolves the noise-suppression flag, defaulting
// to enabled.
func (c CaptureConfig) NoiseSuppressionEnabled() bool { return boolDefault(c.NoiseSuppression, true) }

// AutoGainControlEnabled resolves the auto-gain flag, defaulting to
// enabled.
func (c CaptureConfig) AutoGainControlEnabled() bool { return boolDefault(c.AutoGainControl, true) }
