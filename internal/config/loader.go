package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per pipeline stage.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":   {"openai", "whisper-native", "mock"},
	"reply": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "mock"},
	"tts":   {"openai", "elevenlabs", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Capture
	if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must not be negative", cfg.Capture.SampleRate))
	}
	if cfg.Capture.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("capture.tick_interval %v must not be negative", cfg.Capture.TickInterval))
	}

	// VAD: the hysteresis gap requires silence strictly below speech.
	if cfg.VAD.SpeechThreshold < 0 || cfg.VAD.SpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("vad.speech_threshold %.3f is out of range [0, 1]", cfg.VAD.SpeechThreshold))
	}
	if cfg.VAD.SilenceThreshold < 0 || cfg.VAD.SilenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("vad.silence_threshold %.3f is out of range [0, 1]", cfg.VAD.SilenceThreshold))
	}
	if cfg.VAD.SpeechThreshold != 0 && cfg.VAD.SilenceThreshold != 0 &&
		cfg.VAD.SilenceThreshold >= cfg.VAD.SpeechThreshold {
		errs = append(errs, fmt.Errorf("vad.silence_threshold %.3f must be below vad.speech_threshold %.3f", cfg.VAD.SilenceThreshold, cfg.VAD.SpeechThreshold))
	}
	if cfg.VAD.TrailingSilence < 0 {
		errs = append(errs, fmt.Errorf("vad.trailing_silence %v must not be negative", cfg.VAD.TrailingSilence))
	}

	// Pipeline
	if cfg.Pipeline.StageTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.stage_timeout %v must not be negative", cfg.Pipeline.StageTimeout))
	}
	if cfg.Pipeline.MinTranscriptLength < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_transcript_length %d must not be negative", cfg.Pipeline.MinTranscriptLength))
	}

	// Vocabulary thresholds.
	for name, v := range map[string]float64{
		"vocabulary.phonetic_threshold": cfg.Vocabulary.PhoneticThreshold,
		"vocabulary.fuzzy_threshold":    cfg.Vocabulary.FuzzyThreshold,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %.3f is out of range [0, 1]", name, v))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("reply", cfg.Providers.Reply.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// TTS speed range.
	if s := cfg.Providers.TTS.SpeedFactor; s != 0 && (s < 0.5 || s > 2.0) {
		errs = append(errs, fmt.Errorf("providers.tts.speed_factor %.2f is out of range [0.5, 2.0]", s))
	}

	return errors.Join(errs...)
}

// validateProviderName warns when a provider name is not in the known set.
// Unknown names are not fatal: a newer provider may exist that this list
// has not caught up with.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if !slices.Contains(ValidProviderNames[kind], name) {
		slog.Warn("unrecognised provider name",
			"kind", kind,
			"name", name,
			"known", ValidProviderNames[kind],
		)
	}
}
