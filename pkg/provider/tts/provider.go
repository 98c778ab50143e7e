// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or the
// OpenAI speech API) behind a single-shot contract: one reply text in, one
// playable PCM clip out. The pipeline coordinator issues exactly one
// Synthesize call per generation; voice and speed semantics are passed
// through to the backend uninterpreted.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/duplexvoice/duplex/pkg/audio"
)

// Request carries one reply to synthesize.
type Request struct {
	// Text is the reply text to speak.
	Text string

	// Voice is the provider-specific voice identifier. Empty uses the
	// provider default.
	Voice string

	// Speed adjusts the speaking rate (0.5–2.0, 0 or 1.0 = default).
	Speed float64
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must respect ctx cancellation promptly — the coordinator
// cancels the context of superseded work.
type Provider interface {
	// Synthesize converts text to a playable PCM clip. The returned clip's
	// SampleRate and Channels reflect what the backend produced; the
	// playback path is responsible for any format conversion.
	Synthesize(ctx context.Context, req Request) (audio.Clip, error)

	// ListVoices returns all voice profiles available from this provider.
	// The list reflects the provider's current catalogue and may change
	// between calls.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
