// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., the OpenAI audio API
// or a local whisper.cpp model) behind a single-shot request/response
// contract: one complete utterance of PCM audio in, one transcript out. The
// pipeline coordinator issues exactly one Transcribe call per utterance and
// never retries; providers should therefore surface failures promptly rather
// than attempting internal recovery.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// DefaultConfidence is the confidence assigned to transcripts from providers
// that do not report one.
const DefaultConfidence = 0.95

// Request carries one utterance of audio to transcribe.
type Request struct {
	// PCM is little-endian 16-bit signed mono PCM audio of the utterance.
	PCM []byte

	// SampleRate is the sample rate of PCM in Hz.
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g., "en").
	// Empty lets the provider auto-detect, if supported.
	Language string

	// Model selects a specific model within the provider. Empty uses the
	// provider default.
	Model string
}

// Result is a transcription result.
type Result struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Providers that
	// do not report confidence set [DefaultConfidence].
	Confidence float64
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use and must respect ctx
// cancellation — the coordinator cancels the context of superseded work.
type Provider interface {
	// Transcribe converts one complete utterance to text. An empty
	// transcript with a nil error is a valid outcome (e.g., non-speech
	// audio); callers decide how to treat it.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
