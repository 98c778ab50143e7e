// Package audio defines the types and interfaces for audio capture and
// playback device connectivity within duplex.
//
// The two primary abstractions are:
//
//   - [CaptureDevice] — acquires the microphone (or an equivalent source) and
//     delivers a continuous stream of [Frame] values.
//   - [Sink] — accepts synthesized audio for playback and supports immediate
//     preemption.
//
// Implementations are provided by host-specific adapter packages; the engine
// itself never touches platform audio APIs directly. This package lives under
// pkg/ because external code (host processes, device adapters) is expected to
// implement these interfaces.
package audio

import (
	"context"
	"errors"
)

// Taxonomy of device acquisition failures. Implementations wrap these
// sentinels so callers can distinguish a missing/denied device from a
// platform with no viable encoding at all.
var (
	// ErrDeviceUnavailable indicates the capture device is absent or access
	// to it was denied. Fatal to initialization; the caller must re-acquire
	// explicitly.
	ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

	// ErrUnsupportedPlatform indicates no working encoding could be
	// negotiated, including the platform default. Fatal to initialization.
	ErrUnsupportedPlatform = errors.New("audio: no supported capture encoding")
)

// DefaultSampleRate is the capture rate the engine consumes natively, in Hz.
const DefaultSampleRate = 16000

// Encoding identifies an audio encoding a capture device may produce.
type Encoding string

const (
	// EncodingPCM16Mono16k is 16-bit little-endian PCM, 16 kHz, mono — the
	// format the engine consumes natively.
	EncodingPCM16Mono16k Encoding = "pcm16/16000/mono"

	// EncodingPCM16Stereo48k is 16-bit PCM at 48 kHz stereo, downmixed and
	// resampled by the adapter before delivery.
	EncodingPCM16Stereo48k Encoding = "pcm16/48000/stereo"

	// EncodingOpus48k is Opus-framed audio at 48 kHz, decoded via
	// [github.com/duplexvoice/duplex/pkg/audio/opus] before delivery.
	EncodingOpus48k Encoding = "opus/48000"
)

// PreferredEncodings is the ordered capability-probe table used when opening
// a capture device. Adapters try each entry in order via [CaptureConfig]'s
// Supported function and fall back to the platform default when none match;
// encoding choice alone never hard-fails an open.
var PreferredEncodings = []Encoding{
	EncodingPCM16Mono16k,
	EncodingPCM16Stereo48k,
	EncodingOpus48k,
}

// CaptureConfig describes how the capture device should be acquired.
type CaptureConfig struct {
	// SampleRate is the delivery sample rate in Hz. The engine requires 16000.
	SampleRate int

	// EchoCancellation enables the device's built-in echo canceller.
	EchoCancellation bool

	// NoiseSuppression enables the device's built-in noise suppression.
	NoiseSuppression bool

	// AutoGainControl enables automatic gain control.
	AutoGainControl bool
}

// CaptureDevice is the contract for an acquired audio input device.
//
// Frames delivers captured audio continuously until Close is called or the
// device fails; the channel is closed by the implementation on either event.
// Implementations must be safe for concurrent use.
type CaptureDevice interface {
	// Frames returns the read-only stream of captured audio. The same channel
	// is returned on every call.
	Frames() <-chan Frame

	// Encoding reports the encoding that was negotiated when the device was
	// opened (after fallback, this may differ from the first preference).
	Encoding() Encoding

	// Close releases the device and closes the Frames channel. Idempotent:
	// safe to call multiple times and safe to call on a device that failed
	// to open fully.
	Close() error
}

// Opener acquires a capture device. Host adapters implement this; the
// supplied ctx bounds the acquisition attempt only.
//
// Open must wrap [ErrDeviceUnavailable] when permission is denied or no
// hardware is present, and [ErrUnsupportedPlatform] when no entry of
// [PreferredEncodings] nor the platform default can be negotiated.
type Opener interface {
	Open(ctx context.Context, cfg CaptureConfig) (CaptureDevice, error)
}

// ProbeEncoding walks prefs in order and returns the first encoding accepted
// by supported. When none is accepted it returns fallback with ok=false so
// the caller can attempt the platform default rather than failing outright.
func ProbeEncoding(prefs []Encoding, supported func(Encoding) bool, fallback Encoding) (enc Encoding, ok bool) {
	for _, e := range prefs {
		if supported(e) {
			return e, true
		}
	}
	return fallback, false
}
