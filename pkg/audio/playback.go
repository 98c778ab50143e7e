package audio

import "context"

// Clip is a complete synthesized audio clip ready for playback.
type Clip struct {
	// PCM is little-endian 16-bit signed PCM data.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// PlaybackSession represents one in-progress playback on a [Sink].
//
// Implementations must be safe for concurrent use: Stop may race with
// natural completion.
type PlaybackSession interface {
	// Done returns a channel that receives exactly one value when playback
	// finishes — nil on natural completion or after Stop, non-nil on a
	// device or codec failure — and is then closed.
	Done() <-chan error

	// Stop halts playback immediately. Idempotent: calling Stop after
	// completion or repeatedly is a no-op.
	Stop()
}

// Sink is the contract for an audio output device. Host adapters implement
// this; the engine's playback controller enforces the at-most-one-session
// rule on top of it.
//
// Implementations must be safe for concurrent use.
type Sink interface {
	// Play begins playback of clip and returns immediately with a session
	// handle. The supplied ctx bounds only the start of playback.
	Play(ctx context.Context, clip Clip) (PlaybackSession, error)
}
