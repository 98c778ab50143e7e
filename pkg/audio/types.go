package audio

import "time"

// Frame represents a single frame of audio data flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from the input
// device, analysed for voice activity, accumulated into utterances, and
// handed to the transcription stage.
type Frame struct {
	// PCM is raw little-endian 16-bit signed PCM data.
	PCM []byte

	// SampleRate in Hz (16000 for the capture pipeline).
	SampleRate int

	// Channels: 1 for mono capture input.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame's PCM data.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.PCM) / (2 * f.Channels)
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
