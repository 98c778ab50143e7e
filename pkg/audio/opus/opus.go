// Package opus adapts Opus-framed capture sources (voice-chat taps, WebRTC
// feeds) to the 16 kHz mono PCM frames the engine consumes. Each source
// stream gets its own decoder to maintain decoder state correctly across
// consecutive frames.
package opus

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/duplexvoice/duplex/pkg/audio"
)

// Opus voice-chat sources commonly run 48 kHz stereo at 20 ms frame size.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960

	// targetRate is the engine's native capture rate.
	targetRate = 16000
)

// Decoder decodes Opus packets from one source stream into engine-native
// 16 kHz mono PCM. Not safe for concurrent use; create one per stream.
type Decoder struct {
	dec *gopus.Decoder
}

// NewDecoder creates a decoder configured for 48 kHz stereo Opus input.
func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("opus: create decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode decodes a single Opus packet and returns 16 kHz mono little-endian
// PCM suitable for an [audio.Frame].
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("opus: decode: %w", err)
	}
	stereo := audio.Int16sToBytes(pcm)
	mono := audio.StereoToMono(stereo)
	return audio.ResampleMono16(mono, opusSampleRate, targetRate), nil
}
