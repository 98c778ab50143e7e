package opus_test

import (
	"testing"

	"layeh.com/gopus"

	"github.com/duplexvoice/duplex/pkg/audio/opus"
)

// encodeSilence produces one 20 ms Opus packet of 48 kHz stereo silence.
func encodeSilence(t *testing.T) []byte {
	t.Helper()
	enc, err := gopus.NewEncoder(48000, 2, gopus.Audio)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	pcm := make([]int16, 960*2)
	packet, err := enc.Encode(pcm, 960, 4000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return packet
}

func TestDecoder_ProducesEngineNativePCM(t *testing.T) {
	t.Parallel()

	dec, err := opus.NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	pcm, err := dec.Decode(encodeSilence(t))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	// 20 ms at 16 kHz mono is 320 samples of 2 bytes each.
	if got, want := len(pcm), 320*2; got != want {
		t.Errorf("decoded PCM length = %d, want %d", got, want)
	}
}

func TestDecoder_StatePersistsAcrossFrames(t *testing.T) {
	t.Parallel()

	dec, err := opus.NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	packet := encodeSilence(t)
	for i := 0; i < 3; i++ {
		if _, err := dec.Decode(packet); err != nil {
			t.Fatalf("Decode frame %d: %v", i, err)
		}
	}
}
