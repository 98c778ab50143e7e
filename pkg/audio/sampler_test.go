package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/duplexvoice/duplex/pkg/audio"
	"github.com/duplexvoice/duplex/pkg/audio/mock"
)

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func constantFrame(amplitude int16, samples int) audio.Frame {
	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = amplitude
	}
	return audio.Frame{
		PCM:        audio.Int16sToBytes(pcm),
		SampleRate: audio.DefaultSampleRate,
		Channels:   1,
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := audio.RMS([]byte{0x01}); got != 0 {
		t.Errorf("RMS(single byte) = %v, want 0", got)
	}

	// A constant-amplitude signal has RMS equal to its amplitude.
	f := constantFrame(16384, 64)
	want := 16384.0 / 32768.0
	if got := audio.RMS(f.PCM); math.Abs(got-want) > 1e-9 {
		t.Errorf("RMS(constant 16384) = %v, want %v", got, want)
	}

	// Silence is zero.
	if got := audio.RMS(constantFrame(0, 64).PCM); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}
}

func TestSamplerTracksLatestFrameVolume(t *testing.T) {
	t.Parallel()

	device := mock.NewDevice(4)
	sampler := audio.NewSpectralSampler(device)
	defer sampler.Shutdown()
	defer device.Close()

	if v := sampler.SampleVolume(); v != 0 {
		t.Errorf("volume before any frame = %v, want 0", v)
	}

	device.Push(constantFrame(16384, 64))
	want := 16384.0 / 32768.0
	if !waitFor(t, time.Second, func() bool {
		return math.Abs(sampler.SampleVolume()-want) < 1e-9
	}) {
		t.Fatalf("volume = %v, want %v", sampler.SampleVolume(), want)
	}

	// A quieter frame replaces the snapshot.
	device.Push(constantFrame(0, 64))
	if !waitFor(t, time.Second, func() bool { return sampler.SampleVolume() == 0 }) {
		t.Fatalf("volume = %v, want 0 after silent frame", sampler.SampleVolume())
	}
}

func TestSamplerForwardsFramesToTap(t *testing.T) {
	t.Parallel()

	device := mock.NewDevice(4)
	tapped := make(chan audio.Frame, 4)
	sampler := audio.NewSpectralSampler(device, audio.WithTap(func(f audio.Frame) {
		tapped <- f
	}))
	defer sampler.Shutdown()
	defer device.Close()

	frame := constantFrame(100, 32)
	device.Push(frame)

	select {
	case got := <-tapped:
		if len(got.PCM) != len(frame.PCM) {
			t.Errorf("tapped frame has %d bytes, want %d", len(got.PCM), len(frame.PCM))
		}
	case <-time.After(time.Second):
		t.Fatal("tap was not invoked")
	}
}

func TestSamplerGoesDeadWhenStreamEnds(t *testing.T) {
	t.Parallel()

	device := mock.NewDevice(4)
	sampler := audio.NewSpectralSampler(device)
	defer sampler.Shutdown()

	if !sampler.Live() {
		t.Fatal("sampler should be live before the stream ends")
	}

	device.Push(constantFrame(16384, 64))
	device.Close()

	if !waitFor(t, time.Second, func() bool { return !sampler.Live() }) {
		t.Fatal("sampler still live after device close")
	}
	if v := sampler.SampleVolume(); v != 0 {
		t.Errorf("volume after stream end = %v, want 0", v)
	}
}

func TestSamplerShutdownIsIdempotent(t *testing.T) {
	t.Parallel()

	device := mock.NewDevice(4)
	defer device.Close()

	sampler := audio.NewSpectralSampler(device)
	sampler.Shutdown()
	sampler.Shutdown()

	if sampler.Live() {
		t.Error("sampler reports live after shutdown")
	}
}

func TestProbeEncoding(t *testing.T) {
	t.Parallel()

	supports := func(want audio.Encoding) func(audio.Encoding) bool {
		return func(e audio.Encoding) bool { return e == want }
	}

	enc, ok := audio.ProbeEncoding(audio.PreferredEncodings, supports(audio.EncodingPCM16Mono16k), audio.EncodingOpus48k)
	if !ok || enc != audio.EncodingPCM16Mono16k {
		t.Errorf("probe = %v/%v, want pcm16 mono/true", enc, ok)
	}

	enc, ok = audio.ProbeEncoding(audio.PreferredEncodings, supports(audio.EncodingPCM16Stereo48k), audio.EncodingOpus48k)
	if !ok || enc != audio.EncodingPCM16Stereo48k {
		t.Errorf("probe = %v/%v, want pcm16 stereo/true", enc, ok)
	}

	// Nothing supported: fall back to the platform default with ok=false.
	enc, ok = audio.ProbeEncoding(audio.PreferredEncodings, func(audio.Encoding) bool { return false }, audio.EncodingOpus48k)
	if ok || enc != audio.EncodingOpus48k {
		t.Errorf("probe = %v/%v, want fallback/false", enc, ok)
	}
}
