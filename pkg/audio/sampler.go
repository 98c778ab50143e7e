package audio

import (
	"math"
	"sync"
)

// SpectralSampler exposes periodic volume readings from a live capture
// stream. It consumes frames from a [CaptureDevice] on an internal goroutine
// and keeps only the most recent energy snapshot; SampleVolume never blocks
// and is safe to call from the sampling loop at any cadence.
//
// The sampler is the single consumer of the device's frame stream. Callers
// that also need the raw frames (e.g., an utterance recorder) register a tap
// via [WithTap]; the tap is invoked on the sampler's consumption goroutine
// and must not block.
type SpectralSampler struct {
	mu     sync.Mutex
	device CaptureDevice
	tap    func(Frame)
	volume float64
	live   bool
	closed bool
	done   chan struct{}
}

// SamplerOption configures a SpectralSampler during construction.
type SamplerOption func(*SpectralSampler)

// WithTap registers fn to receive every captured frame before its volume is
// computed. fn runs on the sampler's internal goroutine and must not block.
func WithTap(fn func(Frame)) SamplerOption {
	return func(s *SpectralSampler) { s.tap = fn }
}

// NewSpectralSampler starts sampling the given device. The caller retains
// ownership of the device and must close it separately; Shutdown only stops
// the sampler's consumption.
func NewSpectralSampler(device CaptureDevice, opts ...SamplerOption) *SpectralSampler {
	s := &SpectralSampler{
		device: device,
		live:   true,
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.consume()
	return s
}

// consume drains the device's frame stream, updating the latest RMS snapshot
// and forwarding frames to the tap.
func (s *SpectralSampler) consume() {
	frames := s.device.Frames()
	for {
		select {
		case <-s.done:
			return
		case frame, ok := <-frames:
			if !ok {
				// Device closed or failed: report no signal from here on.
				s.mu.Lock()
				s.volume = 0
				s.live = false
				s.mu.Unlock()
				return
			}
			if s.tap != nil {
				s.tap(frame)
			}
			v := RMS(frame.PCM)
			s.mu.Lock()
			s.volume = v
			s.mu.Unlock()
		}
	}
}

// SampleVolume returns the RMS volume of the latest captured frame,
// normalized to [0, 1]. Returns 0 when no frame has been observed yet.
func (s *SpectralSampler) SampleVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Live reports whether the underlying frame stream is still delivering.
// It turns false when the device's stream ends, letting the sampling loop
// degrade to no-signal handling instead of reading stale volume.
func (s *SpectralSampler) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live && !s.closed
}

// Shutdown stops the sampler. Idempotent: safe to call multiple times and
// safe to call before any frame has arrived.
func (s *SpectralSampler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// RMS returns the root-mean-square energy of a 16-bit signed little-endian
// PCM buffer, normalized by the maximum representable magnitude so the
// result lies in [0, 1]. Returns 0 for buffers shorter than one sample; a
// trailing odd byte is ignored.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		sample := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		sum += sample * sample
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}
