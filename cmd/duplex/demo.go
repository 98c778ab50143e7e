package main

import (
	"context"
	"sync"
	"time"

	"github.com/duplexvoice/duplex/pkg/audio"
)

// The demo host runs the full engine without touching platform audio APIs:
// the capture side produces silent frames at a fixed cadence and the output
// side "plays" a clip by waiting out its duration. Real deployments swap in
// host adapters (WebRTC, OS audio) implementing the same interfaces.

const demoFrameInterval = 20 * time.Millisecond

// ─── Capture ─────────────────────────────────────────────────────────────────

type demoOpener struct{}

func (demoOpener) Open(_ context.Context, cfg audio.CaptureConfig) (audio.CaptureDevice, error) {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}
	d := &demoDevice{
		frames: make(chan audio.Frame, 16),
		stop:   make(chan struct{}),
		rate:   rate,
	}
	go d.produce()
	return d, nil
}

var _ audio.Opener = demoOpener{}

// demoDevice emits silent PCM frames until closed.
type demoDevice struct {
	frames chan audio.Frame
	stop   chan struct{}
	rate   int

	closeOnce sync.Once
}

func (d *demoDevice) produce() {
	samples := d.rate * int(demoFrameInterval) / int(time.Second)
	silence := make([]byte, 2*samples)

	ticker := time.NewTicker(demoFrameInterval)
	defer ticker.Stop()
	defer close(d.frames)

	start := time.Now()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			f := audio.Frame{
				PCM:        silence,
				SampleRate: d.rate,
				Channels:   1,
				Timestamp:  time.Since(start),
			}
			select {
			case d.frames <- f:
			case <-d.stop:
				return
			}
		}
	}
}

func (d *demoDevice) Frames() <-chan audio.Frame { return d.frames }

func (d *demoDevice) Encoding() audio.Encoding { return audio.EncodingPCM16Mono16k }

func (d *demoDevice) Close() error {
	d.closeOnce.Do(func() { close(d.stop) })
	return nil
}

var _ audio.CaptureDevice = (*demoDevice)(nil)

// ─── Playback ────────────────────────────────────────────────────────────────

type demoSink struct{}

// Play resolves the session after the clip's natural duration elapses, or
// immediately on Stop.
func (demoSink) Play(_ context.Context, clip audio.Clip) (audio.PlaybackSession, error) {
	s := &demoSession{
		done: make(chan error, 1),
		stop: make(chan struct{}),
	}
	go s.run(clipDuration(clip))
	return s, nil
}

var _ audio.Sink = demoSink{}

type demoSession struct {
	done chan error
	stop chan struct{}

	stopOnce sync.Once
}

func (s *demoSession) run(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.stop:
	}
	s.done <- nil
	close(s.done)
}

func (s *demoSession) Done() <-chan error { return s.done }

func (s *demoSession) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

var _ audio.PlaybackSession = (*demoSession)(nil)

func clipDuration(c audio.Clip) time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	samples := len(c.PCM) / (2 * c.Channels)
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}
