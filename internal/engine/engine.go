// Package engine runs the always-on listening loop of the Duplex voice
// engine.
//
// The Engine owns the capture device for its lifetime: a fixed-cadence
// ticker samples the microphone's volume, feeds the voice activity
// detector, and reacts to its events — speech opens the recorder's window,
// silence closes it and hands the finished utterance to the pipeline, and
// speech over an audible response becomes a barge-in. The loop itself never
// blocks; everything slow happens on the pipeline's own goroutines.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duplexvoice/duplex/internal/interrupt"
	"github.com/duplexvoice/duplex/internal/pipeline"
	"github.com/duplexvoice/duplex/internal/playback"
	"github.com/duplexvoice/duplex/internal/recorder"
	"github.com/duplexvoice/duplex/internal/vad"
	"github.com/duplexvoice/duplex/pkg/audio"
)

// DefaultTickInterval is the sampling cadence, roughly one tick per frame
// of a 60 Hz display.
const DefaultTickInterval = 16 * time.Millisecond

// Config holds the engine's capture and detection settings.
type Config struct {
	// Capture is passed to the device opener.
	Capture audio.CaptureConfig

	// VAD configures the detector thresholds. Zero values take the
	// detector defaults.
	VAD vad.Config

	// TickInterval is the sampling cadence. Zero means
	// [DefaultTickInterval].
	TickInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = audio.DefaultSampleRate
	}
	return c
}

// State is a point-in-time view of the engine for external observers. It is
// rebuilt from the live component states on every call, never cached.
type State struct {
	// Listening is true while the sampling loop is running.
	Listening bool `json:"listening"`

	// Processing is true while an utterance is between handoff and
	// playback.
	Processing bool `json:"processing"`

	// Speaking is true while a synthesized response is audible.
	Speaking bool `json:"speaking"`

	// CurrentVolume is the latest RMS volume sample in [0, 1].
	CurrentVolume float64 `json:"currentVolume"`

	// SilenceDetected is true when the detector is in or past trailing
	// silence for the current exchange.
	SilenceDetected bool `json:"silenceDetected"`
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine wires capture, detection, recording, and the pipeline into one
// run loop. Create with [New], start with [Run], stop by cancelling the
// context or calling [Engine.Shutdown].
type Engine struct {
	cfg    Config
	opener audio.Opener
	co     *pipeline.Coordinator
	out    *playback.Controller
	ic     *interrupt.Controller
	log    *slog.Logger

	rec *recorder.Recorder

	// mu guards the detector and the lifecycle fields below. The detector
	// is only ticked by the run loop; the lock exists so State can read it.
	mu       sync.Mutex
	det      *vad.Detector
	running  bool
	shutdown bool

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates an Engine. The coordinator, playback controller, and
// interruption controller are constructed by the caller so hosts can share
// them with their own dialogue and observability layers.
func New(
	cfg Config,
	opener audio.Opener,
	co *pipeline.Coordinator,
	out *playback.Controller,
	ic *interrupt.Controller,
	opts ...Option,
) *Engine {
	e := &Engine{
		cfg:    cfg.withDefaults(),
		opener: opener,
		co:     co,
		out:    out,
		ic:     ic,
		log:    slog.Default(),
		rec:    recorder.New(),
		det:    vad.New(cfg.VAD),
		stop:   make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run acquires the capture device and drives the sampling loop until ctx is
// cancelled or [Engine.Shutdown] is called. The device and sampler are
// released on every exit path, including acquisition failure partway
// through.
//
// Initialization failures ([audio.ErrDeviceUnavailable],
// [audio.ErrUnsupportedPlatform]) are returned to the caller as hard
// failures; per-utterance failures are contained inside the pipeline and
// never end the loop.
func (e *Engine) Run(ctx context.Context) error {
	device, err := e.opener.Open(ctx, e.cfg.Capture)
	if err != nil {
		return fmt.Errorf("engine: acquire capture device: %w", err)
	}
	defer device.Close()

	sampler := audio.NewSpectralSampler(device, audio.WithTap(e.rec.Append))
	defer sampler.Shutdown()

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.out.Stop()
		e.rec.Abort()
	}()

	e.log.Info("listening",
		"sample_rate", e.cfg.Capture.SampleRate,
		"tick", e.cfg.TickInterval,
		"encoding", device.Encoding(),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.tickLoop(ctx, sampler)
	})
	return g.Wait()
}

// tickLoop samples volume at the configured cadence and dispatches detector
// events. It returns when ctx is done or Shutdown is called.
func (e *Engine) tickLoop(ctx context.Context, sampler *audio.SpectralSampler) error {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case now := <-ticker.C:
			e.tick(ctx, sampler, now)
		}
	}
}

// tick runs one sampling step: read volume, advance the detector, and act
// on its events.
func (e *Engine) tick(ctx context.Context, sampler *audio.SpectralSampler, now time.Time) {
	volume := sampler.SampleVolume()
	e.co.Stats().SetVolume(volume)

	e.mu.Lock()
	var events []vad.Event
	if sampler.Live() {
		events = e.det.Tick(volume, now)
	} else {
		events = e.det.TickNoSignal(now)
	}
	e.mu.Unlock()

	for _, ev := range events {
		switch ev.Type {
		case vad.SpeechStarted:
			if e.ic.OnSpeechStarted(ctx) {
				e.log.Debug("speech started over active response", "volume", ev.Volume)
			}
			e.rec.Begin()
		case vad.SpeechEnded:
			u, ok := e.rec.End()
			if !ok {
				continue
			}
			// The pipeline blocks on external services; run it off the
			// sampling loop. Process handles its own staleness and errors.
			go func() {
				if err := e.co.Process(ctx, u); err != nil {
					e.log.Debug("utterance not completed", "reason", err)
				}
			}()
		case vad.NoSignal:
			// Sustained silence as far as detection is concerned; nothing
			// to do beyond what the detector already did.
		}
	}
}

// Shutdown stops the run loop. Idempotent: safe to call multiple times and
// safe to call before Run.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.shutdown = true
		e.mu.Unlock()
		close(e.stop)
	})
}

// Running reports whether the sampling loop is active. Used by readiness
// checks.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// ProcessingState assembles the observer snapshot from the live component
// states.
func (e *Engine) ProcessingState() State {
	e.mu.Lock()
	running := e.running
	silence := e.det.SilenceDetected()
	volume := e.det.LastVolume()
	e.mu.Unlock()

	return State{
		Listening:       running,
		Processing:      e.co.Processing(),
		Speaking:        e.out.Active(),
		CurrentVolume:   volume,
		SilenceDetected: silence,
	}
}

// InterruptCurrentResponse is the manual override exposed to observers: it
// preempts the active response exactly as a detected barge-in would.
// Returns true when something was preempted.
func (e *Engine) InterruptCurrentResponse(ctx context.Context) bool {
	return e.ic.Interrupt(ctx)
}
