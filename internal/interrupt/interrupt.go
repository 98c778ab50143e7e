// Package interrupt classifies barge-ins and turns them into preemption.
//
// The Controller bridges voice activity to the rest of the engine: speech
// that starts while a synthesized response is audible is a user
// interruption, which stops playback and invalidates any in-flight pipeline
// work. Speech during silence is ordinary turn-taking and passes through
// untouched — only the recorder reacts to it.
package interrupt

import (
	"context"
	"log/slog"

	"github.com/duplexvoice/duplex/internal/observe"
	"github.com/duplexvoice/duplex/internal/pipeline"
	"github.com/duplexvoice/duplex/internal/playback"
)

// Option configures a [Controller].
type Option func(*Controller)

// WithMetrics sets the OTel instrument set. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithStats sets the in-memory stats recorder. When nil, interruption
// counts are only reported to OTel.
func WithStats(s *observe.StatsRecorder) Option {
	return func(c *Controller) { c.stats = s }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller decides when new speech preempts the active response.
type Controller struct {
	out *playback.Controller
	co  *pipeline.Coordinator

	metrics *observe.Metrics
	stats   *observe.StatsRecorder
	log     *slog.Logger
}

// New wires a Controller to the playback controller it may stop and the
// coordinator whose generation it may invalidate.
func New(out *playback.Controller, co *pipeline.Coordinator, opts ...Option) *Controller {
	c := &Controller{
		out: out,
		co:  co,
		log: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// OnSpeechStarted handles a speech-started event from the sampling loop.
// Returns true when the event was classified as a barge-in and the active
// response was preempted; false for ordinary turn-taking.
func (c *Controller) OnSpeechStarted(ctx context.Context) bool {
	if !c.out.Active() {
		return false
	}
	c.log.Info("user barge-in, preempting response", "generation", c.co.Generation())
	c.preempt(ctx)
	return true
}

// Interrupt is the manual override: it preempts whatever is active, whether
// audible playback or pipeline work still in flight. Returns true when
// something was actually preempted.
func (c *Controller) Interrupt(ctx context.Context) bool {
	if !c.out.Active() && !c.co.Processing() {
		return false
	}
	c.log.Info("manual interruption", "generation", c.co.Generation())
	c.preempt(ctx)
	return true
}

// preempt stops playback, invalidates the current generation, and counts
// the interruption.
func (c *Controller) preempt(ctx context.Context) {
	c.out.Stop()
	c.co.Bump()
	c.metrics.RecordInterruption(ctx)
	if c.stats != nil {
		c.stats.RecordInterruption()
	}
}
