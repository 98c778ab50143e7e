// Package playback manages synthesized-audio output with immediate
// preemption.
//
// The Controller enforces the single-playback discipline: at most one
// response is audible at a time. Starting a new clip silently stops
// whatever was playing (last writer wins), and Stop halts output the
// moment a barge-in is detected. Completion, failure, and preemption are
// reported through optional callbacks so the caller never has to poll.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/duplexvoice/duplex/internal/observe"
	"github.com/duplexvoice/duplex/pkg/audio"
)

// ErrPlaybackFailed marks output-device failures, whether the device refused
// to start a session or failed mid-playback. Match with [errors.Is]; the
// wrapped error carries the device detail.
var ErrPlaybackFailed = errors.New("playback: output device failure")

// Option configures a [Controller].
type Option func(*Controller)

// WithOnStarted sets a callback invoked after a clip begins playing.
func WithOnStarted(fn func()) Option {
	return func(c *Controller) { c.onStarted = fn }
}

// WithOnEnded sets a callback invoked when a clip plays to natural
// completion. Not invoked for stopped or failed playback.
func WithOnEnded(fn func()) Option {
	return func(c *Controller) { c.onEnded = fn }
}

// WithOnFailed sets a callback invoked when the output device or codec
// reports an error mid-playback.
func WithOnFailed(fn func(error)) Option {
	return func(c *Controller) { c.onFailed = fn }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics sets the OTel instrument set backing the active-playback
// gauge. When nil, playback is not instrumented.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller owns the playback device and the single active session.
// Safe for concurrent use; Play and Stop may race freely with session
// completion.
type Controller struct {
	sink    audio.Sink
	log     *slog.Logger
	metrics *observe.Metrics

	onStarted func()
	onEnded   func()
	onFailed  func(error)

	mu      sync.Mutex
	current audio.PlaybackSession
}

// NewController returns a Controller playing through sink.
func NewController(sink audio.Sink, opts ...Option) *Controller {
	c := &Controller{
		sink: sink,
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Play starts clip on the output device. Any clip already playing is
// stopped first, so at most one session exists at any instant. Returns an
// error only when the device refuses to start; mid-playback failures are
// delivered to the failure callback instead.
func (c *Controller) Play(ctx context.Context, clip audio.Clip) error {
	c.mu.Lock()
	if c.current != nil {
		c.current.Stop()
		c.current = nil
		c.trackActive(ctx, -1)
	}
	session, err := c.sink.Play(ctx, clip)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}
	c.current = session
	c.trackActive(ctx, 1)
	c.mu.Unlock()

	if c.onStarted != nil {
		c.onStarted()
	}
	go c.watch(session)
	return nil
}

// trackActive maintains the active-playback gauge. Callers hold c.mu.
func (c *Controller) trackActive(ctx context.Context, delta int64) {
	if c.metrics != nil {
		c.metrics.ActivePlaybacks.Add(ctx, delta)
	}
}

// watch waits for session to finish and fires the matching callback. The
// session is only cleared if it is still the current one, so a Play that
// replaced it concurrently is never clobbered.
func (c *Controller) watch(session audio.PlaybackSession) {
	err := <-session.Done()

	c.mu.Lock()
	wasCurrent := c.current == session
	if wasCurrent {
		c.current = nil
		c.trackActive(context.Background(), -1)
	}
	c.mu.Unlock()

	if !wasCurrent {
		// Replaced or stopped before completion; Stop already accounted
		// for it.
		return
	}
	if err != nil {
		c.log.Error("playback failed", "error", err)
		if c.onFailed != nil {
			c.onFailed(fmt.Errorf("%w: %w", ErrPlaybackFailed, err))
		}
		return
	}
	if c.onEnded != nil {
		c.onEnded()
	}
}

// Stop immediately halts the active playback and clears the session.
// Idempotent: calling Stop with nothing playing does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	session := c.current
	c.current = nil
	if session != nil {
		c.trackActive(context.Background(), -1)
	}
	c.mu.Unlock()

	if session != nil {
		session.Stop()
	}
}

// Active reports whether a session is currently playing.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}
