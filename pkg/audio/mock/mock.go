// Package mock provides test doubles for the audio package interfaces.
//
// Use Opener and Device to feed controlled frames into the engine's sampling
// loop, and Sink/Session to observe playback and exercise preemption without
// a real output device.
package mock

import (
	"context"
	"sync"

	"github.com/duplexvoice/duplex/pkg/audio"
)

// ─── Capture ─────────────────────────────────────────────────────────────────

// OpenCall records a single invocation of Opener.Open.
type OpenCall struct {
	// Ctx is the context passed to Open.
	Ctx context.Context
	// Cfg is the CaptureConfig passed to Open.
	Cfg audio.CaptureConfig
}

// Opener is a mock implementation of audio.Opener.
type Opener struct {
	mu sync.Mutex

	// Device is returned by Open. If nil, Open returns a new default Device.
	Device audio.CaptureDevice

	// OpenErr, if non-nil, is returned as the error from Open.
	OpenErr error

	// OpenCalls records every call to Open.
	OpenCalls []OpenCall
}

// Open records the call and returns Device, OpenErr.
func (o *Opener) Open(ctx context.Context, cfg audio.CaptureConfig) (audio.CaptureDevice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.OpenCalls = append(o.OpenCalls, OpenCall{Ctx: ctx, Cfg: cfg})
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	if o.Device != nil {
		return o.Device, nil
	}
	return NewDevice(16), nil
}

// Ensure Opener implements audio.Opener at compile time.
var _ audio.Opener = (*Opener)(nil)

// Device is a mock implementation of audio.CaptureDevice. Tests push frames
// via Push and close the stream via Close.
type Device struct {
	mu sync.Mutex

	// Enc is the encoding reported by Encoding. Defaults to pcm16/16000/mono.
	Enc audio.Encoding

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	frames chan audio.Frame
	closed bool
}

// NewDevice creates a Device with a frame channel of the given buffer depth.
func NewDevice(buf int) *Device {
	return &Device{
		Enc:    audio.EncodingPCM16Mono16k,
		frames: make(chan audio.Frame, buf),
	}
}

// Push delivers a frame to consumers of Frames. Returns false if the device
// is closed.
func (d *Device) Push(f audio.Frame) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.frames <- f
	return true
}

// Frames returns the mock frame stream.
func (d *Device) Frames() <-chan audio.Frame { return d.frames }

// Encoding returns Enc.
func (d *Device) Encoding() audio.Encoding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Enc
}

// Close records the call and closes the frame stream. Idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	if !d.closed {
		d.closed = true
		close(d.frames)
	}
	return nil
}

// Ensure Device implements audio.CaptureDevice at compile time.
var _ audio.CaptureDevice = (*Device)(nil)

// ─── Playback ────────────────────────────────────────────────────────────────

// PlayCall records a single invocation of Sink.Play.
type PlayCall struct {
	// Ctx is the context passed to Play.
	Ctx context.Context
	// Clip is the clip passed to Play.
	Clip audio.Clip
}

// Sink is a mock implementation of audio.Sink. Each Play call returns a new
// Session, which tests complete or fail explicitly; Stop resolves the
// session on its own.
type Sink struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned as the error from Play.
	PlayErr error

	// PlayCalls records every call to Play.
	PlayCalls []PlayCall

	// Sessions holds every session returned by Play, in order.
	Sessions []*Session
}

// Play records the call and returns a fresh Session, PlayErr.
func (s *Sink) Play(ctx context.Context, clip audio.Clip) (audio.PlaybackSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlayCalls = append(s.PlayCalls, PlayCall{Ctx: ctx, Clip: clip})
	if s.PlayErr != nil {
		return nil, s.PlayErr
	}
	sess := NewSession()
	s.Sessions = append(s.Sessions, sess)
	return sess, nil
}

// LastSession returns the most recently created session, or nil.
func (s *Sink) LastSession() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Sessions) == 0 {
		return nil
	}
	return s.Sessions[len(s.Sessions)-1]
}

// Ensure Sink implements audio.Sink at compile time.
var _ audio.Sink = (*Sink)(nil)

// Session is a mock implementation of audio.PlaybackSession.
type Session struct {
	mu sync.Mutex

	// StopCallCount is the number of times Stop was called.
	StopCallCount int

	done     chan error
	resolved bool
}

// NewSession creates an unresolved Session.
func NewSession() *Session {
	return &Session{done: make(chan error, 1)}
}

// Complete resolves the session as naturally finished. No-op if already
// resolved.
func (s *Session) Complete() { s.resolve(nil) }

// Fail resolves the session with a playback error. No-op if already resolved.
func (s *Session) Fail(err error) { s.resolve(err) }

// Done returns the completion channel.
func (s *Session) Done() <-chan error { return s.done }

// Stop records the call and resolves the session cleanly.
func (s *Session) Stop() {
	s.mu.Lock()
	s.StopCallCount++
	s.mu.Unlock()
	s.resolve(nil)
}

// Stopped reports whether Stop has been called at least once.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StopCallCount > 0
}

func (s *Session) resolve(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		return
	}
	s.resolved = true
	s.done <- err
	close(s.done)
}

// Ensure Session implements audio.PlaybackSession at compile time.
var _ audio.PlaybackSession = (*Session)(nil)
