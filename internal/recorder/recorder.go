// Package recorder accumulates captured audio into discrete utterances.
//
// A Recorder sits between the capture stream and the pipeline: voice
// activity events open and close a recording window, and every frame that
// arrives while the window is open is gathered into a single [Utterance]
// handed off at the close. The recorder itself makes no judgement about
// whether the speech was meaningful; that is only knowable after
// transcription and is the pipeline's call.
package recorder

import (
	"sync"
	"time"

	"github.com/duplexvoice/duplex/pkg/audio"
)

// Utterance is one contiguous span of speech, captured between a
// speech-started and speech-ended event. Ownership transfers to the caller
// of [Recorder.End]; the recorder keeps no reference to the returned data.
type Utterance struct {
	// PCM holds the concatenated 16-bit little-endian samples of every
	// frame gathered during the recording window.
	PCM []byte

	// SampleRate and Channels describe the PCM layout, taken from the
	// first gathered frame.
	SampleRate int
	Channels   int

	// CapturedAt is the capture timestamp of the first gathered frame.
	CapturedAt time.Duration
}

// Duration returns the playable length of the utterance.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate == 0 || u.Channels == 0 {
		return 0
	}
	samples := len(u.PCM) / 2 / u.Channels
	return time.Duration(samples) * time.Second / time.Duration(u.SampleRate)
}

// Recorder gathers capture frames between Begin and End calls. All methods
// are safe for concurrent use: Append is typically driven by the capture
// goroutine while Begin/End are driven by the sampling loop.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	chunks    [][]byte
	bytes     int
	rate      int
	channels  int
	startedAt time.Duration
}

// New returns an idle Recorder.
func New() *Recorder {
	return &Recorder{}
}

// Begin opens a recording window. Calling Begin while already recording is
// a no-op, so repeated speech-started events cannot split an utterance.
func (r *Recorder) Begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return
	}
	r.recording = true
	r.chunks = nil
	r.bytes = 0
	r.rate = 0
	r.channels = 0
}

// Append adds a captured frame to the open window. Frames arriving while no
// window is open are dropped. The frame's PCM is copied, so the caller may
// reuse its buffer.
func (r *Recorder) Append(frame audio.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || len(frame.PCM) == 0 {
		return
	}
	if r.rate == 0 {
		r.rate = frame.SampleRate
		r.channels = frame.Channels
		r.startedAt = frame.Timestamp
	}
	chunk := make([]byte, len(frame.PCM))
	copy(chunk, frame.PCM)
	r.chunks = append(r.chunks, chunk)
	r.bytes += len(chunk)
}

// End closes the recording window and returns the gathered utterance.
// Returns ok=false when no window was open or when the window gathered no
// audio, in which case nothing should be sent downstream.
func (r *Recorder) End() (Utterance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return Utterance{}, false
	}
	r.recording = false
	if r.bytes == 0 {
		r.chunks = nil
		return Utterance{}, false
	}
	pcm := make([]byte, 0, r.bytes)
	for _, chunk := range r.chunks {
		pcm = append(pcm, chunk...)
	}
	u := Utterance{
		PCM:        pcm,
		SampleRate: r.rate,
		Channels:   r.channels,
		CapturedAt: r.startedAt,
	}
	r.chunks = nil
	r.bytes = 0
	return u, true
}

// Abort discards the open window without emitting an utterance. No-op when
// idle; used on shutdown so partial speech is not processed.
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	r.chunks = nil
	r.bytes = 0
}

// Recording reports whether a window is currently open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}
