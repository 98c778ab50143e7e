// Package vad implements energy-based voice activity detection with
// hysteresis and silence endpointing.
//
// The detector is a pure state machine over three states: Silent, Speaking,
// and TrailingSilence (a timer-backed sub-state of Speaking entered when the
// volume drops below the silence threshold). It is fed one volume sample per
// sampling tick together with the tick's timestamp, and emits typed events
// on transitions. Because time is an input rather than an internal timer,
// endpointing is deterministic and timer-exact under test.
//
// Hysteresis: the gap between the silence threshold and the speech threshold
// is intentional — volumes between them neither confirm speech nor arm the
// silence timer, avoiding chatter at the boundary.
//
// The detector is not safe for concurrent use; it is owned by the engine's
// single sampling loop.
package vad

import "time"

// Default thresholds and timing for the detector. Volume is RMS energy
// normalized to [0, 1].
const (
	// DefaultSpeechThreshold is the volume above which a tick qualifies as
	// speech. Also the barge-in trigger level during playback.
	DefaultSpeechThreshold = 0.05

	// DefaultSilenceThreshold is the volume below which, while speaking,
	// the trailing-silence timer is armed.
	DefaultSilenceThreshold = 0.01

	// DefaultTrailingSilence is how long continuous silence must last
	// after speech before the utterance is considered ended.
	DefaultTrailingSilence = 1500 * time.Millisecond
)

// State enumerates the detector's derived states.
type State int

const (
	// StateSilent: no speech in progress.
	StateSilent State = iota

	// StateSpeaking: speech in progress.
	StateSpeaking

	// StateTrailingSilence: speech in progress but the silence timer is
	// armed; the utterance ends if the timer expires before speech resumes.
	StateTrailingSilence
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateSilent:
		return "silent"
	case StateSpeaking:
		return "speaking"
	case StateTrailingSilence:
		return "trailing-silence"
	default:
		return "unknown"
	}
}

// EventType classifies detector events.
type EventType int

const (
	// SpeechStarted is emitted on the Silent→Speaking transition.
	SpeechStarted EventType = iota

	// SpeechEnded is emitted when the trailing-silence timer expires.
	SpeechEnded

	// NoSignal is emitted once per sampler-failure streak; the failing
	// ticks themselves are treated as sustained silence.
	NoSignal
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case SpeechStarted:
		return "speech-started"
	case SpeechEnded:
		return "speech-ended"
	case NoSignal:
		return "no-signal"
	default:
		return "unknown"
	}
}

// Event is a detector output produced by a tick.
type Event struct {
	// Type is the transition that occurred.
	Type EventType

	// Volume is the sample that produced the event.
	Volume float64

	// At is the timestamp of the tick that produced the event.
	At time.Time
}

// Config holds the detector parameters. Zero values select the defaults.
type Config struct {
	// SpeechThreshold is the volume above which a tick qualifies as speech.
	SpeechThreshold float64

	// SilenceThreshold is the volume below which the trailing-silence timer
	// is armed while speaking. Must be < SpeechThreshold.
	SilenceThreshold float64

	// TrailingSilence is the endpointing window.
	TrailingSilence time.Duration
}

// withDefaults fills zero fields with the package defaults.
func (c Config) withDefaults() Config {
	if c.SpeechThreshold == 0 {
		c.SpeechThreshold = DefaultSpeechThreshold
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = DefaultSilenceThreshold
	}
	if c.TrailingSilence == 0 {
		c.TrailingSilence = DefaultTrailingSilence
	}
	return c
}

// Detector is the voice activity state machine.
type Detector struct {
	cfg Config

	speaking   bool
	armed      bool
	armedAt    time.Time
	lastVolume float64
	noSignal   bool
}

// New creates a Detector with the given configuration.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

// Tick consumes one volume sample taken at now and returns the events the
// sample produced, in order. Speech above the speech threshold always
// transitions Silent→Speaking; while speaking, a drop below the silence
// threshold arms the endpointing timer, and a further speech-qualifying
// sample disarms it.
func (d *Detector) Tick(volume float64, now time.Time) []Event {
	d.noSignal = false
	d.lastVolume = volume

	var events []Event

	if !d.speaking {
		if volume > d.cfg.SpeechThreshold {
			d.speaking = true
			d.armed = false
			events = append(events, Event{Type: SpeechStarted, Volume: volume, At: now})
		}
		return events
	}

	// Speaking.
	switch {
	case volume > d.cfg.SpeechThreshold:
		// Speech resumed: disarm any pending endpoint timer.
		d.armed = false

	case volume < d.cfg.SilenceThreshold:
		if !d.armed {
			d.armed = true
			d.armedAt = now
		}
	}
	// Volumes between the thresholds neither disarm nor arm.

	if d.armed && now.Sub(d.armedAt) >= d.cfg.TrailingSilence {
		d.speaking = false
		d.armed = false
		events = append(events, Event{Type: SpeechEnded, Volume: volume, At: now})
	}

	return events
}

// TickNoSignal consumes one tick during which the sampler was unavailable.
// The tick is treated as sustained silence; a NoSignal event is emitted on
// the first failing tick of a streak only.
func (d *Detector) TickNoSignal(now time.Time) []Event {
	first := !d.noSignal
	events := d.Tick(0, now)
	d.noSignal = true
	if first {
		events = append(events, Event{Type: NoSignal, At: now})
	}
	return events
}

// State returns the current derived state.
func (d *Detector) State() State {
	switch {
	case !d.speaking:
		return StateSilent
	case d.armed:
		return StateTrailingSilence
	default:
		return StateSpeaking
	}
}

// LastVolume returns the most recent volume sample.
func (d *Detector) LastVolume() float64 {
	return d.lastVolume
}

// SilenceDetected reports whether the trailing-silence timer is currently
// armed.
func (d *Detector) SilenceDetected() bool {
	return d.armed
}

// Reset clears all detector state without changing configuration. Use when
// the audio stream is interrupted or restarted so stale state from the
// previous segment cannot affect subsequent ticks.
func (d *Detector) Reset() {
	d.speaking = false
	d.armed = false
	d.lastVolume = 0
	d.noSignal = false
}
