package recorder_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/duplexvoice/duplex/internal/recorder"
	"github.com/duplexvoice/duplex/pkg/audio"
)

func frame(pcm []byte, ts time.Duration) audio.Frame {
	return audio.Frame{PCM: pcm, SampleRate: 16000, Channels: 1, Timestamp: ts}
}

func TestRecorder_GathersFramesBetweenBeginAndEnd(t *testing.T) {
	t.Parallel()

	r := recorder.New()
	r.Begin()
	r.Append(frame([]byte{1, 0, 2, 0}, 100*time.Millisecond))
	r.Append(frame([]byte{3, 0}, 120*time.Millisecond))

	u, ok := r.End()
	if !ok {
		t.Fatal("expected an utterance")
	}
	if want := []byte{1, 0, 2, 0, 3, 0}; !bytes.Equal(u.PCM, want) {
		t.Errorf("PCM = %v, want %v", u.PCM, want)
	}
	if u.SampleRate != 16000 || u.Channels != 1 {
		t.Errorf("layout = %d/%d, want 16000/1", u.SampleRate, u.Channels)
	}
	if u.CapturedAt != 100*time.Millisecond {
		t.Errorf("CapturedAt = %v, want 100ms", u.CapturedAt)
	}
}

func TestRecorder_BeginIsIdempotent(t *testing.T) {
	t.Parallel()

	r := recorder.New()
	r.Begin()
	r.Append(frame([]byte{1, 0}, 0))
	r.Begin() // must not discard the chunk already gathered
	r.Append(frame([]byte{2, 0}, 0))

	u, ok := r.End()
	if !ok {
		t.Fatal("expected an utterance")
	}
	if want := []byte{1, 0, 2, 0}; !bytes.Equal(u.PCM, want) {
		t.Errorf("PCM = %v, want %v", u.PCM, want)
	}
}

func TestRecorder_EmptyWindowEmitsNothing(t *testing.T) {
	t.Parallel()

	r := recorder.New()
	r.Begin()
	if _, ok := r.End(); ok {
		t.Error("window with no frames must not emit an utterance")
	}
	if r.Recording() {
		t.Error("recorder should be idle after End")
	}
}

func TestRecorder_EndWithoutBegin(t *testing.T) {
	t.Parallel()

	r := recorder.New()
	if _, ok := r.End(); ok {
		t.Error("End without Begin must not emit an utterance")
	}
}

func TestRecorder_AppendWhileIdleIsDropped(t *testing.T) {
	t.Parallel()

	r := recorder.New()
	r.Append(frame([]byte{9, 0}, 0))
	r.Begin()
	r.Append(frame([]byte{1, 0}, 0))

	u, ok := r.End()
	if !ok {
		t.Fatal("expected an utterance")
	}
	if want := []byte{1, 0}; !bytes.Equal(u.PCM, want) {
		t.Errorf("PCM = %v, want %v; idle frame must not leak in", u.PCM, want)
	}
}

func TestRecorder_AbortDiscardsWindow(t *testing.T) {
	t.Parallel()

	r := recorder.New()
	r.Begin()
	r.Append(frame([]byte{1, 0}, 0))
	r.Abort()

	if r.Recording() {
		t.Error("recorder should be idle after Abort")
	}
	if _, ok := r.End(); ok {
		t.Error("aborted window must not emit an utterance")
	}
}

func TestUtterance_Duration(t *testing.T) {
	t.Parallel()

	u := recorder.Utterance{PCM: make([]byte, 32000), SampleRate: 16000, Channels: 1}
	if got := u.Duration(); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}
	if got := (recorder.Utterance{}).Duration(); got != 0 {
		t.Errorf("zero utterance Duration = %v, want 0", got)
	}
}
