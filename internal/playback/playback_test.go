package playback_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/duplexvoice/duplex/internal/playback"
	"github.com/duplexvoice/duplex/pkg/audio"
	audiomock "github.com/duplexvoice/duplex/pkg/audio/mock"
)

var testClip = audio.Clip{PCM: []byte{1, 0, 2, 0}, SampleRate: 16000, Channels: 1}

func TestController_PlayStartsSession(t *testing.T) {
	t.Parallel()

	sink := &audiomock.Sink{}
	var started atomic.Int32
	c := playback.NewController(sink, playback.WithOnStarted(func() { started.Add(1) }))

	if err := c.Play(context.Background(), testClip); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	if len(sink.PlayCalls) != 1 {
		t.Errorf("PlayCalls = %d, want 1", len(sink.PlayCalls))
	}
	if !c.Active() {
		t.Error("Active = false, want true while session is live")
	}
	if started.Load() != 1 {
		t.Errorf("started callbacks = %d, want 1", started.Load())
	}
}

func TestController_NaturalCompletionFiresEnded(t *testing.T) {
	t.Parallel()

	sink := &audiomock.Sink{}
	ended := make(chan struct{}, 1)
	c := playback.NewController(sink, playback.WithOnEnded(func() { ended <- struct{}{} }))

	if err := c.Play(context.Background(), testClip); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	sink.LastSession().Complete()

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the ended callback")
	}
	if c.Active() {
		t.Error("Active = true after natural completion, want false")
	}
}

func TestController_PlayPreemptsActiveSession(t *testing.T) {
	t.Parallel()

	sink := &audiomock.Sink{}
	c := playback.NewController(sink)

	if err := c.Play(context.Background(), testClip); err != nil {
		t.Fatalf("first Play: %v", err)
	}
	first := sink.LastSession()

	if err := c.Play(context.Background(), testClip); err != nil {
		t.Fatalf("second Play: %v", err)
	}

	if !first.Stopped() {
		t.Error("first session not stopped by second Play; want last-writer-wins")
	}
	if len(sink.Sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(sink.Sessions))
	}
	if !c.Active() {
		t.Error("Active = false, want true for the replacing session")
	}
}

func TestController_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	sink := &audiomock.Sink{}
	var ended atomic.Int32
	c := playback.NewController(sink, playback.WithOnEnded(func() { ended.Add(1) }))

	if err := c.Play(context.Background(), testClip); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	session := sink.LastSession()

	c.Stop()
	c.Stop()
	c.Stop()

	if session.StopCallCount != 1 {
		t.Errorf("session StopCallCount = %d, want 1", session.StopCallCount)
	}
	if c.Active() {
		t.Error("Active = true after Stop, want false")
	}

	// A stopped session must not look like a natural completion.
	time.Sleep(50 * time.Millisecond)
	if ended.Load() != 0 {
		t.Errorf("ended callbacks = %d, want 0 for a stopped session", ended.Load())
	}
}

func TestController_StopWithNothingPlaying(t *testing.T) {
	t.Parallel()

	c := playback.NewController(&audiomock.Sink{})
	c.Stop() // must not panic or error
	if c.Active() {
		t.Error("Active = true on an idle controller")
	}
}

func TestController_PlayErrorSurfaced(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("device busy")
	sink := &audiomock.Sink{PlayErr: wantErr}
	c := playback.NewController(sink)

	err := c.Play(context.Background(), testClip)
	if !errors.Is(err, wantErr) {
		t.Errorf("Play error = %v, want %v", err, wantErr)
	}
	if !errors.Is(err, playback.ErrPlaybackFailed) {
		t.Errorf("Play error = %v, want ErrPlaybackFailed", err)
	}
	if c.Active() {
		t.Error("Active = true after a failed Play, want false")
	}
}

func TestController_MidPlaybackFailure(t *testing.T) {
	t.Parallel()

	sink := &audiomock.Sink{}
	failed := make(chan error, 1)
	c := playback.NewController(sink, playback.WithOnFailed(func(err error) { failed <- err }))

	if err := c.Play(context.Background(), testClip); err != nil {
		t.Fatalf("Play returned error: %v", err)
	}
	wantErr := errors.New("codec underrun")
	sink.LastSession().Fail(wantErr)

	select {
	case err := <-failed:
		if !errors.Is(err, wantErr) {
			t.Errorf("failure callback error = %v, want %v", err, wantErr)
		}
		if !errors.Is(err, playback.ErrPlaybackFailed) {
			t.Errorf("failure callback error = %v, want ErrPlaybackFailed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the failure callback")
	}
	if c.Active() {
		t.Error("Active = true after failure, want false")
	}
}
