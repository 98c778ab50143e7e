package interrupt_test

import (
	"context"
	"testing"

	"github.com/duplexvoice/duplex/internal/interrupt"
	"github.com/duplexvoice/duplex/internal/observe"
	"github.com/duplexvoice/duplex/internal/pipeline"
	"github.com/duplexvoice/duplex/internal/playback"
	"github.com/duplexvoice/duplex/pkg/audio"
	audiomock "github.com/duplexvoice/duplex/pkg/audio/mock"
	replymock "github.com/duplexvoice/duplex/pkg/provider/reply/mock"
	sttmock "github.com/duplexvoice/duplex/pkg/provider/stt/mock"
	ttsmock "github.com/duplexvoice/duplex/pkg/provider/tts/mock"
)

func newFixture(t *testing.T) (*interrupt.Controller, *playback.Controller, *pipeline.Coordinator, *audiomock.Sink, *observe.StatsRecorder) {
	t.Helper()

	sink := &audiomock.Sink{}
	out := playback.NewController(sink)
	stats := observe.NewStatsRecorder(10)
	co := pipeline.New(pipeline.Config{},
		&sttmock.Provider{}, &replymock.Provider{}, &ttsmock.Provider{},
		out, pipeline.NewConversationLog("", 0),
		pipeline.WithStats(stats))
	ic := interrupt.New(out, co, interrupt.WithStats(stats))
	return ic, out, co, sink, stats
}

func TestOnSpeechStarted_DuringPlaybackPreempts(t *testing.T) {
	t.Parallel()

	ic, out, co, sink, stats := newFixture(t)

	clip := audio.Clip{PCM: []byte{1, 0}, SampleRate: 16000, Channels: 1}
	if err := out.Play(context.Background(), clip); err != nil {
		t.Fatalf("Play: %v", err)
	}
	genBefore := co.Generation()

	if !ic.OnSpeechStarted(context.Background()) {
		t.Fatal("OnSpeechStarted = false during playback, want barge-in")
	}

	if !sink.LastSession().Stopped() {
		t.Error("active session not stopped")
	}
	if out.Active() {
		t.Error("playback still active after barge-in")
	}
	if co.Generation() != genBefore+1 {
		t.Errorf("generation = %d, want %d (bumped once)", co.Generation(), genBefore+1)
	}
	if stats.Snapshot().Interruptions != 1 {
		t.Errorf("interruptions = %d, want 1", stats.Snapshot().Interruptions)
	}
}

func TestOnSpeechStarted_WithoutPlaybackIsTurnTaking(t *testing.T) {
	t.Parallel()

	ic, _, co, _, stats := newFixture(t)
	genBefore := co.Generation()

	if ic.OnSpeechStarted(context.Background()) {
		t.Fatal("OnSpeechStarted = true with no playback, want ordinary turn-taking")
	}
	if co.Generation() != genBefore {
		t.Errorf("generation bumped on turn-taking: %d -> %d", genBefore, co.Generation())
	}
	if stats.Snapshot().Interruptions != 0 {
		t.Errorf("interruptions = %d, want 0", stats.Snapshot().Interruptions)
	}
}

func TestInterrupt_ManualOverride(t *testing.T) {
	t.Parallel()

	ic, out, co, sink, _ := newFixture(t)

	clip := audio.Clip{PCM: []byte{1, 0}, SampleRate: 16000, Channels: 1}
	if err := out.Play(context.Background(), clip); err != nil {
		t.Fatalf("Play: %v", err)
	}
	genBefore := co.Generation()

	if !ic.Interrupt(context.Background()) {
		t.Fatal("Interrupt = false with active playback, want true")
	}
	if !sink.LastSession().Stopped() {
		t.Error("session not stopped by manual interrupt")
	}
	if co.Generation() != genBefore+1 {
		t.Errorf("generation = %d, want %d", co.Generation(), genBefore+1)
	}
}

func TestInterrupt_IdleIsNoOp(t *testing.T) {
	t.Parallel()

	ic, _, co, _, stats := newFixture(t)
	genBefore := co.Generation()

	if ic.Interrupt(context.Background()) {
		t.Fatal("Interrupt = true on an idle engine, want false")
	}
	if co.Generation() != genBefore {
		t.Error("generation bumped on idle interrupt")
	}
	if stats.Snapshot().Interruptions != 0 {
		t.Errorf("interruptions = %d, want 0", stats.Snapshot().Interruptions)
	}
}
