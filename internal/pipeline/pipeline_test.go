package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/duplexvoice/duplex/internal/observe"
	"github.com/duplexvoice/duplex/internal/pipeline"
	"github.com/duplexvoice/duplex/internal/playback"
	"github.com/duplexvoice/duplex/internal/recorder"
	"github.com/duplexvoice/duplex/internal/transcript"
	"github.com/duplexvoice/duplex/pkg/audio"
	audiomock "github.com/duplexvoice/duplex/pkg/audio/mock"
	"github.com/duplexvoice/duplex/pkg/provider/reply"
	replymock "github.com/duplexvoice/duplex/pkg/provider/reply/mock"
	"github.com/duplexvoice/duplex/pkg/provider/stt"
	sttmock "github.com/duplexvoice/duplex/pkg/provider/stt/mock"
	ttsmock "github.com/duplexvoice/duplex/pkg/provider/tts/mock"
)

// harness bundles a Coordinator with all of its mocked collaborators.
type harness struct {
	co    *pipeline.Coordinator
	sttp  *sttmock.Provider
	reply *replymock.Provider
	tts   *ttsmock.Provider
	sink  *audiomock.Sink
	stats *observe.StatsRecorder
}

func newHarness(t *testing.T, opts ...pipeline.Option) *harness {
	t.Helper()

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	h := &harness{
		sttp:  &sttmock.Provider{Result: &stt.Result{Text: "hello there friend", Confidence: 0.92}},
		reply: &replymock.Provider{Text: "Well met, traveler."},
		tts:   &ttsmock.Provider{},
		sink:  &audiomock.Sink{},
		stats: observe.NewStatsRecorder(100),
	}
	out := playback.NewController(h.sink)
	dialogue := pipeline.NewConversationLog("You are a helpful assistant.", 4)

	opts = append([]pipeline.Option{
		pipeline.WithMetrics(metrics),
		pipeline.WithStats(h.stats),
	}, opts...)

	h.co = pipeline.New(pipeline.Config{
		Voice: "alloy",
	}, h.sttp, h.reply, h.tts, out, dialogue, opts...)
	return h
}

func testUtterance() recorder.Utterance {
	return recorder.Utterance{
		PCM:        make([]byte, 3200),
		SampleRate: 16000,
		Channels:   1,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("timed out waiting for " + msg)
}

func TestCoordinator_FullChain(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.co.Process(context.Background(), testUtterance()); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if h.sttp.CallCount() != 1 || h.reply.CallCount() != 1 || h.tts.CallCount() != 1 {
		t.Errorf("stage calls = %d/%d/%d, want 1/1/1",
			h.sttp.CallCount(), h.reply.CallCount(), h.tts.CallCount())
	}
	if len(h.sink.PlayCalls) != 1 {
		t.Fatalf("PlayCalls = %d, want 1", len(h.sink.PlayCalls))
	}

	// The reply request must carry the system prompt and the transcript.
	msgs := h.reply.GenerateCalls[0].Req.Messages
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want system + user", len(msgs))
	}
	if msgs[0].Role != reply.RoleSystem {
		t.Errorf("messages[0].Role = %q, want system", msgs[0].Role)
	}
	if msgs[1].Role != reply.RoleUser || msgs[1].Content != "hello there friend" {
		t.Errorf("messages[1] = %+v, want the transcript as user", msgs[1])
	}

	// The synthesized text is the generated reply.
	if got := h.tts.SynthesizeCalls[0].Req.Text; got != "Well met, traveler." {
		t.Errorf("synthesized text = %q, want the reply", got)
	}
	if got := h.tts.SynthesizeCalls[0].Req.Voice; got != "alloy" {
		t.Errorf("voice = %q, want alloy", got)
	}

	snap := h.stats.Snapshot()
	if snap.Utterances != 1 {
		t.Errorf("stats utterances = %d, want 1", snap.Utterances)
	}
	if snap.Errors != 0 {
		t.Errorf("stats errors = %d, want 0", snap.Errors)
	}
	if h.co.Processing() {
		t.Error("Processing = true after completion, want false")
	}
}

func TestCoordinator_HistoryAccumulatesAcrossTurns(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	if err := h.co.Process(ctx, testUtterance()); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	if err := h.co.Process(ctx, testUtterance()); err != nil {
		t.Fatalf("second Process: %v", err)
	}

	// Second call sees system + first exchange + new transcript.
	msgs := h.reply.GenerateCalls[1].Req.Messages
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4 (system, user, assistant, user)", len(msgs))
	}
	if msgs[2].Role != reply.RoleAssistant || msgs[2].Content != "Well met, traveler." {
		t.Errorf("messages[2] = %+v, want prior assistant reply", msgs[2])
	}
}

func TestCoordinator_ShortTranscriptDiscarded(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "  ", "hm"} {
		h := newHarness(t)
		h.sttp.Result = &stt.Result{Text: text, Confidence: 0.9}

		if err := h.co.Process(context.Background(), testUtterance()); err != nil {
			t.Errorf("Process(%q) returned error: %v, want nil (silent discard)", text, err)
		}
		if h.reply.CallCount() != 0 {
			t.Errorf("Process(%q): reply called, want short-circuit before it", text)
		}
		if len(h.sink.PlayCalls) != 0 {
			t.Errorf("Process(%q): playback started, want none", text)
		}
	}
}

func TestCoordinator_CorrectorRepairsTranscript(t *testing.T) {
	t.Parallel()

	corr := transcript.NewCorrector([]string{"Eldrinax"})
	h := newHarness(t, pipeline.WithCorrector(corr))
	h.sttp.Result = &stt.Result{Text: "greetings eldrinaks", Confidence: 0.9}

	if err := h.co.Process(context.Background(), testUtterance()); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	msgs := h.reply.GenerateCalls[0].Req.Messages
	got := msgs[len(msgs)-1].Content
	if got != "greetings Eldrinax" {
		t.Errorf("transcript sent to reply = %q, want corrected term", got)
	}
}

func TestCoordinator_BargeInDuringTranscription(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.sttp.Delay = make(chan struct{})

	errc := make(chan error, 1)
	go func() { errc <- h.co.Process(context.Background(), testUtterance()) }()

	waitFor(t, func() bool { return h.sttp.CallCount() == 1 }, "stt call")
	if !h.co.Processing() {
		t.Error("Processing = false while stt is in flight, want true")
	}

	h.co.Bump()

	select {
	case err := <-errc:
		if !errors.Is(err, pipeline.ErrStale) {
			t.Errorf("Process error = %v, want ErrStale", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not abort after Bump; cancellation not propagated")
	}

	if h.reply.CallCount() != 0 {
		t.Error("reply called for a superseded generation")
	}
	if len(h.sink.PlayCalls) != 0 {
		t.Error("playback started for a superseded generation")
	}
	if got := h.stats.Snapshot().Utterances; got != 0 {
		t.Errorf("stats utterances = %d, want 0 for a discarded generation", got)
	}
}

func TestCoordinator_StaleSynthesisNeverPlays(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.tts.Delay = make(chan struct{})

	errc := make(chan error, 1)
	go func() { errc <- h.co.Process(context.Background(), testUtterance()) }()

	waitFor(t, func() bool { return h.tts.CallCount() == 1 }, "tts call")
	h.co.Bump()
	close(h.tts.Delay)

	select {
	case err := <-errc:
		if !errors.Is(err, pipeline.ErrStale) {
			t.Errorf("Process error = %v, want ErrStale", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Process did not return")
	}

	if len(h.sink.PlayCalls) != 0 {
		t.Error("superseded synthesis reached playback; newest speech must win")
	}
}

func TestCoordinator_NewerUtteranceSupersedesOlder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.reply.Delay = make(chan struct{})

	first := make(chan error, 1)
	go func() { first <- h.co.Process(context.Background(), testUtterance()) }()
	waitFor(t, func() bool { return h.reply.CallCount() == 1 }, "first reply call")

	second := make(chan error, 1)
	go func() { second <- h.co.Process(context.Background(), testUtterance()) }()
	waitFor(t, func() bool { return h.reply.CallCount() == 2 }, "second reply call")
	close(h.reply.Delay)

	if err := <-first; !errors.Is(err, pipeline.ErrStale) {
		t.Errorf("first Process error = %v, want ErrStale", err)
	}
	if err := <-second; err != nil {
		t.Errorf("second Process error = %v, want nil", err)
	}
	if len(h.sink.PlayCalls) != 1 {
		t.Errorf("PlayCalls = %d, want 1 (only the newer generation)", len(h.sink.PlayCalls))
	}
}

func TestCoordinator_ServiceFailureAbortsGenerationOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.reply.Err = errors.New("model overloaded")

	err := h.co.Process(context.Background(), testUtterance())
	if !errors.Is(err, pipeline.ErrServiceCall) {
		t.Errorf("Process error = %v, want ErrServiceCall", err)
	}
	if len(h.sink.PlayCalls) != 0 {
		t.Error("playback started for a failed generation")
	}
	if got := h.stats.Snapshot().Errors; got != 1 {
		t.Errorf("stats errors = %d, want 1", got)
	}

	// No retry, but the pipeline stays ready: the next utterance goes
	// through untouched.
	h.reply.Err = nil
	if err := h.co.Process(context.Background(), testUtterance()); err != nil {
		t.Errorf("follow-up Process error = %v, want nil", err)
	}
	if len(h.sink.PlayCalls) != 1 {
		t.Errorf("PlayCalls = %d, want 1 after recovery", len(h.sink.PlayCalls))
	}
}

func TestCoordinator_StageTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.sttp.Delay = make(chan struct{}) // never released

	co := pipeline.New(pipeline.Config{
		StageTimeout: 30 * time.Millisecond,
	}, h.sttp, h.reply, h.tts, playback.NewController(h.sink),
		pipeline.NewConversationLog("", 0),
		pipeline.WithStats(h.stats))

	err := co.Process(context.Background(), testUtterance())
	if !errors.Is(err, pipeline.ErrServiceCall) {
		t.Errorf("Process error = %v, want ErrServiceCall on deadline", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Process error = %v, want wrapped DeadlineExceeded", err)
	}
}

func TestCoordinator_PlaybackHandoffClip(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.tts.Clip = audio.Clip{PCM: []byte{9, 0, 8, 0}, SampleRate: 16000, Channels: 1}

	if err := h.co.Process(context.Background(), testUtterance()); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if got := h.sink.PlayCalls[0].Clip; string(got.PCM) != string(h.tts.Clip.PCM) {
		t.Errorf("played clip PCM = %v, want the synthesized clip", got.PCM)
	}
}
