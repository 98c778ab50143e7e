// Package pipeline drives the cascaded speech pipeline: transcribe an
// utterance, generate a reply, synthesize it, and hand the audio to
// playback.
//
// One Coordinator owns the generation counter that serializes turns. Every
// utterance allocates a fresh generation and becomes "current"; anything
// still in flight for an older generation is stale the moment that happens,
// and its results are discarded when they surface — newest speech wins.
// A barge-in bumps the counter the same way without starting a new turn,
// and additionally cancels the superseded generation's context so in-flight
// service calls abort instead of running to a wasted completion.
//
// Each external call is a single attempt under a per-stage deadline: a
// failure aborts the current generation and the pipeline simply waits for
// the next utterance. There is no retry; the design trades resilience for
// latency, and a dropped turn yields silence rather than a late reply.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/duplexvoice/duplex/internal/observe"
	"github.com/duplexvoice/duplex/internal/playback"
	"github.com/duplexvoice/duplex/internal/recorder"
	"github.com/duplexvoice/duplex/internal/transcript"
	"github.com/duplexvoice/duplex/pkg/audio"
	"github.com/duplexvoice/duplex/pkg/provider/reply"
	"github.com/duplexvoice/duplex/pkg/provider/stt"
	"github.com/duplexvoice/duplex/pkg/provider/tts"
)

// Sentinel errors for per-generation outcomes.
var (
	// ErrStale marks a stage result discarded because its generation was
	// superseded mid-flight. Informational, not a failure.
	ErrStale = errors.New("pipeline: generation superseded")

	// ErrServiceCall wraps any STT, reply-generation, or TTS failure. The
	// failing generation is abandoned; the pipeline stays ready.
	ErrServiceCall = errors.New("pipeline: service call failed")
)

// DefaultStageTimeout bounds each external service call. A deadline per
// stage turns a hung provider into an ordinary failed turn instead of a
// stuck pipeline.
const DefaultStageTimeout = 10 * time.Second

// DefaultMinTranscriptLength is the shortest transcript (in characters,
// whitespace-trimmed) considered a real utterance. Anything shorter is
// treated as noise and dropped without a reply.
const DefaultMinTranscriptLength = 3

// Config carries the per-turn parameters of a [Coordinator].
type Config struct {
	// STTModel and Language are passed through to the transcription
	// provider.
	STTModel string
	Language string

	// ReplyModel and MaxTokens are passed through to the reply provider.
	ReplyModel string
	MaxTokens  int

	// Voice and Speed are passed through to the synthesis provider.
	Voice string
	Speed float64

	// StageTimeout bounds each external call. Zero means
	// [DefaultStageTimeout].
	StageTimeout time.Duration

	// MinTranscriptLength is the noise floor for transcripts. Zero means
	// [DefaultMinTranscriptLength].
	MinTranscriptLength int
}

func (c Config) withDefaults() Config {
	if c.StageTimeout <= 0 {
		c.StageTimeout = DefaultStageTimeout
	}
	if c.MinTranscriptLength <= 0 {
		c.MinTranscriptLength = DefaultMinTranscriptLength
	}
	return c
}

// Dialogue supplies conversational context for reply generation and is told
// about every completed exchange. The pipeline treats it as opaque: it only
// forwards the message list and reports back the transcript/reply pair.
type Dialogue interface {
	// Messages returns the ordered prompt for the given user transcript,
	// including any system persona and prior history.
	Messages(transcript string) []reply.Message

	// RecordExchange is called after a reply has been generated for a
	// still-current generation.
	RecordExchange(transcript, reply string)
}

// Option configures a [Coordinator].
type Option func(*Coordinator)

// WithCorrector attaches a vocabulary corrector applied to every transcript
// before reply generation. When nil (the default), transcripts pass through
// unchanged.
func WithCorrector(c *transcript.Corrector) Option {
	return func(co *Coordinator) { co.corrector = c }
}

// WithMetrics sets the OTel instrument set. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(co *Coordinator) { co.metrics = m }
}

// WithStats sets the in-memory stats recorder backing the dashboard
// snapshot. Defaults to a fresh recorder with a 100-sample window.
func WithStats(s *observe.StatsRecorder) Option {
	return func(co *Coordinator) { co.stats = s }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(co *Coordinator) { co.log = l }
}

// Coordinator runs the transcribe → generate → synthesize → play chain for
// one utterance at a time and owns the generation counter. Safe for
// concurrent use: Process may be called from the engine's event goroutine
// while Bump arrives from the interruption path.
type Coordinator struct {
	cfg      Config
	sttc     stt.Provider
	replyc   reply.Provider
	ttsc     tts.Provider
	out      *playback.Controller
	dialogue Dialogue

	corrector *transcript.Corrector
	metrics   *observe.Metrics
	stats     *observe.StatsRecorder
	log       *slog.Logger

	// gen is the current generation. Written by Process (new utterance) and
	// Bump (barge-in); read everywhere for staleness checks.
	gen atomic.Uint64

	// processing is true while a current generation is between handoff and
	// playback handoff.
	processing atomic.Bool

	// mu guards cancel, the in-flight generation's context cancel func.
	mu     sync.Mutex
	cancel context.CancelFunc
}

// New wires a Coordinator from its three service providers, the playback
// controller, and the dialogue collaborator.
func New(
	cfg Config,
	sttc stt.Provider,
	replyc reply.Provider,
	ttsc tts.Provider,
	out *playback.Controller,
	dialogue Dialogue,
	opts ...Option,
) *Coordinator {
	co := &Coordinator{
		cfg:      cfg.withDefaults(),
		sttc:     sttc,
		replyc:   replyc,
		ttsc:     ttsc,
		out:      out,
		dialogue: dialogue,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(co)
	}
	if co.metrics == nil {
		co.metrics = observe.DefaultMetrics()
	}
	if co.stats == nil {
		co.stats = observe.NewStatsRecorder(100)
	}
	return co
}

// Generation returns the current generation id.
func (co *Coordinator) Generation() uint64 {
	return co.gen.Load()
}

// Processing reports whether a current generation is in flight.
func (co *Coordinator) Processing() bool {
	return co.processing.Load()
}

// Stats returns the in-memory stats recorder for snapshot readers.
func (co *Coordinator) Stats() *observe.StatsRecorder {
	return co.stats
}

// Bump invalidates the current generation without starting a new one and
// cancels its in-flight context. Called on barge-in; any stage still
// running aborts or has its result discarded when it completes.
func (co *Coordinator) Bump() {
	co.gen.Add(1)
	co.processing.Store(false)

	co.mu.Lock()
	cancel := co.cancel
	co.cancel = nil
	co.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// stale reports whether g has been superseded.
func (co *Coordinator) stale(g uint64) bool {
	return co.gen.Load() != g
}

// Process runs one utterance through the full chain. It blocks until the
// synthesized reply has been handed to playback, the generation is
// superseded, or a stage fails.
//
// Returns nil on success and on the silent short-circuits (transcript too
// short); returns an error wrapping [ErrStale] when superseded and
// [ErrServiceCall] when a stage fails.
func (co *Coordinator) Process(ctx context.Context, u recorder.Utterance) error {
	g := co.gen.Add(1)
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	co.mu.Lock()
	// Taking over as current: any cancel left here belongs to a superseded
	// generation.
	prev := co.cancel
	co.cancel = cancel
	co.mu.Unlock()
	if prev != nil {
		prev()
	}

	co.processing.Store(true)
	defer func() {
		if !co.stale(g) {
			co.processing.Store(false)
		}
	}()

	ctx, turnSpan := observe.StartTurnSpan(ctx, g)
	defer turnSpan.End()

	log := co.log.With("generation", g)
	log.Info("utterance received",
		"duration", u.Duration(),
		"bytes", len(u.PCM),
	)

	// ── Stage 1: speech to text ──
	sttStart := time.Now()
	result, err := co.transcribe(ctx, u)
	sttTook := time.Since(sttStart)
	if err != nil {
		return co.stageFailed(ctx, log, g, "stt", err)
	}
	co.metrics.STTDuration.Record(ctx, sttTook.Seconds())
	if co.stale(g) {
		log.Info("transcription superseded", "took", sttTook)
		co.metrics.RecordUtterance(ctx, "interrupted")
		return fmt.Errorf("after stt: %w", ErrStale)
	}

	text := strings.TrimSpace(result.Text)
	if len(text) < co.cfg.MinTranscriptLength {
		log.Debug("transcript below noise floor", "text", text)
		co.metrics.RecordUtterance(ctx, "discarded")
		co.processing.Store(false)
		return nil
	}
	if co.corrector != nil {
		corrected, fixes := co.corrector.Correct(text)
		for _, f := range fixes {
			log.Debug("vocabulary correction",
				"original", f.Original,
				"corrected", f.Corrected,
				"score", f.Score,
			)
		}
		text = corrected
	}
	log.Info("transcribed", "text", text, "confidence", result.Confidence, "took", sttTook)

	// ── Stage 2: reply generation ──
	replyStart := time.Now()
	replyText, err := co.generate(ctx, text)
	replyTook := time.Since(replyStart)
	if err != nil {
		return co.stageFailed(ctx, log, g, "reply", err)
	}
	co.metrics.ReplyDuration.Record(ctx, replyTook.Seconds())
	if co.stale(g) {
		log.Info("reply superseded", "took", replyTook)
		co.metrics.RecordUtterance(ctx, "interrupted")
		return fmt.Errorf("after reply: %w", ErrStale)
	}
	co.dialogue.RecordExchange(text, replyText)
	log.Info("reply generated", "chars", len(replyText), "took", replyTook)

	// ── Stage 3: text to speech ──
	ttsStart := time.Now()
	clip, err := co.synthesize(ctx, replyText)
	ttsTook := time.Since(ttsStart)
	if err != nil {
		return co.stageFailed(ctx, log, g, "tts", err)
	}
	co.metrics.TTSDuration.Record(ctx, ttsTook.Seconds())
	if co.stale(g) {
		log.Info("synthesis superseded", "took", ttsTook)
		co.metrics.RecordUtterance(ctx, "interrupted")
		return fmt.Errorf("after tts: %w", ErrStale)
	}

	// ── Handoff ──
	if err := co.out.Play(ctx, clip); err != nil {
		return co.stageFailed(ctx, log, g, "playback", err)
	}
	co.processing.Store(false)

	total := time.Since(start)
	co.metrics.PipelineDuration.Record(ctx, total.Seconds())
	co.metrics.RecordUtterance(ctx, "completed")
	co.stats.Record(observe.StageLatency{
		STT:   sttTook,
		Reply: replyTook,
		TTS:   ttsTook,
		Total: total,
	})
	log.Info("response playing",
		"stt", sttTook,
		"reply", replyTook,
		"tts", ttsTook,
		"total", total,
	)
	return nil
}

// stageFailed logs and accounts one failed stage, distinguishing a true
// provider failure from a cancellation caused by a barge-in.
func (co *Coordinator) stageFailed(ctx context.Context, log *slog.Logger, g uint64, stage string, err error) error {
	if co.stale(g) {
		// The stage died because its context was cancelled out from under
		// it. Not an error.
		log.Info("stage aborted by newer speech", "stage", stage)
		co.metrics.RecordUtterance(ctx, "interrupted")
		return fmt.Errorf("%s aborted: %w", stage, ErrStale)
	}
	log.Error("stage failed", "stage", stage, "error", err)
	co.metrics.RecordProviderError(ctx, providerName(stage), stage)
	co.metrics.RecordUtterance(ctx, "failed")
	co.stats.RecordError()
	co.processing.Store(false)
	if errors.Is(err, playback.ErrPlaybackFailed) {
		// Output-device failures keep their own sentinel rather than
		// masquerading as a service-call failure.
		return fmt.Errorf("%s: %w", stage, err)
	}
	return fmt.Errorf("%s: %w: %w", stage, ErrServiceCall, err)
}

func providerName(stage string) string {
	switch stage {
	case "stt":
		return "stt"
	case "reply":
		return "reply"
	case "tts":
		return "tts"
	}
	return "audio"
}

func (co *Coordinator) transcribe(ctx context.Context, u recorder.Utterance) (*stt.Result, error) {
	ctx, span := observe.StartStageSpan(ctx, "stt")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, co.cfg.StageTimeout)
	defer cancel()
	result, err := co.sttc.Transcribe(ctx, stt.Request{
		PCM:        u.PCM,
		SampleRate: u.SampleRate,
		Language:   co.cfg.Language,
		Model:      co.cfg.STTModel,
	})
	co.finishStage(ctx, span, "stt", err)
	return result, err
}

// finishStage records the provider-request counter and span outcome for one
// external call.
func (co *Coordinator) finishStage(ctx context.Context, span trace.Span, stage string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	co.metrics.RecordProviderRequest(ctx, providerName(stage), stage, status)
}

func (co *Coordinator) generate(ctx context.Context, text string) (string, error) {
	ctx, span := observe.StartStageSpan(ctx, "reply")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, co.cfg.StageTimeout)
	defer cancel()
	replyText, err := co.replyc.Generate(ctx, reply.Request{
		Messages:  co.dialogue.Messages(text),
		Model:     co.cfg.ReplyModel,
		MaxTokens: co.cfg.MaxTokens,
	})
	co.finishStage(ctx, span, "reply", err)
	return replyText, err
}

func (co *Coordinator) synthesize(ctx context.Context, text string) (audio.Clip, error) {
	ctx, span := observe.StartStageSpan(ctx, "tts")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, co.cfg.StageTimeout)
	defer cancel()
	clip, err := co.ttsc.Synthesize(ctx, tts.Request{
		Text:  text,
		Voice: co.cfg.Voice,
		Speed: co.cfg.Speed,
	})
	co.finishStage(ctx, span, "tts", err)
	return clip, err
}
