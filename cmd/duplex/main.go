// Command duplex is a demo host for the Duplex spoken-dialogue engine. It
// wires the configured STT/reply/TTS providers into the engine, runs the
// sampling loop against the demo audio adapters, and serves the state,
// health, and metrics endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/duplexvoice/duplex/internal/config"
	"github.com/duplexvoice/duplex/internal/engine"
	"github.com/duplexvoice/duplex/internal/health"
	"github.com/duplexvoice/duplex/internal/interrupt"
	"github.com/duplexvoice/duplex/internal/observe"
	"github.com/duplexvoice/duplex/internal/pipeline"
	"github.com/duplexvoice/duplex/internal/playback"
	"github.com/duplexvoice/duplex/internal/transcript"
	"github.com/duplexvoice/duplex/internal/vad"
	"github.com/duplexvoice/duplex/pkg/audio"
	"github.com/duplexvoice/duplex/pkg/provider/reply"
	"github.com/duplexvoice/duplex/pkg/provider/reply/anyllm"
	replymock "github.com/duplexvoice/duplex/pkg/provider/reply/mock"
	replyoai "github.com/duplexvoice/duplex/pkg/provider/reply/openai"
	"github.com/duplexvoice/duplex/pkg/provider/stt"
	sttmock "github.com/duplexvoice/duplex/pkg/provider/stt/mock"
	sttoai "github.com/duplexvoice/duplex/pkg/provider/stt/openai"
	"github.com/duplexvoice/duplex/pkg/provider/stt/whisper"
	"github.com/duplexvoice/duplex/pkg/provider/tts"
	"github.com/duplexvoice/duplex/pkg/provider/tts/elevenlabs"
	ttsmock "github.com/duplexvoice/duplex/pkg/provider/tts/mock"
	ttsoai "github.com/duplexvoice/duplex/pkg/provider/tts/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "duplex: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "duplex: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("duplex starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.WithServiceName("duplex"))
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	sttp, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to build stt provider", "name", cfg.Providers.STT.Name, "err", err)
		return 1
	}
	if c, ok := sttp.(io.Closer); ok {
		defer c.Close()
	}
	replyp, err := buildReply(cfg.Providers.Reply)
	if err != nil {
		slog.Error("failed to build reply provider", "name", cfg.Providers.Reply.Name, "err", err)
		return 1
	}
	ttsp, err := buildTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to build tts provider", "name", cfg.Providers.TTS.Name, "err", err)
		return 1
	}

	// ── Engine assembly ───────────────────────────────────────────────────────
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}
	stats := observe.NewStatsRecorder(cfg.Pipeline.StatsWindow)

	out := playback.NewController(demoSink{},
		playback.WithLogger(logger),
		playback.WithMetrics(metrics),
	)

	dialogue := pipeline.NewConversationLog(cfg.Pipeline.SystemPrompt, cfg.Pipeline.HistoryLimit)

	pipeOpts := []pipeline.Option{
		pipeline.WithMetrics(metrics),
		pipeline.WithStats(stats),
		pipeline.WithLogger(logger),
	}
	if len(cfg.Vocabulary.Terms) > 0 {
		var corrOpts []transcript.Option
		if cfg.Vocabulary.PhoneticThreshold > 0 {
			corrOpts = append(corrOpts, transcript.WithPhoneticThreshold(cfg.Vocabulary.PhoneticThreshold))
		}
		if cfg.Vocabulary.FuzzyThreshold > 0 {
			corrOpts = append(corrOpts, transcript.WithFuzzyThreshold(cfg.Vocabulary.FuzzyThreshold))
		}
		pipeOpts = append(pipeOpts, pipeline.WithCorrector(
			transcript.NewCorrector(cfg.Vocabulary.Terms, corrOpts...),
		))
	}

	co := pipeline.New(pipeline.Config{
		STTModel:            cfg.Providers.STT.Model,
		Language:            cfg.Providers.STT.Language,
		ReplyModel:          cfg.Providers.Reply.Model,
		MaxTokens:           cfg.Pipeline.MaxTokens,
		Voice:               cfg.Providers.TTS.Voice,
		Speed:               cfg.Providers.TTS.SpeedFactor,
		StageTimeout:        cfg.Pipeline.StageTimeout,
		MinTranscriptLength: cfg.Pipeline.MinTranscriptLength,
	}, sttp, replyp, ttsp, out, dialogue, pipeOpts...)

	ic := interrupt.New(out, co,
		interrupt.WithMetrics(metrics),
		interrupt.WithStats(stats),
		interrupt.WithLogger(logger),
	)

	eng := engine.New(engine.Config{
		Capture: audio.CaptureConfig{
			SampleRate:       cfg.Capture.SampleRate,
			EchoCancellation: cfg.Capture.EchoCancellationEnabled(),
			NoiseSuppression: cfg.Capture.NoiseSuppressionEnabled(),
			AutoGainControl:  cfg.Capture.AutoGainControlEnabled(),
		},
		VAD:          vadConfig(cfg.VAD),
		TickInterval: cfg.Capture.TickInterval,
	}, demoOpener{}, co, out, ic, engine.WithLogger(logger))

	// ── HTTP server ───────────────────────────────────────────────────────────
	var server *http.Server
	if cfg.Server.ListenAddr != "" {
		server = newHTTPServer(cfg.Server.ListenAddr, eng, stats, metrics)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
	}

	printStartupSummary(cfg)
	slog.Info("engine ready — press Ctrl+C to shut down")

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

func vadConfig(c config.VADConfig) vad.Config {
	return vad.Config{
		SpeechThreshold:  c.SpeechThreshold,
		SilenceThreshold: c.SilenceThreshold,
		TrailingSilence:  c.TrailingSilence,
	}
}

// ─── Provider wiring ──────────────────────────────────────────────────────────

// anyllmBackends lists the reply provider names served through the any-llm
// multi-backend client. "openai" has a dedicated native implementation and is
// not in this list.
var anyllmBackends = []string{
	"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "", "mock":
		return &sttmock.Provider{}, nil
	case "openai":
		var opts []sttoai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttoai.WithBaseURL(entry.BaseURL))
		}
		return sttoai.New(entry.APIKey, entry.Model, opts...)
	case "whisper-native":
		// Model carries the path to the GGML model file for local inference.
		var opts []whisper.Option
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(entry.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

func buildReply(entry config.ProviderEntry) (reply.Provider, error) {
	switch entry.Name {
	case "", "mock":
		return &replymock.Provider{Text: "Understood."}, nil
	case "openai":
		var opts []replyoai.Option
		if entry.BaseURL != "" {
			opts = append(opts, replyoai.WithBaseURL(entry.BaseURL))
		}
		return replyoai.New(entry.APIKey, entry.Model, opts...)
	case "ollama":
		// A local server: BaseURL addresses it, no API key.
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	default:
		for _, name := range anyllmBackends {
			if entry.Name != name {
				continue
			}
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		}
		return nil, fmt.Errorf("unknown reply provider %q", entry.Name)
	}
}

func buildTTS(entry config.ProviderEntry) (tts.Provider, error) {
	switch entry.Name {
	case "", "mock":
		return &ttsmock.Provider{}, nil
	case "openai":
		var opts []ttsoai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsoai.WithBaseURL(entry.BaseURL))
		}
		return ttsoai.New(entry.APIKey, entry.Model, entry.Voice, opts...)
	case "elevenlabs":
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.Voice != "" {
			opts = append(opts, elevenlabs.WithVoice(entry.Voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
}

// ─── HTTP server ──────────────────────────────────────────────────────────────

func newHTTPServer(addr string, eng *engine.Engine, stats *observe.StatsRecorder, metrics *observe.Metrics) *http.Server {
	hc := health.New(
		health.NewCheck("engine", func(context.Context) error {
			if !eng.Running() {
				return errors.New("sampling loop not running")
			}
			return nil
		}),
	)

	mux := http.NewServeMux()
	hc.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /state", func(w http.ResponseWriter, _ *http.Request) {
		body := struct {
			State engine.State          `json:"state"`
			Stats observe.StatsSnapshot `json:"stats"`
		}{eng.ProcessingState(), stats.Snapshot()}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Warn("state encode error", "err", err)
		}
	})

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ─── Startup summary ──────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          duplex — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Reply", cfg.Providers.Reply.Name, cfg.Providers.Reply.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  Vocabulary terms: %-19d ║\n", len(cfg.Vocabulary.Terms))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "mock"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ─── Logger ───────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
