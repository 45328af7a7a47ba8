package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harunnryd/interview/pkg/analysis"
	"github.com/harunnryd/interview/pkg/config"
	"github.com/harunnryd/interview/pkg/eventbus"
	"github.com/harunnryd/interview/pkg/llm"
	"github.com/harunnryd/interview/pkg/logging"
	"github.com/harunnryd/interview/pkg/metrics"
	"github.com/harunnryd/interview/pkg/observers"
	"github.com/harunnryd/interview/pkg/providers"
	"github.com/harunnryd/interview/pkg/redact"
	"github.com/harunnryd/interview/pkg/runner"
	"github.com/harunnryd/interview/pkg/server"
	"github.com/harunnryd/interview/pkg/session"
	"github.com/harunnryd/interview/pkg/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := logging.InitLogger(logging.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	redact.SetEnabled(cfg.Privacy.RedactPII)

	if err := run(cfg, logger); err != nil {
		logger.Error("interview_exit", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	obs, metricsHandler, closeObs, err := buildObserver(cfg.Observability, logger)
	if err != nil {
		return err
	}
	defer closeObs()

	reg := providers.Default()
	sttFactory, err := reg.BuildSTT(cfg.Vendors.STT.Provider, cfg.Vendors.STT.Settings)
	if err != nil {
		return fmt.Errorf("stt provider: %w", err)
	}
	ttsFactory, err := reg.BuildTTS(cfg.Vendors.TTS.Provider, cfg.Vendors.TTS.Settings)
	if err != nil {
		return fmt.Errorf("tts provider: %w", err)
	}
	generator, err := reg.BuildLLM(cfg.Vendors.LLM.Provider, cfg.Vendors.LLM.Settings)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	faceProvider := cfg.Vendors.Face.Provider
	if faceProvider == "" {
		faceProvider = "heuristic"
	}
	faceFactory, err := reg.BuildFace(faceProvider, cfg.Vendors.Face.Settings)
	if err != nil {
		return fmt.Errorf("face provider: %w", err)
	}
	logger.Info("providers_ready",
		"stt", cfg.Vendors.STT.Provider,
		"tts", cfg.Vendors.TTS.Provider,
		"llm", cfg.Vendors.LLM.Provider,
		"face", faceProvider,
	)

	var sink store.Sink
	var bus *eventbus.Publisher
	if cfg.Observability.NATSURL != "" {
		bus, err = eventbus.Connect(eventbus.Options{
			URL:    cfg.Observability.NATSURL,
			Prefix: cfg.Observability.NATSSubjectPrefix,
		}, logging.NewComponentLogger(logger, "eventbus"))
		if err != nil {
			return err
		}
		sink = bus
	}

	st := store.New(store.Options{
		TimelineSize:        cfg.Store.TimelineSize,
		SnapshotTimeline:    cfg.Store.SnapshotTimeline,
		VocalBroadcastEvery: cfg.Store.VocalBroadcastEvery,
		ObserverBuffer:      cfg.Store.ObserverBuffer,
		RetainEnded:         cfg.Store.RetainEnded,
		Sink:                sink,
		Observer:            obs,
		Logger:              logger,
	})

	quota := llm.NewQuotaGate(llm.QuotaConfig{
		MaxAttempts:      cfg.Generation.MaxAttempts,
		Delays:           cfg.Generation.RetryDelays(),
		AttemptTimeout:   cfg.Session.GenerateTimeout(),
		CircuitThreshold: cfg.Generation.CircuitThreshold,
		CircuitCooldown:  cfg.Generation.CircuitCooldown(),
		GateWait:         cfg.Generation.GateWait(),
		Observer:         obs,
		Logger:           logger,
	})

	pool := session.NewWorkerPool(cfg.Session.VideoWorkers, cfg.Session.VideoQueue)
	defer pool.Close()
	sessions := session.NewRegistry()

	deps := session.Dependencies{
		STT:       sttFactory,
		TTS:       ttsFactory,
		Generator: generator,
		Quota:     quota,
		Face:      faceFactory,
		Vocal:     func(rate int) analysis.VocalAnalyzer { return analysis.NewVocalAnalyzer(rate) },
		Store:     st,
		Pool:      pool,
		Observer:  obs,
		Logger:    logger,
	}
	opts := session.Options{
		SampleRate:        cfg.Session.SampleRate,
		VocalInterval:     cfg.Session.VocalInterval,
		AudioChunkBytes:   cfg.Session.AudioChunkBytes,
		PlaybackPacing:    cfg.Session.PlaybackPacing(),
		STTConnectTimeout: cfg.Session.STTConnectTimeout(),
		SynthesizeTimeout: cfg.Session.SynthesizeTimeout(),
		OpeningMessage:    cfg.Session.OpeningMessage,
		ReplyLimit: llm.ReplyLimit{
			MaxSentences: cfg.Session.MaxReplySentences,
			MaxChars:     cfg.Session.MaxReplyChars,
		},
	}

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		AllowAnyOrigin:  cfg.Server.AllowAnyOrigin,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
		WriteTimeout:    cfg.Server.WriteTimeout(),
		DrainGrace:      cfg.Server.DrainTimeout() / 2,
		MetricsPath:     cfg.Observability.MetricsPath,
	}, server.Deps{
		Store:    st,
		Sessions: sessions,
		NewSession: func(id string, sink session.Sink) *session.Controller {
			return session.New(id, sink, deps, opts)
		},
		Metrics:  metricsHandler,
		Observer: obs,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := runner.NewLifecycleRunner(srv, runner.Hooks{
		OnStart: srv.Start,
		OnStop: func() {
			if bus == nil {
				return
			}
			closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := bus.Close(closeCtx); err != nil {
				logger.Warn("eventbus_close_failed", "error", err)
			}
		},
	}, cfg.Server.DrainTimeout(), logger)

	logger.Info("interview_starting", "addr", cfg.Server.Addr, "environment", cfg.Environment)
	return r.Run(ctx)
}

// buildObserver assembles the metrics chain: latency derivation in front of
// the log, Prometheus and event file sinks.
func buildObserver(cfg config.ObservabilityConfig, logger *slog.Logger) (metrics.Observer, http.Handler, func(), error) {
	sinks := []metrics.Observer{observers.NewLoggerObserver(logging.NewComponentLogger(logger, "metrics"))}
	var handler http.Handler
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheusObserver("interview")
		sinks = append(sinks, prom)
		handler = prom.Handler()
	}

	closeFn := func() {}
	if cfg.EventsFile != "" {
		f, err := os.OpenFile(cfg.EventsFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open events file: %w", err)
		}
		events := metrics.NewJSONLObserver(f)
		async := metrics.NewAsyncObserver(events, cfg.EventBuffer)
		sinks = append(sinks, async)
		closeFn = func() {
			async.Close()
			_ = events.Close()
			if n := async.Dropped(); n > 0 {
				logger.Warn("metrics_events_dropped", "count", n)
			}
		}
	}

	chain := observers.NewLatencyObserver(logging.NewComponentLogger(logger, "latency"), observers.NewMultiObserver(sinks...))
	return chain, handler, closeFn, nil
}
