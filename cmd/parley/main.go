package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/internal/agent"
	"parley/internal/announce"
	"parley/internal/api"
	"parley/internal/archive"
	"parley/internal/collab"
	"parley/internal/config"
	"parley/internal/realtime"
	"parley/internal/task"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("parley starting",
		"port", cfg.Port,
		"realtime_workers", cfg.RealtimeWorkers,
		"trigger_chunks", cfg.TriggerChunks,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Optional archive store.
	var store archive.Store
	if cfg.DatabaseURL != "" {
		pg, err := archive.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
		slog.Info("archive store connected")
	}

	// Step 2: Optional NATS announcer.
	var announcer *announce.Announcer
	if cfg.NatsURL != "" {
		a, err := announce.New(cfg.NatsURL)
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer a.Close()
		announcer = a
		slog.Info("announcer connected", "nats_url", cfg.NatsURL)
	}

	// Step 3: Agent manager with per-category collaborators.
	manager := agent.NewManager()
	manager.SetOnTaskFinished(func(t task.Task) {
		if announcer != nil {
			announcer.TaskFinished(t)
		}
		if store != nil {
			sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer scancel()
			if err := store.SaveTask(sctx, t); err != nil {
				slog.Warn("failed to archive task", "task_id", t.ID, "error", err)
			}
		}
	})

	var transcriber collab.Transcriber
	if cfg.TranscriberURL != "" {
		transcriber = collab.NewHTTPTranscriber(cfg.TranscriberURL)
		manager.Register("transcription", agent.New(agent.Config{
			Name:                "transcription",
			MaxConcurrentTasks:  3,
			Timeout:             120 * time.Second,
			EnableQualityGate:   true,
			ConfidenceThreshold: 0.8,
			HistoryLimit:        cfg.HistoryLimit,
		}, collab.NewTranscription(transcriber)))
		manager.AddRoute("transcribe", "transcription")
	} else {
		slog.Warn("TRANSCRIBER_URL not set, transcription disabled")
	}

	manager.Register("analysis", agent.New(agent.Config{
		Name:                "analysis",
		MaxConcurrentTasks:  5,
		Timeout:             60 * time.Second,
		EnableQualityGate:   true,
		ConfidenceThreshold: 0.7,
		HistoryLimit:        cfg.HistoryLimit,
	}, collab.NewAnalysis()))
	manager.AddRoute("analyze", "analysis")

	manager.Register("quality_control", agent.New(agent.Config{
		Name:                "quality_control",
		MaxConcurrentTasks:  10,
		Timeout:             30 * time.Second,
		EnableQualityGate:   true,
		ConfidenceThreshold: 0.8,
		HistoryLimit:        cfg.HistoryLimit,
	}, collab.NewQualityControl()))
	manager.AddRoute("quality_check", "quality_control")

	manager.StartAll(ctx)

	// Step 4: Realtime processor.
	var processor *realtime.Processor
	if transcriber != nil {
		analyzer := collab.NewQuickAnalyzer()
		processor = realtime.NewProcessor(realtime.Config{
			Workers:              cfg.RealtimeWorkers,
			TriggerChunks:        cfg.TriggerChunks,
			AudioBufferSize:      cfg.AudioBufferSize,
			TranscriptBufferSize: cfg.TranscriptBufferSize,
			EndFlushWait:         cfg.EndFlushWait,
		}, transcriber, analyzer, analyzer)
	} else {
		// No transcription backend: sessions can still be created and audio
		// buffered, but jobs will fail until one is configured.
		processor = realtime.NewProcessor(realtime.Config{
			Workers:              cfg.RealtimeWorkers,
			TriggerChunks:        cfg.TriggerChunks,
			AudioBufferSize:      cfg.AudioBufferSize,
			TranscriptBufferSize: cfg.TranscriptBufferSize,
			EndFlushWait:         cfg.EndFlushWait,
		}, unavailableTranscriber{}, nil, nil)
	}
	processor.Start(ctx)

	// Step 5: Announce availability.
	if announcer != nil {
		announcer.Announce(cfg.Port)
	}

	// Step 6: HTTP API.
	srv := api.NewServer(manager, processor, cfg.Port, func(s realtime.SessionSummary) {
		if announcer != nil {
			announcer.SessionEnded(s)
		}
		if store != nil {
			sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer scancel()
			if err := store.SaveSessionSummary(sctx, s); err != nil {
				slog.Warn("failed to archive session summary", "session_id", s.SessionID, "error", err)
			}
		}
	})
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("parley ready", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("shutting down", "signal", sig)
	manager.ShutdownAll()
	cancel()
	processor.Wait()
	slog.Info("parley stopped")
}

// unavailableTranscriber stands in when no transcription backend is
// configured.
type unavailableTranscriber struct{}

var errNoTranscriber = errors.New("no transcription backend configured")

func (unavailableTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return "", errNoTranscriber
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
