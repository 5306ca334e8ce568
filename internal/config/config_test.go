package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8800 {
		t.Errorf("Port = %d, want 8800", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.RealtimeWorkers != 3 {
		t.Errorf("RealtimeWorkers = %d, want 3", cfg.RealtimeWorkers)
	}
	if cfg.TriggerChunks != 4 {
		t.Errorf("TriggerChunks = %d, want 4", cfg.TriggerChunks)
	}
	if cfg.AudioBufferSize != 100 {
		t.Errorf("AudioBufferSize = %d, want 100", cfg.AudioBufferSize)
	}
	if cfg.TranscriptBufferSize != 50 {
		t.Errorf("TranscriptBufferSize = %d, want 50", cfg.TranscriptBufferSize)
	}
	if cfg.HistoryLimit != 256 {
		t.Errorf("HistoryLimit = %d, want 256", cfg.HistoryLimit)
	}
	if cfg.EndFlushWait != time.Second {
		t.Errorf("EndFlushWait = %v, want 1s", cfg.EndFlushWait)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PARLEY_PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REALTIME_WORKERS", "8")
	t.Setenv("END_FLUSH_WAIT_MS", "250")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg := Load()

	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.RealtimeWorkers != 8 {
		t.Errorf("RealtimeWorkers = %d, want 8", cfg.RealtimeWorkers)
	}
	if cfg.EndFlushWait != 250*time.Millisecond {
		t.Errorf("EndFlushWait = %v, want 250ms", cfg.EndFlushWait)
	}
	if cfg.NatsURL != "nats://localhost:4222" {
		t.Errorf("NatsURL = %s", cfg.NatsURL)
	}
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("PARLEY_PORT", "not-a-number")

	if cfg := Load(); cfg.Port != 8800 {
		t.Errorf("Port = %d, want fallback 8800", cfg.Port)
	}
}
