package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           int
	NatsURL        string
	DatabaseURL    string
	TranscriberURL string
	LogLevel       string

	RealtimeWorkers      int
	TriggerChunks        int
	AudioBufferSize      int
	TranscriptBufferSize int
	HistoryLimit         int
	EndFlushWait         time.Duration
}

func Load() Config {
	return Config{
		Port:           envInt("PARLEY_PORT", 8800),
		NatsURL:        envStr("NATS_URL", ""),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		TranscriberURL: envStr("TRANSCRIBER_URL", ""),
		LogLevel:       envStr("LOG_LEVEL", "info"),

		RealtimeWorkers:      envInt("REALTIME_WORKERS", 3),
		TriggerChunks:        envInt("REALTIME_TRIGGER_CHUNKS", 4),
		AudioBufferSize:      envInt("SESSION_AUDIO_BUFFER", 100),
		TranscriptBufferSize: envInt("SESSION_TRANSCRIPT_BUFFER", 50),
		HistoryLimit:         envInt("TASK_HISTORY_LIMIT", 256),
		EndFlushWait:         time.Duration(envInt("END_FLUSH_WAIT_MS", 1000)) * time.Millisecond,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
