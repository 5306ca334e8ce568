// Package announce publishes task and session lifecycle events to NATS so
// downstream consumers (dashboards, archival pipelines) can react without
// polling the status API.
package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"parley/internal/realtime"
	"parley/internal/task"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName        = "PARLEY_EVENTS"
	subjectTaskDone   = "parley.task.completed"
	subjectTaskFailed = "parley.task.failed"
	subjectSessionEnd = "parley.session.ended"
	subjectRegistered = "parley.service.registered"
)

// Announcer owns the NATS connection and the event stream.
type Announcer struct {
	nc *nats.Conn
}

func New(natsURL string) (*Announcer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	a := &Announcer{nc: nc}
	if err := a.ensureStream(context.Background()); err != nil {
		// Publishing still works without the stream; events just aren't retained.
		slog.Warn("event stream not available", "stream", streamName, "error", err)
	}
	return a, nil
}

func (a *Announcer) ensureStream(ctx context.Context) error {
	js, err := jetstream.New(a.nc)
	if err != nil {
		return fmt.Errorf("jetstream init: %w", err)
	}

	if _, err := js.Stream(ctx, streamName); err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"parley.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", streamName, err)
	}

	slog.Info("created event stream", "name", streamName)
	return nil
}

// TaskFinished publishes a terminal task state.
func (a *Announcer) TaskFinished(t task.Task) {
	subject := subjectTaskDone
	if t.Status == task.StatusError {
		subject = subjectTaskFailed
	}

	payload, _ := json.Marshal(map[string]any{
		"task_id":      t.ID,
		"category":     t.Category,
		"status":       string(t.Status),
		"priority":     t.Priority.String(),
		"retry_count":  t.RetryCount,
		"error":        t.Error,
		"completed_at": t.CompletedAt,
	})

	if err := a.nc.Publish(subject, payload); err != nil {
		slog.Warn("failed to publish task event", "subject", subject, "task_id", t.ID, "error", err)
	}
}

// SessionEnded publishes the consolidated summary of an ended session.
func (a *Announcer) SessionEnded(s realtime.SessionSummary) {
	payload, _ := json.Marshal(s)
	if err := a.nc.Publish(subjectSessionEnd, payload); err != nil {
		slog.Warn("failed to publish session event", "session_id", s.SessionID, "error", err)
	}
}

// Announce publishes the service-registration event on startup.
func (a *Announcer) Announce(port int) {
	payload, _ := json.Marshal(map[string]any{
		"event_type": "service.registered",
		"source":     "parley",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"metadata":   map[string]any{"port": port},
	})
	if err := a.nc.Publish(subjectRegistered, payload); err != nil {
		slog.Warn("failed to publish registration event", "error", err)
	}
}

// Close drains the connection so queued publishes flush before exit.
func (a *Announcer) Close() {
	a.nc.Drain()
}
