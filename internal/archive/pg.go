package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"parley/internal/realtime"
	"parley/internal/task"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PG archives into Postgres. Tables are created on connect so a fresh
// database works without a migration step.
type PG struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*PG, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &PG{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *PG) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_tasks (
			task_id      text PRIMARY KEY,
			category     text NOT NULL,
			status       text NOT NULL,
			priority     int NOT NULL,
			payload      jsonb,
			result       jsonb,
			error        text,
			retry_count  int NOT NULL DEFAULT 0,
			created_at   timestamptz NOT NULL,
			started_at   timestamptz,
			completed_at timestamptz
		)`,
		`CREATE TABLE IF NOT EXISTS realtime_sessions (
			session_id       text PRIMARY KEY,
			interaction_id   text NOT NULL,
			user_id          text,
			store_id         text,
			final_transcript text,
			duration_seconds double precision,
			chunks_processed int,
			total_words      int,
			avg_confidence   double precision,
			ended_at         timestamptz NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := p.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *PG) Close() {
	p.pool.Close()
}

// SaveTask upserts a terminal task record. Re-archiving the same id is
// harmless since terminal tasks are immutable.
func (p *PG) SaveTask(ctx context.Context, t task.Task) error {
	var resultJSON []byte
	if t.Result != nil {
		resultJSON, _ = json.Marshal(t.Result)
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO analysis_tasks
			(task_id, category, status, priority, payload, result, error, retry_count, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (task_id) DO UPDATE SET
			status = EXCLUDED.status,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			retry_count = EXCLUDED.retry_count,
			completed_at = EXCLUDED.completed_at`,
		t.ID, t.Category, string(t.Status), int(t.Priority), []byte(t.Payload), resultJSON,
		t.Error, t.RetryCount, t.CreatedAt, t.StartedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// SaveSessionSummary inserts the consolidated record for an ended session.
func (p *PG) SaveSessionSummary(ctx context.Context, s realtime.SessionSummary) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO realtime_sessions
			(session_id, interaction_id, user_id, store_id, final_transcript, duration_seconds, chunks_processed, total_words, avg_confidence, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO NOTHING`,
		s.SessionID, s.InteractionID, s.UserID, s.StoreID, s.FinalTranscript,
		s.TotalDuration, s.ChunksProcessed, s.TotalWords, s.AvgConfidence, s.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("save session summary %s: %w", s.SessionID, err)
	}
	return nil
}
