// Package archive persists finalized tasks and session summaries. The
// scheduling core is in-memory only; archiving is an edge concern, enabled
// when DATABASE_URL is configured.
package archive

import (
	"context"

	"parley/internal/realtime"
	"parley/internal/task"
)

// Store is the interface consumed by the wiring layer. The concrete
// implementation is *PG (pgx-backed).
type Store interface {
	SaveTask(ctx context.Context, t task.Task) error
	SaveSessionSummary(ctx context.Context, s realtime.SessionSummary) error
	Close()
}
