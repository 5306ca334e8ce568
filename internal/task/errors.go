package task

import "errors"

// Caller-facing error taxonomy. Recoverable execution failures (timeouts,
// collaborator errors) stay inside the agent until retries are exhausted and
// are surfaced as the task's Error field, not as these sentinels.
var (
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrUnknownAgent    = errors.New("unknown agent")
	ErrUnknownTask     = errors.New("task not found")
	ErrUnknownSession  = errors.New("session not found")
	ErrShutdown        = errors.New("shutdown in progress")
)
