package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"parley/internal/collab"
	"parley/internal/task"

	"github.com/google/uuid"
)

// Config is the per-category tuning for an Agent. Immutable after New.
type Config struct {
	Name                string
	MaxConcurrentTasks  int
	Timeout             time.Duration
	RetryDelay          time.Duration
	EnableQualityGate   bool
	ConfidenceThreshold float64
	MaxRetries          int
	HistoryLimit        int
	PollInterval        time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentTasks <= 0 {
		c.MaxConcurrentTasks = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = task.DefaultMaxRetries
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 256
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Millisecond
	}
	return c
}

// Status is a point-in-time snapshot of an agent, served to status queries.
type Status struct {
	Name           string  `json:"name"`
	Running        bool    `json:"running"`
	ActiveTasks    int     `json:"active_tasks"`
	QueuedTasks    int     `json:"queued_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	AvgQuality     float64 `json:"avg_quality"`
	QualityCount   int     `json:"quality_count"`
}

// outcome is what an execution goroutine reports back to the scheduling loop.
type outcome struct {
	t        task.Task
	res      task.Result
	err      error
	timedOut bool
}

// Agent owns one category's backlog: it orders pending tasks by priority,
// overlaps executions up to the concurrency cap, enforces the timeout, and
// retries failures with priority decay. The scheduling loop is the only
// writer of queue, active set, and history; execution goroutines report
// results over a channel instead of mutating shared state.
type Agent struct {
	cfg    Config
	collab collab.Collaborator

	mu       sync.Mutex
	pending  []task.Task
	active   map[string]task.Task
	history  []task.Task
	avgQual  float64
	qualN    int
	running  bool
	shutdown bool

	doneCh     chan outcome
	stopped    chan struct{}
	onFinished func(task.Task)
}

func New(cfg Config, c collab.Collaborator) *Agent {
	cfg = cfg.withDefaults()
	return &Agent{
		cfg:     cfg,
		collab:  c,
		active:  make(map[string]task.Task),
		doneCh:  make(chan outcome, cfg.MaxConcurrentTasks),
		stopped: make(chan struct{}),
	}
}

func (a *Agent) Name() string { return a.cfg.Name }

// SetOnFinished registers a callback invoked for every task that reaches a
// terminal state. Must be set before Run starts.
func (a *Agent) SetOnFinished(fn func(task.Task)) {
	a.onFinished = fn
}

// Submit validates the payload and enqueues a new task. Invalid input yields
// a task already in terminal error state; the id is still returned so the
// caller can inspect the failure.
func (a *Agent) Submit(payload json.RawMessage, priority task.Priority, metadata map[string]string) (string, error) {
	now := time.Now().UTC()
	t := task.Task{
		ID:         uuid.New().String(),
		Category:   a.cfg.Name,
		Payload:    payload,
		Priority:   priority,
		Status:     task.StatusQueued,
		CreatedAt:  now,
		MaxRetries: a.cfg.MaxRetries,
		Metadata:   metadata,
	}

	if !a.collab.Validate(payload) {
		t.Status = task.StatusError
		t.Error = "invalid input data"
		t.CompletedAt = &now

		a.mu.Lock()
		if a.shutdown {
			a.mu.Unlock()
			return "", task.ErrShutdown
		}
		a.pushHistoryLocked(t)
		a.mu.Unlock()

		a.notifyFinished(t)
		slog.Warn("rejected task with invalid input", "agent", a.cfg.Name, "task_id", t.ID)
		return t.ID, nil
	}

	a.mu.Lock()
	if a.shutdown {
		a.mu.Unlock()
		return "", task.ErrShutdown
	}
	a.enqueueLocked(t)
	a.mu.Unlock()

	slog.Debug("task queued", "agent", a.cfg.Name, "task_id", t.ID, "priority", priority.String())
	return t.ID, nil
}

// enqueueLocked inserts before the first entry with strictly lower priority,
// so equal priorities keep arrival order. Retries land at the tail of their
// new priority band through the same scan.
func (a *Agent) enqueueLocked(t task.Task) {
	i := len(a.pending)
	for j := range a.pending {
		if t.Priority > a.pending[j].Priority {
			i = j
			break
		}
	}
	a.pending = append(a.pending, task.Task{})
	copy(a.pending[i+1:], a.pending[i:])
	a.pending[i] = t
}

// Run is the scheduling loop. It only admits work and reaps outcomes; task
// execution happens in per-task goroutines bounded by the concurrency cap.
// Returns when Shutdown has been requested (or ctx canceled) and the active
// set has drained.
func (a *Agent) Run(ctx context.Context) {
	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	slog.Info("agent started", "agent", a.cfg.Name, "max_concurrent", a.cfg.MaxConcurrentTasks)

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	ctxDone := ctx.Done()
	for {
		select {
		case out := <-a.doneCh:
			a.step(func() { a.finish(out) })
		case <-ticker.C:
			a.step(func() { a.dispatch(ctx) })
		case <-ctxDone:
			a.mu.Lock()
			a.shutdown = true
			a.mu.Unlock()
			ctxDone = nil
		}

		a.mu.Lock()
		done := a.shutdown && len(a.active) == 0
		if done {
			a.running = false
		}
		a.mu.Unlock()
		if done {
			close(a.stopped)
			slog.Info("agent stopped", "agent", a.cfg.Name)
			return
		}
	}
}

// step runs one loop action, catching panics so an internal error never
// kills the scheduling loop.
func (a *Agent) step(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent loop error, backing off", "agent", a.cfg.Name, "error", r)
			time.Sleep(time.Second)
		}
	}()
	fn()
}

// dispatch starts queued tasks while there is capacity. It never waits on a
// running task.
func (a *Agent) dispatch(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for !a.shutdown && len(a.active) < a.cfg.MaxConcurrentTasks && len(a.pending) > 0 {
		t := a.pending[0]
		a.pending = a.pending[1:]

		now := time.Now().UTC()
		t.Status = task.StatusProcessing
		t.StartedAt = &now
		a.active[t.ID] = t

		go a.execute(ctx, t)
	}
}

// execute runs one attempt against the collaborator under the configured
// timeout. The timeout is enforced here regardless of whether the
// collaborator honors context cancellation.
func (a *Agent) execute(ctx context.Context, t task.Task) {
	cctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	type procOut struct {
		res task.Result
		err error
	}
	ch := make(chan procOut, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- procOut{err: fmt.Errorf("collaborator panic: %v", r)}
			}
		}()
		res, err := a.collab.Process(cctx, t)
		ch <- procOut{res: res, err: err}
	}()

	select {
	case <-cctx.Done():
		if cctx.Err() == context.DeadlineExceeded {
			a.doneCh <- outcome{t: t, timedOut: true}
		} else {
			a.doneCh <- outcome{t: t, err: cctx.Err()}
		}
	case out := <-ch:
		// A collaborator that honors cancellation returns the context error
		// itself; classify that as a timeout too.
		if out.err != nil && cctx.Err() == context.DeadlineExceeded {
			a.doneCh <- outcome{t: t, timedOut: true}
			return
		}
		a.doneCh <- outcome{t: t, res: out.res, err: out.err}
	}
}

// finish reaps one attempt: completed tasks go to history, failed attempts
// are retried with priority decay until retries are exhausted.
func (a *Agent) finish(out outcome) {
	a.mu.Lock()

	t, ok := a.active[out.t.ID]
	if !ok {
		t = out.t
	}
	delete(a.active, t.ID)

	now := time.Now().UTC()

	err := out.err
	if out.timedOut {
		err = fmt.Errorf("task timeout")
	}

	if err != nil {
		if t.RetryCount < t.MaxRetries {
			// Fresh record per attempt: same id, bumped retry count, decayed
			// priority, cleared transient state.
			retry := t
			retry.RetryCount++
			retry.Priority = retry.Priority.Demote()
			retry.Status = task.StatusQueued
			retry.StartedAt = nil
			retry.Error = ""
			retry.Result = nil

			slog.Info("retrying task",
				"agent", a.cfg.Name,
				"task_id", t.ID,
				"attempt", retry.RetryCount,
				"priority", retry.Priority.String(),
				"error", err,
			)

			if a.cfg.RetryDelay > 0 {
				a.mu.Unlock()
				time.AfterFunc(a.cfg.RetryDelay, func() { a.requeue(retry) })
				return
			}
			a.enqueueLocked(retry)
			a.mu.Unlock()
			return
		}

		t.Status = task.StatusError
		t.Error = err.Error()
		t.CompletedAt = &now
		a.pushHistoryLocked(t)
		a.mu.Unlock()

		slog.Error("task failed permanently",
			"agent", a.cfg.Name,
			"task_id", t.ID,
			"retries", t.RetryCount,
			"error", err,
		)
		a.notifyFinished(t)
		return
	}

	res := out.res
	if a.cfg.EnableQualityGate {
		score := assessQuality(res)
		res.QualityScore = score
		if score < a.cfg.ConfidenceThreshold {
			res.QualityWarning = true
			slog.Warn("low quality result",
				"agent", a.cfg.Name,
				"task_id", t.ID,
				"quality_score", score,
			)
		}
		a.updateQualityLocked(score)
	}

	t.Result = &res
	t.Status = task.StatusCompleted
	t.CompletedAt = &now
	a.pushHistoryLocked(t)
	a.mu.Unlock()

	slog.Debug("task completed", "agent", a.cfg.Name, "task_id", t.ID)
	a.notifyFinished(t)
}

// requeue re-enqueues a delayed retry. If shutdown began while the retry was
// waiting, the task is finalized as an error instead of being dropped.
func (a *Agent) requeue(t task.Task) {
	a.mu.Lock()
	if a.shutdown {
		now := time.Now().UTC()
		t.Status = task.StatusError
		t.Error = "shutdown before retry"
		t.CompletedAt = &now
		a.pushHistoryLocked(t)
		a.mu.Unlock()
		a.notifyFinished(t)
		return
	}
	a.enqueueLocked(t)
	a.mu.Unlock()
}

// assessQuality derives the gate score from the result, preferring the
// collaborator's own confidence or accuracy, clamped to [0,1].
func assessQuality(res task.Result) float64 {
	score := 0.8
	if res.Confidence != nil {
		score = *res.Confidence
	} else if res.Accuracy != nil {
		score = *res.Accuracy
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func (a *Agent) updateQualityLocked(score float64) {
	a.avgQual = (a.avgQual*float64(a.qualN) + score) / float64(a.qualN+1)
	a.qualN++
}

func (a *Agent) pushHistoryLocked(t task.Task) {
	a.history = append(a.history, t)
	if len(a.history) > a.cfg.HistoryLimit {
		a.history = a.history[len(a.history)-a.cfg.HistoryLimit:]
	}
}

func (a *Agent) notifyFinished(t task.Task) {
	if a.onFinished != nil {
		a.onFinished(t)
	}
}

// TaskStatus looks up a task snapshot: active set first, then history, then
// the pending queue.
func (a *Agent) TaskStatus(taskID string) (task.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t, ok := a.active[taskID]; ok {
		return t, nil
	}
	for i := len(a.history) - 1; i >= 0; i-- {
		if a.history[i].ID == taskID {
			return a.history[i], nil
		}
	}
	for _, t := range a.pending {
		if t.ID == taskID {
			return t, nil
		}
	}
	return task.Task{}, task.ErrUnknownTask
}

// Status returns a snapshot of the agent's counters.
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{
		Name:           a.cfg.Name,
		Running:        a.running,
		ActiveTasks:    len(a.active),
		QueuedTasks:    len(a.pending),
		CompletedTasks: len(a.history),
		AvgQuality:     a.avgQual,
		QualityCount:   a.qualN,
	}
}

// Shutdown stops new dequeues and blocks until in-flight tasks drain and the
// scheduling loop exits. Safe to call more than once.
func (a *Agent) Shutdown() {
	a.mu.Lock()
	a.shutdown = true
	a.mu.Unlock()
	<-a.stopped
}
