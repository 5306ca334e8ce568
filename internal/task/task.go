package task

import (
	"encoding/json"
	"time"
)

// Priority orders tasks within an agent's queue. Higher values are dequeued first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Demote lowers the priority by one level, flooring at low. Retried tasks are
// demoted so repeatedly-failing work cannot starve fresh submissions.
func (p Priority) Demote() Priority {
	if p <= PriorityLow {
		return PriorityLow
	}
	return p - 1
}

// ParsePriority maps the external string form back to a Priority.
// Unknown values fall back to medium.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "medium", "":
		return PriorityMedium
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// Status is the task lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// DefaultMaxRetries bounds retry attempts for a task unless the agent
// config overrides it.
const DefaultMaxRetries = 3

// Result is what a collaborator returns for a completed task. Data is opaque
// to the scheduling core; Confidence and Accuracy are the two conventional
// fields the quality gate understands.
type Result struct {
	Data           map[string]any `json:"data,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	Accuracy       *float64       `json:"accuracy,omitempty"`
	QualityScore   float64        `json:"quality_score"`
	QualityWarning bool           `json:"quality_warning,omitempty"`
}

// Task is one unit of schedulable analysis work. A task is mutated only by its
// owning agent's loop; every retry re-enqueues a fresh copy of the value.
type Task struct {
	ID          string            `json:"id"`
	Category    string            `json:"category"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Priority    Priority          `json:"priority"`
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Result      *Result           `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	RetryCount  int               `json:"retry_count"`
	MaxRetries  int               `json:"max_retries"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// PayloadField extracts a string field from the payload JSON.
func (t *Task) PayloadField(key string) string {
	var m map[string]any
	if err := json.Unmarshal(t.Payload, &m); err != nil {
		return ""
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// PayloadMap returns the payload as a generic map, or nil if it is not an object.
func (t *Task) PayloadMap() map[string]any {
	var m map[string]any
	if err := json.Unmarshal(t.Payload, &m); err != nil {
		return nil
	}
	return m
}
