package collab

import (
	"context"
	"encoding/json"

	"parley/internal/task"
)

// Collaborator is an external analysis capability consumed by an agent.
// One implementation exists per task category. Validate must be pure and
// fast; Process may be slow and is executed under the agent's timeout.
type Collaborator interface {
	Validate(payload json.RawMessage) bool
	Process(ctx context.Context, t task.Task) (task.Result, error)
}

// Transcriber converts raw audio bytes into text. Used by the realtime
// processing path; implementations wrap whatever speech service is deployed.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, languageHint string) (string, error)
}

// Sentiment is the output of a quick sentiment pass.
type Sentiment struct {
	Score      float64 `json:"score"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// SentimentScorer produces a fast, low-fidelity sentiment estimate suitable
// for per-fragment annotation in the realtime path.
type SentimentScorer interface {
	QuickSentiment(text string) Sentiment
}

// KeywordExtractor produces a fast keyword list for fragment annotation.
type KeywordExtractor interface {
	QuickKeywords(text string) []string
}

// hasFields reports whether the payload is a JSON object containing every
// named field. The common Validate implementation across collaborators.
func hasFields(payload json.RawMessage, fields ...string) bool {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return false
	}
	for _, f := range fields {
		if _, ok := m[f]; !ok {
			return false
		}
	}
	return true
}

func floatPtr(v float64) *float64 { return &v }
