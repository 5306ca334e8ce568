package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"parley/internal/task"
)

// Analysis is the collaborator behind the "analysis" category. It runs fast,
// rule-based passes over a transcript; heavier model-backed analysis lives in
// an external service and can replace this implementation wholesale.
type Analysis struct {
	analyzer *QuickAnalyzer
}

func NewAnalysis() *Analysis {
	return &Analysis{analyzer: NewQuickAnalyzer()}
}

func (a *Analysis) Validate(payload json.RawMessage) bool {
	return hasFields(payload, "transcript")
}

func (a *Analysis) Process(_ context.Context, t task.Task) (task.Result, error) {
	transcript := t.PayloadField("transcript")
	analysisType := t.PayloadField("analysis_type")
	if analysisType == "" {
		analysisType = "sentiment"
	}

	switch analysisType {
	case "sentiment":
		return a.sentiment(transcript), nil
	case "keywords":
		return a.keywords(transcript), nil
	default:
		return task.Result{}, fmt.Errorf("unknown analysis type: %s", analysisType)
	}
}

func (a *Analysis) sentiment(transcript string) task.Result {
	s := a.analyzer.QuickSentiment(transcript)

	category := "neutral"
	if s.Score > 0.2 {
		category = "positive"
	} else if s.Score < -0.2 {
		category = "negative"
	}

	return task.Result{
		Data: map[string]any{
			"sentiment_score":    s.Score,
			"sentiment_category": category,
			"analysis_timestamp": time.Now().UTC().Format(time.RFC3339),
		},
		Confidence: floatPtr(0.8),
	}
}

func (a *Analysis) keywords(transcript string) task.Result {
	kws := a.analyzer.QuickKeywords(transcript)
	return task.Result{
		Data: map[string]any{
			"keywords":           kws,
			"keyword_count":      len(kws),
			"analysis_timestamp": time.Now().UTC().Format(time.RFC3339),
		},
		Confidence: floatPtr(0.85),
	}
}

// wordCount is shared by the analysis and transcription collaborators.
func wordCount(s string) int {
	return len(strings.Fields(s))
}
