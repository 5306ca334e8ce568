package collab

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"parley/internal/task"
)

func qcScore(t *testing.T, transcript string) (float64, []string) {
	t.Helper()
	q := NewQualityControl()
	payload, _ := json.Marshal(map[string]string{"transcript": transcript})
	res, err := q.Process(context.Background(), task.Task{ID: "t-1", Payload: payload})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Confidence == nil {
		t.Fatal("quality score missing")
	}
	issues, _ := res.Data["issues"].([]string)
	return *res.Confidence, issues
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestQualityControl_CleanTranscript(t *testing.T) {
	score, issues := qcScore(t, "I would like to return the jacket I bought last week")
	if !almostEqual(score, 0.8) {
		t.Errorf("score = %v, want 0.8", score)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestQualityControl_ShortTranscript(t *testing.T) {
	score, issues := qcScore(t, "hello")
	if !almostEqual(score, 0.5) {
		t.Errorf("score = %v, want 0.5", score)
	}
	if len(issues) != 1 {
		t.Errorf("expected 1 issue, got %v", issues)
	}
}

func TestQualityControl_UncertaintyMarkers(t *testing.T) {
	// Bracketed annotation and a trailing ellipsis both count.
	score, issues := qcScore(t, "the customer said [inaudible] about the warranty and then...")
	if !almostEqual(score, 0.6) {
		t.Errorf("score = %v, want 0.6", score)
	}
	if len(issues) != 2 {
		t.Errorf("expected 2 issues, got %v", issues)
	}
}

func TestQualityControl_ShortWordDensity(t *testing.T) {
	score, issues := qcScore(t, "a b c d e f g h i j")
	if !almostEqual(score, 0.6) {
		t.Errorf("score = %v, want 0.6", score)
	}
	if len(issues) != 1 {
		t.Errorf("expected 1 issue, got %v", issues)
	}
}

func TestQualityControl_ScoreFloorsAtZero(t *testing.T) {
	// Short, bracketed, parenthesized, elided, and low-density all at once.
	score, _ := qcScore(t, "[a] (b)...")
	if score < 0 {
		t.Errorf("score must not go negative, got %v", score)
	}
}

func TestQualityControl_ReportsCounts(t *testing.T) {
	q := NewQualityControl()
	res, err := q.Process(context.Background(), task.Task{
		ID:      "t-1",
		Payload: json.RawMessage(`{"transcript":"hello world"}`),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Data["word_count"] != 2 {
		t.Errorf("word_count = %v, want 2", res.Data["word_count"])
	}
	if res.Data["character_count"] != 11 {
		t.Errorf("character_count = %v, want 11", res.Data["character_count"])
	}
}
