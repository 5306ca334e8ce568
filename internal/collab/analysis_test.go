package collab

import (
	"context"
	"encoding/json"
	"testing"

	"parley/internal/task"
)

func analysisTask(payload string) task.Task {
	return task.Task{ID: "t-1", Payload: json.RawMessage(payload)}
}

func TestAnalysis_Validate(t *testing.T) {
	a := NewAnalysis()

	if !a.Validate(json.RawMessage(`{"transcript":"hello"}`)) {
		t.Error("payload with transcript must validate")
	}
	if a.Validate(json.RawMessage(`{"audio":"abc"}`)) {
		t.Error("payload without transcript must not validate")
	}
	if a.Validate(json.RawMessage(`not json`)) {
		t.Error("malformed payload must not validate")
	}
}

func TestAnalysis_SentimentIsTheDefault(t *testing.T) {
	a := NewAnalysis()

	res, err := a.Process(context.Background(), analysisTask(`{"transcript":"the service was great, thank you"}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Data["sentiment_category"] != "positive" {
		t.Errorf("category = %v, want positive", res.Data["sentiment_category"])
	}
	if res.Data["sentiment_score"] != 0.3 {
		t.Errorf("score = %v, want 0.3", res.Data["sentiment_score"])
	}
	if res.Confidence == nil || *res.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", res.Confidence)
	}
}

func TestAnalysis_NegativeSentiment(t *testing.T) {
	a := NewAnalysis()

	res, err := a.Process(context.Background(), analysisTask(`{"transcript":"awful experience, very disappointed","analysis_type":"sentiment"}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Data["sentiment_category"] != "negative" {
		t.Errorf("category = %v, want negative", res.Data["sentiment_category"])
	}
}

func TestAnalysis_Keywords(t *testing.T) {
	a := NewAnalysis()

	res, err := a.Process(context.Background(), analysisTask(`{"transcript":"refund refund shipping","analysis_type":"keywords"}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	kws, ok := res.Data["keywords"].([]string)
	if !ok {
		t.Fatalf("keywords have type %T", res.Data["keywords"])
	}
	if len(kws) != 2 || kws[0] != "refund" {
		t.Errorf("keywords = %v, want [refund shipping]", kws)
	}
	if res.Data["keyword_count"] != 2 {
		t.Errorf("keyword_count = %v, want 2", res.Data["keyword_count"])
	}
	if res.Confidence == nil || *res.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", res.Confidence)
	}
}

func TestAnalysis_UnknownType(t *testing.T) {
	a := NewAnalysis()

	if _, err := a.Process(context.Background(), analysisTask(`{"transcript":"hello","analysis_type":"topic_model"}`)); err == nil {
		t.Error("expected error for unknown analysis type")
	}
}
