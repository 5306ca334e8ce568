package collab

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"parley/internal/task"
)

func TestHTTPTranscriber_SendsAudioAndDecodesResponse(t *testing.T) {
	var gotBody []byte
	var gotHint string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHint = r.Header.Get("X-Language-Hint")
		json.NewEncoder(w).Encode(map[string]any{"transcript": "hello world", "confidence": 0.9})
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL)
	text, err := tr.Transcribe(context.Background(), []byte{1, 2, 3}, "en")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want hello world", text)
	}
	if string(gotBody) != "\x01\x02\x03" {
		t.Errorf("audio body = %v", gotBody)
	}
	if gotHint != "en" {
		t.Errorf("language hint = %q, want en", gotHint)
	}
}

func TestHTTPTranscriber_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL)
	if _, err := tr.Transcribe(context.Background(), []byte{1}, ""); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestTranscription_Process(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"transcript": "hello world"})
	}))
	defer srv.Close()

	tc := NewTranscription(NewHTTPTranscriber(srv.URL))
	payload, _ := json.Marshal(map[string]string{
		"audio":         base64.StdEncoding.EncodeToString([]byte("pcm-bytes")),
		"language_hint": "en",
	})

	res, err := tc.Process(context.Background(), task.Task{ID: "t-1", Payload: payload})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Data["transcript"] != "hello world" {
		t.Errorf("transcript = %v", res.Data["transcript"])
	}
	if res.Data["word_count"] != 2 {
		t.Errorf("word_count = %v, want 2", res.Data["word_count"])
	}
	if res.Data["language_detected"] != "en" {
		t.Errorf("language_detected = %v, want en", res.Data["language_detected"])
	}
	if res.Confidence == nil || *res.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", res.Confidence)
	}
}

func TestTranscription_RejectsBadBase64(t *testing.T) {
	tc := NewTranscription(NewHTTPTranscriber("http://unused"))
	if _, err := tc.Process(context.Background(), task.Task{
		ID:      "t-1",
		Payload: json.RawMessage(`{"audio":"%%not-base64%%"}`),
	}); err == nil {
		t.Error("expected error for invalid base64 audio")
	}
}

func TestTranscription_Validate(t *testing.T) {
	tc := NewTranscription(NewHTTPTranscriber("http://unused"))
	if !tc.Validate(json.RawMessage(`{"audio":"aGk="}`)) {
		t.Error("payload with audio must validate")
	}
	if tc.Validate(json.RawMessage(`{"transcript":"hi"}`)) {
		t.Error("payload without audio must not validate")
	}
}

func TestTranscriptConfidence(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		audioBytes int
		want       float64
	}{
		{"empty", "  ", 50000, 0},
		{"base", "hello world", 1000, 0.7},
		{"over ten words", "one two three four five six seven eight nine ten eleven", 1000, 0.8},
		{"over a second of audio", "hello world", 40000, 0.8},
		{"capped", "w w w w w w w w w w w w w w w w w w w w w", 40000, 0.95},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TranscriptConfidence(tc.text, tc.audioBytes); !almostEqual(got, tc.want) {
				t.Errorf("confidence = %v, want %v", got, tc.want)
			}
		})
	}
}
