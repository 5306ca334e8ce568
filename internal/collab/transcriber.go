package collab

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"parley/internal/task"
)

// HTTPTranscriber calls an external transcription service over HTTP. The
// service receives raw audio bytes and returns the recognized text; model
// selection and acoustic handling are entirely its concern.
type HTTPTranscriber struct {
	url    string
	client *http.Client
}

func NewHTTPTranscriber(url string) *HTTPTranscriber {
	return &HTTPTranscriber{
		url:    url,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type transcribeResponse struct {
	Transcript string   `json:"transcript"`
	Confidence *float64 `json:"confidence"`
}

func (h *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte, languageHint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("build transcribe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if languageHint != "" {
		req.Header.Set("X-Language-Hint", languageHint)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcribe response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcribe service returned %d: %s", resp.StatusCode, body)
	}

	var tr transcribeResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode transcribe response: %w", err)
	}
	return tr.Transcript, nil
}

// Transcription adapts a Transcriber into the batch task contract for the
// "transcription" category. The payload carries base64 audio so it survives
// JSON transport.
type Transcription struct {
	transcriber Transcriber
}

func NewTranscription(t Transcriber) *Transcription {
	return &Transcription{transcriber: t}
}

func (tc *Transcription) Validate(payload json.RawMessage) bool {
	return hasFields(payload, "audio")
}

func (tc *Transcription) Process(ctx context.Context, t task.Task) (task.Result, error) {
	audio, err := base64.StdEncoding.DecodeString(t.PayloadField("audio"))
	if err != nil {
		return task.Result{}, fmt.Errorf("decode audio payload: %w", err)
	}
	languageHint := t.PayloadField("language_hint")

	text, err := tc.transcriber.Transcribe(ctx, audio, languageHint)
	if err != nil {
		return task.Result{}, fmt.Errorf("transcribe: %w", err)
	}

	words := wordCount(text)
	confidence := TranscriptConfidence(text, len(audio))

	return task.Result{
		Data: map[string]any{
			"transcript":        text,
			"word_count":        words,
			"language_detected": languageHint,
		},
		Confidence: floatPtr(confidence),
	}, nil
}

// Roughly one second of 16 kHz 16-bit mono audio.
const oneSecondAudioBytes = 32000

// TranscriptConfidence estimates recognition confidence from text length and
// audio size. Longer output over more audio scores higher; the cap reflects
// that a heuristic should never claim certainty.
func TranscriptConfidence(text string, audioBytes int) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	confidence := 0.7
	words := wordCount(text)
	if words > 10 {
		confidence += 0.1
	}
	if words > 20 {
		confidence += 0.1
	}
	if audioBytes > oneSecondAudioBytes {
		confidence += 0.1
	}

	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}
