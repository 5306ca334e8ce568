package realtime

import (
	"time"

	"parley/internal/collab"
)

// AudioChunk is one received slice of raw audio. Immutable once buffered.
type AudioChunk struct {
	Data      []byte
	Timestamp time.Time
	Size      int
}

// TranscriptFragment is one partial processing result for a session.
// Immutable once produced.
type TranscriptFragment struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"session_id"`
	Text       string            `json:"text"`
	Confidence float64           `json:"confidence"`
	Partial    bool              `json:"is_partial"`
	Timestamp  time.Time         `json:"timestamp"`
	WordCount  int               `json:"word_count"`
	Sentiment  *collab.Sentiment `json:"sentiment,omitempty"`
	Keywords   []string          `json:"keywords,omitempty"`
}

// Subscriber receives fragments for one session as they are produced. A
// delivery error is logged and does not affect session state.
type Subscriber interface {
	Send(frag TranscriptFragment) error
}

// SessionStatus is a read-only snapshot served to status queries.
type SessionStatus struct {
	SessionID            string    `json:"session_id"`
	InteractionID        string    `json:"interaction_id"`
	Active               bool      `json:"is_active"`
	StartedAt            time.Time `json:"started_at"`
	LastActivity         time.Time `json:"last_activity"`
	AudioBufferSize      int       `json:"audio_buffer_size"`
	TranscriptBufferSize int       `json:"transcript_buffer_size"`
	AvgConfidence        float64   `json:"avg_confidence"`
	TotalWords           int       `json:"total_words"`
	ChunksProcessed      int       `json:"chunks_processed"`
}

// SessionSummary is the consolidated result returned by EndSession.
type SessionSummary struct {
	SessionID       string    `json:"session_id"`
	InteractionID   string    `json:"interaction_id"`
	UserID          string    `json:"user_id"`
	StoreID         string    `json:"store_id"`
	FinalTranscript string    `json:"final_transcript"`
	TotalDuration   float64   `json:"total_duration_seconds"`
	ChunksProcessed int       `json:"total_chunks_processed"`
	TotalWords      int       `json:"total_words"`
	AvgConfidence   float64   `json:"avg_confidence"`
	EndedAt         time.Time `json:"ended_at"`
}

type sessionState int

const (
	stateActive sessionState = iota
	stateEnding
)

// session is the per-conversation state. All fields are guarded by the
// processor's mutex; snapshots are taken under it for reads.
type session struct {
	id            string
	interactionID string
	userID        string
	storeID       string
	languageHint  string
	startedAt     time.Time
	lastActivity  time.Time

	audio      []AudioChunk
	transcript []TranscriptFragment
	state      sessionState
	subscriber Subscriber
	inFlight   bool

	avgConfidence   float64
	totalWords      int
	chunksProcessed int
}
