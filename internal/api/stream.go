package api

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"parley/internal/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The HTTP layer in front handles origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSubscriber adapts a websocket connection to the realtime Subscriber
// contract. Writes are serialized because gorilla connections allow only one
// concurrent writer.
type wsSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

type streamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func (w *wsSubscriber) Send(frag realtime.TranscriptFragment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteJSON(streamEvent{Type: "transcript_update", Data: frag})
}

func (w *wsSubscriber) sendType(t string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteJSON(streamEvent{Type: t})
}

// inboundMessage is what clients may send over the stream: audio chunks or
// keepalive pings.
type inboundMessage struct {
	Type      string `json:"type"`
	AudioData string `json:"audio_data"`
}

// handleStream upgrades to a websocket, attaches the connection as the
// session's subscriber, and reads inbound messages until the client leaves.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := s.processor.Status(sessionID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	sub := &wsSubscriber{conn: conn}
	if err := s.processor.Subscribe(sessionID, sub); err != nil {
		conn.Close()
		return
	}

	slog.Info("stream attached", "session_id", sessionID)

	defer func() {
		s.processor.Unsubscribe(sessionID, sub)
		conn.Close()
		slog.Info("stream detached", "session_id", sessionID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "audio_chunk":
			data, err := base64.StdEncoding.DecodeString(msg.AudioData)
			if err != nil {
				continue
			}
			if !s.processor.AddChunk(sessionID, data, time.Time{}) {
				// Session ended underneath the stream; tell the client and stop.
				_ = sub.sendType("session_ended")
				return
			}
		case "ping":
			_ = sub.sendType("pong")
		}
	}
}
