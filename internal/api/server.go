package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"parley/internal/agent"
	"parley/internal/realtime"
	"parley/internal/task"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the transport-agnostic core's HTTP face: task submission and
// status, realtime session control, and the websocket transcript stream.
type Server struct {
	manager   *agent.Manager
	processor *realtime.Processor
	router    chi.Router
	port      int

	// onSessionEnded lets the wiring layer archive/announce summaries
	// without the API knowing about either.
	onSessionEnded func(realtime.SessionSummary)
}

func NewServer(m *agent.Manager, p *realtime.Processor, port int, onSessionEnded func(realtime.SessionSummary)) *Server {
	srv := &Server{
		manager:        m,
		processor:      p,
		port:           port,
		onSessionEnded: onSessionEnded,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", srv.handleHealth)

		r.Post("/tasks", srv.handleSubmitTask)
		r.Get("/tasks/{taskID}", srv.handleTaskStatus)
		r.Get("/agents", srv.handleAllAgentStatus)
		r.Get("/agents/{name}", srv.handleAgentStatus)

		r.Route("/realtime", func(r chi.Router) {
			r.Post("/sessions", srv.handleCreateSession)
			r.Post("/sessions/{sessionID}/audio", srv.handleAddChunk)
			r.Get("/sessions/{sessionID}/status", srv.handleSessionStatus)
			r.Get("/sessions/{sessionID}/transcript", srv.handleTranscript)
			r.Post("/sessions/{sessionID}/end", srv.handleEndSession)
			r.Get("/sessions/{sessionID}/stream", srv.handleStream)
		})
	})

	srv.router = r
	return srv
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("starting HTTP API", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"service":         "parley",
		"agents":          s.manager.AllAgentStatus(),
		"live_sessions":   s.processor.SessionCount(),
		"tasks_submitted": s.manager.TasksSubmitted(),
	})
}

type submitTaskRequest struct {
	TaskType string            `json:"task_type"`
	Payload  json.RawMessage   `json:"payload"`
	Priority string            `json:"priority"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id, err := s.manager.SubmitTask(req.TaskType, req.Payload, task.ParsePriority(req.Priority), req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrUnknownTaskType), errors.Is(err, task.ErrUnknownAgent):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, task.ErrShutdown):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		default:
			slog.Error("submit task failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	t, err := s.manager.TaskStatus(chi.URLParam(r, "taskID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleAllAgentStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.AllAgentStatus())
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.manager.AgentStatus(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type createSessionRequest struct {
	InteractionID string `json:"interaction_id"`
	UserID        string `json:"user_id"`
	StoreID       string `json:"store_id"`
	LanguageHint  string `json:"language_hint"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.InteractionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "interaction_id is required"})
		return
	}

	id := s.processor.CreateSession(req.InteractionID, req.UserID, req.StoreID, req.LanguageHint)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

type addChunkRequest struct {
	AudioData string   `json:"audio_data"` // base64
	Timestamp *float64 `json:"timestamp"`  // unix seconds
}

func (s *Server) handleAddChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req addChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "audio_data must be base64"})
		return
	}

	var ts time.Time
	if req.Timestamp != nil {
		sec, frac := int64(*req.Timestamp), *req.Timestamp
		ts = time.Unix(sec, int64((frac-float64(sec))*1e9)).UTC()
	}

	accepted := s.processor.AddChunk(sessionID, data, ts)
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": accepted})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.processor.Status(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	frags, err := s.processor.Transcript(chi.URLParam(r, "sessionID"), limit)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fragments": frags, "count": len(frags)})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	summary, err := s.processor.EndSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	if s.onSessionEnded != nil {
		s.onSessionEnded(summary)
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
