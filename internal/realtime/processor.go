package realtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"parley/internal/collab"
	"parley/internal/task"

	"github.com/google/uuid"
)

// Config tunes the realtime processor. Zero values take the defaults below,
// sized for ~500ms audio chunks: four chunks is roughly two seconds of audio.
type Config struct {
	Workers              int
	TriggerChunks        int
	AudioBufferSize      int
	TranscriptBufferSize int
	MinAudioBytes        int
	MinTextLen           int
	QueueSize            int
	EndFlushWait         time.Duration
	EndFlushPoll         time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.TriggerChunks <= 0 {
		c.TriggerChunks = 4
	}
	if c.AudioBufferSize <= 0 {
		c.AudioBufferSize = 100
	}
	if c.TranscriptBufferSize <= 0 {
		c.TranscriptBufferSize = 50
	}
	if c.MinAudioBytes <= 0 {
		c.MinAudioBytes = 1000
	}
	if c.MinTextLen <= 0 {
		c.MinTextLen = 3
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.EndFlushWait <= 0 {
		c.EndFlushWait = time.Second
	}
	if c.EndFlushPoll <= 0 {
		c.EndFlushPoll = 25 * time.Millisecond
	}
	return c
}

// job is a snapshot of buffered chunks for one session. The session buffer is
// not cleared until the job's result lands, so audio survives a failed job.
type job struct {
	sessionID    string
	chunks       []AudioChunk
	languageHint string
}

// jobResult carries a worker's outcome back to the result handler. A nil
// fragment means the job failed or produced trivial output; the covered
// chunks stay buffered in that case.
type jobResult struct {
	sessionID string
	covered   int
	frag      *TranscriptFragment
}

// Processor buffers live audio per session, dispatches batched processing to
// a fixed worker pool, and fans results back to the originating session and
// its subscriber. The job and result channels are the only structures with
// multiple concurrent writers.
type Processor struct {
	cfg         Config
	transcriber collab.Transcriber
	sentiment   collab.SentimentScorer
	keywords    collab.KeywordExtractor

	mu       sync.RWMutex
	sessions map[string]*session

	jobs    chan job
	results chan jobResult
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewProcessor wires a processor to its transcription collaborator. The
// sentiment and keyword collaborators are optional; pass nil to skip the
// corresponding annotation.
func NewProcessor(cfg Config, t collab.Transcriber, s collab.SentimentScorer, k collab.KeywordExtractor) *Processor {
	cfg = cfg.withDefaults()
	return &Processor{
		cfg:         cfg,
		transcriber: t,
		sentiment:   s,
		keywords:    k,
		sessions:    make(map[string]*session),
		jobs:        make(chan job, cfg.QueueSize),
		results:     make(chan jobResult, cfg.QueueSize),
		done:        make(chan struct{}),
	}
}

// Start launches the worker pool and the result handler. They exit when ctx
// is canceled.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.wg.Add(1)
	go p.resultHandler(ctx)

	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	slog.Info("realtime processor started", "workers", p.cfg.Workers, "trigger_chunks", p.cfg.TriggerChunks)
}

// Wait blocks until workers and the result handler have exited.
func (p *Processor) Wait() {
	<-p.done
}

// CreateSession registers a new active session and returns its id.
func (p *Processor) CreateSession(interactionID, userID, storeID, languageHint string) string {
	now := time.Now().UTC()
	s := &session{
		id:            uuid.New().String(),
		interactionID: interactionID,
		userID:        userID,
		storeID:       storeID,
		languageHint:  languageHint,
		startedAt:     now,
		lastActivity:  now,
	}

	p.mu.Lock()
	p.sessions[s.id] = s
	p.mu.Unlock()

	slog.Info("realtime session created", "session_id", s.id, "interaction_id", interactionID)
	return s.id
}

// AddChunk buffers one audio chunk. Returns false for unknown or non-active
// sessions. Reaching the trigger threshold enqueues a processing job holding
// a snapshot of the current buffer, one outstanding job per session at a time
// so fragments for a session stay in order.
func (p *Processor) AddChunk(sessionID string, data []byte, timestamp time.Time) bool {
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	p.mu.Lock()
	s, ok := p.sessions[sessionID]
	if !ok || s.state != stateActive {
		p.mu.Unlock()
		return false
	}

	s.audio = append(s.audio, AudioChunk{Data: data, Timestamp: timestamp, Size: len(data)})
	if len(s.audio) > p.cfg.AudioBufferSize {
		s.audio = s.audio[len(s.audio)-p.cfg.AudioBufferSize:]
	}
	s.lastActivity = time.Now().UTC()

	if !s.inFlight && len(s.audio) >= p.cfg.TriggerChunks {
		p.triggerLocked(s)
	}
	p.mu.Unlock()
	return true
}

// triggerLocked snapshots the buffered chunks into a job. Caller holds p.mu.
func (p *Processor) triggerLocked(s *session) {
	chunks := make([]AudioChunk, len(s.audio))
	copy(chunks, s.audio)

	j := job{sessionID: s.id, chunks: chunks, languageHint: s.languageHint}
	select {
	case p.jobs <- j:
		s.inFlight = true
	default:
		slog.Warn("realtime job queue full, deferring trigger", "session_id", s.id)
	}
}

func (p *Processor) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	slog.Debug("realtime worker started", "worker", id)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("realtime worker stopped", "worker", id)
			return
		case j := <-p.jobs:
			res := p.processJob(ctx, j)
			select {
			case p.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// processJob concatenates a job's chunks and runs the transcription and quick
// annotation collaborators. Failures and trivial output return a nil
// fragment; realtime jobs are never retried since stale partial audio is not
// worth reprocessing.
func (p *Processor) processJob(ctx context.Context, j job) jobResult {
	res := jobResult{sessionID: j.sessionID, covered: len(j.chunks)}

	var total int
	for _, c := range j.chunks {
		total += c.Size
	}
	if total < p.cfg.MinAudioBytes {
		return res
	}

	audio := make([]byte, 0, total)
	for _, c := range j.chunks {
		audio = append(audio, c.Data...)
	}

	text, err := p.transcriber.Transcribe(ctx, audio, j.languageHint)
	if err != nil {
		slog.Error("realtime transcription failed", "session_id", j.sessionID, "error", err)
		return res
	}
	if len(strings.TrimSpace(text)) < p.cfg.MinTextLen {
		return res
	}

	frag := &TranscriptFragment{
		ID:         uuid.New().String(),
		SessionID:  j.sessionID,
		Text:       text,
		Confidence: collab.TranscriptConfidence(text, total),
		Partial:    true,
		Timestamp:  time.Now().UTC(),
		WordCount:  len(strings.Fields(text)),
	}

	if p.sentiment != nil {
		s := p.sentiment.QuickSentiment(text)
		frag.Sentiment = &s
	}
	if p.keywords != nil {
		frag.Keywords = p.keywords.QuickKeywords(text)
	}

	res.frag = frag
	return res
}

// resultHandler is the single consumer of the result queue. It clears the
// covered audio on success, appends the fragment, updates the session's
// running metrics, and pushes to the subscriber if one is attached.
func (p *Processor) resultHandler(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-p.results:
			p.handleResult(r)
		}
	}
}

func (p *Processor) handleResult(r jobResult) {
	p.mu.Lock()
	s, ok := p.sessions[r.sessionID]
	if !ok {
		p.mu.Unlock()
		return
	}

	s.inFlight = false
	if r.frag == nil {
		// Failed job: keep the buffered audio for the next trigger.
		p.mu.Unlock()
		return
	}

	covered := r.covered
	if covered > len(s.audio) {
		covered = len(s.audio)
	}
	s.audio = s.audio[covered:]

	s.transcript = append(s.transcript, *r.frag)
	if len(s.transcript) > p.cfg.TranscriptBufferSize {
		s.transcript = s.transcript[len(s.transcript)-p.cfg.TranscriptBufferSize:]
	}

	s.avgConfidence = (s.avgConfidence*float64(s.chunksProcessed) + r.frag.Confidence) / float64(s.chunksProcessed+1)
	s.chunksProcessed++
	s.totalWords += r.frag.WordCount

	sub := s.subscriber
	p.mu.Unlock()

	if sub != nil {
		if err := sub.Send(*r.frag); err != nil {
			slog.Warn("subscriber delivery failed", "session_id", r.sessionID, "error", err)
		}
	}
}

// Subscribe attaches the live subscriber for a session. The last attach wins.
func (p *Processor) Subscribe(sessionID string, sub Subscriber) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return task.ErrUnknownSession
	}
	s.subscriber = sub
	return nil
}

// Unsubscribe detaches sub if it is still the session's subscriber.
func (p *Processor) Unsubscribe(sessionID string, sub Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[sessionID]; ok && s.subscriber == sub {
		s.subscriber = nil
	}
}

// Status returns a read-only snapshot of a session.
func (p *Processor) Status(sessionID string) (SessionStatus, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return SessionStatus{}, task.ErrUnknownSession
	}
	return SessionStatus{
		SessionID:            s.id,
		InteractionID:        s.interactionID,
		Active:               s.state == stateActive,
		StartedAt:            s.startedAt,
		LastActivity:         s.lastActivity,
		AudioBufferSize:      len(s.audio),
		TranscriptBufferSize: len(s.transcript),
		AvgConfidence:        s.avgConfidence,
		TotalWords:           s.totalWords,
		ChunksProcessed:      s.chunksProcessed,
	}, nil
}

// Transcript returns up to limit of the most recent fragments for a session.
func (p *Processor) Transcript(sessionID string, limit int) ([]TranscriptFragment, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, task.ErrUnknownSession
	}

	frags := s.transcript
	if limit > 0 && len(frags) > limit {
		frags = frags[len(frags)-limit:]
	}
	out := make([]TranscriptFragment, len(frags))
	copy(out, frags)
	return out, nil
}

// EndSession transitions the session out of active state, forces one final
// flush of any buffered audio, waits briefly for in-flight work to land, and
// returns the consolidated summary. The session is removed; a second call
// returns ErrUnknownSession.
func (p *Processor) EndSession(sessionID string) (SessionSummary, error) {
	p.mu.Lock()
	s, ok := p.sessions[sessionID]
	if !ok || s.state != stateActive {
		p.mu.Unlock()
		return SessionSummary{}, task.ErrUnknownSession
	}
	s.state = stateEnding

	if len(s.audio) > 0 && !s.inFlight {
		p.triggerLocked(s)
	}
	waitNeeded := s.inFlight
	p.mu.Unlock()

	if waitNeeded {
		deadline := time.Now().Add(p.cfg.EndFlushWait)
		for time.Now().Before(deadline) {
			time.Sleep(p.cfg.EndFlushPoll)
			p.mu.RLock()
			settled := !s.inFlight
			p.mu.RUnlock()
			if settled {
				break
			}
		}
	}

	p.mu.Lock()
	texts := make([]string, 0, len(s.transcript))
	for _, f := range s.transcript {
		texts = append(texts, f.Text)
	}
	now := time.Now().UTC()
	summary := SessionSummary{
		SessionID:       s.id,
		InteractionID:   s.interactionID,
		UserID:          s.userID,
		StoreID:         s.storeID,
		FinalTranscript: strings.Join(texts, " "),
		TotalDuration:   now.Sub(s.startedAt).Seconds(),
		ChunksProcessed: s.chunksProcessed,
		TotalWords:      s.totalWords,
		AvgConfidence:   s.avgConfidence,
		EndedAt:         now,
	}
	s.subscriber = nil
	delete(p.sessions, sessionID)
	p.mu.Unlock()

	slog.Info("realtime session ended",
		"session_id", sessionID,
		"chunks_processed", summary.ChunksProcessed,
		"total_words", summary.TotalWords,
	)
	return summary, nil
}

// SessionCount reports live sessions, for the health endpoint.
func (p *Processor) SessionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}
