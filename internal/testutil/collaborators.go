// Package testutil holds thread-safe fakes shared across package tests.
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"parley/internal/realtime"
	"parley/internal/task"
)

// ScriptedCollaborator is a Collaborator whose behavior is set per test.
// It records every processed task so tests can assert execution order and
// attempt counts.
type ScriptedCollaborator struct {
	mu sync.Mutex

	ValidateFunc func(payload json.RawMessage) bool
	ProcessFunc  func(ctx context.Context, t task.Task) (task.Result, error)
	Delay        time.Duration

	processed   []task.Task
	concurrent  int
	maxObserved int
}

func (s *ScriptedCollaborator) Validate(payload json.RawMessage) bool {
	if s.ValidateFunc != nil {
		return s.ValidateFunc(payload)
	}
	return true
}

func (s *ScriptedCollaborator) Process(ctx context.Context, t task.Task) (task.Result, error) {
	s.mu.Lock()
	s.processed = append(s.processed, t)
	s.concurrent++
	if s.concurrent > s.maxObserved {
		s.maxObserved = s.concurrent
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.concurrent--
		s.mu.Unlock()
	}()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return task.Result{}, ctx.Err()
		}
	}

	if s.ProcessFunc != nil {
		return s.ProcessFunc(ctx, t)
	}
	return task.Result{}, nil
}

// ProcessCalls returns how many attempts ran.
func (s *ScriptedCollaborator) ProcessCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

// Processed returns a copy of the tasks in execution order.
func (s *ScriptedCollaborator) Processed() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]task.Task, len(s.processed))
	copy(out, s.processed)
	return out
}

// MaxConcurrent reports the highest number of overlapping Process calls seen.
func (s *ScriptedCollaborator) MaxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxObserved
}

// StubTranscriber returns a fixed text (or error) and records the audio it
// was given.
type StubTranscriber struct {
	mu sync.Mutex

	Text  string
	Err   error
	Delay time.Duration

	calls      int
	audioSizes []int
}

func (s *StubTranscriber) Transcribe(ctx context.Context, audio []byte, _ string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.audioSizes = append(s.audioSizes, len(audio))
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.Text, s.Err
}

func (s *StubTranscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StubTranscriber) AudioSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.audioSizes))
	copy(out, s.audioSizes)
	return out
}

// CaptureSubscriber collects delivered fragments.
type CaptureSubscriber struct {
	mu sync.Mutex

	Err   error
	frags []realtime.TranscriptFragment
}

func (c *CaptureSubscriber) Send(frag realtime.TranscriptFragment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.frags = append(c.frags, frag)
	return nil
}

func (c *CaptureSubscriber) Fragments() []realtime.TranscriptFragment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]realtime.TranscriptFragment, len(c.frags))
	copy(out, c.frags)
	return out
}

// WaitFor polls cond until it returns true or the timeout elapses. Returns
// whether the condition was met.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
