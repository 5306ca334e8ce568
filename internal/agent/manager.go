package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"parley/internal/task"
)

// Manager multiplexes task submission across category agents and aggregates
// their status. It is constructed explicitly and passed to the transport
// layer; there is no process-wide instance.
type Manager struct {
	mu      sync.RWMutex
	agents  map[string]*Agent
	routing map[string]string

	submitted  atomic.Int64
	onFinished func(task.Task)
}

func NewManager() *Manager {
	return &Manager{
		agents:  make(map[string]*Agent),
		routing: make(map[string]string),
	}
}

// SetOnTaskFinished registers a callback invoked for every task, across all
// agents, that reaches a terminal state. Must be called before Register.
func (m *Manager) SetOnTaskFinished(fn func(task.Task)) {
	m.onFinished = fn
}

// Register adds an agent under its category name.
func (m *Manager) Register(category string, a *Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.onFinished != nil {
		a.SetOnFinished(m.onFinished)
	}
	m.agents[category] = a
}

// AddRoute maps an external task type name to a category.
func (m *Manager) AddRoute(taskType, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routing[taskType] = category
}

// Route resolves a task type to its category.
func (m *Manager) Route(taskType string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	category, ok := m.routing[taskType]
	if !ok {
		return "", fmt.Errorf("%w: %s", task.ErrUnknownTaskType, taskType)
	}
	return category, nil
}

// SubmitTask routes and submits a task, returning its id.
func (m *Manager) SubmitTask(taskType string, payload json.RawMessage, priority task.Priority, metadata map[string]string) (string, error) {
	category, err := m.Route(taskType)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	a, ok := m.agents[category]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", task.ErrUnknownAgent, category)
	}

	id, err := a.Submit(payload, priority, metadata)
	if err != nil {
		return "", err
	}

	m.submitted.Add(1)
	slog.Info("task submitted", "task_type", taskType, "category", category, "task_id", id)
	return id, nil
}

// TaskStatus probes every registered agent for the task id.
func (m *Manager) TaskStatus(taskID string) (task.Task, error) {
	m.mu.RLock()
	agents := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		agents = append(agents, a)
	}
	m.mu.RUnlock()

	for _, a := range agents {
		if t, err := a.TaskStatus(taskID); err == nil {
			return t, nil
		}
	}
	return task.Task{}, task.ErrUnknownTask
}

// AgentStatus returns the snapshot for one agent.
func (m *Manager) AgentStatus(name string) (Status, error) {
	m.mu.RLock()
	a, ok := m.agents[name]
	m.mu.RUnlock()
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", task.ErrUnknownAgent, name)
	}
	return a.Status(), nil
}

// AllAgentStatus returns snapshots for every registered agent, keyed by name.
func (m *Manager) AllAgentStatus() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Status, len(m.agents))
	for name, a := range m.agents {
		out[name] = a.Status()
	}
	return out
}

// TasksSubmitted is the global submission counter.
func (m *Manager) TasksSubmitted() int64 {
	return m.submitted.Load()
}

// StartAll launches every agent's scheduling loop.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.agents {
		go a.Run(ctx)
	}
	slog.Info("all agents started", "count", len(m.agents))
}

// ShutdownAll drains every agent concurrently and returns when all have
// stopped. No in-flight task is dropped.
func (m *Manager) ShutdownAll() {
	m.mu.RLock()
	agents := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		agents = append(agents, a)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, a := range agents {
		wg.Add(1)
		go func(a *Agent) {
			defer wg.Done()
			a.Shutdown()
		}(a)
	}
	wg.Wait()
	slog.Info("all agents shut down", "count", len(agents))
}
