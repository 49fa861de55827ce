package taskmanager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Task statuses.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

var (
	// ErrTaskNotFound is returned when no task matches the given id or key.
	ErrTaskNotFound = errors.New("task not found")
	// ErrKeyBusy is returned when a task is already running for the key.
	ErrKeyBusy = errors.New("a task is already running for this key")
	// ErrManagerClosed is returned after Close.
	ErrManagerClosed = errors.New("task manager is closed")
)

// TaskStatus is the lifecycle status of one background task.
type TaskStatus string

// Task is one cancellable background run, typically a generation batch
// for a production step. Key identifies the unit of mutual exclusion:
// at most one running task per key.
type Task struct {
	ID        uuid.UUID
	Key       string
	Status    TaskStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
	cancel    context.CancelFunc
}

// TaskFunc is the body of a task. It must honor ctx cancellation between
// units of work; in-flight units are allowed to finish.
type TaskFunc func(ctx context.Context) error

// Manager runs and tracks cancellable background tasks keyed by an
// exclusion key.
type Manager struct {
	tasks   map[uuid.UUID]*Task
	byKey   map[string]uuid.UUID
	mu      sync.RWMutex
	closing chan struct{}
	wg      sync.WaitGroup
}

// New creates a task manager.
func New() *Manager {
	return &Manager{
		tasks:   make(map[uuid.UUID]*Task),
		byKey:   make(map[string]uuid.UUID),
		closing: make(chan struct{}),
	}
}

// Submit starts fn in the background under the given exclusion key.
// Returns ErrKeyBusy while a previous task for the key is still pending
// or running.
func (m *Manager) Submit(key string, fn TaskFunc) (uuid.UUID, error) {
	select {
	case <-m.closing:
		return uuid.Nil, ErrManagerClosed
	default:
	}

	m.mu.Lock()
	if existingID, ok := m.byKey[key]; ok {
		if t := m.tasks[existingID]; t != nil && (t.Status == TaskStatusPending || t.Status == TaskStatusRunning) {
			m.mu.Unlock()
			return uuid.Nil, ErrKeyBusy
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &Task{
		ID:        uuid.New(),
		Key:       key,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		cancel:    cancel,
	}
	m.tasks[task.ID] = task
	m.byKey[key] = task.ID
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		m.setStatus(task.ID, TaskStatusRunning, "")
		log.Debug().Str("key", key).Str("task_id", task.ID.String()).Msg("task started")

		err := fn(ctx)
		switch {
		case err == nil:
			m.setStatus(task.ID, TaskStatusCompleted, "")
		case errors.Is(err, context.Canceled):
			m.setStatus(task.ID, TaskStatusCancelled, err.Error())
			log.Info().Str("key", key).Msg("task cancelled")
		default:
			m.setStatus(task.ID, TaskStatusFailed, err.Error())
			log.Error().Str("key", key).Err(err).Msg("task failed")
		}
	}()

	return task.ID, nil
}

// Cancel requests cooperative cancellation of the running task for key.
// The liveness check happens under the lock; only the cancel func, which
// is safe to call concurrently, escapes it.
func (m *Manager) Cancel(key string) error {
	m.mu.RLock()
	var cancel context.CancelFunc
	if taskID, ok := m.byKey[key]; ok {
		if task := m.tasks[taskID]; task != nil &&
			(task.Status == TaskStatusPending || task.Status == TaskStatusRunning) {
			cancel = task.cancel
		}
	}
	m.mu.RUnlock()

	if cancel == nil {
		return ErrTaskNotFound
	}
	cancel()
	return nil
}

// Get returns a snapshot of the task for key.
func (m *Manager) Get(key string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	taskID, ok := m.byKey[key]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	task, ok := m.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return *task, nil
}

// Running reports whether a task for key is pending or running.
func (m *Manager) Running(key string) bool {
	task, err := m.Get(key)
	if err != nil {
		return false
	}
	return task.Status == TaskStatusPending || task.Status == TaskStatusRunning
}

// Cleanup drops terminal tasks older than age.
func (m *Manager) Cleanup(age time.Duration) {
	cutoff := time.Now().Add(-age)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, task := range m.tasks {
		if task.Status == TaskStatusPending || task.Status == TaskStatusRunning {
			continue
		}
		if task.UpdatedAt.Before(cutoff) {
			delete(m.tasks, id)
			if m.byKey[task.Key] == id {
				delete(m.byKey, task.Key)
			}
		}
	}
}

// Close cancels all live tasks and waits for their goroutines.
func (m *Manager) Close() {
	close(m.closing)

	m.mu.Lock()
	for _, task := range m.tasks {
		if task.Status == TaskStatusPending || task.Status == TaskStatusRunning {
			task.cancel()
		}
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// Shutdown waits for live tasks to drain or the context to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) setStatus(id uuid.UUID, status TaskStatus, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[id]; ok {
		task.Status = status
		task.Error = errMsg
		task.UpdatedAt = time.Now().UTC()
	}
}
