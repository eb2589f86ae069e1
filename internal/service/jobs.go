// Package service provides the planning pipeline and its task registry.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhenwang/tripflow/internal/db"
	"github.com/zhenwang/tripflow/internal/models"
)

// TaskStatus represents the state of a planning task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusRejected  TaskStatus = "rejected"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusRejected
}

// Task is one submitted planning request and its lifecycle state.
type Task struct {
	ID          string
	Status      TaskStatus
	Params      models.TripRequest
	Result      models.PlanDocument
	Posters     []models.Poster
	Error       string
	SafetyInfo  any // classifier output attached on rejection
	CreatedAt   time.Time
	CompletedAt *time.Time
	UpdatedAt   *time.Time

	mu sync.RWMutex
}

// Snapshot returns a thread-safe copy of task state.
func (t *Task) Snapshot() Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Task{
		ID:          t.ID,
		Status:      t.Status,
		Params:      t.Params,
		Result:      t.Result,
		Posters:     t.Posters,
		Error:       t.Error,
		SafetyInfo:  t.SafetyInfo,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// Manager tracks planning tasks. Tasks become visible the moment they are
// created and make exactly one transition to a terminal status.
type Manager struct {
	tasks map[string]*Task
	mu    sync.RWMutex

	watchers map[string][]chan Task
	wmu      sync.Mutex

	db      *db.Client // nil when persistence is disabled
	dataDir string
}

// NewManager creates a task manager. dbClient may be nil; dataDir receives
// the per-task result files.
func NewManager(dbClient *db.Client, dataDir string) *Manager {
	return &Manager{
		tasks:    make(map[string]*Task),
		watchers: make(map[string][]chan Task),
		db:       dbClient,
		dataDir:  dataDir,
	}
}

// Create registers a new pending task.
func (m *Manager) Create(ctx context.Context, params models.TripRequest) *Task {
	task := &Task{
		ID:        uuid.New().String(),
		Status:    TaskStatusPending,
		Params:    params,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.mu.Unlock()

	if m.db != nil {
		paramsMap := map[string]any{
			"origin":       params.Origin,
			"destination":  params.Destination,
			"days":         params.Days,
			"budget_level": params.BudgetLevel,
			"preferences":  params.Preferences,
			"start_date":   params.StartDate,
		}
		if err := m.db.CreateTripJob(ctx, task.ID, paramsMap); err != nil {
			slog.Warn("failed to persist task creation", "task_id", task.ID, "error", err)
		}
	}

	slog.Info("task created", "task_id", task.ID, "destination", params.Destination, "days", params.Days)
	return task
}

// Get retrieves a task by ID, or nil when unknown.
func (m *Manager) Get(id string) *Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[id]
}

// Recover loads a task persisted by a previous process. The in-memory
// registry stays authoritative for live tasks; this only serves status
// queries for ids created before a restart.
func (m *Manager) Recover(ctx context.Context, id string) (Task, bool) {
	if m.db == nil {
		return Task{}, false
	}
	record, err := m.db.GetTripJob(ctx, id)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			slog.Warn("failed to load persisted task", "task_id", id, "error", err)
		}
		return Task{}, false
	}

	task := Task{
		ID:          record.TaskID,
		Status:      TaskStatus(record.Status),
		Result:      models.PlanDocument(record.Result),
		CreatedAt:   record.Created,
		CompletedAt: record.Completed,
	}
	if record.Error != nil {
		task.Error = *record.Error
	}
	return task, true
}

// List returns all tasks, most recent first.
func (m *Manager) List() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		tasks = append(tasks, task)
	}
	slices.SortFunc(tasks, func(a, b *Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return tasks
}

// Complete marks the task completed with its plan and posters.
func (m *Manager) Complete(ctx context.Context, task *Task, result models.PlanDocument, posters []models.Poster) {
	task.mu.Lock()
	if task.Status.Terminal() {
		task.mu.Unlock()
		return
	}
	task.Status = TaskStatusCompleted
	task.Result = result
	task.Posters = posters
	now := time.Now()
	task.CompletedAt = &now
	task.mu.Unlock()

	m.writeResultFile(task.ID, result)

	if m.db != nil {
		if err := m.db.CompleteTripJob(ctx, task.ID, result); err != nil {
			slog.Warn("failed to persist task completion", "task_id", task.ID, "error", err)
		}
	}

	slog.Info("task completed", "task_id", task.ID, "days", len(result.DailyPlans()), "posters", len(posters))
	m.notify(task)
}

// Fail marks the task failed.
func (m *Manager) Fail(ctx context.Context, task *Task, err error) {
	task.mu.Lock()
	if task.Status.Terminal() {
		task.mu.Unlock()
		return
	}
	task.Status = TaskStatusFailed
	task.Error = err.Error()
	now := time.Now()
	task.CompletedAt = &now
	task.mu.Unlock()

	if m.db != nil {
		if dbErr := m.db.SetTripJobStatus(ctx, task.ID, string(TaskStatusFailed), err.Error()); dbErr != nil {
			slog.Warn("failed to persist task failure", "task_id", task.ID, "error", dbErr)
		}
	}

	slog.Error("task failed", "task_id", task.ID, "error", err)
	m.notify(task)
}

// Reject marks the task rejected by the safety gate. The classifier output
// is attached so the client can show why.
func (m *Manager) Reject(ctx context.Context, task *Task, reason string, safetyInfo any) {
	task.mu.Lock()
	if task.Status.Terminal() {
		task.mu.Unlock()
		return
	}
	task.Status = TaskStatusRejected
	task.Error = reason
	task.SafetyInfo = safetyInfo
	now := time.Now()
	task.CompletedAt = &now
	task.mu.Unlock()

	if m.db != nil {
		if err := m.db.SetTripJobStatus(ctx, task.ID, string(TaskStatusRejected), reason); err != nil {
			slog.Warn("failed to persist task rejection", "task_id", task.ID, "error", err)
		}
	}

	slog.Info("task rejected", "task_id", task.ID, "reason", reason)
	m.notify(task)
}

// UpdateDailyPlans replaces only the daily_plans of a completed result,
// leaving every other plan field intact. Missing results are created so a
// client can edit a plan that failed to synthesize.
func (m *Manager) UpdateDailyPlans(id string, dailyPlans []any) *Task {
	task := m.Get(id)
	if task == nil {
		return nil
	}

	task.mu.Lock()
	if task.Result == nil {
		task.Result = models.PlanDocument{}
	}
	task.Result.SetDailyPlans(dailyPlans)
	now := time.Now()
	task.UpdatedAt = &now
	task.mu.Unlock()

	m.notify(task)
	return task
}

// SetPosters replaces the task's posters after a re-render.
func (m *Manager) SetPosters(task *Task, posters []models.Poster) {
	task.mu.Lock()
	task.Posters = posters
	now := time.Now()
	task.UpdatedAt = &now
	task.mu.Unlock()

	m.notify(task)
}

// Watch subscribes to state changes for a task. The channel delivers a
// snapshot on each transition and is closed after a terminal state. The
// returned cancel function must be called to release the subscription.
func (m *Manager) Watch(id string) (<-chan Task, func()) {
	ch := make(chan Task, 4)

	m.wmu.Lock()
	m.watchers[id] = append(m.watchers[id], ch)
	m.wmu.Unlock()

	cancel := func() {
		m.wmu.Lock()
		defer m.wmu.Unlock()
		subs := m.watchers[id]
		for i, sub := range subs {
			if sub == ch {
				m.watchers[id] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
	return ch, cancel
}

// notify pushes a snapshot to every watcher; terminal snapshots close and
// drop the subscriptions.
func (m *Manager) notify(task *Task) {
	snapshot := task.Snapshot()

	m.wmu.Lock()
	defer m.wmu.Unlock()

	subs := m.watchers[snapshot.ID]
	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default: // slow watcher, drop the update
		}
	}
	if snapshot.Status.Terminal() {
		for _, ch := range subs {
			close(ch)
		}
		delete(m.watchers, snapshot.ID)
	}
}

// writeResultFile persists the plan next to the process for durability
// across restarts. Best effort: a write failure does not fail the task.
func (m *Manager) writeResultFile(id string, result models.PlanDocument) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		slog.Warn("failed to marshal result file", "task_id", id, "error", err)
		return
	}
	path := filepath.Join(m.dataDir, "result_"+id+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Warn("failed to write result file", "task_id", id, "path", path, "error", err)
	}
}
