// Package taskengine implements the synchronous task CRUD and lifecycle
// operations (spec §4.3): fast task creation with a fallback schedule,
// start/stop/complete transitions delegated to the store's atomic
// single-active-task guard, and the various list queries. It never calls
// the LLM directly — that is the reconciler's job, run in the background
// against tasks this engine marks NeedsScheduling.
package taskengine

import (
	"context"
	"time"

	"github.com/tom-doerr/dspy-scheduling/pkg/models"
	"github.com/tom-doerr/dspy-scheduling/pkg/store"
)

// FallbackConfig controls the temporary schedule window assigned to a task
// at creation time, before the reconciler has had a chance to ask the LLM
// for a real slot. Grounded on original services/task_service.py's
// settings.fallback_start_hour / settings.fallback_duration_hours.
type FallbackConfig struct {
	StartHour     int
	DurationHours int
}

// Engine is the synchronous task-management core, injected with its Store
// dependency rather than reaching for a package-level singleton (spec §9
// redesign note).
type Engine struct {
	store    store.Store
	fallback FallbackConfig
	now      func() time.Time
}

// New builds an Engine. now defaults to time.Now when nil, overridable for
// deterministic tests.
func New(s store.Store, fallback FallbackConfig, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: s, fallback: fallback, now: now}
}

// CreateTask validates and inserts a new task with a fallback schedule
// window, marked NeedsScheduling so the reconciler picks it up on its next
// tick. This keeps task entry fast: no LLM call is made inline.
func (e *Engine) CreateTask(ctx context.Context, title, description, taskContext string, dueDate *time.Time) (*models.Task, error) {
	if err := validateTaskFields(title, description, taskContext); err != nil {
		return nil, err
	}

	start, end := e.fallbackWindow()
	t := &models.Task{
		Title:           title,
		Description:     description,
		Context:         taskContext,
		DueDate:         dueDate,
		ScheduledStart:  &start,
		ScheduledEnd:    &end,
		NeedsScheduling: true,
		CreatedAt:       e.now().UTC(),
	}
	return e.store.Tasks().Create(ctx, t)
}

// fallbackWindow computes the next occurrence of fallback.StartHour today
// (or tomorrow, if that hour has already passed) and a window
// fallback.DurationHours long, grounded on the original's create_task.
func (e *Engine) fallbackWindow() (time.Time, time.Time) {
	now := e.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), e.fallback.StartHour, 0, 0, 0, now.Location())
	if start.Before(now) {
		start = start.Add(24 * time.Hour)
	}
	end := start.Add(time.Duration(e.fallback.DurationHours) * time.Hour)
	return start, end
}

func validateTaskFields(title, description, taskContext string) error {
	if title == "" {
		return ErrTitleRequired
	}
	if len(title) > models.MaxTitleLen {
		return ErrTitleTooLong
	}
	if len(description) > models.MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if len(taskContext) > models.MaxContextLen {
		return ErrContextTooLong
	}
	return nil
}

// GetAll, GetByID, GetScheduled, GetActive, GetCompleted are thin
// pass-throughs onto the store, kept on Engine so the HTTP API's task
// endpoints depend on one core type rather than the store directly. The
// chat orchestrator does not go through Engine: it calls the store's task
// repository itself, so tasks it creates get neither field validation nor
// a fallback window.
func (e *Engine) GetAll(ctx context.Context) ([]*models.Task, error) { return e.store.Tasks().GetAll(ctx) }

func (e *Engine) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	return e.store.Tasks().GetByID(ctx, id)
}

func (e *Engine) GetScheduled(ctx context.Context) ([]*models.Task, error) {
	return e.store.Tasks().GetScheduled(ctx)
}

func (e *Engine) GetActive(ctx context.Context) (*models.Task, error) {
	return e.store.Tasks().GetActive(ctx)
}

func (e *Engine) GetCompleted(ctx context.Context) ([]*models.Task, error) {
	return e.store.Tasks().GetCompleted(ctx)
}

// StartTask starts the named task, surfacing store.ErrGone,
// store.ErrIllegalTransition, or a *store.ConflictError unchanged so
// callers can map them to the right external representation (spec §7).
func (e *Engine) StartTask(ctx context.Context, id int64) (*models.Task, error) {
	return e.store.Tasks().Start(ctx, id, e.now().UTC())
}

func (e *Engine) StopTask(ctx context.Context, id int64) (*models.Task, error) {
	return e.store.Tasks().Stop(ctx, id)
}

func (e *Engine) CompleteTask(ctx context.Context, id int64) (*models.Task, error) {
	return e.store.Tasks().Complete(ctx, id, e.now().UTC())
}

func (e *Engine) DeleteTask(ctx context.Context, id int64) error {
	return e.store.Tasks().Delete(ctx, id)
}
