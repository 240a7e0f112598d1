// Package store defines the durable-persistence contract consumed by the
// rest of the core: tasks, the global-context and settings singletons, the
// chat transcript, and the LLM-call audit log. See pkg/store (Postgres) for
// the production implementation and pkg/store/memstore for the in-memory
// fake used by unit tests.
package store

import (
	"context"
	"time"

	"github.com/tom-doerr/dspy-scheduling/pkg/models"
)

// TaskRepository is the task half of the Store contract (spec §4.1).
type TaskRepository interface {
	// GetAll returns every task ordered by priority desc, due_date asc.
	GetAll(ctx context.Context) ([]*models.Task, error)
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	// GetIncomplete returns every task with completed = false.
	GetIncomplete(ctx context.Context) ([]*models.Task, error)
	// GetScheduled returns tasks with a non-nil scheduled_start, ascending.
	GetScheduled(ctx context.Context) ([]*models.Task, error)
	// GetTasksNeedingScheduling returns incomplete tasks with needs_scheduling = true.
	GetTasksNeedingScheduling(ctx context.Context) ([]*models.Task, error)
	// GetActive returns the single ACTIVE task, or nil if none is active.
	GetActive(ctx context.Context) (*models.Task, error)
	// GetCompleted returns completed tasks ordered by actual_end desc.
	GetCompleted(ctx context.Context) ([]*models.Task, error)

	Create(ctx context.Context, t *models.Task) (*models.Task, error)
	Delete(ctx context.Context, id int64) error

	// Start performs the test-and-set single-active-task transition: it
	// re-reads the row, fails with ErrGone if the task vanished, fails with
	// ErrIllegalTransition if completed or already active, fails with a
	// *ConflictError naming the currently active task if another task is
	// active, and otherwise sets actual_start = now within one transaction.
	Start(ctx context.Context, id int64, now time.Time) (*models.Task, error)
	// Stop clears actual_start, returning to PENDING. Requires ACTIVE.
	Stop(ctx context.Context, id int64) (*models.Task, error)
	// Complete sets completed = true, actual_end = now. Requires ACTIVE.
	Complete(ctx context.Context, id int64, now time.Time) (*models.Task, error)

	// UpdateSchedule writes scheduled_start/scheduled_end and needs_scheduling
	// atomically. Either time may be nil (unparseable LLM output).
	UpdateSchedule(ctx context.Context, id int64, start, end *time.Time, needsScheduling bool) error
	// UpdatePriority writes a new priority for a task by id. A call with an
	// unknown id is a no-op (not an error) per spec §4.4 Phase C.
	UpdatePriority(ctx context.Context, id int64, priority float64) error
}

// ContextRepository manages the GlobalContext singleton.
type ContextRepository interface {
	GetOrCreate(ctx context.Context) (*models.GlobalContext, error)
	Update(ctx context.Context, text string) (*models.GlobalContext, error)
}

// SettingsRepository manages the Settings singleton.
type SettingsRepository interface {
	GetOrCreate(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, modelID string, maxTokens int) (*models.Settings, error)
}

// ChatRepository manages the append-only chat transcript.
type ChatRepository interface {
	// Create appends one turn. correlationID links this row to the
	// LLMCall audit rows produced while handling it; callers that have no
	// correlation id to offer may pass an empty string.
	Create(ctx context.Context, userMessage, assistantResponse, correlationID string) (*models.ChatMessage, error)
	// GetRecent returns the most recent messages, newest first.
	GetRecent(ctx context.Context, limit int) ([]*models.ChatMessage, error)
	DeleteAll(ctx context.Context) error
	// DeleteOlderThan deletes rows older than the retention horizon and
	// returns the count deleted.
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// LLMCallRepository manages the append-only LLM-call audit log.
type LLMCallRepository interface {
	// Create appends one audit row tagged with correlationID (see
	// ChatRepository.Create).
	Create(ctx context.Context, moduleName, inputs, outputs, correlationID string, durationMS int64) error
	// GetLatest returns the most recent calls, newest first.
	GetLatest(ctx context.Context, limit int) ([]*models.LLMCall, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// Store is the umbrella repository contract handed to every other
// component (Task Engine, Reconciler, Chat Orchestrator, Retention).
type Store interface {
	Tasks() TaskRepository
	Context() ContextRepository
	Settings() SettingsRepository
	Chat() ChatRepository
	LLMCalls() LLMCallRepository

	// Close releases any underlying resources (connection pool, etc).
	Close() error
}
