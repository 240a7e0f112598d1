package store

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tom-doerr/dspy-scheduling/pkg/models"
)

type pgTaskRepo struct {
	db *stdsql.DB
}

func (r *pgTaskRepo) query(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *pgTaskRepo) GetAll(ctx context.Context) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY priority DESC, due_date ASC NULLS LAST`)
}

func (r *pgTaskRepo) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task by id: %w", err)
	}
	return t, nil
}

func (r *pgTaskRepo) GetIncomplete(ctx context.Context) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE completed = FALSE ORDER BY priority DESC, due_date ASC NULLS LAST`)
}

func (r *pgTaskRepo) GetScheduled(ctx context.Context) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE scheduled_start IS NOT NULL ORDER BY scheduled_start ASC`)
}

func (r *pgTaskRepo) GetTasksNeedingScheduling(ctx context.Context) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE completed = FALSE AND needs_scheduling = TRUE ORDER BY id ASC`)
}

func (r *pgTaskRepo) GetActive(ctx context.Context) (*models.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE actual_start IS NOT NULL AND completed = FALSE LIMIT 1`)
	t, err := scanTask(row)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active task: %w", err)
	}
	return t, nil
}

func (r *pgTaskRepo) GetCompleted(ctx context.Context) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE completed = TRUE ORDER BY actual_end DESC`)
}

func (r *pgTaskRepo) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO tasks (title, description, context, due_date, scheduled_start, scheduled_end,
			actual_start, actual_end, priority, completed, needs_scheduling, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+taskColumns,
		t.Title, t.Description, t.Context, t.DueDate, t.ScheduledStart, t.ScheduledEnd,
		t.ActualStart, t.ActualEnd, t.Priority, t.Completed, t.NeedsScheduling, t.CreatedAt,
	)
	created, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

func (r *pgTaskRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Start performs the single-active-task test-and-set inside one
// transaction: re-read, check invariants, conditionally update, check the
// affected-row count, grounded on
// pkg/services/session_service.go's ClaimNextPendingSession.
func (r *pgTaskRepo) Start(ctx context.Context, id int64, now time.Time) (*models.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id)
	current, err := scanTask(row)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, ErrGone
	}
	if err != nil {
		return nil, fmt.Errorf("lock task: %w", err)
	}
	if current.Completed || current.IsActive() {
		return nil, ErrIllegalTransition
	}

	activeRow := tx.QueryRowContext(ctx, `SELECT id, title FROM tasks WHERE actual_start IS NOT NULL AND completed = FALSE AND id != $1 LIMIT 1`, id)
	var activeID int64
	var activeTitle string
	switch err := activeRow.Scan(&activeID, &activeTitle); {
	case errors.Is(err, stdsql.ErrNoRows):
		// no other active task, proceed
	case err != nil:
		return nil, fmt.Errorf("check active task: %w", err)
	default:
		return nil, &ConflictError{ActiveTaskID: activeID, ActiveTaskTitle: activeTitle}
	}

	res, err := tx.ExecContext(ctx, `UPDATE tasks SET actual_start = $1 WHERE id = $2 AND actual_start IS NULL AND completed = FALSE`, now, id)
	if err != nil {
		return nil, fmt.Errorf("start task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrGone
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit start: %w", err)
	}
	current.ActualStart = &now
	return current, nil
}

func (r *pgTaskRepo) Stop(ctx context.Context, id int64) (*models.Task, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET actual_start = NULL WHERE id = $1 AND actual_start IS NOT NULL AND completed = FALSE`, id)
	if err != nil {
		return nil, fmt.Errorf("stop task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, ErrGone
		}
		return nil, ErrIllegalTransition
	}
	return r.GetByID(ctx, id)
}

func (r *pgTaskRepo) Complete(ctx context.Context, id int64, now time.Time) (*models.Task, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET completed = TRUE, actual_end = $1 WHERE id = $2 AND actual_start IS NOT NULL AND completed = FALSE`, now, id)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, ErrGone
		}
		return nil, ErrIllegalTransition
	}
	return r.GetByID(ctx, id)
}

func (r *pgTaskRepo) UpdateSchedule(ctx context.Context, id int64, start, end *time.Time, needsScheduling bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET scheduled_start = $1, scheduled_end = $2, needs_scheduling = $3 WHERE id = $4`, start, end, needsScheduling, id)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgTaskRepo) UpdatePriority(ctx context.Context, id int64, priority float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tasks SET priority = $1 WHERE id = $2`, priority, id)
	if err != nil {
		return fmt.Errorf("update priority: %w", err)
	}
	return nil
}
