// Package reconciler runs the background tick that assigns schedules to
// new tasks, repairs schedules for tasks whose window has slipped, and
// reprioritizes the task list after either happens (spec §4.4). Its
// three-phase shape (schedule new, reschedule slipped, reprioritize) is
// grounded directly on original_source/schedule_checker.py's
// check_and_update_schedule; the non-reentrant ticker shape is grounded on
// pkg/cleanup/service.go's Start/Stop/run loop.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/tom-doerr/dspy-scheduling/pkg/llm"
	"github.com/tom-doerr/dspy-scheduling/pkg/models"
	"github.com/tom-doerr/dspy-scheduling/pkg/store"
)

// Reconciler owns the background tick. It is constructed with its Store
// and llm.Service dependencies injected (spec §9 redesign note: no package
// globals), so tests can swap in a memstore.Store and a scripted
// llm.Service.
type Reconciler struct {
	store    store.Store
	model    llm.Service
	interval time.Duration
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Reconciler. now defaults to time.Now when nil.
func New(s store.Store, model llm.Service, interval time.Duration, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: s, model: model, interval: interval, now: now}
}

// Start launches the background tick loop. Calling Start twice without an
// intervening Stop is a no-op.
func (r *Reconciler) Start(ctx context.Context) {
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go r.run(ctx)

	slog.Info("reconciler started", "interval", r.interval)
}

// Stop signals the loop to exit and waits for the in-flight tick to drain.
func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	slog.Info("reconciler stopped")
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)

	r.Tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one full reconciliation pass: schedule tasks that have never
// been scheduled, reschedule tasks whose window has slipped, then
// reprioritize if either phase did anything. It is exported so callers
// (tests, an admin "reconcile now" endpoint) can trigger a pass
// synchronously outside the ticker.
func (r *Reconciler) Tick(ctx context.Context) {
	now := r.now()
	scheduled := r.scheduleNewTasks(ctx, now)
	rescheduled := r.rescheduleSlippedTasks(ctx, now)

	if scheduled > 0 {
		slog.Info("reconciler: scheduled new tasks", "count", scheduled)
	}
	if rescheduled > 0 {
		slog.Info("reconciler: rescheduled slipped tasks", "count", rescheduled)
	}
	if scheduled == 0 && rescheduled == 0 {
		slog.Info("reconciler: schedule up to date")
		return
	}

	if n := r.reprioritize(ctx, now); n > 0 {
		slog.Info("reconciler: reprioritized tasks", "count", n)
	}
}

// scheduleNewTasks handles Phase A: every task marked NeedsScheduling gets
// one ScheduleTimeslot call, regardless of outcome, then is cleared.
func (r *Reconciler) scheduleNewTasks(ctx context.Context, now time.Time) int {
	tasks, err := r.store.Tasks().GetTasksNeedingScheduling(ctx)
	if err != nil {
		slog.Error("reconciler: list tasks needing scheduling failed", "error", err)
		return 0
	}

	var count int
	for _, t := range tasks {
		r.scheduleTask(ctx, t, now)
		count++
	}
	return count
}

// rescheduleSlippedTasks handles Phase B: an incomplete task is slipped if
// its scheduled end has passed, or its scheduled start has passed without
// the task having actually started.
func (r *Reconciler) rescheduleSlippedTasks(ctx context.Context, now time.Time) int {
	tasks, err := r.store.Tasks().GetIncomplete(ctx)
	if err != nil {
		slog.Error("reconciler: list incomplete tasks failed", "error", err)
		return 0
	}

	var count int
	for _, t := range tasks {
		if !taskHasSlipped(t, now) {
			continue
		}
		r.scheduleTask(ctx, t, now)
		count++
	}
	return count
}

func taskHasSlipped(t *models.Task, now time.Time) bool {
	if t.ScheduledEnd != nil && t.ScheduledEnd.Before(now) {
		return true
	}
	if t.ScheduledStart != nil && t.ScheduledStart.Before(now) && t.ActualStart == nil {
		return true
	}
	return false
}

// scheduleTask assembles the existing-schedule context, calls the LLM, and
// writes whatever comes back (including nil/nil on a parse failure — spec
// §9 safe_parse_iso semantics: a bad LLM response degrades the schedule to
// unscheduled rather than blocking the tick). It always clears
// NeedsScheduling, matching the original's try/except-then-mark-done
// shape in schedule_task_with_dspy.
func (r *Reconciler) scheduleTask(ctx context.Context, t *models.Task, now time.Time) {
	existing, err := r.buildExistingSchedule(ctx, t.ID)
	if err != nil {
		slog.Error("reconciler: list scheduled tasks failed", "task_id", t.ID, "error", err)
	}

	globalContext, err := r.globalContextText(ctx)
	if err != nil {
		slog.Error("reconciler: load global context failed", "error", err)
	}

	taskContext := t.Context
	if taskContext == "" {
		taskContext = "Rescheduling overdue task"
	}

	out, err := r.model.ScheduleTimeslot(ctx, llm.ScheduleTimeslotInput{
		TaskTitle:        t.Title,
		TaskContext:      taskContext,
		GlobalContext:    globalContext,
		CurrentDateTime:  now,
		ExistingSchedule: existing,
	})

	var start, end *time.Time
	if err != nil {
		slog.Error("reconciler: schedule_timeslot failed after retries", "task_id", t.ID, "error", err)
		start, end = t.ScheduledStart, t.ScheduledEnd
	} else {
		start, end = out.Start, out.End
	}

	if updateErr := r.store.Tasks().UpdateSchedule(ctx, t.ID, start, end, false); updateErr != nil {
		slog.Error("reconciler: update schedule failed", "task_id", t.ID, "error", updateErr)
	}
}

// buildExistingSchedule returns every scheduled, incomplete task except the
// one being (re)scheduled, per schedule_checker.py's existing_schedule
// construction.
func (r *Reconciler) buildExistingSchedule(ctx context.Context, excludeID int64) ([]llm.ScheduleItem, error) {
	scheduled, err := r.store.Tasks().GetScheduled(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]llm.ScheduleItem, 0, len(scheduled))
	for _, t := range scheduled {
		if t.ID == excludeID || t.Completed {
			continue
		}
		items = append(items, llm.ScheduleItem{ID: t.ID, Title: t.Title, Start: t.ScheduledStart, End: t.ScheduledEnd})
	}
	return items, nil
}

func (r *Reconciler) globalContextText(ctx context.Context) (string, error) {
	gc, err := r.store.Context().GetOrCreate(ctx)
	if err != nil {
		return "", err
	}
	return gc.Context, nil
}

// reprioritize handles Phase C: every incomplete task gets re-ranked in
// one LLM call. Assignments naming an unknown task id are silently
// dropped by the store (spec §4.4 Phase C); a failed call leaves
// priorities untouched.
func (r *Reconciler) reprioritize(ctx context.Context, now time.Time) int {
	incomplete, err := r.store.Tasks().GetIncomplete(ctx)
	if err != nil {
		slog.Error("reconciler: list incomplete tasks for prioritize failed", "error", err)
		return 0
	}
	if len(incomplete) == 0 {
		return 0
	}

	globalContext, err := r.globalContextText(ctx)
	if err != nil {
		slog.Error("reconciler: load global context failed", "error", err)
	}

	items := make([]llm.PriorityItem, 0, len(incomplete))
	for _, t := range incomplete {
		items = append(items, llm.PriorityItem{ID: t.ID, Title: t.Title, Description: t.Description, DueDate: t.DueDate})
	}

	out, err := r.model.Prioritize(ctx, llm.PrioritizeInput{Tasks: items, GlobalContext: globalContext, CurrentDateTime: now})
	if err != nil {
		slog.Error("reconciler: prioritize failed after retries", "error", err)
		return 0
	}

	var updated int
	for _, a := range out.Assignments {
		if err := r.store.Tasks().UpdatePriority(ctx, a.TaskID, a.Priority); err != nil {
			slog.Error("reconciler: update priority failed", "task_id", a.TaskID, "error", err)
			continue
		}
		updated++
	}
	return updated
}
