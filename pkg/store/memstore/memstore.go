// Package memstore is an in-memory implementation of the store.Store
// contract, used by unit tests of the task engine, reconciler, and chat
// orchestrator so they never need a live Postgres instance. It preserves
// the same single-active-task conflict semantics and atomic-update
// behavior as the Postgres implementation, grounded in the hand-written
// test-fake convention used throughout the pack (no mocking framework,
// e.g. pkg/agent/scoring_agent_test.go's mockedController).
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tom-doerr/dspy-scheduling/pkg/models"
	"github.com/tom-doerr/dspy-scheduling/pkg/store"
)

// Store is the in-memory store.Store.
type Store struct {
	mu sync.Mutex

	tasks     map[int64]*models.Task
	nextID    int64
	context   *models.GlobalContext
	settings  *models.Settings
	chat      []*models.ChatMessage
	nextChat  int64
	calls     []*models.LLMCall
	nextCall  int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tasks:  make(map[int64]*models.Task),
		nextID: 1,
	}
}

func (s *Store) Tasks() store.TaskRepository       { return (*taskRepo)(s) }
func (s *Store) Context() store.ContextRepository  { return (*contextRepo)(s) }
func (s *Store) Settings() store.SettingsRepository { return (*settingsRepo)(s) }
func (s *Store) Chat() store.ChatRepository        { return (*chatRepo)(s) }
func (s *Store) LLMCalls() store.LLMCallRepository { return (*llmCallRepo)(s) }
func (s *Store) Close() error                      { return nil }

func cloneTask(t *models.Task) *models.Task {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

type taskRepo Store

func (r *taskRepo) GetAll(ctx context.Context) ([]*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return dueBefore(out[i].DueDate, out[j].DueDate)
	})
	return out, nil
}

func dueBefore(a, b *time.Time) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.Before(*b)
}

func (r *taskRepo) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTask(t), nil
}

func (r *taskRepo) GetIncomplete(ctx context.Context) ([]*models.Task, error) {
	all, _ := r.GetAll(ctx)
	out := make([]*models.Task, 0, len(all))
	for _, t := range all {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *taskRepo) GetScheduled(ctx context.Context) ([]*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Task, 0)
	for _, t := range s.tasks {
		if t.ScheduledStart != nil {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.Before(*out[j].ScheduledStart) })
	return out, nil
}

func (r *taskRepo) GetTasksNeedingScheduling(ctx context.Context) ([]*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Task, 0)
	for _, t := range s.tasks {
		if !t.Completed && t.NeedsScheduling {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *taskRepo) GetActive(ctx context.Context) (*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if t.IsActive() {
			return cloneTask(t), nil
		}
	}
	return nil, nil
}

func (r *taskRepo) GetCompleted(ctx context.Context) ([]*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Task, 0)
	for _, t := range s.tasks {
		if t.IsCompleted() {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActualEnd.After(*out[j].ActualEnd) })
	return out, nil
}

func (r *taskRepo) Create(ctx context.Context, t *models.Task) (*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	cp.ID = s.nextID
	s.nextID++
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.tasks[cp.ID] = &cp
	return cloneTask(&cp), nil
}

func (r *taskRepo) Delete(ctx context.Context, id int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (r *taskRepo) Start(ctx context.Context, id int64, now time.Time) (*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrGone
	}
	if t.Completed || t.IsActive() {
		return nil, store.ErrIllegalTransition
	}
	for _, other := range s.tasks {
		if other.ID != id && other.IsActive() {
			return nil, &store.ConflictError{ActiveTaskID: other.ID, ActiveTaskTitle: other.Title}
		}
	}
	t.ActualStart = &now
	return cloneTask(t), nil
}

func (r *taskRepo) Stop(ctx context.Context, id int64) (*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrGone
	}
	if !t.IsActive() {
		return nil, store.ErrIllegalTransition
	}
	t.ActualStart = nil
	return cloneTask(t), nil
}

func (r *taskRepo) Complete(ctx context.Context, id int64, now time.Time) (*models.Task, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrGone
	}
	if !t.IsActive() {
		return nil, store.ErrIllegalTransition
	}
	t.Completed = true
	t.ActualEnd = &now
	return cloneTask(t), nil
}

func (r *taskRepo) UpdateSchedule(ctx context.Context, id int64, start, end *time.Time, needsScheduling bool) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	t.ScheduledStart = start
	t.ScheduledEnd = end
	t.NeedsScheduling = needsScheduling
	return nil
}

func (r *taskRepo) UpdatePriority(ctx context.Context, id int64, priority float64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	t.Priority = priority
	return nil
}

type contextRepo Store

func (r *contextRepo) GetOrCreate(ctx context.Context) (*models.GlobalContext, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.context == nil {
		s.context = &models.GlobalContext{UpdatedAt: time.Now().UTC()}
	}
	cp := *s.context
	return &cp, nil
}

func (r *contextRepo) Update(ctx context.Context, text string) (*models.GlobalContext, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.context = &models.GlobalContext{Context: text, UpdatedAt: time.Now().UTC()}
	cp := *s.context
	return &cp, nil
}

type settingsRepo Store

func (r *settingsRepo) GetOrCreate(ctx context.Context) (*models.Settings, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		s.settings = &models.Settings{ModelID: "anthropic/claude-3-haiku", MaxTokens: 1024, UpdatedAt: time.Now().UTC()}
	}
	cp := *s.settings
	return &cp, nil
}

func (r *settingsRepo) Update(ctx context.Context, modelID string, maxTokens int) (*models.Settings, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = &models.Settings{ModelID: modelID, MaxTokens: maxTokens, UpdatedAt: time.Now().UTC()}
	cp := *s.settings
	return &cp, nil
}

type chatRepo Store

func (r *chatRepo) Create(ctx context.Context, userMessage, assistantResponse, correlationID string) (*models.ChatMessage, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextChat++
	m := &models.ChatMessage{
		ID: s.nextChat, UserMessage: userMessage, AssistantResponse: assistantResponse,
		CorrelationID: correlationID, CreatedAt: time.Now().UTC(),
	}
	s.chat = append(s.chat, m)
	cp := *m
	return &cp, nil
}

func (r *chatRepo) GetRecent(ctx context.Context, limit int) ([]*models.ChatMessage, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.ChatMessage, 0, len(s.chat))
	for i := len(s.chat) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.chat[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *chatRepo) DeleteAll(ctx context.Context) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chat = nil
	return nil
}

func (r *chatRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	kept := s.chat[:0]
	var deleted int64
	for _, m := range s.chat {
		if m.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	s.chat = kept
	return deleted, nil
}

type llmCallRepo Store

func (r *llmCallRepo) Create(ctx context.Context, moduleName, inputs, outputs, correlationID string, durationMS int64) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCall++
	s.calls = append(s.calls, &models.LLMCall{
		ID: s.nextCall, ModuleName: moduleName, Inputs: inputs, Outputs: outputs,
		CorrelationID: correlationID, DurationMS: durationMS, CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (r *llmCallRepo) GetLatest(ctx context.Context, limit int) ([]*models.LLMCall, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.LLMCall, 0, limit)
	for i := len(s.calls) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.calls[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *llmCallRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	kept := s.calls[:0]
	var deleted int64
	for _, c := range s.calls {
		if c.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	s.calls = kept
	return deleted, nil
}
