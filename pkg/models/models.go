// Package models defines the persistent entities shared by the store, the
// task engine, the reconciler, and the chat orchestrator.
package models

import "time"

// Task is the central entity: a single unit of user work that the
// reconciler schedules and prioritizes with LLM assistance.
type Task struct {
	ID          int64
	Title       string
	Description string
	Context     string

	DueDate        *time.Time
	ScheduledStart *time.Time
	ScheduledEnd   *time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time

	Priority float64

	Completed       bool
	NeedsScheduling bool

	CreatedAt time.Time
}

// IsActive reports whether the task is the (at most one) currently
// in-progress task.
func (t *Task) IsActive() bool {
	return t.ActualStart != nil && !t.Completed
}

// IsPending reports whether the task has not been started or completed.
func (t *Task) IsPending() bool {
	return t.ActualStart == nil && !t.Completed
}

// IsCompleted reports whether the task has reached its terminal state.
func (t *Task) IsCompleted() bool {
	return t.Completed && t.ActualEnd != nil
}

// GlobalContext is the singleton user-preference blob fed to every LLM call
// as a system-wide hint.
type GlobalContext struct {
	Context   string
	UpdatedAt time.Time
}

// Settings is the singleton holding the active LLM model identifier and the
// max-token cap used for LLM calls.
type Settings struct {
	ModelID   string
	MaxTokens int
	UpdatedAt time.Time
}

// ChatMessage is one turn of the append-only chat transcript.
type ChatMessage struct {
	ID                int64
	UserMessage       string
	AssistantResponse string
	// CorrelationID ties this turn to the LLMCall audit rows the assistant
	// generated while handling it, so the two append-only logs can be
	// joined without a foreign key between them.
	CorrelationID string
	CreatedAt     time.Time
}

// LLMCall is one audit row for a logical, retryable LLM invocation.
type LLMCall struct {
	ID         int64
	ModuleName string
	Inputs     string
	Outputs    string
	// CorrelationID matches the ChatMessage.CorrelationID of the chat turn
	// that triggered this call, or a fresh id per call when none was
	// supplied (the reconciler's scheduled/prioritize calls).
	CorrelationID string
	DurationMS    int64
	CreatedAt     time.Time
}

// Field length limits enforced by the task engine at the validation boundary
// (see spec §3). The store itself does not enforce these.
const (
	MaxTitleLen          = 200
	MaxDescriptionLen    = 1000
	MaxContextLen        = 1000
	MaxGlobalContextLen  = 5000
)
