// Package chat turns one natural-language user message into a single
// structured mutation (or a plain reply) plus an appended chat transcript
// row, grounded on original_source/services/chat_service.py's
// process_message.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tom-doerr/dspy-scheduling/pkg/llm"
	"github.com/tom-doerr/dspy-scheduling/pkg/models"
	"github.com/tom-doerr/dspy-scheduling/pkg/store"
)

// recentTaskLimit caps how many tasks are shown to the assistant model per
// turn, matching the original's practice of sending the live task list
// without an explicit cap but bounded here to keep prompts small.
const recentTaskLimit = 200

// Orchestrator is the chat turn handler. Constructed with its Store and
// llm.Service dependencies injected, not resolved from a singleton.
type Orchestrator struct {
	store store.Store
	model llm.Service
	now   func() time.Time
}

// New builds an Orchestrator. now defaults to time.Now when nil.
func New(s store.Store, model llm.Service, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{store: s, model: model, now: now}
}

// Process handles exactly one chat turn: it calls the assistant, executes
// at most one resulting action, and always appends exactly one
// ChatMessage row, whether or not the action succeeded. Action failures
// are appended to the reply text rather than raised to the caller, per
// the original's "Note: <message>" suffix behavior.
func (o *Orchestrator) Process(ctx context.Context, userMessage string) (*models.ChatMessage, error) {
	correlationID := uuid.New().String()
	ctx = llm.WithCorrelationID(ctx, correlationID)

	tasks, err := o.store.Tasks().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks for chat turn: %w", err)
	}

	globalContext := ""
	if gc, gcErr := o.store.Context().GetOrCreate(ctx); gcErr == nil {
		globalContext = gc.Context
	} else {
		slog.Error("chat: load global context failed", "error", gcErr)
	}

	items := make([]llm.PriorityItem, 0, len(tasks))
	for i, t := range tasks {
		if i >= recentTaskLimit {
			break
		}
		items = append(items, llm.PriorityItem{ID: t.ID, Title: t.Title, Description: t.Description, DueDate: t.DueDate})
	}

	result, err := o.model.AssistantAct(ctx, llm.AssistantActInput{
		UserMessage:     userMessage,
		GlobalContext:   globalContext,
		RecentTasks:     items,
		CurrentDateTime: o.now(),
	})
	if err != nil {
		return o.store.Chat().Create(ctx, userMessage, "Sorry, I couldn't process that right now.", correlationID)
	}

	reply := result.Reply
	if actionErr := o.executeAction(ctx, result); actionErr != nil {
		reply = fmt.Sprintf("%s\n\nNote: %s", reply, actionErr.Error())
	}

	return o.store.Chat().Create(ctx, userMessage, reply, correlationID)
}

// executeAction dispatches the single structured action the model chose.
// ChatActionChat (or any unrecognized action, which AssistantAct already
// collapsed to chat) performs no mutation.
func (o *Orchestrator) executeAction(ctx context.Context, result llm.AssistantActOutput) error {
	switch result.Action {
	case llm.ChatActionCreateTask:
		title := result.TaskTitle
		if title == "" {
			title = "Untitled Task"
		}
		_, err := o.store.Tasks().Create(ctx, &models.Task{
			Title:           title,
			Description:     result.Description,
			NeedsScheduling: true,
			CreatedAt:       o.now().UTC(),
		})
		return err

	case llm.ChatActionStart:
		if result.TaskID == 0 {
			return nil
		}
		_, err := o.store.Tasks().Start(ctx, result.TaskID, o.now().UTC())
		return err

	case llm.ChatActionStop:
		if result.TaskID == 0 {
			return nil
		}
		_, err := o.store.Tasks().Stop(ctx, result.TaskID)
		return err

	case llm.ChatActionComplete:
		if result.TaskID == 0 {
			return nil
		}
		_, err := o.store.Tasks().Complete(ctx, result.TaskID, o.now().UTC())
		return err

	case llm.ChatActionDelete:
		if result.TaskID == 0 {
			return nil
		}
		return o.store.Tasks().Delete(ctx, result.TaskID)

	default:
		return nil
	}
}

// GetHistory returns the most recent chat turns, newest first.
func (o *Orchestrator) GetHistory(ctx context.Context, limit int) ([]*models.ChatMessage, error) {
	return o.store.Chat().GetRecent(ctx, limit)
}

// ClearHistory deletes every stored chat turn and returns nothing; the
// original's delete_all has no count return value consumers rely on.
func (o *Orchestrator) ClearHistory(ctx context.Context) error {
	return o.store.Chat().DeleteAll(ctx)
}
