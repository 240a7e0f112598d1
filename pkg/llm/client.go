package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tom-doerr/dspy-scheduling/pkg/retry"
	"github.com/tom-doerr/dspy-scheduling/pkg/store"
)

// Service is the contract the Task Engine, Reconciler, and Chat Orchestrator
// depend on. Client is the only production implementation; tests inject a
// fake built directly against this interface instead of mocking Client.
type Service interface {
	ScheduleTimeslot(ctx context.Context, in ScheduleTimeslotInput) (ScheduleTimeslotOutput, error)
	Prioritize(ctx context.Context, in PrioritizeInput) (PrioritizeOutput, error)
	AssistantAct(ctx context.Context, in AssistantActInput) (AssistantActOutput, error)
}

// ScheduleItem is one row of an existing schedule handed to the model as
// context, excluding the task being scheduled and completed tasks (spec
// §4.2, original schedule_checker.py's existing_schedule construction).
type ScheduleItem struct {
	ID    int64
	Title string
	Start *time.Time
	End   *time.Time
}

// ScheduleTimeslotInput is the single logical call used both for brand-new
// tasks and for repairing a slipped schedule.
type ScheduleTimeslotInput struct {
	TaskTitle        string
	TaskContext      string
	GlobalContext    string
	CurrentDateTime  time.Time
	ExistingSchedule []ScheduleItem
}

// ScheduleTimeslotOutput carries the model's proposed window. Either field
// may be nil if the model's output failed to parse as an ISO datetime
// (spec §9 safe_parse_iso semantics) — a parse failure degrades to nil, it
// never surfaces as an error.
type ScheduleTimeslotOutput struct {
	Start     *time.Time
	End       *time.Time
	Reasoning string
}

// PriorityItem is one task offered to the prioritizer.
type PriorityItem struct {
	ID          int64
	Title       string
	Description string
	DueDate     *time.Time
}

type PrioritizeInput struct {
	Tasks           []PriorityItem
	GlobalContext   string
	CurrentDateTime time.Time
}

// PriorityAssignment is one output row. Priority must land in [0, 10]; the
// Client rejects (and retries) the whole call if any row is out of range,
// it does not clamp individual rows.
type PriorityAssignment struct {
	TaskID   int64
	Priority float64
}

type PrioritizeOutput struct {
	Assignments []PriorityAssignment
}

// ChatActionKind is the closed discriminated union of chat mutations
// (spec §9 redesign note). Any model output that does not match a known
// kind collapses to ChatActionChat.
type ChatActionKind string

const (
	ChatActionCreateTask ChatActionKind = "create_task"
	ChatActionStart      ChatActionKind = "start"
	ChatActionStop       ChatActionKind = "stop"
	ChatActionComplete   ChatActionKind = "complete"
	ChatActionDelete     ChatActionKind = "delete"
	ChatActionChat       ChatActionKind = "chat"
)

type AssistantActInput struct {
	UserMessage     string
	GlobalContext   string
	RecentTasks     []PriorityItem
	CurrentDateTime time.Time
}

// AssistantActOutput names the single action the model chose to take plus
// the natural-language reply shown to the user regardless of which action
// fired.
type AssistantActOutput struct {
	Action      ChatActionKind
	TaskID      int64
	TaskTitle   string
	Description string
	Reply       string
}

// Config bundles the model id / token budget used for every logical call.
// cmd/scheduler fills it from the environment configuration (DSPY_MODEL,
// MAX_TOKENS) at construction time; the Settings singleton is not read.
type Config struct {
	ModelID   string
	MaxTokens int
}

// correlationIDKey is the context key a caller uses to tie a chain of LLM
// calls to the ChatMessage row they were made on behalf of.
type correlationIDKey struct{}

// WithCorrelationID tags ctx with an id that every traced call made with
// that context will write into its LLMCall audit row, letting the audit
// trail be joined back to the chat turn that caused it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

func correlationIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// Client is the production Service: it owns prompt assembly, output
// parsing/validation, the two-layer retry+backoff policy (spec §9), and
// best-effort audit logging of every call via store.LLMCallRepository.
type Client struct {
	model LanguageModel
	calls store.LLMCallRepository
	cfg   Config
	retry retry.Config
}

// NewClient builds a Client. retryCfg defaults to retry.DefaultConfig when
// its zero value is passed.
func NewClient(model LanguageModel, calls store.LLMCallRepository, cfg Config, retryCfg retry.Config) *Client {
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.DefaultConfig
	}
	return &Client{model: model, calls: calls, cfg: cfg, retry: retryCfg}
}

// ScheduleTimeslot asks the model for a start/end window for a task given
// its context and the rest of the live schedule.
func (c *Client) ScheduleTimeslot(ctx context.Context, in ScheduleTimeslotInput) (ScheduleTimeslotOutput, error) {
	return traced(ctx, c, "schedule_timeslot", in, func(ctx context.Context) (ScheduleTimeslotOutput, error) {
		req := CompletionRequest{
			ModelID:      c.cfg.ModelID,
			MaxTokens:    c.cfg.MaxTokens,
			SystemPrompt: scheduleTimeslotSystemPrompt,
			UserPrompt:   scheduleTimeslotUserPrompt(in),
		}
		resp, err := c.model.Complete(ctx, req)
		if err != nil {
			return ScheduleTimeslotOutput{}, err
		}
		return parseScheduleTimeslotOutput(resp.Text)
	})
}

// Prioritize asks the model to rank the given tasks, returning a priority
// in [0, 10] per task. A single out-of-range value invalidates the whole
// response (triggers a retry), matching the original's all-or-nothing
// validation.
func (c *Client) Prioritize(ctx context.Context, in PrioritizeInput) (PrioritizeOutput, error) {
	return traced(ctx, c, "prioritize", in, func(ctx context.Context) (PrioritizeOutput, error) {
		req := CompletionRequest{
			ModelID:      c.cfg.ModelID,
			MaxTokens:    c.cfg.MaxTokens,
			SystemPrompt: prioritizeSystemPrompt,
			UserPrompt:   prioritizeUserPrompt(in),
		}
		resp, err := c.model.Complete(ctx, req)
		if err != nil {
			return PrioritizeOutput{}, err
		}
		out, err := parsePrioritizeOutput(resp.Text)
		if err != nil {
			return PrioritizeOutput{}, err
		}
		for _, a := range out.Assignments {
			if a.Priority < 0 || a.Priority > 10 {
				return PrioritizeOutput{}, fmt.Errorf("priority %v for task %d out of range [0,10]", a.Priority, a.TaskID)
			}
		}
		return out, nil
	})
}

// AssistantAct turns one natural-language chat turn into a single
// structured action plus a reply.
func (c *Client) AssistantAct(ctx context.Context, in AssistantActInput) (AssistantActOutput, error) {
	return traced(ctx, c, "assistant_act", in, func(ctx context.Context) (AssistantActOutput, error) {
		req := CompletionRequest{
			ModelID:      c.cfg.ModelID,
			MaxTokens:    c.cfg.MaxTokens,
			SystemPrompt: assistantActSystemPrompt,
			UserPrompt:   assistantActUserPrompt(in),
		}
		resp, err := c.model.Complete(ctx, req)
		if err != nil {
			return AssistantActOutput{}, err
		}
		return parseAssistantActOutput(resp.Text)
	})
}

// traced wraps fn in the shared retry policy and writes exactly one audit
// row per logical call, on whichever outcome is terminal (success or
// exhausted retries). Audit-write failures never fail the call itself and
// are retried with their own backoff (spec §9: retry lives at the LLM
// Client and the Store's audit-write, never the Task Engine).
func traced[T any](ctx context.Context, c *Client, moduleName string, inputs any, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	var result T
	callErr := retry.Do(ctx, c.retry, func(attempt int) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	durationMS := time.Since(start).Milliseconds()

	var outputsForAudit any = result
	if callErr != nil {
		outputsForAudit = map[string]string{"error": callErr.Error()}
	}
	c.writeAudit(ctx, moduleName, inputs, outputsForAudit, correlationIDFrom(ctx), durationMS)

	return result, callErr
}

// writeAudit best-effort records one LLMCall row, retrying the write
// itself (spec §9's second retry layer) but never surfacing a write
// failure to the caller.
func (c *Client) writeAudit(ctx context.Context, moduleName string, inputs, outputs any, correlationID string, durationMS int64) {
	if c.calls == nil {
		return
	}
	inputsJSON := safeSerialize(inputs)
	outputsJSON := safeSerialize(outputs)
	_ = retry.Do(ctx, c.retry, func(attempt int) error {
		return c.calls.Create(ctx, moduleName, inputsJSON, outputsJSON, correlationID, durationMS)
	})
}

// safeSerialize renders v as JSON, falling back to its fmt.Sprintf("%+v")
// representation if it is not serializable. It never panics and never
// returns an error to the caller.
func safeSerialize(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

// safeParseISO parses s as RFC3339, or as an ISO-8601 local time without
// an offset (read in time.Local); a malformed or empty value degrades to
// nil rather than an error (spec §9 safe_parse_iso semantics).
func safeParseISO(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
		if err != nil {
			return nil
		}
	}
	return &t
}
