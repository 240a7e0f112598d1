package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// This file assembles the system/user prompts for the three logical calls
// and parses their JSON responses. Each system prompt fixes the exact
// output schema so parsing can stay a single json.Unmarshal plus the
// forgiving safeParseISO/defaulting rules spec §9 requires.

const scheduleTimeslotSystemPrompt = `You schedule one task into a personal calendar. ` +
	`Given the task, its context, the user's global context, the current ` +
	`date and time, and the rest of the live schedule, choose a start and ` +
	`end time that does not overlap any existing item. ` +
	`Respond with a single JSON object only, no surrounding text, matching ` +
	`exactly: {"start": "<RFC3339 datetime or null>", "end": "<RFC3339 ` +
	`datetime or null>", "reasoning": "<short string>"}.`

func scheduleTimeslotUserPrompt(in ScheduleTimeslotInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n", in.TaskTitle)
	if in.TaskContext != "" {
		fmt.Fprintf(&sb, "Task context: %s\n", in.TaskContext)
	}
	if in.GlobalContext != "" {
		fmt.Fprintf(&sb, "Global context: %s\n", in.GlobalContext)
	}
	fmt.Fprintf(&sb, "Current datetime: %s\n", in.CurrentDateTime.Format(time.RFC3339))
	sb.WriteString("Existing schedule:\n")
	for _, item := range in.ExistingSchedule {
		fmt.Fprintf(&sb, "- [%d] %s: %s - %s\n", item.ID, item.Title, formatTimePtr(item.Start), formatTimePtr(item.End))
	}
	return sb.String()
}

type scheduleTimeslotWire struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Reasoning string `json:"reasoning"`
}

func parseScheduleTimeslotOutput(text string) (ScheduleTimeslotOutput, error) {
	var wire scheduleTimeslotWire
	if err := json.Unmarshal([]byte(extractJSON(text)), &wire); err != nil {
		return ScheduleTimeslotOutput{}, fmt.Errorf("parse schedule_timeslot response: %w", err)
	}
	return ScheduleTimeslotOutput{
		Start:     safeParseISO(wire.Start),
		End:       safeParseISO(wire.End),
		Reasoning: wire.Reasoning,
	}, nil
}

const prioritizeSystemPrompt = `You prioritize a personal task list on a 0-10 scale, ` +
	`10 being most urgent/important. Consider due dates and the user's ` +
	`global context. Respond with a single JSON object only, no ` +
	`surrounding text, matching exactly: {"assignments": [{"task_id": ` +
	`<int>, "priority": <number 0-10>}, ...]}, one entry per input task.`

func prioritizeUserPrompt(in PrioritizeInput) string {
	var sb strings.Builder
	if in.GlobalContext != "" {
		fmt.Fprintf(&sb, "Global context: %s\n", in.GlobalContext)
	}
	fmt.Fprintf(&sb, "Current datetime: %s\n", in.CurrentDateTime.Format(time.RFC3339))
	sb.WriteString("Tasks:\n")
	for _, t := range in.Tasks {
		due := "none"
		if t.DueDate != nil {
			due = t.DueDate.Format(time.RFC3339)
		}
		fmt.Fprintf(&sb, "- [%d] %s: %s (due %s)\n", t.ID, t.Title, t.Description, due)
	}
	return sb.String()
}

type prioritizeWire struct {
	Assignments []struct {
		TaskID   int64   `json:"task_id"`
		Priority float64 `json:"priority"`
	} `json:"assignments"`
}

func parsePrioritizeOutput(text string) (PrioritizeOutput, error) {
	var wire prioritizeWire
	if err := json.Unmarshal([]byte(extractJSON(text)), &wire); err != nil {
		return PrioritizeOutput{}, fmt.Errorf("parse prioritize response: %w", err)
	}
	out := PrioritizeOutput{Assignments: make([]PriorityAssignment, 0, len(wire.Assignments))}
	for _, a := range wire.Assignments {
		out.Assignments = append(out.Assignments, PriorityAssignment{TaskID: a.TaskID, Priority: a.Priority})
	}
	return out, nil
}

const assistantActSystemPrompt = `You are a scheduling assistant. Given the ` +
	`user's message, recent tasks, and global context, choose exactly one ` +
	`action: create_task, start, stop, complete, delete, or chat (a plain ` +
	`reply with no mutation). Respond with a single JSON object only, no ` +
	`surrounding text, matching exactly: {"action": "<one of the above>", ` +
	`"task_id": <int, 0 if not applicable>, "task_title": "<string, empty ` +
	`if not applicable>", "description": "<string, empty if not ` +
	`applicable>", "reply": "<natural language reply to show the user>"}.`

func assistantActUserPrompt(in AssistantActInput) string {
	var sb strings.Builder
	if in.GlobalContext != "" {
		fmt.Fprintf(&sb, "Global context: %s\n", in.GlobalContext)
	}
	fmt.Fprintf(&sb, "Current datetime: %s\n", in.CurrentDateTime.Format(time.RFC3339))
	sb.WriteString("Recent tasks:\n")
	for _, t := range in.RecentTasks {
		fmt.Fprintf(&sb, "- [%d] %s\n", t.ID, t.Title)
	}
	fmt.Fprintf(&sb, "User message: %s\n", in.UserMessage)
	return sb.String()
}

type assistantActWire struct {
	Action      string `json:"action"`
	TaskID      int64  `json:"task_id"`
	TaskTitle   string `json:"task_title"`
	Description string `json:"description"`
	Reply       string `json:"reply"`
}

// knownChatActions is the closed set; anything else collapses to Chat.
var knownChatActions = map[string]ChatActionKind{
	string(ChatActionCreateTask): ChatActionCreateTask,
	string(ChatActionStart):      ChatActionStart,
	string(ChatActionStop):       ChatActionStop,
	string(ChatActionComplete):   ChatActionComplete,
	string(ChatActionDelete):     ChatActionDelete,
	string(ChatActionChat):       ChatActionChat,
}

func parseAssistantActOutput(text string) (AssistantActOutput, error) {
	var wire assistantActWire
	if err := json.Unmarshal([]byte(extractJSON(text)), &wire); err != nil {
		return AssistantActOutput{}, fmt.Errorf("parse assistant_act response: %w", err)
	}
	action, ok := knownChatActions[strings.ToLower(strings.TrimSpace(wire.Action))]
	if !ok {
		action = ChatActionChat
	}
	return AssistantActOutput{
		Action:      action,
		TaskID:      wire.TaskID,
		TaskTitle:   wire.TaskTitle,
		Description: wire.Description,
		Reply:       wire.Reply,
	}, nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "unscheduled"
	}
	return t.Format(time.RFC3339)
}

// extractJSON strips any leading/trailing text around the first top-level
// JSON object, tolerating models that wrap output in prose or code fences
// despite instructions.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
