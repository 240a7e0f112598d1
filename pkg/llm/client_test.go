package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tom-doerr/dspy-scheduling/pkg/retry"
)

func fastRetryConfig() retry.Config {
	return retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestClientScheduleTimeslot_ParsesValidResponse(t *testing.T) {
	model := &MockLanguageModel{Responses: []MockResponse{
		{Text: `{"start": "2026-08-01T09:00:00Z", "end": "2026-08-01T10:00:00Z", "reasoning": "morning slot"}`},
	}}
	audit := &fakeAuditLog{}
	c := NewClient(model, audit, Config{ModelID: "anthropic/claude-3-haiku", MaxTokens: 512}, fastRetryConfig())

	out, err := c.ScheduleTimeslot(context.Background(), ScheduleTimeslotInput{
		TaskTitle:       "write report",
		CurrentDateTime: time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	require.NotNil(t, out.Start)
	require.NotNil(t, out.End)
	assert.Equal(t, "morning slot", out.Reasoning)
	assert.Equal(t, 1, model.CallCount())
	assert.Equal(t, 1, audit.rowCount())
}

func TestClientScheduleTimeslot_UnparseableDatesDegradeToNil(t *testing.T) {
	model := &MockLanguageModel{Responses: []MockResponse{
		{Text: `{"start": "not-a-date", "end": "", "reasoning": "unsure"}`},
	}}
	audit := &fakeAuditLog{}
	c := NewClient(model, audit, Config{ModelID: "m", MaxTokens: 100}, fastRetryConfig())

	out, err := c.ScheduleTimeslot(context.Background(), ScheduleTimeslotInput{TaskTitle: "x"})

	require.NoError(t, err)
	assert.Nil(t, out.Start)
	assert.Nil(t, out.End)
}

func TestClientPrioritize_RetriesUntilInRange(t *testing.T) {
	model := &MockLanguageModel{Responses: []MockResponse{
		{Text: `{"assignments": [{"task_id": 1, "priority": 99}]}`},
		{Text: `{"assignments": [{"task_id": 1, "priority": 7.5}]}`},
	}}
	audit := &fakeAuditLog{}
	c := NewClient(model, audit, Config{ModelID: "m", MaxTokens: 100}, fastRetryConfig())

	out, err := c.Prioritize(context.Background(), PrioritizeInput{
		Tasks: []PriorityItem{{ID: 1, Title: "t"}},
	})

	require.NoError(t, err)
	require.Len(t, out.Assignments, 1)
	assert.Equal(t, 7.5, out.Assignments[0].Priority)
	assert.Equal(t, 2, model.CallCount())
	assert.Equal(t, 1, audit.rowCount())
}

func TestClientPrioritize_ExhaustsRetriesAndReturnsError(t *testing.T) {
	model := &MockLanguageModel{Responses: []MockResponse{
		{Text: `{"assignments": [{"task_id": 1, "priority": -1}]}`},
		{Text: `{"assignments": [{"task_id": 1, "priority": 11}]}`},
		{Text: `{"assignments": [{"task_id": 1, "priority": 20}]}`},
	}}
	audit := &fakeAuditLog{}
	c := NewClient(model, audit, Config{ModelID: "m", MaxTokens: 100}, fastRetryConfig())

	_, err := c.Prioritize(context.Background(), PrioritizeInput{
		Tasks: []PriorityItem{{ID: 1, Title: "t"}},
	})

	require.Error(t, err)
	assert.Equal(t, 3, model.CallCount())
	assert.Equal(t, 1, audit.rowCount())
}

func TestClientAssistantAct_UnknownActionCollapsesToChat(t *testing.T) {
	model := &MockLanguageModel{Responses: []MockResponse{
		{Text: `{"action": "snooze", "reply": "noted"}`},
	}}
	audit := &fakeAuditLog{}
	c := NewClient(model, audit, Config{ModelID: "m", MaxTokens: 100}, fastRetryConfig())

	out, err := c.AssistantAct(context.Background(), AssistantActInput{UserMessage: "snooze it"})

	require.NoError(t, err)
	assert.Equal(t, ChatActionChat, out.Action)
	assert.Equal(t, "noted", out.Reply)
}

func TestClientAssistantAct_KnownActionParsed(t *testing.T) {
	model := &MockLanguageModel{Responses: []MockResponse{
		{Text: `{"action": "start", "task_id": 5, "reply": "starting task 5"}`},
	}}
	audit := &fakeAuditLog{}
	c := NewClient(model, audit, Config{ModelID: "m", MaxTokens: 100}, fastRetryConfig())

	out, err := c.AssistantAct(context.Background(), AssistantActInput{UserMessage: "start task 5"})

	require.NoError(t, err)
	assert.Equal(t, ChatActionStart, out.Action)
	assert.EqualValues(t, 5, out.TaskID)
}

func TestClient_AuditWriteFailureDoesNotFailCall(t *testing.T) {
	model := &MockLanguageModel{Responses: []MockResponse{
		{Text: `{"action": "chat", "reply": "hi"}`},
	}}
	audit := &fakeAuditLog{fails: 2}
	c := NewClient(model, audit, Config{ModelID: "m", MaxTokens: 100}, fastRetryConfig())

	out, err := c.AssistantAct(context.Background(), AssistantActInput{UserMessage: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "hi", out.Reply)
	assert.Equal(t, 1, audit.rowCount())
}

func TestClient_WritesCallerSuppliedCorrelationID(t *testing.T) {
	model := &MockLanguageModel{Responses: []MockResponse{
		{Text: `{"action": "chat", "reply": "hi"}`},
	}}
	audit := &fakeAuditLog{}
	c := NewClient(model, audit, Config{ModelID: "m", MaxTokens: 100}, fastRetryConfig())

	ctx := WithCorrelationID(context.Background(), "chat-turn-42")
	_, err := c.AssistantAct(ctx, AssistantActInput{UserMessage: "hello"})

	require.NoError(t, err)
	require.Len(t, audit.correlationIDs, 1)
	assert.Equal(t, "chat-turn-42", audit.correlationIDs[0])
}

func TestClient_GeneratesCorrelationIDWhenNoneSupplied(t *testing.T) {
	model := &MockLanguageModel{Responses: []MockResponse{
		{Text: `{"assignments": []}`},
	}}
	audit := &fakeAuditLog{}
	c := NewClient(model, audit, Config{ModelID: "m", MaxTokens: 100}, fastRetryConfig())

	_, err := c.Prioritize(context.Background(), PrioritizeInput{})

	require.NoError(t, err)
	require.Len(t, audit.correlationIDs, 1)
	assert.NotEmpty(t, audit.correlationIDs[0])
}

func TestExtractJSON_StripsCodeFenceAndProse(t *testing.T) {
	raw := "Here you go:\n```json\n{\"action\": \"chat\", \"reply\": \"ok\"}\n```\nthanks"
	assert.Equal(t, `{"action": "chat", "reply": "ok"}`, extractJSON(raw))
}
