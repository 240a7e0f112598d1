package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tom-doerr/dspy-scheduling/pkg/chat"
	"github.com/tom-doerr/dspy-scheduling/pkg/llm"
	"github.com/tom-doerr/dspy-scheduling/pkg/store/memstore"
)

type scriptedModel struct {
	out llm.AssistantActOutput
	err error
}

func (s *scriptedModel) ScheduleTimeslot(ctx context.Context, in llm.ScheduleTimeslotInput) (llm.ScheduleTimeslotOutput, error) {
	return llm.ScheduleTimeslotOutput{}, nil
}

func (s *scriptedModel) Prioritize(ctx context.Context, in llm.PrioritizeInput) (llm.PrioritizeOutput, error) {
	return llm.PrioritizeOutput{}, nil
}

func (s *scriptedModel) AssistantAct(ctx context.Context, in llm.AssistantActInput) (llm.AssistantActOutput, error) {
	return s.out, s.err
}

func TestProcess_CreateTaskActionCreatesTaskAndAppendsOneMessage(t *testing.T) {
	s := memstore.New()
	model := &scriptedModel{out: llm.AssistantActOutput{
		Action: llm.ChatActionCreateTask, TaskTitle: "buy milk", Reply: "Created a task for buying milk.",
	}}
	o := chat.New(s, model, nil)

	msg, err := o.Process(context.Background(), "remind me to buy milk")

	require.NoError(t, err)
	assert.Equal(t, "Created a task for buying milk.", msg.AssistantResponse)

	tasks, err := s.Tasks().GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "buy milk", tasks[0].Title)

	history, err := s.Chat().GetRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestProcess_PlainChatActionPerformsNoMutation(t *testing.T) {
	s := memstore.New()
	model := &scriptedModel{out: llm.AssistantActOutput{Action: llm.ChatActionChat, Reply: "Sure, happy to help."}}
	o := chat.New(s, model, nil)

	_, err := o.Process(context.Background(), "what's up")

	require.NoError(t, err)
	tasks, _ := s.Tasks().GetAll(context.Background())
	assert.Empty(t, tasks)
}

func TestProcess_ActionFailureAppendsNoteButDoesNotFailTurn(t *testing.T) {
	s := memstore.New()
	model := &scriptedModel{out: llm.AssistantActOutput{Action: llm.ChatActionStart, TaskID: 999, Reply: "Starting it now."}}
	o := chat.New(s, model, nil)

	msg, err := o.Process(context.Background(), "start that task")

	require.NoError(t, err)
	assert.Contains(t, msg.AssistantResponse, "Starting it now.")
	assert.Contains(t, msg.AssistantResponse, "Note:")
}

func TestProcess_ModelFailureStillAppendsOneMessage(t *testing.T) {
	s := memstore.New()
	model := &scriptedModel{err: errors.New("model unavailable")}
	o := chat.New(s, model, nil)

	_, err := o.Process(context.Background(), "hello")
	require.NoError(t, err)

	history, err := s.Chat().GetRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestProcess_TagsMessageWithNonEmptyCorrelationID(t *testing.T) {
	s := memstore.New()
	model := &scriptedModel{out: llm.AssistantActOutput{Action: llm.ChatActionChat, Reply: "hi"}}
	o := chat.New(s, model, nil)

	msg, err := o.Process(context.Background(), "hello")

	require.NoError(t, err)
	assert.NotEmpty(t, msg.CorrelationID)

	history, err := s.Chat().GetRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.CorrelationID, history[0].CorrelationID)
}

func TestProcess_UsesInjectedClock(t *testing.T) {
	s := memstore.New()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	model := &scriptedModel{out: llm.AssistantActOutput{Action: llm.ChatActionCreateTask, TaskTitle: "x", Reply: "ok"}}
	o := chat.New(s, model, func() time.Time { return fixed })

	_, err := o.Process(context.Background(), "add x")
	require.NoError(t, err)

	tasks, _ := s.Tasks().GetAll(context.Background())
	require.Len(t, tasks, 1)
	assert.Equal(t, fixed, tasks[0].CreatedAt)
}
