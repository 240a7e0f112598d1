package reconciler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tom-doerr/dspy-scheduling/pkg/llm"
	"github.com/tom-doerr/dspy-scheduling/pkg/models"
	"github.com/tom-doerr/dspy-scheduling/pkg/reconciler"
	"github.com/tom-doerr/dspy-scheduling/pkg/store/memstore"
)

// fakeModel is a hand-written scripted fake of llm.Service, following the
// teacher's mockedController style rather than a mocking framework.
type fakeModel struct {
	scheduleOut     llm.ScheduleTimeslotOutput
	scheduleErr     error
	scheduleCalls   int
	prioritizeOut   llm.PrioritizeOutput
	prioritizeErr   error
	prioritizeCalls int
}

func (f *fakeModel) ScheduleTimeslot(ctx context.Context, in llm.ScheduleTimeslotInput) (llm.ScheduleTimeslotOutput, error) {
	f.scheduleCalls++
	return f.scheduleOut, f.scheduleErr
}

func (f *fakeModel) Prioritize(ctx context.Context, in llm.PrioritizeInput) (llm.PrioritizeOutput, error) {
	f.prioritizeCalls++
	return f.prioritizeOut, f.prioritizeErr
}

func (f *fakeModel) AssistantAct(ctx context.Context, in llm.AssistantActInput) (llm.AssistantActOutput, error) {
	return llm.AssistantActOutput{}, nil
}

func TestTick_SchedulesTaskNeedingScheduling(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	created, err := s.Tasks().Create(ctx, &models.Task{Title: "write report", NeedsScheduling: true})
	require.NoError(t, err)

	model := &fakeModel{scheduleOut: llm.ScheduleTimeslotOutput{Start: &start, End: &end}}
	r := reconciler.New(s, model, time.Hour, func() time.Time { return start.Add(-time.Hour) })

	r.Tick(ctx)

	updated, err := s.Tasks().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, updated.NeedsScheduling)
	require.NotNil(t, updated.ScheduledStart)
	assert.Equal(t, start, *updated.ScheduledStart)
	assert.Equal(t, 1, model.scheduleCalls)
}

func TestTick_RescheduleFailureKeepsExistingWindow(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	oldStart := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	oldEnd := oldStart.Add(time.Hour)

	created, err := s.Tasks().Create(ctx, &models.Task{Title: "write report"})
	require.NoError(t, err)
	require.NoError(t, s.Tasks().UpdateSchedule(ctx, created.ID, &oldStart, &oldEnd, false))

	model := &fakeModel{scheduleErr: assertErr{}}
	r := reconciler.New(s, model, time.Hour, func() time.Time { return oldEnd.Add(time.Hour) })

	r.Tick(ctx)

	updated, err := s.Tasks().GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.ScheduledStart)
	assert.Equal(t, oldStart, *updated.ScheduledStart)
}

func TestTick_ReprioritizesAfterScheduling(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	start := time.Now().Add(time.Hour)
	end := start.Add(time.Hour)

	created, err := s.Tasks().Create(ctx, &models.Task{Title: "t", NeedsScheduling: true})
	require.NoError(t, err)

	model := &fakeModel{
		scheduleOut:   llm.ScheduleTimeslotOutput{Start: &start, End: &end},
		prioritizeOut: llm.PrioritizeOutput{Assignments: []llm.PriorityAssignment{{TaskID: created.ID, Priority: 8}}},
	}
	r := reconciler.New(s, model, time.Hour, time.Now)

	r.Tick(ctx)

	updated, err := s.Tasks().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(8), updated.Priority)
	assert.Equal(t, 1, model.prioritizeCalls)
}

func TestTick_NoWorkSkipsPrioritize(t *testing.T) {
	s := memstore.New()
	model := &fakeModel{}
	r := reconciler.New(s, model, time.Hour, time.Now)

	r.Tick(context.Background())

	assert.Equal(t, 0, model.prioritizeCalls)
}

type assertErr struct{}

func (assertErr) Error() string { return "scheduling failed" }
