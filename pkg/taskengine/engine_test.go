package taskengine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tom-doerr/dspy-scheduling/pkg/store"
	"github.com/tom-doerr/dspy-scheduling/pkg/store/memstore"
	"github.com/tom-doerr/dspy-scheduling/pkg/taskengine"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateTask_AppliesFallbackWindowBeforeStartHour(t *testing.T) {
	s := memstore.New()
	now := time.Date(2026, 7, 30, 6, 0, 0, 0, time.UTC)
	e := taskengine.New(s, taskengine.FallbackConfig{StartHour: 9, DurationHours: 1}, fixedNow(now))

	task, err := e.CreateTask(context.Background(), "write report", "", "", nil)

	require.NoError(t, err)
	require.NotNil(t, task.ScheduledStart)
	assert.Equal(t, 9, task.ScheduledStart.Hour())
	assert.True(t, task.NeedsScheduling)
	assert.Equal(t, task.ScheduledStart.Add(time.Hour), *task.ScheduledEnd)
}

func TestCreateTask_RollsToTomorrowWhenStartHourPassed(t *testing.T) {
	s := memstore.New()
	now := time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)
	e := taskengine.New(s, taskengine.FallbackConfig{StartHour: 9, DurationHours: 1}, fixedNow(now))

	task, err := e.CreateTask(context.Background(), "write report", "", "", nil)

	require.NoError(t, err)
	assert.Equal(t, 31, task.ScheduledStart.Day())
}

func TestCreateTask_RejectsEmptyTitle(t *testing.T) {
	s := memstore.New()
	e := taskengine.New(s, taskengine.FallbackConfig{StartHour: 9, DurationHours: 1}, nil)

	_, err := e.CreateTask(context.Background(), "", "", "", nil)

	require.ErrorIs(t, err, taskengine.ErrTitleRequired)
}

func TestCreateTask_RejectsOverlongTitle(t *testing.T) {
	s := memstore.New()
	e := taskengine.New(s, taskengine.FallbackConfig{StartHour: 9, DurationHours: 1}, nil)

	_, err := e.CreateTask(context.Background(), strings.Repeat("x", 201), "", "", nil)

	require.ErrorIs(t, err, taskengine.ErrTitleTooLong)
}

func TestStartTask_ConflictSurfacesStoreError(t *testing.T) {
	s := memstore.New()
	e := taskengine.New(s, taskengine.FallbackConfig{StartHour: 9, DurationHours: 1}, nil)
	ctx := context.Background()

	a, err := e.CreateTask(ctx, "a", "", "", nil)
	require.NoError(t, err)
	b, err := e.CreateTask(ctx, "b", "", "", nil)
	require.NoError(t, err)

	_, err = e.StartTask(ctx, a.ID)
	require.NoError(t, err)

	_, err = e.StartTask(ctx, b.ID)
	require.Error(t, err)
	_, ok := store.AsConflict(err)
	assert.True(t, ok)
}

func TestDeleteTask_UnknownIDReturnsNotFound(t *testing.T) {
	s := memstore.New()
	e := taskengine.New(s, taskengine.FallbackConfig{StartHour: 9, DurationHours: 1}, nil)

	err := e.DeleteTask(context.Background(), 999)

	require.ErrorIs(t, err, store.ErrNotFound)
}
