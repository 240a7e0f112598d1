package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tom-doerr/dspy-scheduling/pkg/models"
	"github.com/tom-doerr/dspy-scheduling/pkg/store"
)

func TestTaskRepository_StartEnforcesSingleActiveTask(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, err := s.Tasks().Create(ctx, &models.Task{Title: "a"})
	require.NoError(t, err)
	b, err := s.Tasks().Create(ctx, &models.Task{Title: "b"})
	require.NoError(t, err)

	_, err = s.Tasks().Start(ctx, a.ID, time.Now())
	require.NoError(t, err)

	_, err = s.Tasks().Start(ctx, b.ID, time.Now())
	require.Error(t, err)
	conflict, ok := store.AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, a.ID, conflict.ActiveTaskID)
}

func TestTaskRepository_StartOnGoneTask(t *testing.T) {
	s := New()
	_, err := s.Tasks().Start(context.Background(), 999, time.Now())
	require.ErrorIs(t, err, store.ErrGone)
}

func TestTaskRepository_StartTwiceIsIllegal(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, _ := s.Tasks().Create(ctx, &models.Task{Title: "a"})
	_, err := s.Tasks().Start(ctx, a.ID, time.Now())
	require.NoError(t, err)

	_, err = s.Tasks().Start(ctx, a.ID, time.Now())
	require.ErrorIs(t, err, store.ErrIllegalTransition)
}

func TestTaskRepository_CompleteRequiresActive(t *testing.T) {
	s := New()
	ctx := context.Background()
	a, _ := s.Tasks().Create(ctx, &models.Task{Title: "a"})

	_, err := s.Tasks().Complete(ctx, a.ID, time.Now())
	require.ErrorIs(t, err, store.ErrIllegalTransition)
}

func TestTaskRepository_UpdatePriorityOnUnknownIDIsNoop(t *testing.T) {
	s := New()
	err := s.Tasks().UpdatePriority(context.Background(), 42, 5)
	assert.NoError(t, err)
}

func TestTaskRepository_GetAllOrdersByPriorityThenDueDate(t *testing.T) {
	s := New()
	ctx := context.Background()
	soon := time.Now().Add(time.Hour)
	later := time.Now().Add(48 * time.Hour)

	low, _ := s.Tasks().Create(ctx, &models.Task{Title: "low", Priority: 1, DueDate: &later})
	high, _ := s.Tasks().Create(ctx, &models.Task{Title: "high", Priority: 9, DueDate: &soon})

	all, err := s.Tasks().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, high.ID, all[0].ID)
	assert.Equal(t, low.ID, all[1].ID)
}

func TestChatRepository_GetRecentIsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.Chat().Create(ctx, "u1", "a1", "corr-1")
	_, _ = s.Chat().Create(ctx, "u2", "a2", "corr-2")

	recent, err := s.Chat().GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "u2", recent[0].UserMessage)
}

func TestSettingsRepository_GetOrCreateIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	first, err := s.Settings().GetOrCreate(ctx)
	require.NoError(t, err)
	second, err := s.Settings().GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ModelID, second.ModelID)
}
