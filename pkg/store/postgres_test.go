package store_test

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tom-doerr/dspy-scheduling/pkg/models"
	"github.com/tom-doerr/dspy-scheduling/pkg/store"
)

// newTestStore spins up a disposable Postgres container (or points at
// CI_DATABASE_URL when set), applies migrations, and returns a ready
// *store.PostgresStore. Grounded on test/database/client.go's NewTestClient.
func newTestStore(t *testing.T) *store.PostgresStore {
	t.Helper()
	ctx := context.Background()

	if dsn := os.Getenv("CI_DATABASE_URL"); dsn != "" {
		cfg := parseDSN(t, dsn)
		s, err := store.Open(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("scheduling_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := parseDSN(t, connStr)
	s, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func parseDSN(t *testing.T, dsn string) store.Config {
	t.Helper()
	u, err := url.Parse(dsn)
	require.NoError(t, err)

	port, _ := strconv.Atoi(u.Port())
	password, _ := u.User.Password()
	return store.Config{
		Host:            u.Hostname(),
		Port:            port,
		User:            u.User.Username(),
		Password:        password,
		Database:        trimLeadingSlash(u.Path),
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

func TestPostgresStore_TaskLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Tasks().Create(ctx, &models.Task{Title: "write report", NeedsScheduling: true})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	fetched, err := s.Tasks().GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "write report", fetched.Title)

	started, err := s.Tasks().Start(ctx, created.ID, time.Now().UTC())
	require.NoError(t, err)
	require.NotNil(t, started.ActualStart)

	active, err := s.Tasks().GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, created.ID, active.ID)
}

func TestPostgresStore_StartEnforcesSingleActiveTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Tasks().Create(ctx, &models.Task{Title: "a"})
	require.NoError(t, err)
	b, err := s.Tasks().Create(ctx, &models.Task{Title: "b"})
	require.NoError(t, err)

	_, err = s.Tasks().Start(ctx, a.ID, time.Now().UTC())
	require.NoError(t, err)

	_, err = s.Tasks().Start(ctx, b.ID, time.Now().UTC())
	require.Error(t, err)
	conflict, ok := store.AsConflict(err)
	require.True(t, ok)
	require.Equal(t, a.ID, conflict.ActiveTaskID)
}

func TestPostgresStore_SettingsAndContextSingletons(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Settings().GetOrCreate(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, first.ModelID)

	updated, err := s.Settings().Update(ctx, "anthropic/claude-3-opus", 2048)
	require.NoError(t, err)
	require.Equal(t, "anthropic/claude-3-opus", updated.ModelID)

	gc, err := s.Context().Update(ctx, "focused on the Q3 launch")
	require.NoError(t, err)
	require.Equal(t, "focused on the Q3 launch", gc.Context)
}
