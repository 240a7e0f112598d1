package store

import (
	stdsql "database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/tom-doerr/dspy-scheduling/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds the Postgres connection settings, grounded on
// pkg/database.Config.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStore is the production Store, backed by database/sql over the
// pgx driver. It carries no ORM layer (see DESIGN.md for why ent was
// dropped): every repository below issues hand-written SQL.
type PostgresStore struct {
	db *stdsql.DB
}

// Open connects, runs embedded migrations, and returns a ready PostgresStore.
func Open(cfg Config) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// runMigrations applies every pending embedded migration, grounded on
// pkg/database.runMigrations.
func runMigrations(db *stdsql.DB, databaseName string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	// Only close the source half; closing the migrate instance would close
	// the shared *sql.DB out from under the store.
	return sourceDriver.Close()
}

func (s *PostgresStore) Tasks() TaskRepository        { return &pgTaskRepo{db: s.db} }
func (s *PostgresStore) Context() ContextRepository   { return &pgContextRepo{db: s.db} }
func (s *PostgresStore) Settings() SettingsRepository { return &pgSettingsRepo{db: s.db} }
func (s *PostgresStore) Chat() ChatRepository         { return &pgChatRepo{db: s.db} }
func (s *PostgresStore) LLMCalls() LLMCallRepository  { return &pgLLMCallRepo{db: s.db} }
func (s *PostgresStore) Close() error                 { return s.db.Close() }

// DB exposes the underlying connection for health checks, mirroring the
// teacher's Client.DB().
func (s *PostgresStore) DB() *stdsql.DB { return s.db }

const taskColumns = `id, title, description, context, due_date, scheduled_start, scheduled_end,
	actual_start, actual_end, priority, completed, needs_scheduling, created_at`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	var t models.Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Context, &t.DueDate, &t.ScheduledStart, &t.ScheduledEnd,
		&t.ActualStart, &t.ActualEnd, &t.Priority, &t.Completed, &t.NeedsScheduling, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
