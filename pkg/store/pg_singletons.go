package store

import (
	stdsql "database/sql"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tom-doerr/dspy-scheduling/pkg/models"
)

type pgContextRepo struct {
	db *stdsql.DB
}

func (r *pgContextRepo) GetOrCreate(ctx context.Context) (*models.GlobalContext, error) {
	var c models.GlobalContext
	row := r.db.QueryRowContext(ctx, `SELECT context, updated_at FROM global_context WHERE id = 1`)
	err := row.Scan(&c.Context, &c.UpdatedAt)
	if errors.Is(err, stdsql.ErrNoRows) {
		row = r.db.QueryRowContext(ctx, `INSERT INTO global_context (id, context) VALUES (1, '') ON CONFLICT (id) DO UPDATE SET id = 1 RETURNING context, updated_at`)
		if err := row.Scan(&c.Context, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("create global context: %w", err)
		}
		return &c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get global context: %w", err)
	}
	return &c, nil
}

func (r *pgContextRepo) Update(ctx context.Context, text string) (*models.GlobalContext, error) {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO global_context (id, context, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET context = EXCLUDED.context, updated_at = EXCLUDED.updated_at
		RETURNING context, updated_at`, text, now)
	var c models.GlobalContext
	if err := row.Scan(&c.Context, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update global context: %w", err)
	}
	return &c, nil
}

type pgSettingsRepo struct {
	db *stdsql.DB
}

func (r *pgSettingsRepo) GetOrCreate(ctx context.Context) (*models.Settings, error) {
	var s models.Settings
	row := r.db.QueryRowContext(ctx, `SELECT model_id, max_tokens, updated_at FROM settings WHERE id = 1`)
	err := row.Scan(&s.ModelID, &s.MaxTokens, &s.UpdatedAt)
	if errors.Is(err, stdsql.ErrNoRows) {
		row = r.db.QueryRowContext(ctx, `INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO UPDATE SET id = 1 RETURNING model_id, max_tokens, updated_at`)
		if err := row.Scan(&s.ModelID, &s.MaxTokens, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("create settings: %w", err)
		}
		return &s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

func (r *pgSettingsRepo) Update(ctx context.Context, modelID string, maxTokens int) (*models.Settings, error) {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO settings (id, model_id, max_tokens, updated_at) VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET model_id = EXCLUDED.model_id, max_tokens = EXCLUDED.max_tokens, updated_at = EXCLUDED.updated_at
		RETURNING model_id, max_tokens, updated_at`, modelID, maxTokens, now)
	var s models.Settings
	if err := row.Scan(&s.ModelID, &s.MaxTokens, &s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return &s, nil
}

type pgChatRepo struct {
	db *stdsql.DB
}

func (r *pgChatRepo) Create(ctx context.Context, userMessage, assistantResponse, correlationID string) (*models.ChatMessage, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (user_message, assistant_response, correlation_id) VALUES ($1, $2, $3)
		RETURNING id, user_message, assistant_response, correlation_id, created_at`, userMessage, assistantResponse, correlationID)
	var m models.ChatMessage
	if err := row.Scan(&m.ID, &m.UserMessage, &m.AssistantResponse, &m.CorrelationID, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("create chat message: %w", err)
	}
	return &m, nil
}

func (r *pgChatRepo) GetRecent(ctx context.Context, limit int) ([]*models.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_message, assistant_response, correlation_id, created_at FROM chat_messages ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent chat messages: %w", err)
	}
	defer rows.Close()

	var out []*models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserMessage, &m.AssistantResponse, &m.CorrelationID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *pgChatRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages`)
	if err != nil {
		return fmt.Errorf("delete all chat messages: %w", err)
	}
	return nil
}

func (r *pgChatRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE created_at < now() - ($1 || ' days')::interval`, days)
	if err != nil {
		return 0, fmt.Errorf("delete old chat messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type pgLLMCallRepo struct {
	db *stdsql.DB
}

func (r *pgLLMCallRepo) Create(ctx context.Context, moduleName, inputs, outputs, correlationID string, durationMS int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO llm_calls (module_name, inputs, outputs, correlation_id, duration_ms) VALUES ($1, $2, $3, $4, $5)`,
		moduleName, inputs, outputs, correlationID, durationMS)
	if err != nil {
		return fmt.Errorf("create llm call: %w", err)
	}
	return nil
}

func (r *pgLLMCallRepo) GetLatest(ctx context.Context, limit int) ([]*models.LLMCall, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, module_name, inputs, outputs, correlation_id, duration_ms, created_at FROM llm_calls ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("get latest llm calls: %w", err)
	}
	defer rows.Close()

	var out []*models.LLMCall
	for rows.Next() {
		var c models.LLMCall
		if err := rows.Scan(&c.ID, &c.ModuleName, &c.Inputs, &c.Outputs, &c.CorrelationID, &c.DurationMS, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan llm call: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *pgLLMCallRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM llm_calls WHERE created_at < now() - ($1 || ' days')::interval`, days)
	if err != nil {
		return 0, fmt.Errorf("delete old llm calls: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
