// Package retention periodically trims chat transcript and LLM-call audit
// rows past their configured horizon, grounded on pkg/cleanup.Service's
// Start/Stop/run idle-loop shape.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/tom-doerr/dspy-scheduling/pkg/store"
)

// Config names how many days of chat transcript and LLM-call audit rows to
// retain, and how often the trim loop runs.
type Config struct {
	ChatRetentionDays    int
	LLMCallRetentionDays int
	Interval             time.Duration
}

// Service is the background retention loop. Constructed with its Store
// dependency injected.
type Service struct {
	store  store.Store
	config Config

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Service.
func New(s store.Store, cfg Config) *Service {
	return &Service{store: s, config: cfg}
}

// Start launches the background trim loop. Calling Start twice without an
// intervening Stop is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("retention service started",
		"chat_retention_days", s.config.ChatRetentionDays,
		"llm_call_retention_days", s.config.LLMCallRetentionDays,
		"interval", s.config.Interval)
}

// Stop signals the loop to exit and waits for it to finish. Calling Stop
// before Start, or twice, is a no-op.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

// RunAll runs one trim pass immediately, exported so the HTTP API's
// POST /api/v1/retention/trim can invoke it outside the ticker loop.
func (s *Service) RunAll(ctx context.Context) {
	s.runAll(ctx)
}

func (s *Service) runAll(ctx context.Context) {
	s.trimChat(ctx)
	s.trimLLMCalls(ctx)
}

func (s *Service) trimChat(ctx context.Context) {
	count, err := s.store.Chat().DeleteOlderThan(ctx, s.config.ChatRetentionDays)
	if err != nil {
		slog.Error("retention: chat trim failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: trimmed chat messages", "count", count)
	}
}

func (s *Service) trimLLMCalls(ctx context.Context) {
	count, err := s.store.LLMCalls().DeleteOlderThan(ctx, s.config.LLMCallRetentionDays)
	if err != nil {
		slog.Error("retention: llm call trim failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: trimmed llm calls", "count", count)
	}
}
