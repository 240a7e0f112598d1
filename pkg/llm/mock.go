package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/tom-doerr/dspy-scheduling/pkg/models"
)

var errNoMoreScriptedResponses = errors.New("llm: mock exhausted its scripted responses")

// MockLanguageModel is a deterministic, hand-written test double used by
// this package's own tests, following pkg/agent/scoring_agent_test.go's
// mockedController style rather than a mocking framework: a
// scripted response queue plus a call counter.
type MockLanguageModel struct {
	mu        sync.Mutex
	Responses []MockResponse
	Calls     []CompletionRequest
}

// MockResponse scripts one call's outcome: either Text (success) or Err.
type MockResponse struct {
	Text string
	Err  error
}

func (m *MockLanguageModel) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	idx := len(m.Calls) - 1
	if idx >= len(m.Responses) {
		return CompletionResponse{}, errNoMoreScriptedResponses
	}
	r := m.Responses[idx]
	if r.Err != nil {
		return CompletionResponse{}, r.Err
	}
	return CompletionResponse{Text: r.Text}, nil
}

func (m *MockLanguageModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// fakeAuditLog is a minimal in-memory store.LLMCallRepository used only by
// this package's tests, to assert the one-row-per-call audit invariant
// without pulling in the full store/memstore package.
type fakeAuditLog struct {
	mu             sync.Mutex
	rows           int
	fails          int
	correlationIDs []string
}

func (f *fakeAuditLog) Create(ctx context.Context, moduleName, inputs, outputs, correlationID string, durationMS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("fakeAuditLog: scripted failure")
	}
	f.rows++
	f.correlationIDs = append(f.correlationIDs, correlationID)
	return nil
}

func (f *fakeAuditLog) GetLatest(ctx context.Context, limit int) ([]*models.LLMCall, error) {
	return nil, nil
}

func (f *fakeAuditLog) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	return 0, nil
}

func (f *fakeAuditLog) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows
}
