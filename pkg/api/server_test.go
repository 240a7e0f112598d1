package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tom-doerr/dspy-scheduling/pkg/api"
	"github.com/tom-doerr/dspy-scheduling/pkg/chat"
	"github.com/tom-doerr/dspy-scheduling/pkg/llm"
	"github.com/tom-doerr/dspy-scheduling/pkg/retention"
	"github.com/tom-doerr/dspy-scheduling/pkg/store/memstore"
	"github.com/tom-doerr/dspy-scheduling/pkg/taskengine"
)

func init() { gin.SetMode(gin.TestMode) }

type stubModel struct {
	assistantOut llm.AssistantActOutput
}

func (s *stubModel) ScheduleTimeslot(ctx context.Context, in llm.ScheduleTimeslotInput) (llm.ScheduleTimeslotOutput, error) {
	return llm.ScheduleTimeslotOutput{}, nil
}

func (s *stubModel) Prioritize(ctx context.Context, in llm.PrioritizeInput) (llm.PrioritizeOutput, error) {
	return llm.PrioritizeOutput{}, nil
}

func (s *stubModel) AssistantAct(ctx context.Context, in llm.AssistantActInput) (llm.AssistantActOutput, error) {
	return s.assistantOut, nil
}

func newTestServer() *api.Server {
	s := memstore.New()
	engine := taskengine.New(s, taskengine.FallbackConfig{StartHour: 9, DurationHours: 1}, nil)
	model := &stubModel{assistantOut: llm.AssistantActOutput{Action: llm.ChatActionChat, Reply: "ok"}}
	orch := chat.New(s, model, nil)
	ret := retention.New(s, retention.Config{ChatRetentionDays: 90, LLMCallRetentionDays: 30, Interval: time.Hour})
	return api.NewServer(s, engine, orch, ret)
}

func doRequest(t *testing.T, srv *api.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCreateAndGetTask(t *testing.T) {
	srv := newTestServer()

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/tasks", api.CreateTaskRequest{Title: "write report"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := int64(created["ID"].(float64))

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/tasks", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "write report")

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/tasks/"+strconv.FormatInt(id, 10)+"/start", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTask_EmptyTitleIsBadRequest(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/tasks", api.CreateTaskRequest{Title: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTask_UnknownIDIsNotFound(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/tasks/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/chat", api.ChatRequest{Message: "hello"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestRetentionTrimEndpoint(t *testing.T) {
	srv := newTestServer()
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/retention/trim", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

