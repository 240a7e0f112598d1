package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tom-doerr/dspy-scheduling/pkg/models"
)

func parseTaskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return id, true
}

// listTasksHandler handles GET /api/v1/tasks.
func (s *Server) listTasksHandler(c *gin.Context) {
	tasks, err := s.engine.GetAll(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// getTaskHandler handles GET /api/v1/tasks/:id.
func (s *Server) getTaskHandler(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	task, err := s.engine.GetByID(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// createTaskHandler handles POST /api/v1/tasks.
func (s *Server) createTaskHandler(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		t, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be RFC3339"})
			return
		}
		dueDate = &t
	}

	task, err := s.engine.CreateTask(c.Request.Context(), req.Title, req.Description, req.Context, dueDate)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// deleteTaskHandler handles DELETE /api/v1/tasks/:id.
func (s *Server) deleteTaskHandler(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	if err := s.engine.DeleteTask(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// startTaskHandler handles POST /api/v1/tasks/:id/start.
func (s *Server) startTaskHandler(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	task, err := s.engine.StartTask(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// stopTaskHandler handles POST /api/v1/tasks/:id/stop.
func (s *Server) stopTaskHandler(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	task, err := s.engine.StopTask(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// completeTaskHandler handles POST /api/v1/tasks/:id/complete.
func (s *Server) completeTaskHandler(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	task, err := s.engine.CompleteTask(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// getContextHandler handles GET /api/v1/context.
func (s *Server) getContextHandler(c *gin.Context) {
	gc, err := s.store.Context().GetOrCreate(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gc)
}

// updateContextHandler handles PUT /api/v1/context.
func (s *Server) updateContextHandler(c *gin.Context) {
	var req UpdateContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Context) > models.MaxGlobalContextLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "context exceeds maximum length"})
		return
	}
	gc, err := s.store.Context().Update(c.Request.Context(), req.Context)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gc)
}

// getSettingsHandler handles GET /api/v1/settings.
func (s *Server) getSettingsHandler(c *gin.Context) {
	settings, err := s.store.Settings().GetOrCreate(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// updateSettingsHandler handles PUT /api/v1/settings.
func (s *Server) updateSettingsHandler(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settings, err := s.store.Settings().Update(c.Request.Context(), req.ModelID, req.MaxTokens)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// chatHandler handles POST /api/v1/chat.
func (s *Server) chatHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := s.orch.Process(c.Request.Context(), req.Message)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// chatHistoryHandler handles GET /api/v1/chat.
func (s *Server) chatHistoryHandler(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	history, err := s.orch.GetHistory(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// inferenceLogHandler handles GET /api/v1/inference-log, exposing the
// LLM-call audit trail (spec §6.1, §4.5).
func (s *Server) inferenceLogHandler(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	calls, err := s.store.LLMCalls().GetLatest(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, calls)
}

// retentionTrimHandler handles POST /api/v1/retention/trim, running one
// retention pass on demand rather than waiting for the ticker.
func (s *Server) retentionTrimHandler(c *gin.Context) {
	s.retention.RunAll(c.Request.Context())
	c.JSON(http.StatusOK, RetentionTrimResponse{Status: "ok"})
}
