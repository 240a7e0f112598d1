package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tom-doerr/dspy-scheduling/pkg/store"
	"github.com/tom-doerr/dspy-scheduling/pkg/taskengine"
)

// writeServiceError maps a core-layer error to an HTTP status and JSON
// body, adapted from mapServiceError's echo.HTTPError return to gin's
// c.JSON idiom.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, taskengine.ErrTitleRequired),
		errors.Is(err, taskengine.ErrTitleTooLong),
		errors.Is(err, taskengine.ErrDescriptionTooLong),
		errors.Is(err, taskengine.ErrContextTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if store.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	if store.IsGone(err) {
		c.JSON(http.StatusGone, gin.H{"error": "task no longer exists"})
		return
	}
	if store.IsIllegalTransition(err) {
		c.JSON(http.StatusConflict, gin.H{"error": "illegal task state transition"})
		return
	}
	if conflict, ok := store.AsConflict(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":             "another task is already active",
			"active_task_id":    conflict.ActiveTaskID,
			"active_task_title": conflict.ActiveTaskTitle,
		})
		return
	}

	slog.Error("unexpected api error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
