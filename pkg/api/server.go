// Package api provides the HTTP surface over the Task Engine, Chat
// Orchestrator, and Retention service, grounded in cmd/tarsy/main.go's
// gin wiring and the Server/setupRoutes shape of the original
// echo-based pkg/api (adapted to gin per this module's go.mod).
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tom-doerr/dspy-scheduling/pkg/chat"
	"github.com/tom-doerr/dspy-scheduling/pkg/retention"
	"github.com/tom-doerr/dspy-scheduling/pkg/store"
	"github.com/tom-doerr/dspy-scheduling/pkg/taskengine"
	"github.com/tom-doerr/dspy-scheduling/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	store     store.Store
	engine    *taskengine.Engine
	orch      *chat.Orchestrator
	retention *retention.Service
}

// NewServer builds a Server wired to the core components and sets up
// routes immediately, mirroring the original NewServer(cfg, ...) +
// s.setupRoutes() pattern.
func NewServer(s store.Store, engine *taskengine.Engine, orch *chat.Orchestrator, ret *retention.Service) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), securityHeaders())

	srv := &Server{router: router, store: s, engine: engine, orch: orch, retention: ret}
	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/tasks", s.listTasksHandler)
		v1.POST("/tasks", s.createTaskHandler)
		v1.GET("/tasks/:id", s.getTaskHandler)
		v1.DELETE("/tasks/:id", s.deleteTaskHandler)
		v1.POST("/tasks/:id/start", s.startTaskHandler)
		v1.POST("/tasks/:id/stop", s.stopTaskHandler)
		v1.POST("/tasks/:id/complete", s.completeTaskHandler)

		v1.GET("/context", s.getContextHandler)
		v1.PUT("/context", s.updateContextHandler)

		v1.GET("/settings", s.getSettingsHandler)
		v1.PUT("/settings", s.updateSettingsHandler)

		v1.POST("/chat", s.chatHandler)
		v1.GET("/chat", s.chatHistoryHandler)

		v1.GET("/inference-log", s.inferenceLogHandler)

		v1.POST("/retention/trim", s.retentionTrimHandler)
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: version.Full()})
}

// ServeHTTP satisfies http.Handler directly off the gin router, letting
// tests exercise routes with httptest without a real listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run starts the HTTP server and blocks until ctx is cancelled, mirroring
// cmd/tarsy/main.go's router.Run(":"+httpPort) but with graceful shutdown.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
