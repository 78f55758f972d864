// Package api exposes the task service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cicd-demo/pkg/task"
)

// TaskService is the part of task.Service the HTTP layer depends on.
type TaskService interface {
	FindAll(ctx context.Context) ([]task.Task, error)
	FindByID(ctx context.Context, id int64) (task.Task, bool, error)
	FindByStatus(ctx context.Context, status task.Status) ([]task.Task, error)
	FindActive(ctx context.Context) ([]task.Task, error)
	Create(ctx context.Context, t task.Task) (task.Task, error)
	Update(ctx context.Context, id int64, patch task.Task) (task.Task, bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Statistics(ctx context.Context) (task.Stats, error)
}

// Info describes the running application on / , /health and /info.
type Info struct {
	Name        string
	Version     string
	Description string
}

// Server is the HTTP API server.
type Server struct {
	tasks   TaskService
	info    Info
	log     *slog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a Server. allowedOrigins configures CORS on /api/tasks; "*"
// allows any origin. A nil logger discards log output.
func New(tasks TaskService, info Info, allowedOrigins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		tasks: tasks,
		info:  info,
		log:   logger,
		mux:   http.NewServeMux(),
	}
	s.routes()

	var h http.Handler = s.mux
	h = cors(allowedOrigins, h)
	h = s.accessLog(h)
	h = requestID(h)
	h = s.recoverer(h)
	s.handler = h
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// System
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /info", s.handleInfo)

	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/active", s.handleTaskActive)
	s.mux.HandleFunc("GET /api/tasks/stats", s.handleTaskStats)
	s.mux.HandleFunc("GET /api/tasks/status/{status}", s.handleTaskByStatus)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PUT /api/tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleTaskDelete)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write json", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a service error to a response: validation failures are the
// client's fault, everything else is logged and hidden behind a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, task.ErrInvalidTask) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestIDFrom(r.Context()),
		"error", err,
	)
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}
