// Package api exposes the board store over HTTP and provides the matching
// client backend.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/thenoetrevino/livekanban/internal/database"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// HeaderActor carries the id of the user making a change.
const HeaderActor = "X-Actor-ID"

// ProjectStore lists projects.
type ProjectStore interface {
	GetAll(ctx context.Context) ([]models.ProjectSummary, error)
}

// TaskStore reads and writes tasks on behalf of an actor.
type TaskStore interface {
	GetByProject(ctx context.Context, projectID string) ([]models.Task, error)
	Create(ctx context.Context, actor string, in database.TaskInput) (*models.Task, error)
	Update(ctx context.Context, actor, taskID string, in database.TaskInput) (*models.Task, error)
	MoveToColumn(ctx context.Context, actor, taskID string, column models.ColumnName) error
}

// Server serves the board API.
type Server struct {
	echo     *echo.Echo
	projects ProjectStore
	tasks    TaskStore
	logger   *slog.Logger
	metrics  func() any
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the request logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithHubMetrics serves the result of fn on GET /api/hub/metrics.
func WithHubMetrics(fn func() any) ServerOption {
	return func(s *Server) { s.metrics = fn }
}

type errorResponse struct {
	Error string `json:"error"`
}

type columnRequest struct {
	Column string `json:"column"`
}

type taskRequest struct {
	ProjectID    string     `json:"project_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Priority     string     `json:"priority,omitempty"`
	Status       string     `json:"status,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	AssigneeID   string     `json:"assignee_id,omitempty"`
	AssigneeName string     `json:"assignee_name,omitempty"`
	Column       string     `json:"column,omitempty"`
}

func (r taskRequest) input() database.TaskInput {
	return database.TaskInput{
		ProjectID:    r.ProjectID,
		Name:         r.Name,
		Description:  r.Description,
		Priority:     models.Priority(r.Priority),
		Status:       r.Status,
		DueDate:      r.DueDate,
		AssigneeID:   r.AssigneeID,
		AssigneeName: r.AssigneeName,
		Column:       models.ColumnName(r.Column),
	}
}

// NewServer wires all API routes.
func NewServer(projects ProjectStore, tasks TaskStore, opts ...ServerOption) *Server {
	s := &Server{
		echo:     echo.New(),
		projects: projects,
		tasks:    tasks,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelDebug
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			s.logger.Log(context.Background(), level, "http request",
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "error", v.Error)
			return nil
		},
	}))

	e.GET("/healthz", healthz)
	e.GET("/api/projects", s.getProjects)
	e.GET("/api/projects/:id/tasks", s.getTasks)
	e.POST("/api/tasks", s.createTask)
	e.PUT("/api/tasks/:id", s.updateTask)
	e.PUT("/api/tasks/:id/column", s.moveTask)
	if s.metrics != nil {
		e.GET("/api/hub/metrics", s.hubMetrics)
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("http api listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) getProjects(c echo.Context) error {
	projects, err := s.projects.GetAll(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, projects)
}

func (s *Server) getTasks(c echo.Context) error {
	tasks, err := s.tasks.GetByProject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) createTask(c echo.Context) error {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid task payload"})
	}
	task, err := s.tasks.Create(c.Request().Context(), actorOf(c), req.input())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) updateTask(c echo.Context) error {
	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid task payload"})
	}
	task, err := s.tasks.Update(c.Request().Context(), actorOf(c), c.Param("id"), req.input())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) moveTask(c echo.Context) error {
	var req columnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid column payload"})
	}
	err := s.tasks.MoveToColumn(c.Request().Context(), actorOf(c), c.Param("id"), models.ColumnName(req.Column))
	if err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) hubMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.metrics())
}

func actorOf(c echo.Context) string {
	return c.Request().Header.Get(HeaderActor)
}

// fail maps store errors to status codes. The message is shown to users as
// the reason a change was rejected.
func (s *Server) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrTaskNotFound), errors.Is(err, database.ErrProjectNotFound):
		status = http.StatusNotFound
	default:
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}
