package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/thenoetrevino/livekanban/internal/database"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// APIError is a non-2xx response. Message is the server's reason.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to a Server. It implements the board backend and the task
// save operations of the host form.
type Client struct {
	BaseURL string
	Actor   string
	HTTP    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTP = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.HTTP.Timeout = d
		}
	}
}

// NewClient creates a client for baseURL acting as actor.
func NewClient(baseURL, actor string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Actor:   actor,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchProjects lists projects.
func (c *Client) FetchProjects(ctx context.Context) ([]models.ProjectSummary, error) {
	var projects []models.ProjectSummary
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// FetchTasks returns the tasks of a project.
func (c *Client) FetchTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	path := "/api/projects/" + url.PathEscape(projectID) + "/tasks"
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// PersistColumnChange moves a task.
func (c *Client) PersistColumnChange(ctx context.Context, taskID string, target models.ColumnName) error {
	path := "/api/tasks/" + url.PathEscape(taskID) + "/column"
	return c.do(ctx, http.MethodPut, path, columnRequest{Column: string(target)}, nil)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in database.TaskInput) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", requestFor(in), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask updates a task.
func (c *Client) UpdateTask(ctx context.Context, taskID string, in database.TaskInput) (*models.Task, error) {
	var task models.Task
	path := "/api/tasks/" + url.PathEscape(taskID)
	if err := c.do(ctx, http.MethodPut, path, requestFor(in), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func requestFor(in database.TaskInput) taskRequest {
	return taskRequest{
		ProjectID:    in.ProjectID,
		Name:         in.Name,
		Description:  in.Description,
		Priority:     string(in.Priority),
		Status:       in.Status,
		DueDate:      in.DueDate,
		AssigneeID:   in.AssigneeID,
		AssigneeName: in.AssigneeName,
		Column:       string(in.Column),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Actor != "" {
		req.Header.Set(HeaderActor, c.Actor)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
