package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"teamboard/internal/models"
)

// HeaderSupplier returns headers to attach to every request. The auth
// collaborator owns credentials; the client only forwards what it is given.
type HeaderSupplier func() http.Header

// BearerToken returns a HeaderSupplier sending a static bearer token.
func BearerToken(token string) HeaderSupplier {
	return func() http.Header {
		h := http.Header{}
		if token != "" {
			h.Set("Authorization", "Bearer "+token)
		}
		return h
	}
}

// Client talks to the teamboard server. All list responses use the wrapped
// shape with a named collection field ({"tasks": [...]}); single entities are
// bare objects; error bodies are {"error": "...", "field_errors": {...}}.
type Client struct {
	base    string
	http    *http.Client
	headers HeaderSupplier
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client (used in tests and to
// apply a transport timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client for the API rooted at base, e.g. "http://host:5000/api".
func New(base string, headers HeaderSupplier, opts ...Option) *Client {
	c := &Client{
		base:    base,
		http:    &http.Client{Timeout: 30 * time.Second},
		headers: headers,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorBody is the server's error response shape.
type errorBody struct {
	Error       string            `json:"error"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// do issues a request and decodes the response into out (skipped when out is
// nil or the server answers 204).
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.headers != nil {
		for k, vs := range c.headers() {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	c.log.Info("api request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("api request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil && eb.Error != "" {
			msg = eb.Error
		}
		c.log.Error("api error response", "method", method, "path", path,
			"request_id", requestID, "status", resp.StatusCode, "message", msg)
		return &ServerError{StatusCode: resp.StatusCode, Message: msg, FieldErrors: eb.FieldErrors}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response body: %v", err)}
		}
	}
	return nil
}

// ListProjects returns all projects visible to the current user.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var resp struct {
		Projects []models.Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// GetProject retrieves a project by ID.
func (c *Client) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	p := &models.Project{}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d", id), nil, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateProject creates a new project and returns the server's copy.
func (c *Client) CreateProject(ctx context.Context, name, description string) (*models.Project, error) {
	body := map[string]string{"name": name, "description": description}
	p := &models.Project{}
	if err := c.do(ctx, http.MethodPost, "/projects", body, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProject replaces a project's name and description.
func (c *Client) UpdateProject(ctx context.Context, id int64, name, description string) (*models.Project, error) {
	body := map[string]string{"name": name, "description": description}
	p := &models.Project{}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/projects/%d", id), body, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProject deletes a project. The server cascades to its tasks and
// messages.
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/projects/%d", id), nil, nil)
}

// ListTasks returns all tasks for a project.
func (c *Client) ListTasks(ctx context.Context, projectID int64) ([]models.Task, error) {
	var resp struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/tasks", projectID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// CreateTask creates a task under a project.
func (c *Client) CreateTask(ctx context.Context, projectID int64, title, description string) (*models.Task, error) {
	body := map[string]string{"title": title, "description": description}
	t := &models.Task{}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/tasks", projectID), body, t); err != nil {
		return nil, err
	}
	return t, nil
}

// TaskPatch holds the fields a PATCH may change. Nil fields are omitted so the
// server leaves them untouched.
type TaskPatch struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Status      *models.Status `json:"status,omitempty"`
	AssigneeID  *int64         `json:"assignee_id,omitempty"`
	DueDate     *time.Time     `json:"due_date,omitempty"`
}

// PatchTask applies a partial update to a task.
func (c *Client) PatchTask(ctx context.Context, id int64, patch TaskPatch) (*models.Task, error) {
	t := &models.Task{}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tasks/%d", id), patch, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListMessages returns all messages for a project.
func (c *Client) ListMessages(ctx context.Context, projectID int64) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/messages", projectID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// CreateMessage posts a message to a project.
func (c *Client) CreateMessage(ctx context.Context, projectID int64, content string) (*models.Message, error) {
	body := map[string]string{"content": content}
	m := &models.Message{}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/projects/%d/messages", projectID), body, m); err != nil {
		return nil, err
	}
	return m, nil
}
