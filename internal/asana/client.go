package asana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the Asana REST API root.
const DefaultBaseURL = "https://app.asana.com/api/1.0"

// ErrMissingToken is returned when no personal access token is configured.
var ErrMissingToken = errors.New("asana access token is required")

// APIError is a non-2xx answer from Asana.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("asana API error (%d): %s", e.StatusCode, e.Body)
}

// Config holds what the client needs to reach a workspace.
type Config struct {
	BaseURL     string
	AccessToken string
	WorkspaceID string
	ProjectID   string // default project for new tasks
	Timeout     time.Duration
}

// Client talks to the Asana REST API.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config) (*Client, error) {
	if config.AccessToken == "" {
		return nil, ErrMissingToken
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// DefaultProject returns the project new tasks go to when none is given.
func (c *Client) DefaultProject() string {
	return c.config.ProjectID
}

// Task is the subset of task fields the agent works with.
type Task struct {
	GID          string  `json:"gid"`
	Name         string  `json:"name"`
	DueOn        *string `json:"due_on"`
	Completed    bool    `json:"completed"`
	CreatedAt    string  `json:"created_at,omitempty"`
	ResourceType string  `json:"resource_type,omitempty"`
}

// Project is a project in the workspace.
type Project struct {
	GID          string  `json:"gid"`
	Name         string  `json:"name"`
	DueOn        *string `json:"due_on,omitempty"`
	ResourceType string  `json:"resource_type,omitempty"`
}

// TaskUpdate carries the fields update_task may change. Nil fields are
// left alone.
type TaskUpdate struct {
	Completed *bool   `json:"completed,omitempty"`
	DueOn     *string `json:"due_on,omitempty"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) CreateTask(ctx context.Context, name, projectGID, dueOn string) (*Task, error) {
	if projectGID == "" {
		projectGID = c.config.ProjectID
	}
	body := map[string]interface{}{"name": name}
	if dueOn != "" {
		body["due_on"] = dueOn
	}
	if projectGID != "" {
		body["projects"] = []string{projectGID}
	} else if c.config.WorkspaceID != "" {
		body["workspace"] = c.config.WorkspaceID
	}

	var task Task
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, body, &task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &task, nil
}

// Projects lists up to 50 unarchived projects in the workspace.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	q := url.Values{}
	q.Set("workspace", c.config.WorkspaceID)
	q.Set("limit", "50")
	q.Set("archived", "false")

	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/projects", q, nil, &projects); err != nil {
		return nil, fmt.Errorf("get projects: %w", err)
	}
	return projects, nil
}

func (c *Client) CreateProject(ctx context.Context, name, dueOn string) (*Project, error) {
	body := map[string]interface{}{
		"name":      name,
		"workspace": c.config.WorkspaceID,
	}
	if dueOn != "" {
		body["due_on"] = dueOn
	}

	var project Project
	if err := c.do(ctx, http.MethodPost, "/projects", nil, body, &project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &project, nil
}

// Tasks lists up to 50 tasks of a project with their creation and due dates.
func (c *Client) Tasks(ctx context.Context, projectGID string) ([]Task, error) {
	if projectGID == "" {
		return nil, errors.New("get tasks: project gid is required")
	}
	q := url.Values{}
	q.Set("project", projectGID)
	q.Set("limit", "50")
	q.Set("opt_fields", "created_at,name,due_on,completed")

	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &tasks); err != nil {
		return nil, fmt.Errorf("get tasks: %w", err)
	}
	return tasks, nil
}

func (c *Client) Task(ctx context.Context, taskGID string) (*Task, error) {
	q := url.Values{}
	q.Set("opt_fields", "created_at,name,due_on,completed")

	var task Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskGID), q, nil, &task); err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskGID, err)
	}
	return &task, nil
}

func (c *Client) UpdateTask(ctx context.Context, taskGID string, update TaskUpdate) (*Task, error) {
	if update.Completed == nil && update.DueOn == nil {
		return nil, errors.New("update task: nothing to update, set completed and/or due_on")
	}
	var task Task
	if err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(taskGID), nil, update, &task); err != nil {
		return nil, fmt.Errorf("update task %s: %w", taskGID, err)
	}
	return &task, nil
}

func (c *Client) DeleteTask(ctx context.Context, taskGID string) error {
	if err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(taskGID), nil, nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", taskGID, err)
	}
	return nil
}

// do sends one request. Request bodies are wrapped in, and responses
// unwrapped from, Asana's {"data": ...} envelope.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if in != nil {
		body, err := json.Marshal(map[string]interface{}{"data": in})
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
