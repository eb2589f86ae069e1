// Package client provides an HTTP client for the tripflow server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhenwang/tripflow/internal/models"
)

// Client talks to the tripflow REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
// If baseURL is empty, uses TRIPFLOW_SERVER_URL env var or defaults to localhost:5000.
// Timeout can be configured via TRIPFLOW_CLIENT_TIMEOUT env var (default 10m for LLM-backed operations).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("TRIPFLOW_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := 10 * time.Minute // Default: 10 minutes for LLM operations
	if t := os.Getenv("TRIPFLOW_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SubmitResult is the response to a plan submission.
type SubmitResult struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TaskResponse is the task snapshot returned by status queries and the
// event stream.
type TaskResponse struct {
	TaskID      string              `json:"task_id"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	Result      models.PlanDocument `json:"result,omitempty"`
	Posters     []models.Poster     `json:"posters,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Error       string              `json:"error,omitempty"`
	SafetyCheck any                 `json:"safety_check_result,omitempty"`
}

// Terminal reports whether the task reached a final state.
func (t *TaskResponse) Terminal() bool {
	switch t.Status {
	case "completed", "failed", "rejected":
		return true
	}
	return false
}

// errorResponse is the server's error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// do sends a JSON request and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error: %s - %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(data))
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// SubmitPlan submits a planning request and returns the task handle.
func (c *Client) SubmitPlan(ctx context.Context, req models.TripRequest) (*SubmitResult, error) {
	var result SubmitResult
	if err := c.do(ctx, http.MethodPost, "/api/generate-plan", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TaskStatus fetches the current snapshot of a task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskResponse, error) {
	var result TaskResponse
	path := "/api/task-status?task_id=" + url.QueryEscape(taskID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateResult is the response to a plan edit.
type UpdateResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Posters []models.Poster `json:"posters,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// UpdateDailyPlans replaces the day plans of a task and re-renders posters.
func (c *Client) UpdateDailyPlans(ctx context.Context, taskID string, dailyPlans []any) (*UpdateResult, error) {
	body := map[string]any{
		"task_id":     taskID,
		"daily_plans": dailyPlans,
	}
	var result UpdateResult
	if err := c.do(ctx, http.MethodPost, "/api/update-plan", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: %s", resp.Status)
	}
	return nil
}

// WatchTask streams task state transitions over a websocket. The onUpdate
// callback is invoked for each snapshot; return an error from it to abort.
// Returns nil once the task reaches a terminal state.
func (c *Client) WatchTask(ctx context.Context, taskID string, onUpdate func(TaskResponse) error) error {
	wsURL := c.baseURL
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL += "/api/task-events?task_id=" + url.QueryEscape(taskID)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	// Close the connection when the context is cancelled so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var update TaskResponse
		if err := conn.ReadJSON(&update); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				return nil
			}
			return fmt.Errorf("read update: %w", err)
		}

		if err := onUpdate(update); err != nil {
			return err
		}
		if update.Terminal() {
			return nil
		}
	}
}
