package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
)

// TripJobRecord is the persisted shape of a planning job.
type TripJobRecord struct {
	TaskID    string         `json:"task_id"`
	Status    string         `json:"status"`
	Params    map[string]any `json:"params"`
	Result    map[string]any `json:"result,omitempty"`
	Error     *string        `json:"error,omitempty"`
	Created   time.Time      `json:"created"`
	Completed *time.Time     `json:"completed,omitempty"`
}

// CreateTripJob persists a newly submitted job.
func (c *Client) CreateTripJob(ctx context.Context, taskID string, params map[string]any) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE trip_job CONTENT {
			task_id: $task_id,
			status: "pending",
			params: $params
		}
	`, map[string]any{
		"task_id": taskID,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("create trip job: %w", wrapQueryError(err))
	}
	return nil
}

// CompleteTripJob records the final result of a job.
func (c *Client) CompleteTripJob(ctx context.Context, taskID string, result map[string]any) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE trip_job SET
			status = "completed",
			result = $result,
			completed = time::now()
		WHERE task_id = $task_id
	`, map[string]any{
		"task_id": taskID,
		"result":  result,
	})
	if err != nil {
		return fmt.Errorf("complete trip job: %w", wrapQueryError(err))
	}
	return nil
}

// SetTripJobStatus records a terminal status without a result (failed, rejected).
func (c *Client) SetTripJobStatus(ctx context.Context, taskID, status, errMsg string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE trip_job SET
			status = $status,
			error = $error,
			completed = time::now()
		WHERE task_id = $task_id
	`, map[string]any{
		"task_id": taskID,
		"status":  status,
		"error":   errMsg,
	})
	if err != nil {
		return fmt.Errorf("set trip job status: %w", wrapQueryError(err))
	}
	return nil
}

// GetTripJob loads a persisted job by task id. Returns ErrNotFound when the
// id is unknown.
func (c *Client) GetTripJob(ctx context.Context, taskID string) (*TripJobRecord, error) {
	results, err := surrealdb.Query[[]TripJobRecord](ctx, c.db, `
		SELECT task_id, status, params, result, error, created, completed
		FROM trip_job
		WHERE task_id = $task_id
		LIMIT 1
	`, map[string]any{"task_id": taskID})
	if err != nil {
		return nil, fmt.Errorf("get trip job: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	record := (*results)[0].Result[0]
	return &record, nil
}

// SaveSession upserts a session's extracted entities and last plan.
func (c *Client) SaveSession(ctx context.Context, sessionID string, entities map[string]string, lastPlan map[string]any) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT trip_session SET
			session_id = $session_id,
			entities = $entities,
			last_plan = $last_plan,
			last_activity = time::now()
		WHERE session_id = $session_id
	`, map[string]any{
		"session_id": sessionID,
		"entities":   entities,
		"last_plan":  lastPlan,
	})
	if err != nil {
		return fmt.Errorf("save session: %w", wrapQueryError(err))
	}
	return nil
}

// DeleteExpiredSessions removes sessions idle longer than the given duration.
func (c *Client) DeleteExpiredSessions(ctx context.Context, olderThan time.Duration) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE trip_session WHERE last_activity < time::now() - $age
	`, map[string]any{"age": olderThan.String()})
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", wrapQueryError(err))
	}
	return nil
}
