package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"reliefboard/internal/apierror"
	"reliefboard/internal/models"
)

// ListTasks fetches GET /tasks. Filter values go out as query parameters; the
// API is free to ignore them.
func (c *Client) ListTasks(ctx context.Context, filter models.TaskFilter) (models.RawTaskList, error) {
	q := url.Values{}
	if filter.Type != "" {
		q.Set("type", string(filter.Type))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	var list models.RawTaskList
	err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &list, apierror.ResourceTask)
	return list, err
}

func (c *Client) GetTask(ctx context.Context, id string) (models.RawTask, error) {
	return c.taskCall(ctx, http.MethodGet, "/tasks/"+escape(id), nil)
}

func (c *Client) CreateTask(ctx context.Context, in models.TaskInput) (models.RawTask, error) {
	return c.taskCall(ctx, http.MethodPost, "/tasks", in)
}

func (c *Client) UpdateTask(ctx context.Context, id string, in models.TaskInput) (models.RawTask, error) {
	return c.taskCall(ctx, http.MethodPut, "/tasks/"+escape(id), in)
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+escape(id), nil, nil, nil, apierror.ResourceTask)
}

func (c *Client) ApproveTask(ctx context.Context, id string) (models.RawTask, error) {
	return c.taskCall(ctx, http.MethodPost, "/tasks/"+escape(id)+"/approve", struct{}{})
}

// ClaimTask claims the task at POST /tasks/{id}/claim.
func (c *Client) ClaimTask(ctx context.Context, id, notes string) (json.RawMessage, error) {
	body := map[string]string{}
	if notes != "" {
		body["notes"] = notes
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "/tasks/"+escape(id)+"/claim", nil, body, &out, apierror.ResourceTask)
	return out, err
}

// Claim is the body-addressed variant, POST /tasks/claim.
func (c *Client) Claim(ctx context.Context, req models.ClaimRequest) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodPost, "/tasks/claim", nil, req, &out, apierror.ResourceTask)
	return out, err
}

func (c *Client) TaskClaims(ctx context.Context, id string) (models.Claims, error) {
	return c.raw(ctx, "/tasks/"+escape(id)+"/claims", apierror.ResourceTask)
}

func (c *Client) UpdateClaimStatus(ctx context.Context, claimID string, upd models.ClaimStatusUpdate) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodPut, "/claims/"+escape(claimID)+"/status", nil, upd, &out, apierror.ResourceClaim)
	return out, err
}

func (c *Client) MyClaims(ctx context.Context) (models.Claims, error) {
	return c.raw(ctx, "/tasks/claims/my", apierror.ResourceClaim)
}

func (c *Client) MyHistory(ctx context.Context) (json.RawMessage, error) {
	return c.raw(ctx, "/tasks/history/my", apierror.ResourceTask)
}

func (c *Client) Statistics(ctx context.Context) (models.Statistics, error) {
	return c.raw(ctx, "/tasks/statistics", apierror.ResourceNone)
}

func (c *Client) ActivityLog(ctx context.Context, id string) (models.ActivityLog, error) {
	return c.raw(ctx, "/tasks/"+escape(id)+"/activity-log", apierror.ResourceTask)
}

func (c *Client) Conflicts(ctx context.Context, id string) (models.Conflicts, error) {
	return c.raw(ctx, "/tasks/"+escape(id)+"/conflicts", apierror.ResourceTask)
}

func (c *Client) PendingApproval(ctx context.Context) (models.RawTaskList, error) {
	var list models.RawTaskList
	err := c.do(ctx, http.MethodGet, "/tasks/pending-approval", nil, nil, &list, apierror.ResourceTask)
	return list, err
}

func (c *Client) AvailableTasks(ctx context.Context) (models.RawTaskList, error) {
	var list models.RawTaskList
	err := c.do(ctx, http.MethodGet, "/tasks/available", nil, nil, &list, apierror.ResourceTask)
	return list, err
}

func (c *Client) raw(ctx context.Context, path string, resource apierror.Resource) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, path, nil, nil, &out, resource)
	return out, err
}

// taskCall decodes a single task, accepting both a bare object and a
// {"data": {...}} envelope.
func (c *Client) taskCall(ctx context.Context, method, path string, body any) (models.RawTask, error) {
	var out json.RawMessage
	if err := c.do(ctx, method, path, nil, body, &out, apierror.ResourceTask); err != nil {
		return models.RawTask{}, err
	}
	task, err := decodeTask(out)
	if err != nil {
		return models.RawTask{}, apierror.Classify(&apierror.ParseFailure{Err: err}, apierror.ResourceTask)
	}
	return task, nil
}

func decodeTask(data json.RawMessage) (models.RawTask, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return models.RawTask{}, err
	}
	if d := bytes.TrimSpace(env.Data); len(d) > 0 && d[0] == '{' {
		data = d
	}
	var task models.RawTask
	err := json.Unmarshal(data, &task)
	return task, err
}
