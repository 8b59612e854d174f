// Package schedulerclient is a thin HTTP client over the scheduler's REST
// control plane, shared between schedulerctl and any other Go caller that
// wants to avoid hand-rolling requests.
package schedulerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a single scheduler node's REST API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New builds a Client against baseURL (e.g. "http://localhost:3000").
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError represents a non-2xx response from the scheduler.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scheduler API error (%d): %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// CreateJob sends POST /jobs.
func (c *Client) CreateJob(ctx context.Context, req JobInput) (JobResponse, error) {
	var out jobMutationResponse
	if err := c.do(ctx, http.MethodPost, "/jobs", req, &out); err != nil {
		return JobResponse{}, err
	}
	return out.Data, nil
}

// UpdateJob sends PUT /jobs/{id}.
func (c *Client) UpdateJob(ctx context.Context, id string, req JobInput) (JobResponse, error) {
	var out jobMutationResponse
	if err := c.do(ctx, http.MethodPut, "/jobs/"+id, req, &out); err != nil {
		return JobResponse{}, err
	}
	return out.Data, nil
}

// DeleteJob sends DELETE /jobs/{id}.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/jobs/"+id, nil, nil)
}

// GetJob sends GET /jobs/{id}.
func (c *Client) GetJob(ctx context.Context, id string) (JobDetail, error) {
	var out JobDetail
	if err := c.do(ctx, http.MethodGet, "/jobs/"+id, nil, &out); err != nil {
		return JobDetail{}, err
	}
	return out, nil
}

// ListJobs sends GET /jobs?page=&limit=.
func (c *Client) ListJobs(ctx context.Context, page, limit int) (JobsListResponse, error) {
	var out JobsListResponse
	path := fmt.Sprintf("/jobs?page=%d&limit=%d", page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return JobsListResponse{}, err
	}
	return out, nil
}

// TriggerJob sends POST /jobs/{id}/trigger.
func (c *Client) TriggerJob(ctx context.Context, id string) (TriggerResponse, error) {
	var out TriggerResponse
	if err := c.do(ctx, http.MethodPost, "/jobs/"+id+"/trigger", nil, &out); err != nil {
		return TriggerResponse{}, err
	}
	return out, nil
}

// ValidateCron sends POST /jobs/validate-cron.
func (c *Client) ValidateCron(ctx context.Context, expression string) (ValidateCronResponse, error) {
	var out ValidateCronResponse
	req := map[string]string{"expression": expression}
	if err := c.do(ctx, http.MethodPost, "/jobs/validate-cron", req, &out); err != nil {
		return ValidateCronResponse{}, err
	}
	return out, nil
}

// Stats sends GET /jobs/stats.
func (c *Client) Stats(ctx context.Context) (StatsResponse, error) {
	var out StatsResponse
	if err := c.do(ctx, http.MethodGet, "/jobs/stats", nil, &out); err != nil {
		return StatsResponse{}, err
	}
	return out, nil
}

// CleanupExecutions sends POST /jobs/cleanup?days=N.
func (c *Client) CleanupExecutions(ctx context.Context, days int) (CleanupResponse, error) {
	var out CleanupResponse
	path := fmt.Sprintf("/jobs/cleanup?days=%d", days)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return CleanupResponse{}, err
	}
	return out, nil
}

// Health sends GET /health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return HealthResponse{}, err
	}
	return out, nil
}
