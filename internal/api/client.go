package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient builds a client for the daemon listening at baseURL
// (for example "http://127.0.0.1:8080"). Individual calls are bounded
// by their context rather than a global client timeout because
// synchronous conversions legitimately run for minutes.
func NewClient(baseURL string) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("daemon address is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse daemon address: %w", err)
	}
	return &Client{
		baseURL: trimmed,
		httpc:   &http.Client{},
	}, nil
}

// Healthy reports whether the daemon answers its liveness endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var status DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// Convert submits a URL for synchronous conversion and waits for the outcome.
func (c *Client) Convert(ctx context.Context, youtubeURL string) (ConvertResponse, error) {
	var resp ConvertResponse
	err := c.do(ctx, http.MethodPost, "/api/convert", ConvertRequest{YoutubeURL: youtubeURL}, &resp)
	return resp, err
}

// QueueList returns conversion jobs optionally filtered by statuses.
func (c *Client) QueueList(ctx context.Context, statuses ...string) ([]QueueJob, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, status := range statuses {
			if trimmed := strings.TrimSpace(status); trimmed != "" {
				values.Add("status", trimmed)
			}
		}
		if encoded := values.Encode(); encoded != "" {
			path += "?" + encoded
		}
	}
	var resp QueueListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// QueueDescribe returns details for a single conversion job.
func (c *Client) QueueDescribe(ctx context.Context, id int64) (QueueJob, error) {
	var resp QueueJobResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/queue/%d", id), nil, &resp)
	return resp.Job, err
}

// QueueRetry resets a failed job back to pending.
func (c *Client) QueueRetry(ctx context.Context, id int64) (int64, error) {
	var resp QueueMutationResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/queue/%d/retry", id), nil, &resp)
	return resp.Affected, err
}

// QueueRetryAll resets every failed job back to pending.
func (c *Client) QueueRetryAll(ctx context.Context) (int64, error) {
	var resp QueueMutationResponse
	err := c.do(ctx, http.MethodPost, "/api/queue/retry", nil, &resp)
	return resp.Affected, err
}

// QueueRemove deletes a single job and its work files.
func (c *Client) QueueRemove(ctx context.Context, id int64) (int64, error) {
	var resp QueueMutationResponse
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/queue/%d", id), nil, &resp)
	return resp.Affected, err
}

// QueueHealth retrieves aggregate queue counts and database diagnostics.
func (c *Client) QueueHealth(ctx context.Context) (QueueHealthResponse, error) {
	var resp QueueHealthResponse
	err := c.do(ctx, http.MethodGet, "/api/queue/health", nil, &resp)
	return resp, err
}

// QueueReset returns in-flight jobs to the start of their current stage.
func (c *Client) QueueReset(ctx context.Context) (int64, error) {
	var resp QueueMutationResponse
	err := c.do(ctx, http.MethodPost, "/api/queue/reset", nil, &resp)
	return resp.Affected, err
}

// TestNotification asks the daemon to send a test push notification.
func (c *Client) TestNotification(ctx context.Context) (NotificationTestResponse, error) {
	var resp NotificationTestResponse
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, &resp)
	return resp, err
}

// QueueClear removes jobs matching scope: "completed", "failed", or "all".
func (c *Client) QueueClear(ctx context.Context, scope string) (int64, error) {
	path := "/api/queue"
	if trimmed := strings.TrimSpace(scope); trimmed != "" && trimmed != "all" {
		path += "?scope=" + url.QueryEscape(trimmed)
	}
	var resp QueueMutationResponse
	err := c.do(ctx, http.MethodDelete, path, nil, &resp)
	return resp.Affected, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.New(errorMessage(payload, resp.StatusCode))
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(payload []byte, statusCode int) string {
	var envelope ErrorResponse
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return fmt.Sprintf("daemon returned HTTP %d", statusCode)
}
