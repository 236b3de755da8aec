package trackersdk

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

// DefaultBasePath is the API prefix served by `tracker serve`.
const DefaultBasePath = "/api/v1"

// Client is a minimal Task Tracker HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	timeout := 10 * time.Second
	return &Client{
		BaseURL:    baseURL,
		BasePath:   DefaultBasePath,
		HTTPClient: &http.Client{Timeout: timeout},
		Timeout:    timeout,
	}
}

// Task mirrors a task in the progress tree.
type Task struct {
	ID           string  `json:"id"`
	RepositoryID string  `json:"repository_id"`
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	Ordering     int     `json:"ordering"`
	Completed    bool    `json:"completed"`
	Enabled      bool    `json:"enabled"`
	Link         *string `json:"link"`
	CompletedAt  *string `json:"completed_at"`
}

// Metrics are completion counts for a repository, stage or the whole tree.
type Metrics struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

type Repository struct {
	ID          string  `json:"id"`
	StageID     string  `json:"stage_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Ordering    int     `json:"ordering"`
	Tasks       []Task  `json:"tasks"`
	Progress    Metrics `json:"progress"`
}

type Stage struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  *string      `json:"description"`
	Ordering     int          `json:"ordering"`
	Repositories []Repository `json:"repositories"`
	Progress     Metrics      `json:"progress"`
}

// Summary is the full progress tree.
type Summary struct {
	Stages          []Stage `json:"stages"`
	OverallProgress float64 `json:"overall_progress"`
}

// APIError wraps non-2xx responses. Detail carries the server's message when
// the body is the usual {"detail": ...} envelope.
type APIError struct {
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error: status=%d detail=%s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsValidation reports whether err is a 400 rejection of a progress update.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

// Health calls the health probe.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", resp.Status)
	}
	return nil
}

// Progress returns the full progress tree.
func (c *Client) Progress(ctx context.Context) (Summary, error) {
	var resp Summary
	err := c.do(ctx, http.MethodGet, "progress", nil, &resp)
	return resp, err
}

// CompleteTask marks a task complete with an evidence link.
func (c *Client) CompleteTask(ctx context.Context, repoID, taskID, link string) error {
	return c.SetTaskProgress(ctx, repoID, taskID, true, &link)
}

// ReopenTask marks a task incomplete; the server clears its link.
func (c *Client) ReopenTask(ctx context.Context, repoID, taskID string) error {
	return c.SetTaskProgress(ctx, repoID, taskID, false, nil)
}

// SetTaskProgress posts a completion change for one task.
func (c *Client) SetTaskProgress(ctx context.Context, repoID, taskID string, completed bool, link *string) error {
	body := map[string]any{
		"completed": completed,
		"link":      link,
	}
	endpoint := fmt.Sprintf("progress/%s/%s", url.PathEscape(repoID), url.PathEscape(taskID))
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Detail = envelope.Detail
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	basePath := c.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(basePath, "/")
}
