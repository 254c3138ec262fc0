package giglinesdk

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
)

// Client is a minimal Gigline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Confirmation is the staged state the assistant hands back when a
// destructive request needs a second turn. Echo it with the next message.
type Confirmation struct {
	Resource  string         `json:"resource"`
	Operation string         `json:"operation"`
	TargetIDs []string       `json:"target_ids"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// AssistantReply is the assistant's answer for one message.
type AssistantReply struct {
	Success              bool            `json:"success"`
	Text                 string          `json:"text"`
	RequiresConfirmation bool            `json:"requires_confirmation,omitempty"`
	Pending              *Confirmation   `json:"pending,omitempty"`
	Data                 json.RawMessage `json:"data,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Status   string  `json:"status"`
	Priority string  `json:"priority"`
	DueDate  *string `json:"due_date,omitempty"`
}

// Usage reports the current month's consumption.
type Usage struct {
	Plan       string         `json:"plan"`
	Used       int            `json:"used"`
	Limit      int            `json:"limit"`
	Remaining  int            `json:"remaining"`
	ByResource map[string]int `json:"by_resource,omitempty"`
}

// AuditEntry is one executed assistant action.
type AuditEntry struct {
	ID        int64  `json:"id"`
	Summary   string `json:"summary"`
	Resource  string `json:"resource"`
	CreatedAt string `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// DevLogin mints a bearer token from the dev login endpoint and stores it
// on the client for subsequent calls.
func (c *Client) DevLogin(ctx context.Context, email, plan string) error {
	body := map[string]any{"email": email}
	if plan != "" {
		body["plan"] = plan
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", body, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// Send delivers one message to the assistant. pending carries the staged
// confirmation from a previous reply, or nil.
func (c *Client) Send(ctx context.Context, message string, pending *Confirmation) (AssistantReply, error) {
	body := map[string]any{"message": message}
	if pending != nil {
		body["pending"] = pending
	}
	var resp AssistantReply
	err := c.do(ctx, http.MethodPost, "v0/assistant/message", body, &resp)
	return resp, err
}

// Tasks lists the caller's tasks.
func (c *Client) Tasks(ctx context.Context, status string, limit int) ([]Task, error) {
	endpoint := "v0/tasks"
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Usage returns the quota state for the current month.
func (c *Client) Usage(ctx context.Context) (Usage, error) {
	var resp Usage
	err := c.do(ctx, http.MethodGet, "v0/usage", nil, &resp)
	return resp, err
}

// Audit returns recent assistant actions, newest first.
func (c *Client) Audit(ctx context.Context, limit int) ([]AuditEntry, error) {
	endpoint := "v0/audit"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []AuditEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
