package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running daemon's local API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for addr, either host:port or a full URL
func NewClient(addr string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// List returns the entries matching category and search, newest first
func (c *Client) List(ctx context.Context, category, search string) (*ListResponse, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if search != "" {
		q.Set("q", search)
	}
	path := "/items"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TogglePin flips the pinned flag of an entry and returns it
func (c *Client) TogglePin(ctx context.Context, id string) (*ItemResponse, error) {
	var item ItemResponse
	if err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(id)+"/pin", &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Remove deletes an entry
func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/items/"+url.PathEscape(id), nil)
}

// Clear deletes every entry and returns how many were removed
func (c *Client) Clear(ctx context.Context) (int, error) {
	var body struct {
		Removed int `json:"removed"`
	}
	if err := c.do(ctx, http.MethodDelete, "/items", &body); err != nil {
		return 0, err
	}
	return body.Removed, nil
}

// Copy writes an entry back to the clipboard
func (c *Client) Copy(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(id)+"/copy", nil)
}

// APIError is a non-2xx response from the daemon
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
