// Package formlink is a Go client for the FormLink submission webhook.
package formlink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the FormLink client.
type Config struct {
	// BaseURL is the root URL of the FormLink server.
	// Examples: "https://forms.example.com" or "https://forms.example.com/api/v1"
	// The "/api/v1" suffix is appended automatically if missing.
	BaseURL string

	// Token is the webhook bearer token minted with `formlink token`.
	// Leave empty when the server runs without a webhook secret.
	Token string

	// HTTPClient is an optional custom HTTP client.
	// If nil, a default client with 30s timeout is used.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasSuffix(c.BaseURL, "/api/v1") {
		c.BaseURL = c.BaseURL + "/api/v1"
	}
}

// Client is the FormLink SDK client.
type Client struct {
	cfg Config
}

// NewClient creates a new FormLink client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg}
}

// Submit posts a form submission. A suppressed repeat is not an error:
// the response reports Status "duplicate".
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	body, err := c.do(ctx, http.MethodPost, "/submissions", req)
	if err != nil {
		return nil, err
	}

	var resp SubmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("formlink: failed to parse submit response: %w", err)
	}
	return &resp, nil
}

// GetDelivery fetches one recorded delivery.
func (c *Client) GetDelivery(ctx context.Context, id string) (*Delivery, error) {
	body, err := c.do(ctx, http.MethodGet, "/deliveries/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var d Delivery
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("formlink: failed to parse delivery: %w", err)
	}
	return &d, nil
}

// ListDeliveries returns the most recent deliveries, newest first.
// A limit of 0 uses the server default.
func (c *Client) ListDeliveries(ctx context.Context, limit int) (*DeliveryList, error) {
	path := "/deliveries"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var list DeliveryList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("formlink: failed to parse deliveries: %w", err)
	}
	return &list, nil
}

// do sends a request to the FormLink API.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("formlink: failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("formlink: failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("formlink: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("formlink: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	return body, nil
}
