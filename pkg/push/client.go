// Package push is a client for the external push-notification gateway.
// Delivery is best effort: a failed send is a recoverable, loggable condition
// for callers, never a hard failure of their own operation.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Payload is the notification body handed to the gateway.
type Payload struct {
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, token string, payload Payload) error
}

type sendRequest struct {
	To           string  `json:"to"`
	Notification Payload `json:"notification"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  httpClient,
	}
}

// Send attempts one delivery to the given device token. The error reports
// what went wrong but carries no business meaning; callers decide what a
// failed relay means for their own state.
func (c *Client) Send(ctx context.Context, token string, payload Payload) error {
	if token == "" {
		return fmt.Errorf("push token is empty")
	}

	body, err := json.Marshal(sendRequest{To: token, Notification: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "key="+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		// Some gateways return an empty 200 body; treat that as success.
		if len(strings.TrimSpace(string(respBody))) == 0 {
			return nil
		}
		return fmt.Errorf("failed to parse push response: %w", err)
	}
	if !parsed.Success && parsed.Error != "" {
		return fmt.Errorf("push gateway rejected message: %s", parsed.Error)
	}

	return nil
}
