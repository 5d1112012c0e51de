// Package identity verifies bearer tokens against the external identity
// provider and resolves them to account IDs.
package identity

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

type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	AccountID string `json:"accountId"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

type Client struct {
	verifyURL string
	apiKey    string
	client    *http.Client
}

func NewClient(verifyURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		verifyURL: verifyURL,
		apiKey:    apiKey,
		client:    httpClient,
	}
}

// Verify exchanges a bearer token for the account ID it belongs to.
// An invalid or expired token is an error; callers map it to 401.
func (c *Client) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token is empty")
	}

	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return "", fmt.Errorf("failed to marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity provider request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("failed to read verify response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("token rejected by identity provider")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed verifyResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse verify response: %w", err)
	}
	if !parsed.Valid || parsed.AccountID == "" {
		if parsed.Error != "" {
			return "", fmt.Errorf("token invalid: %s", parsed.Error)
		}
		return "", fmt.Errorf("token invalid")
	}

	return parsed.AccountID, nil
}
