package ai

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

// RemoteClient calls a completion endpoint over HTTP, the way the browser
// client talks to /api/chat.
type RemoteClient struct {
	url        string
	httpClient *http.Client
}

// NewRemoteClient returns a client for the endpoint at url.
func NewRemoteClient(url string, timeout time.Duration) *RemoteClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteClient{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type completionResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Complete posts req and returns the generated text. Any non-2xx status is a
// *StatusError.
func (c *RemoteClient) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &StatusError{Code: resp.StatusCode}
	}

	var payload completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(payload.Response) == "" {
		return "", ErrMalformedResponse
	}
	return payload.Response, nil
}
