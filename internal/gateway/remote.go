package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/agentclick/internal/version"
)

// Remote is an HTTP client for a running gateway, used by the CLI.
type Remote struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewRemote creates a client for baseURL (e.g. http://127.0.0.1:18790).
func NewRemote(baseURL, token string) *Remote {
	return &Remote{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// RemoteError is a non-2xx gateway reply.
type RemoteError struct {
	Status int
	ErrorShape
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("gateway returned HTTP %d: %s", e.Status, e.Message)
}

// Health calls GET /health.
func (c *Remote) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// State calls GET /v1/state.
func (c *Remote) State(ctx context.Context) (*StateResponse, error) {
	var out StateResponse
	if err := c.do(ctx, http.MethodGet, "/v1/state", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trigger calls POST /v1/hotkeys/{action}.
func (c *Remote) Trigger(ctx context.Context, action string, req *HotkeyRequest) (*HotkeyResponse, error) {
	var out HotkeyResponse
	if err := c.do(ctx, http.MethodPost, "/v1/hotkeys/"+action, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Remote) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("contacting gateway: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		re := &RemoteError{Status: resp.StatusCode}
		var wrapped struct {
			Error ErrorShape `json:"error"`
		}
		if json.Unmarshal(data, &wrapped) == nil {
			re.ErrorShape = wrapped.Error
		}
		return re
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding gateway response: %w", err)
	}
	return nil
}
