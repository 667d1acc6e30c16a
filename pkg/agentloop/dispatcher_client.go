package agentloop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DispatcherClient is the RPC boundary to the remote dispatcher named in
// the run-loop boundary: session creation, long-poll message fetch, and
// the two deletion calls.
type DispatcherClient interface {
	CreateSession(ctx context.Context) (bool, error)
	GetNextMessage(ctx context.Context) (*Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	DeleteSession(ctx context.Context) error
}

// httpDispatcherClient is a plain net/http long-poll client. No pack
// example speaks this exact long-poll session protocol (the reference
// stack's hook servers are push-model webhook receivers, not pull-model
// session clients), so this is built directly on net/http rather than
// adapted from a pack transport, per the dependency note in DESIGN.md.
type httpDispatcherClient struct {
	baseURL   string
	poolID    string
	sessionID string
	client    *http.Client
}

// NewHTTPDispatcherClient returns a DispatcherClient that talks to
// baseURL, scoped to poolID. It generates its own session ID locally
// (a google/uuid v4, matching how the reference stack's prow/plank stamps
// build IDs) and sends it on every call so the dispatcher can correlate
// this agent's messages across a long-poll connection that may be
// re-established.
func NewHTTPDispatcherClient(baseURL, poolID string, longPollTimeout time.Duration) DispatcherClient {
	return &httpDispatcherClient{
		baseURL:   baseURL,
		poolID:    poolID,
		sessionID: uuid.New().String(),
		client:    &http.Client{Timeout: longPollTimeout},
	}
}

func (c *httpDispatcherClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatcher request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatcher returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateSession opens this client's session with the dispatcher.
func (c *httpDispatcherClient) CreateSession(ctx context.Context) (bool, error) {
	var result struct {
		Accepted bool `json:"accepted"`
	}
	payload := struct {
		SessionID string `json:"sessionId"`
		PoolID    string `json:"poolId"`
	}{SessionID: c.sessionID, PoolID: c.poolID}

	if err := c.do(ctx, http.MethodPost, "/sessions", payload, &result); err != nil {
		return false, err
	}
	return result.Accepted, nil
}

// GetNextMessage long-polls for the next message addressed to this
// session, blocking until one arrives or ctx is cancelled.
func (c *httpDispatcherClient) GetNextMessage(ctx context.Context) (*Message, error) {
	path := fmt.Sprintf("/sessions/%s/messages/next?poolId=%s", c.sessionID, c.poolID)
	var msg Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage acknowledges messageID, removing it from the dispatcher's
// queue for this session.
func (c *httpDispatcherClient) DeleteMessage(ctx context.Context, messageID string) error {
	path := fmt.Sprintf("/sessions/%s/messages/%s?poolId=%s", c.sessionID, messageID, c.poolID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteSession tears down this client's session with the dispatcher.
func (c *httpDispatcherClient) DeleteSession(ctx context.Context) error {
	path := fmt.Sprintf("/sessions/%s?poolId=%s", c.sessionID, c.poolID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
