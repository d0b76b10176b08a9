// Package broker talks to the external integration broker that fronts
// authenticated third-party tools. A stage asks for a session scoped
// to the toolkits it needs; the broker answers with the session handle
// and the connection ID of the linked account behind each toolkit.
// Tool calls then carry session and connection IDs.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Client is an authenticated handle on the broker's HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client against baseURL. The API key comes from
// BROKER_API_KEY.
func New(baseURL string) (*Client, error) {
	apiKey := os.Getenv("BROKER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("BROKER_API_KEY not set")
	}
	return NewWith(baseURL, apiKey), nil
}

// NewWith creates a Client with an explicit key. Used by tests.
func NewWith(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Session is an authenticated toolkit session. Connections maps each
// granted toolkit to the connection ID resolved at creation time.
type Session struct {
	ID          string
	Connections map[string]string

	client *Client
}

type createSessionRequest struct {
	Toolkits []string `json:"toolkits"`
}

type createSessionResponse struct {
	SessionID   string `json:"session_id"`
	Connections []struct {
		Toolkit      string `json:"toolkit"`
		ConnectionID string `json:"connection_id"`
		Status       string `json:"status"`
	} `json:"connections"`
	Error string `json:"error,omitempty"`
}

// CreateSession opens a session scoped to the named toolkits. Every
// requested toolkit must come back with an active connection; a
// toolkit nobody has linked an account for fails the session rather
// than surfacing later as a mid-pipeline tool error.
func (c *Client) CreateSession(ctx context.Context, toolkits ...string) (*Session, error) {
	if len(toolkits) == 0 {
		return nil, fmt.Errorf("session needs at least one toolkit")
	}

	var resp createSessionResponse
	if err := c.post(ctx, "/sessions", createSessionRequest{Toolkits: toolkits}, &resp); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("create session: broker: %s", resp.Error)
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("create session: broker returned no session id")
	}

	conns := make(map[string]string, len(resp.Connections))
	for _, conn := range resp.Connections {
		if conn.Status == "active" {
			conns[conn.Toolkit] = conn.ConnectionID
		}
	}
	for _, tk := range toolkits {
		if conns[tk] == "" {
			return nil, fmt.Errorf("toolkit %q has no active connection", tk)
		}
	}

	return &Session{ID: resp.SessionID, Connections: conns, client: c}, nil
}

type executeRequest struct {
	SessionID    string         `json:"session_id"`
	Toolkit      string         `json:"toolkit"`
	ConnectionID string         `json:"connection_id"`
	Tool         string         `json:"tool"`
	Arguments    map[string]any `json:"arguments,omitempty"`
}

type executeResponse struct {
	Successful bool            `json:"successful"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
}

// Execute runs a named tool under the session. The toolkit selects the
// connection the call is routed through.
func (s *Session) Execute(ctx context.Context, toolkit, tool string, args map[string]any) (json.RawMessage, error) {
	connID, ok := s.Connections[toolkit]
	if !ok {
		return nil, fmt.Errorf("session %s has no connection for toolkit %q", s.ID, toolkit)
	}

	req := executeRequest{
		SessionID:    s.ID,
		Toolkit:      toolkit,
		ConnectionID: connID,
		Tool:         tool,
		Arguments:    args,
	}

	var resp executeResponse
	if err := s.client.post(ctx, "/execute", req, &resp); err != nil {
		return nil, fmt.Errorf("execute %s.%s: %w", toolkit, tool, err)
	}
	if !resp.Successful {
		return nil, fmt.Errorf("execute %s.%s: broker: %s", toolkit, tool, resp.Error)
	}
	return resp.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(respBytes), 200))
	}
	return json.Unmarshal(respBytes, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
