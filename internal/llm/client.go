// Package llm is a thin client for the hosted language model's
// chat-completions endpoint. The model is an opaque collaborator: the
// client sends messages, returns the first choice's text, and leaves
// all interpretation of that text to the caller.
package llm

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

const defaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// Client calls the chat-completions API.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client. The API key comes from GROQ_API_KEY; the
// endpoint can be overridden with GROQ_BASE_URL for compatible hosts.
func New() (*Client, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY not set")
	}
	endpoint := defaultEndpoint
	if base := os.Getenv("GROQ_BASE_URL"); base != "" {
		endpoint = base + "/chat/completions"
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}, nil
}

// NewWith creates a Client against an explicit endpoint. Used when the
// endpoint is not the hosted default, and by tests.
func NewWith(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request shapes one completion call.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the request and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", err
	}

	var resp response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return "", fmt.Errorf("parse completion response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("model error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
