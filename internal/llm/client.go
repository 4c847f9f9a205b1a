// Package llm provides the text-generation backend used to narrate story
// beats, the prompt that grounds it, and the template narration used when
// the backend is unavailable.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	DefaultModel = "claude-haiku-4-5-20251001"
)

// Default generation settings for narrative beats.
const (
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.8
)

var (
	// ErrDisabled is returned when no API key is configured.
	ErrDisabled = errors.New("llm client not configured")
	// ErrEmptyResponse is returned when the backend answers with no text.
	ErrEmptyResponse = errors.New("empty response")
)

// Options tune one generation call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	System      string
}

// Backend generates text for a prompt.
type Backend interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Client wraps the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// NewClient creates a new API client.
// Returns nil if apiKey is empty (generation disabled).
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxPerMin: 20,
	}
}

// WithBaseURL points the client at another endpoint. Used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	if c != nil {
		c.baseURL = u
	}
	return c
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate sends prompt and returns the response text. The caller's context
// bounds the whole call.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if err := c.take(); err != nil {
		return "", err
	}

	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}

	body, err := json.Marshal(request{
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		System:      opts.System,
		Messages:    []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		text.WriteString(block.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyResponse
	}

	slog.Debug("generation call",
		"model", opts.Model,
		"input_tokens", apiResp.Usage.InputTokens,
		"output_tokens", apiResp.Usage.OutputTokens,
	)

	return text.String(), nil
}

func (c *Client) take() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		return fmt.Errorf("rate limit exceeded (%d calls/min)", c.maxPerMin)
	}
	c.callCount++
	return nil
}
