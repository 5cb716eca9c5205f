// Package completion implements the text-completion backend client used as
// the moderation oracle. It speaks the OpenAI-compatible chat-completions
// wire format against Cerebras' hosted endpoint, but exposes only the narrow
// Complete(prompt) -> string contract so nothing upstream depends on the
// vendor's API shapes.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrMissingAPIKey is returned by NewClient when no credential is supplied.
// The credential is a startup requirement, not a per-request concern.
var ErrMissingAPIKey = errors.New("completion: API key not configured")

// Config holds the completion backend settings.
type Config struct {
	APIKey  string        // bearer credential, required
	BaseURL string        // OpenAI-compatible API root
	Model   string        // model identifier
	Timeout time.Duration // per-request deadline when the caller's ctx has none
}

// DefaultConfig returns the Cerebras production defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://api.cerebras.ai/v1",
		Model:   "llama3.1-8b",
		Timeout: 30 * time.Second,
	}
}

// Client is a chat-completions client. It is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient validates the config and returns a ready client. A missing API
// key is a configuration error and fails construction.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig(config.APIKey).BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultConfig(config.APIKey).Model
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig(config.APIKey).Timeout
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.config.Model
}

// Wire types for the chat-completions endpoint.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the prompt and returns the model's raw reply text. Decoding
// runs at temperature 0 so identical input produces the most reproducible
// verdict the backend can offer.
//
// Retries happen only on HTTP 429, with exponential backoff, and strictly
// sequentially: one logical check never has two requests in flight.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("completion: marshal request: %w", err)
	}

	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("completion: %w", ctx.Err())
			}
		}

		reply, retry, err := c.doRequest(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retry {
			return "", lastErr
		}
	}

	return "", fmt.Errorf("completion: retries exhausted: %w", lastErr)
}

// doRequest performs one HTTP round trip. The retry return value is true
// only for rate-limit responses.
func (c *Client) doRequest(ctx context.Context, body []byte) (reply string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("completion: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("completion: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("completion: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("completion: rate limited (status %d)", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, fmt.Errorf("completion: decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", false, fmt.Errorf("completion: API error (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", false, fmt.Errorf("completion: unexpected status %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("completion: response contains no choices")
	}

	return parsed.Choices[0].Message.Content, false, nil
}
