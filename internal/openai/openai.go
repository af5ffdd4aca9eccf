// Package openai implements a minimal client for OpenAI compatible chat
// completion APIs, used by the LLM backed decision agent and completion
// verifier.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slok/orq/internal/log"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ClientConfig is the configuration for the chat completions client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "openai.Client"})
	return nil
}

// Message is one chat message made of content parts, so the same type serves
// text-only prompts and vision prompts with inline images.
type Message struct {
	Role    string `json:"role"`
	Content []Part `json:"content"`
}

// Part is one content part of a chat message.
type Part struct {
	Type     string    `json:"type"` // "text" or "image_url".
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL points to an image, usually a base64 data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// TextMessage creates a single text part message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []Part{{Type: "text", Text: text}}}
}

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONOutput  bool // Ask the model for a JSON object response.
}

// Client talks to an OpenAI compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a new chat completions client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// Complete makes one chat completion call and returns the first choice
// message content.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	apiReq := map[string]any{
		"model":       c.model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		apiReq["max_tokens"] = req.MaxTokens
	}
	if req.JSONOutput {
		apiReq["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return "", fmt.Errorf("could not marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debugf("POST %s (model=%s)", endpoint, c.model)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode, truncate(string(respBody), 256))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("could not unmarshal response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return apiResp.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
