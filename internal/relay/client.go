package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"grudai/internal/logging"
)

// Client speaks to an OpenRouter-style chat completion endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	maxTokens   int
	temperature float64
	siteURL     string
	siteName    string
}

// NewClient creates a provider client from config.
func NewClient(cfg Config) *Client {
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		siteURL:     cfg.SiteURL,
		siteName:    cfg.SiteName,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *Client) newRequest(ctx context.Context, body completionRequest, stream bool) (*http.Request, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// Complete sends a non-streaming completion request and returns the
// assistant text with usage metadata.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, *Usage, error) {
	logging.RelayDebug("Complete: model=%s messages=%d", model, len(messages))

	if c.apiKey == "" {
		return "", nil, fmt.Errorf("API key not configured")
	}

	req, err := c.newRequest(ctx, completionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}, false)
	if err != nil {
		return "", nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	resp.Body.Close()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cr completionResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if cr.Error != nil {
		return "", nil, fmt.Errorf("API error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", cr.Usage, nil
	}
	return cr.Choices[0].Message.Content, cr.Usage, nil
}

// openStream issues the streaming completion request and hands back the
// raw response body. A non-success status is an upstream transport error;
// there is no retry on this path.
func (c *Client) openStream(ctx context.Context, model string, messages []Message) (io.ReadCloser, error) {
	logging.RelayDebug("openStream: model=%s messages=%d", model, len(messages))

	if c.apiKey == "" {
		return nil, fmt.Errorf("API key not configured")
	}

	req, err := c.newRequest(ctx, completionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Stream:      true,
	}, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
		resp.Body.Close()
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}
