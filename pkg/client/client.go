// Package client is a Go consumer for the GrudAI chat API. It handles the
// server's SSE stream framing and exposes both a callback and a channel API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// SendRequest is one chat turn.
type SendRequest struct {
	Message        string  `json:"message"`
	ConversationID *int64  `json:"conversationId,omitempty"`
	FileIDs        []int64 `json:"fileIds,omitempty"`
	UsePrompt      *int64  `json:"usePrompt,omitempty"`
}

// Event is one normalized stream event from the server.
type Event struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Err     string `json:"error,omitempty"`
}

// ChunkFunc receives each content fragment along with the accumulated text.
type ChunkFunc func(fragment, total string)

// Usage reports upstream token accounting for a non-streaming turn.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client talks to a GrudAI server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the given server base URL and bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// SetHTTPClient overrides the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

func (c *Client) newChatRequest(ctx context.Context, projectID int64, req SendRequest, stream bool) (*http.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/api/projects/%d/chat", c.baseURL, projectID)
	if !stream {
		url += "?stream=false"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	return httpReq, nil
}

// SendStream runs a streaming turn. onChunk (may be nil) is invoked for each
// content fragment with the fragment and the accumulated text so far. The
// final accumulated text is returned once the server signals completion.
func (c *Client) SendStream(ctx context.Context, projectID int64, req SendRequest, onChunk ChunkFunc) (string, error) {
	httpReq, err := c.newChatRequest(ctx, projectID, req, true)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp)
	}

	var total strings.Builder
	resolved := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			// Incomplete chunk boundary; skip the line.
			continue
		}

		switch {
		case event.Err != "":
			return total.String(), errors.New(event.Err)
		case event.Done:
			resolved = true
		case event.Content != "":
			total.WriteString(event.Content)
			if onChunk != nil {
				onChunk(event.Content, total.String())
			}
		}
		if resolved {
			break
		}
	}
	if err := scanner.Err(); err != nil && !resolved {
		return total.String(), fmt.Errorf("stream read failed: %w", err)
	}
	if !resolved {
		return total.String(), errors.New("stream ended without completion event")
	}
	return total.String(), nil
}

// Stream runs a streaming turn and returns the events on a channel. The
// channel is closed after the done event, an error event, or ctx cancellation.
func (c *Client) Stream(ctx context.Context, projectID int64, req SendRequest) (<-chan Event, error) {
	httpReq, err := c.newChatRequest(ctx, projectID, req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var event Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
			if event.Done || event.Err != "" {
				return
			}
		}
	}()
	return events, nil
}

// Send runs a non-streaming turn and returns the full reply with usage.
func (c *Client) Send(ctx context.Context, projectID int64, req SendRequest) (string, *Usage, error) {
	httpReq, err := c.newChatRequest(ctx, projectID, req, false)
	if err != nil {
		return "", nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, decodeAPIError(resp)
	}

	var envelope struct {
		Data struct {
			Message string `json:"message"`
			Usage   *Usage `json:"usage"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return envelope.Data.Message, envelope.Data.Usage, nil
}

// decodeAPIError turns a non-200 response into an error from the server's
// {error, message} envelope, falling back to the HTTP status.
func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
		if envelope.Message != "" {
			return fmt.Errorf("%s: %s", envelope.Error, envelope.Message)
		}
		return errors.New(envelope.Error)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
