package relay

import "time"

// Message is one role/content pair sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles used in chat context.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Config holds provider client configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	SiteURL     string // Optional: HTTP-Referer header
	SiteName    string // Optional: X-Title header
}

// DefaultConfig returns sensible defaults for an OpenRouter-style endpoint.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		BaseURL:     "https://openrouter.ai/api/v1",
		Timeout:     2 * time.Minute,
		MaxTokens:   1000,
		Temperature: 0.7,
		SiteName:    "GrudAI",
	}
}

// completionRequest is the upstream chat completion request body.
type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// Usage reports upstream token accounting for a non-streaming completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// completionResponse is the non-streaming response body.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage    `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Event is one normalized downstream event. Exactly one of the fields is
// meaningful: a content fragment, the terminal done marker, or an error.
type Event struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Err     string `json:"error,omitempty"`
}
