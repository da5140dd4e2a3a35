package store

// User is a registered account. Authentication itself is handled outside
// the store; only the owning identity lives here.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at"`
}

// Project is a named persona: system prompt, model, and its scoped
// conversations, prompts and files.
type Project struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"system_prompt"`
	Model        string `json:"model"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Conversation groups messages within a project. Messages with no
// conversation belong to the project's default thread.
type Conversation struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`

	// Populated by ListConversations only.
	MessageCount int64  `json:"message_count,omitempty"`
	LastMessage  string `json:"last_message,omitempty"`
}

// Message is one immutable chat turn entry.
type Message struct {
	ID             int64  `json:"id"`
	ProjectID      int64  `json:"project_id"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

// Prompt is a named reusable system-role snippet.
type Prompt struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// File is an uploaded reference document with its extracted text, if any.
type File struct {
	ID               int64   `json:"id"`
	ProjectID        int64   `json:"project_id"`
	Filename         string  `json:"filename"`
	OriginalName     string  `json:"original_name"`
	MimeType         string  `json:"mime_type"`
	Size             int64   `json:"size"`
	ExtractedText    *string `json:"extracted_text,omitempty"`
	ExtractionMethod string  `json:"extraction_method"`
	CreatedAt        string  `json:"created_at"`
}
