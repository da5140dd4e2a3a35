// Package chat coordinates one conversational turn: validating input,
// persisting the user message, assembling the upstream context, relaying
// the streamed reply, and persisting the assistant message.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grudai/internal/logging"
	"grudai/internal/relay"
	"grudai/internal/store"
)

// ErrEmptyMessage is returned when the user message is empty after trimming.
var ErrEmptyMessage = errors.New("message content is required")

// Store is the persistence contract the chat service depends on. It is
// satisfied by *store.LocalStore and by in-memory fakes in tests.
type Store interface {
	GetProject(userID, projectID int64) (*store.Project, error)
	GetConversation(projectID, id int64) (*store.Conversation, error)
	TouchConversation(id int64) error
	GetPrompt(projectID, id int64) (*store.Prompt, error)
	GetFile(projectID, id int64) (*store.File, error)
	CreateMessage(projectID int64, conversationID *int64, role, content string) (int64, error)
	RecentMessages(projectID int64, conversationID *int64, excludeID int64, limit int) ([]store.Message, error)
}

// Upstream is the completion contract, satisfied by *relay.Relay.
type Upstream interface {
	Stream(ctx context.Context, model string, messages []relay.Message) <-chan relay.Event
	Complete(ctx context.Context, model string, messages []relay.Message) (string, *relay.Usage, error)
}

// SendRequest carries one turn's input.
type SendRequest struct {
	Message        string  `json:"message"`
	ConversationID *int64  `json:"conversationId,omitempty"`
	FileIDs        []int64 `json:"fileIds,omitempty"`
	UsePrompt      *int64  `json:"usePrompt,omitempty"`
}

// TurnResult reports what one turn produced and persisted.
type TurnResult struct {
	UserMessageID      int64
	AssistantMessageID int64
	Reply              string
	Usage              *relay.Usage
	ErrMsg             string // upstream error surfaced to the client, if any
}

// Service implements the turn persistence protocol over a Store and an
// Upstream relay.
type Service struct {
	store     Store
	upstream  Upstream
	fileChars int
}

// Option configures a Service.
type Option func(*Service)

// WithFileContextChars overrides the per-file context budget.
func WithFileContextChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fileChars = n
		}
	}
}

// NewService creates a chat service.
func NewService(st Store, upstream Upstream, opts ...Option) *Service {
	s := &Service{
		store:     st,
		upstream:  upstream,
		fileChars: fileContextChars,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// beginTurn validates the request, resolves the project and conversation
// scope, refreshes the conversation timestamp, persists the user message,
// and assembles the upstream context. No upstream call happens here.
func (s *Service) beginTurn(userID, projectID int64, req SendRequest) (*store.Project, []relay.Message, int64, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, nil, 0, ErrEmptyMessage
	}

	project, err := s.store.GetProject(userID, projectID)
	if err != nil {
		return nil, nil, 0, err
	}

	if req.ConversationID != nil {
		if _, err := s.store.GetConversation(projectID, *req.ConversationID); err != nil {
			return nil, nil, 0, err
		}
		// Refreshed on receipt of the user message, regardless of how
		// the assistant turn goes.
		if err := s.store.TouchConversation(*req.ConversationID); err != nil {
			logging.ChatError("Failed to touch conversation %d: %v", *req.ConversationID, err)
		}
	}

	// A user turn is never silently dropped: persisted before upstream I/O.
	userMessageID, err := s.store.CreateMessage(projectID, req.ConversationID, relay.RoleUser, text)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to persist user message: %w", err)
	}

	messages, err := s.assembleContext(project, req.ConversationID, userMessageID, text, req.FileIDs, req.UsePrompt)
	if err != nil {
		return nil, nil, 0, err
	}

	logging.Chat("Turn started: project=%d user_msg=%d model=%s", projectID, userMessageID, project.Model)
	return project, messages, userMessageID, nil
}

// finishTurn persists the assistant reply when there is one.
func (s *Service) finishTurn(projectID int64, conversationID *int64, result *TurnResult) {
	if result.Reply == "" {
		logging.Chat("Turn finished with no assistant content: project=%d user_msg=%d", projectID, result.UserMessageID)
		return
	}
	id, err := s.store.CreateMessage(projectID, conversationID, relay.RoleAssistant, result.Reply)
	if err != nil {
		logging.ChatError("Failed to persist assistant message: %v", err)
		return
	}
	result.AssistantMessageID = id
	logging.Chat("Turn finished: project=%d user_msg=%d assistant_msg=%d reply_len=%d",
		projectID, result.UserMessageID, id, len(result.Reply))
}

// Send runs one streaming turn. Every normalized event is handed to sink
// in order; a sink error means the downstream transport is gone, which is
// terminal for the turn: relaying stops and accumulated assistant text is
// discarded, not persisted.
func (s *Service) Send(ctx context.Context, userID, projectID int64, req SendRequest, sink func(relay.Event) error) (*TurnResult, error) {
	project, messages, userMessageID, err := s.beginTurn(userID, projectID, req)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{UserMessageID: userMessageID}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := s.upstream.Stream(ctx, project.Model, messages)
	var accumulated strings.Builder
	for event := range events {
		if err := sink(event); err != nil {
			logging.ChatError("Downstream write failed, abandoning turn: %v", err)
			cancel()
			for range events {
				// Drain so the relay goroutine can exit.
			}
			return result, fmt.Errorf("downstream write failed: %w", err)
		}
		if event.Content != "" {
			accumulated.WriteString(event.Content)
		}
		if event.Err != "" {
			result.ErrMsg = event.Err
		}
	}

	result.Reply = accumulated.String()
	s.finishTurn(projectID, req.ConversationID, result)
	return result, nil
}

// SendOnce runs one non-streaming turn and returns the full reply with
// usage metadata.
func (s *Service) SendOnce(ctx context.Context, userID, projectID int64, req SendRequest) (*TurnResult, error) {
	project, messages, userMessageID, err := s.beginTurn(userID, projectID, req)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{UserMessageID: userMessageID}

	reply, usage, err := s.upstream.Complete(ctx, project.Model, messages)
	if err != nil {
		// The user message stays; the upstream failure is reported as-is.
		return result, fmt.Errorf("completion failed: %w", err)
	}

	result.Reply = reply
	result.Usage = usage
	s.finishTurn(projectID, req.ConversationID, result)
	return result, nil
}
