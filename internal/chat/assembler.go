package chat

import (
	"fmt"
	"strings"

	"grudai/internal/extract"
	"grudai/internal/logging"
	"grudai/internal/relay"
	"grudai/internal/store"
)

const (
	// historyLimit bounds how many prior messages join the context.
	historyLimit = 20
	// fileContextChars bounds each attached file's contribution.
	// Character-based, not tokenizer-aware.
	fileContextChars = 4000
)

// assembleContext builds the ordered role/content list for one turn:
// project system prompt, aggregated file excerpts, saved prompt, bounded
// history in chronological order, then the new user message.
//
// Given the same stored state and the same pending user message, the
// result is identical across calls.
func (s *Service) assembleContext(project *store.Project, conversationID *int64, userMessageID int64, text string, fileIDs []int64, promptID *int64) ([]relay.Message, error) {
	var messages []relay.Message

	if project.SystemPrompt != "" {
		messages = append(messages, relay.Message{Role: relay.RoleSystem, Content: project.SystemPrompt})
	}

	if block := s.fileContextBlock(project.ID, fileIDs); block != "" {
		messages = append(messages, relay.Message{Role: relay.RoleSystem, Content: block})
	}

	if promptID != nil {
		prompt, err := s.store.GetPrompt(project.ID, *promptID)
		if err == nil {
			messages = append(messages, relay.Message{Role: relay.RoleSystem, Content: prompt.Content})
		} else {
			// Unresolved prompt references are ignored, not fatal.
			logging.ChatDebug("Saved prompt %d not found for project %d, skipping", *promptID, project.ID)
		}
	}

	history, err := s.store.RecentMessages(project.ID, conversationID, userMessageID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	// Fetched most-recent-first for bounding; reverse to chronological.
	for i := len(history) - 1; i >= 0; i-- {
		messages = append(messages, relay.Message{Role: history[i].Role, Content: history[i].Content})
	}

	messages = append(messages, relay.Message{Role: relay.RoleUser, Content: text})

	logging.ChatDebug("Context assembled: project=%d messages=%d history=%d files=%d",
		project.ID, len(messages), len(history), len(fileIDs))
	return messages, nil
}

// fileContextBlock aggregates the attached files' extracted text into one
// delimited system message. Files that do not resolve under the project or
// carry no extracted text are silently skipped; an empty result means the
// block is omitted entirely.
func (s *Service) fileContextBlock(projectID int64, fileIDs []int64) string {
	if len(fileIDs) == 0 {
		return ""
	}

	var b strings.Builder
	for _, id := range fileIDs {
		file, err := s.store.GetFile(projectID, id)
		if err != nil {
			logging.ChatDebug("Attached file %d not found for project %d, skipping", id, projectID)
			continue
		}
		if file.ExtractedText == nil || *file.ExtractedText == "" {
			logging.ChatDebug("Attached file %d has no extracted text, skipping", id)
			continue
		}
		if b.Len() == 0 {
			b.WriteString("The user has attached the following reference files:\n\n")
		}
		b.WriteString("FILE: ")
		b.WriteString(file.OriginalName)
		b.WriteString("\n")
		b.WriteString(extract.TruncateForContext(*file.ExtractedText, s.fileChars))
		b.WriteString("\n--- END FILE ---\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
