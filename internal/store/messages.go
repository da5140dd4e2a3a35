package store

import (
	"fmt"

	"grudai/internal/logging"
)

// conversationClause returns the SQL fragment selecting one conversation
// scope: a concrete conversation id, or the project's default thread when
// conversationID is nil.
func conversationClause(conversationID *int64) (string, []interface{}) {
	if conversationID != nil {
		return "conversation_id = ?", []interface{}{*conversationID}
	}
	return "conversation_id IS NULL", nil
}

// CreateMessage appends one immutable message to a conversation scope.
func (s *LocalStore) CreateMessage(projectID int64, conversationID *int64, role, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"INSERT INTO messages (project_id, conversation_id, role, content) VALUES (?, ?, ?, ?)",
		projectID, conversationID, role, content,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	logging.StoreDebug("Message created: id=%d project=%d role=%s len=%d", id, projectID, role, len(content))
	return id, nil
}

// ListMessages returns messages in chronological order, bounded by
// limit/offset, within one conversation scope.
func (s *LocalStore) ListMessages(projectID int64, conversationID *int64, limit, offset int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	clause, scopeArgs := conversationClause(conversationID)
	args := append([]interface{}{projectID}, scopeArgs...)
	args = append(args, limit, offset)

	rows, err := s.db.Query(
		`SELECT id, project_id, conversation_id, role, content, created_at
		 FROM messages
		 WHERE project_id = ? AND `+clause+`
		 ORDER BY created_at ASC, id ASC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// RecentMessages returns up to limit messages from one conversation scope,
// most recent first, excluding the message identified by excludeID.
// Callers reverse the slice to get chronological order.
func (s *LocalStore) RecentMessages(projectID int64, conversationID *int64, excludeID int64, limit int) ([]Message, error) {
	timer := logging.StartTimer(logging.CategoryStore, "RecentMessages")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	clause, scopeArgs := conversationClause(conversationID)
	args := append([]interface{}{projectID}, scopeArgs...)
	args = append(args, excludeID, limit)

	rows, err := s.db.Query(
		`SELECT id, project_id, conversation_id, role, content, created_at
		 FROM messages
		 WHERE project_id = ? AND `+clause+` AND id != ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CountMessages returns the number of messages in one conversation scope.
func (s *LocalStore) CountMessages(projectID int64, conversationID *int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clause, scopeArgs := conversationClause(conversationID)
	args := append([]interface{}{projectID}, scopeArgs...)

	var count int64
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE project_id = ? AND "+clause,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// DeleteMessages clears history for one conversation scope.
func (s *LocalStore) DeleteMessages(projectID int64, conversationID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clause, scopeArgs := conversationClause(conversationID)
	args := append([]interface{}{projectID}, scopeArgs...)

	_, err := s.db.Exec(
		"DELETE FROM messages WHERE project_id = ? AND "+clause,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	logging.Store("Messages cleared: project=%d", projectID)
	return nil
}
