package store

import (
	"database/sql"
	"fmt"

	"grudai/internal/logging"
)

const conversationColumns = "id, project_id, COALESCE(title, ''), created_at, updated_at"

func scanConversation(row *sql.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	return &c, nil
}

// CreateConversation inserts a conversation into a project.
func (s *LocalStore) CreateConversation(projectID int64, title string) (*Conversation, error) {
	s.mu.Lock()

	if title == "" {
		title = "New Chat"
	}
	res, err := s.db.Exec(
		"INSERT INTO conversations (project_id, title) VALUES (?, ?)",
		projectID, title,
	)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	id, err := res.LastInsertId()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logging.Store("Conversation created: id=%d project=%d", id, projectID)
	return s.GetConversation(projectID, id)
}

// GetConversation retrieves a conversation by id, scoped to a project.
func (s *LocalStore) GetConversation(projectID, id int64) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT "+conversationColumns+" FROM conversations WHERE id = ? AND project_id = ?",
		id, projectID,
	)
	return scanConversation(row)
}

// GetConversationForUser retrieves a conversation by id when its project
// belongs to the given user.
func (s *LocalStore) GetConversationForUser(userID, id int64) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT c.id, c.project_id, COALESCE(c.title, ''), c.created_at, c.updated_at
		 FROM conversations c
		 JOIN projects p ON c.project_id = p.id
		 WHERE c.id = ? AND p.user_id = ?`,
		id, userID,
	)
	return scanConversation(row)
}

// ListConversations returns a project's conversations, most recently
// updated first, with message counts and last message previews.
func (s *LocalStore) ListConversations(projectID int64) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT c.id, c.project_id, COALESCE(c.title, ''), c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM messages WHERE conversation_id = c.id),
		        COALESCE((SELECT content FROM messages WHERE conversation_id = c.id ORDER BY created_at DESC, id DESC LIMIT 1), '')
		 FROM conversations c
		 WHERE c.project_id = ?
		 ORDER BY c.updated_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount, &c.LastMessage); err != nil {
			continue
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// RenameConversation updates a conversation title. Empty titles keep the
// existing one.
func (s *LocalStore) RenameConversation(id int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == "" {
		return nil
	}
	_, err := s.db.Exec(
		"UPDATE conversations SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		title, id,
	)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return nil
}

// TouchConversation refreshes a conversation's updated_at timestamp.
// Called at the start of every turn addressed to the conversation.
func (s *LocalStore) TouchConversation(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	logging.StoreDebug("Conversation touched: id=%d", id)
	return nil
}

// DeleteConversation removes a conversation; its messages go with it.
func (s *LocalStore) DeleteConversation(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	logging.Store("Conversation deleted: id=%d", id)
	return nil
}
