package store

import (
	"database/sql"
	"fmt"

	"grudai/internal/logging"
)

const promptColumns = "id, project_id, name, content, created_at, updated_at"

func scanPrompt(row *sql.Row) (*Prompt, error) {
	var p Prompt
	err := row.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan prompt: %w", err)
	}
	return &p, nil
}

// CreatePrompt inserts a named reusable prompt into a project.
func (s *LocalStore) CreatePrompt(projectID int64, name, content string) (*Prompt, error) {
	s.mu.Lock()

	res, err := s.db.Exec(
		"INSERT INTO prompts (project_id, name, content) VALUES (?, ?, ?)",
		projectID, name, content,
	)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to create prompt: %w", err)
	}
	id, err := res.LastInsertId()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logging.Store("Prompt created: id=%d project=%d name=%s", id, projectID, name)
	return s.GetPrompt(projectID, id)
}

// GetPrompt retrieves a prompt by id, scoped to a project.
func (s *LocalStore) GetPrompt(projectID, id int64) (*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT "+promptColumns+" FROM prompts WHERE id = ? AND project_id = ?",
		id, projectID,
	)
	return scanPrompt(row)
}

// GetPromptForUser retrieves a prompt by id when its project belongs to
// the given user.
func (s *LocalStore) GetPromptForUser(userID, id int64) (*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT pr.id, pr.project_id, pr.name, pr.content, pr.created_at, pr.updated_at
		 FROM prompts pr
		 JOIN projects p ON pr.project_id = p.id
		 WHERE pr.id = ? AND p.user_id = ?`,
		id, userID,
	)
	return scanPrompt(row)
}

// ListPrompts returns all prompts of a project, newest first.
func (s *LocalStore) ListPrompts(projectID int64) ([]Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT "+promptColumns+" FROM prompts WHERE project_id = ? ORDER BY created_at DESC",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []Prompt
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt); err != nil {
			continue
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// UpdatePrompt updates a prompt's name and content. Empty fields keep the
// existing values.
func (s *LocalStore) UpdatePrompt(id int64, name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE prompts
		 SET name = CASE WHEN ? != '' THEN ? ELSE name END,
		     content = CASE WHEN ? != '' THEN ? ELSE content END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		name, name, content, content, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}
	return nil
}

// DeletePrompt removes a prompt.
func (s *LocalStore) DeletePrompt(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM prompts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
