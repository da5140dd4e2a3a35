package store

import (
	"database/sql"
	"fmt"

	"grudai/internal/logging"
)

const projectColumns = "id, user_id, name, COALESCE(description, ''), COALESCE(system_prompt, ''), COALESCE(model, ''), created_at, updated_at"

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.SystemPrompt, &p.Model, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return &p, nil
}

// CreateProject inserts a new project for the given owner.
// Empty systemPrompt and model fall back to the schema defaults.
func (s *LocalStore) CreateProject(userID int64, name, description, systemPrompt, model string) (*Project, error) {
	s.mu.Lock()

	if systemPrompt == "" {
		systemPrompt = "You are a helpful assistant."
	}
	if model == "" {
		model = "openai/gpt-3.5-turbo"
	}

	res, err := s.db.Exec(
		"INSERT INTO projects (user_id, name, description, system_prompt, model) VALUES (?, ?, ?, ?, ?)",
		userID, name, description, systemPrompt, model,
	)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	id, err := res.LastInsertId()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logging.Store("Project created: id=%d user=%d name=%s", id, userID, name)
	return s.GetProject(userID, id)
}

// GetProject retrieves a project by id, scoped to its owner.
func (s *LocalStore) GetProject(userID, id int64) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT "+projectColumns+" FROM projects WHERE id = ? AND user_id = ?",
		id, userID,
	)
	return scanProject(row)
}

// ListProjects returns all projects owned by the user, newest first.
func (s *LocalStore) ListProjects(userID int64) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT "+projectColumns+" FROM projects WHERE user_id = ? ORDER BY updated_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.SystemPrompt, &p.Model, &p.CreatedAt, &p.UpdatedAt); err != nil {
			continue
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject updates the mutable fields of an owned project.
func (s *LocalStore) UpdateProject(userID, id int64, name, description, systemPrompt, model string) (*Project, error) {
	existing, err := s.GetProject(userID, id)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = existing.Name
	}
	if systemPrompt == "" {
		systemPrompt = existing.SystemPrompt
	}
	if model == "" {
		model = existing.Model
	}

	s.mu.Lock()
	_, err = s.db.Exec(
		"UPDATE projects SET name = ?, description = ?, system_prompt = ?, model = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?",
		name, description, systemPrompt, model, id, userID,
	)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return s.GetProject(userID, id)
}

// DeleteProject removes an owned project and, via cascade, everything in it.
func (s *LocalStore) DeleteProject(userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM projects WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	logging.Store("Project deleted: id=%d user=%d", id, userID)
	return nil
}
