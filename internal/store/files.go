package store

import (
	"database/sql"
	"fmt"

	"grudai/internal/logging"
)

const fileColumns = "id, project_id, filename, original_name, mime_type, size, extracted_text, COALESCE(extraction_method, ''), created_at"

func scanFile(row *sql.Row) (*File, error) {
	var f File
	err := row.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.OriginalName, &f.MimeType, &f.Size, &f.ExtractedText, &f.ExtractionMethod, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}
	return &f, nil
}

// CreateFile records an uploaded reference file and its extracted text.
// extractedText may be nil when extraction produced nothing.
func (s *LocalStore) CreateFile(projectID int64, filename, originalName, mimeType string, size int64, extractedText *string, extractionMethod string) (*File, error) {
	s.mu.Lock()

	res, err := s.db.Exec(
		"INSERT INTO files (project_id, filename, original_name, mime_type, size, extracted_text, extraction_method) VALUES (?, ?, ?, ?, ?, ?, ?)",
		projectID, filename, originalName, mimeType, size, extractedText, extractionMethod,
	)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	id, err := res.LastInsertId()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logging.Store("File created: id=%d project=%d name=%s method=%s", id, projectID, originalName, extractionMethod)
	return s.GetFile(projectID, id)
}

// GetFile retrieves a file by id, scoped to a project.
func (s *LocalStore) GetFile(projectID, id int64) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT "+fileColumns+" FROM files WHERE id = ? AND project_id = ?",
		id, projectID,
	)
	return scanFile(row)
}

// GetFileForUser retrieves a file by id when its project belongs to the
// given user.
func (s *LocalStore) GetFileForUser(userID, id int64) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT f.id, f.project_id, f.filename, f.original_name, f.mime_type, f.size, f.extracted_text, COALESCE(f.extraction_method, ''), f.created_at
		 FROM files f
		 JOIN projects p ON f.project_id = p.id
		 WHERE f.id = ? AND p.user_id = ?`,
		id, userID,
	)
	return scanFile(row)
}

// ListFiles returns all files of a project, newest first.
func (s *LocalStore) ListFiles(projectID int64) ([]File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT "+fileColumns+" FROM files WHERE project_id = ? ORDER BY created_at DESC",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.OriginalName, &f.MimeType, &f.Size, &f.ExtractedText, &f.ExtractionMethod, &f.CreatedAt); err != nil {
			continue
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes a file record. Callers are responsible for the bytes
// on disk.
func (s *LocalStore) DeleteFile(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
