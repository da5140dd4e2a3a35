package store

import (
	"database/sql"
	"fmt"

	"grudai/internal/logging"
)

// CreateUser inserts a new user account.
func (s *LocalStore) CreateUser(email, name, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"INSERT INTO users (email, name, password_hash) VALUES (?, ?, ?)",
		email, name, passwordHash,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	logging.Store("User created: id=%d email=%s", id, email)
	return id, nil
}

// GetUser retrieves a user by id.
func (s *LocalStore) GetUser(id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u User
	err := s.db.QueryRow(
		"SELECT id, email, COALESCE(name, ''), COALESCE(password_hash, ''), created_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email address.
func (s *LocalStore) GetUserByEmail(email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u User
	err := s.db.QueryRow(
		"SELECT id, email, COALESCE(name, ''), COALESCE(password_hash, ''), created_at FROM users WHERE email = ?",
		email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
