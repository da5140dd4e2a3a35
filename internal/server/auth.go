package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"grudai/internal/logging"
)

// ErrUnauthorized is returned when a request carries no valid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator resolves a request to the authenticated user's id.
// Session issuance lives outside this server; only verification is
// needed here.
type Authenticator interface {
	Authenticate(r *http.Request) (int64, error)
}

// TokenAuthenticator verifies static bearer tokens against user ids.
type TokenAuthenticator struct {
	tokens map[string]int64
}

// NewTokenAuthenticator creates an authenticator over a token→user map.
func NewTokenAuthenticator(tokens map[string]int64) *TokenAuthenticator {
	return &TokenAuthenticator{tokens: tokens}
}

// Authenticate extracts and verifies the Authorization bearer token.
func (a *TokenAuthenticator) Authenticate(r *http.Request) (int64, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return 0, ErrUnauthorized
	}
	userID, ok := a.tokens[token]
	if !ok {
		return 0, ErrUnauthorized
	}
	return userID, nil
}

type contextKey string

const userIDKey contextKey = "user_id"

// requireAuth rejects unauthenticated requests and stores the user id in
// the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.Authenticate(r)
		if err != nil {
			logging.APIDebug("Rejected unauthenticated request: %s %s", r.Method, r.URL.Path)
			errorResponse(w, http.StatusUnauthorized, "Unauthorized", "Valid authentication token required")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUserID returns the authenticated user id set by requireAuth.
func currentUserID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}
