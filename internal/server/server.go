// Package server exposes the GrudAI HTTP API: project-scoped chat with a
// streamed response, plus CRUD for projects, conversations, prompts and
// reference files.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"grudai/internal/chat"
	"grudai/internal/extract"
	"grudai/internal/logging"
	"grudai/internal/store"
)

// Server wires the HTTP surface to the chat service and store.
type Server struct {
	store      *store.LocalStore
	chat       *chat.Service
	auth       Authenticator
	extractor  extract.Extractor
	uploadsDir string
	maxUpload  int64
	version    string
	router     chi.Router
}

// Options configures a Server.
type Options struct {
	Store      *store.LocalStore
	Chat       *chat.Service
	Auth       Authenticator
	Extractor  extract.Extractor
	UploadsDir string
	MaxUpload  int64
	Version    string
}

// New creates the server and mounts all routes.
func New(opts Options) *Server {
	s := &Server{
		store:      opts.Store,
		chat:       opts.Chat,
		auth:       opts.Auth,
		extractor:  opts.Extractor,
		uploadsDir: opts.UploadsDir,
		maxUpload:  opts.MaxUpload,
		version:    opts.Version,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 10 * 1024 * 1024
	}
	if s.extractor == nil {
		s.extractor = extract.NewPlainText()
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/api/users/me", s.handleCurrentUser)

		r.Get("/api/projects", s.handleListProjects)
		r.Post("/api/projects", s.handleCreateProject)
		r.Get("/api/projects/{projectID}", s.handleGetProject)
		r.Put("/api/projects/{projectID}", s.handleUpdateProject)
		r.Delete("/api/projects/{projectID}", s.handleDeleteProject)

		r.Post("/api/projects/{projectID}/chat", s.handleChat)
		r.Get("/api/projects/{projectID}/messages", s.handleListMessages)
		r.Delete("/api/projects/{projectID}/messages", s.handleClearMessages)

		r.Get("/api/projects/{projectID}/conversations", s.handleListConversations)
		r.Post("/api/projects/{projectID}/conversations", s.handleCreateConversation)
		r.Put("/api/conversations/{conversationID}", s.handleUpdateConversation)
		r.Delete("/api/conversations/{conversationID}", s.handleDeleteConversation)

		r.Get("/api/projects/{projectID}/prompts", s.handleListPrompts)
		r.Post("/api/projects/{projectID}/prompts", s.handleCreatePrompt)
		r.Put("/api/prompts/{promptID}", s.handleUpdatePrompt)
		r.Delete("/api/prompts/{promptID}", s.handleDeletePrompt)

		r.Get("/api/projects/{projectID}/files", s.handleListFiles)
		r.Post("/api/projects/{projectID}/files", s.handleUploadFile)
		r.Get("/api/files/{fileID}", s.handleDownloadFile)
		r.Get("/api/files/{fileID}/text", s.handleFileText)
		r.Delete("/api/files/{fileID}", s.handleDeleteFile)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, "Not found", "Route "+r.Method+" "+r.URL.Path+" not found")
	})

	s.router = r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.API("%s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	successResponse(w, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.version,
	}, "")
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(currentUserID(r))
	if err != nil {
		writeStoreError(w, err, "User not found")
		return
	}
	successResponse(w, map[string]interface{}{"user": user}, "")
}

// urlID parses a chi URL parameter as an int64 id.
func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// writeStoreError maps store errors onto the response envelope.
func writeStoreError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, store.ErrNotFound) {
		errorResponse(w, http.StatusNotFound, "Not found", notFoundMsg)
		return
	}
	logging.APIError("Store operation failed: %v", err)
	errorResponse(w, http.StatusInternalServerError, "Server error", "Operation failed")
}
