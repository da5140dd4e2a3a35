package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"grudai/internal/store"
)

type promptRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}
	if _, err := s.store.GetProject(currentUserID(r), projectID); err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}

	prompts, err := s.store.ListPrompts(projectID)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if prompts == nil {
		prompts = []store.Prompt{}
	}
	successResponse(w, map[string]interface{}{"prompts": prompts}, "")
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}
	if _, err := s.store.GetProject(currentUserID(r), projectID); err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid body", "Request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Content) == "" {
		errorResponse(w, http.StatusBadRequest, "Missing fields", "Prompt name and content are required")
		return
	}

	prompt, err := s.store.CreatePrompt(projectID, req.Name, req.Content)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	successResponse(w, map[string]interface{}{"prompt": prompt}, "Prompt created")
}

func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "promptID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Prompt id must be numeric")
		return
	}
	if _, err := s.store.GetPromptForUser(currentUserID(r), id); err != nil {
		writeStoreError(w, err, "Prompt not found")
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid body", "Request body must be JSON")
		return
	}

	if err := s.store.UpdatePrompt(id, req.Name, req.Content); err != nil {
		writeStoreError(w, err, "Prompt not found")
		return
	}
	successResponse(w, nil, "Prompt updated")
}

func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "promptID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Prompt id must be numeric")
		return
	}
	if _, err := s.store.GetPromptForUser(currentUserID(r), id); err != nil {
		writeStoreError(w, err, "Prompt not found")
		return
	}
	if err := s.store.DeletePrompt(id); err != nil {
		writeStoreError(w, err, "Prompt not found")
		return
	}
	successResponse(w, nil, "Prompt deleted")
}
