package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"grudai/internal/store"
)

type projectRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"systemPrompt"`
	Model        string `json:"model"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(currentUserID(r))
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	successResponse(w, map[string]interface{}{"projects": projects}, "")
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid body", "Request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		errorResponse(w, http.StatusBadRequest, "Missing name", "Project name is required")
		return
	}

	project, err := s.store.CreateProject(currentUserID(r), req.Name, req.Description, req.SystemPrompt, req.Model)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	successResponse(w, map[string]interface{}{"project": project}, "Project created")
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}
	project, err := s.store.GetProject(currentUserID(r), id)
	if err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}
	successResponse(w, map[string]interface{}{"project": project}, "")
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid body", "Request body must be JSON")
		return
	}

	project, err := s.store.UpdateProject(currentUserID(r), id, req.Name, req.Description, req.SystemPrompt, req.Model)
	if err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}
	successResponse(w, map[string]interface{}{"project": project}, "Project updated")
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}
	if err := s.store.DeleteProject(currentUserID(r), id); err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}
	successResponse(w, nil, "Project deleted")
}
