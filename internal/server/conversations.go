package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"grudai/internal/store"
)

type conversationRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}
	if _, err := s.store.GetProject(currentUserID(r), projectID); err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}

	conversations, err := s.store.ListConversations(projectID)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if conversations == nil {
		conversations = []store.Conversation{}
	}
	successResponse(w, map[string]interface{}{"conversations": conversations}, "")
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}
	if _, err := s.store.GetProject(currentUserID(r), projectID); err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}

	var req conversationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorResponse(w, http.StatusBadRequest, "Invalid body", "Request body must be JSON")
			return
		}
	}

	conversation, err := s.store.CreateConversation(projectID, req.Title)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	successResponse(w, map[string]interface{}{"conversation": conversation}, "Conversation created")
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "conversationID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Conversation id must be numeric")
		return
	}
	if _, err := s.store.GetConversationForUser(currentUserID(r), id); err != nil {
		writeStoreError(w, err, "Conversation not found")
		return
	}

	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid body", "Request body must be JSON")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		errorResponse(w, http.StatusBadRequest, "Missing title", "Conversation title is required")
		return
	}

	if err := s.store.RenameConversation(id, req.Title); err != nil {
		writeStoreError(w, err, "Conversation not found")
		return
	}
	successResponse(w, nil, "Conversation renamed")
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "conversationID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Conversation id must be numeric")
		return
	}
	if _, err := s.store.GetConversationForUser(currentUserID(r), id); err != nil {
		writeStoreError(w, err, "Conversation not found")
		return
	}
	if err := s.store.DeleteConversation(id); err != nil {
		writeStoreError(w, err, "Conversation not found")
		return
	}
	successResponse(w, nil, "Conversation deleted")
}
