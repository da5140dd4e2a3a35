package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"grudai/internal/chat"
	"grudai/internal/logging"
	"grudai/internal/relay"
	"grudai/internal/store"
)

// sseWriter frames normalized events as server-sent events. Headers are
// written lazily on the first event so that turn validation failures can
// still produce a plain JSON error response.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (sw *sseWriter) write(event relay.Event) error {
	if !sw.started {
		h := sw.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		sw.started = true
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// handleChat runs one turn. Streaming is the default; ?stream=false
// returns a single JSON object instead.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}

	var req chat.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid body", "Request body must be JSON")
		return
	}

	userID := currentUserID(r)
	streamMode := r.URL.Query().Get("stream") != "false"

	if !streamMode {
		result, err := s.chat.SendOnce(r.Context(), userID, projectID, req)
		if err != nil {
			writeTurnError(w, err)
			return
		}
		successResponse(w, map[string]interface{}{
			"message": result.Reply,
			"usage":   result.Usage,
		}, "")
		return
	}

	flusher, _ := w.(http.Flusher)
	sw := &sseWriter{w: w, flusher: flusher}

	if _, err := s.chat.Send(r.Context(), userID, projectID, req, sw.write); err != nil {
		if !sw.started {
			writeTurnError(w, err)
			return
		}
		// Mid-stream failure: the transport is gone or the turn already
		// carried its error event; nothing more can be written.
		logging.APIError("Chat stream aborted: %v", err)
	}
}

// writeTurnError maps chat service errors onto the response envelope.
func writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		errorResponse(w, http.StatusBadRequest, "Missing message", "Message content is required")
	case errors.Is(err, store.ErrNotFound):
		errorResponse(w, http.StatusNotFound, "Not found", "Project not found")
	default:
		logging.APIError("Chat turn failed: %v", err)
		errorResponse(w, http.StatusInternalServerError, "LLM error", "Failed to get AI response")
	}
}

// conversationScope parses the optional conversationId query parameter.
func conversationScope(r *http.Request) (*int64, error) {
	raw := r.URL.Query().Get("conversationId")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// handleListMessages returns chat history for a project, optionally
// filtered to one conversation, in chronological order.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}

	if _, err := s.store.GetProject(currentUserID(r), projectID); err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}

	conversationID, err := conversationScope(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Conversation id must be numeric")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 50
	}

	messages, err := s.store.ListMessages(projectID, conversationID, limit, offset)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	total, err := s.store.CountMessages(projectID, conversationID)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}

	if messages == nil {
		messages = []store.Message{}
	}
	successResponse(w, map[string]interface{}{
		"messages": messages,
		"total":    total,
	}, "")
}

// handleClearMessages deletes history for a conversation scope.
func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Project id must be numeric")
		return
	}

	if _, err := s.store.GetProject(currentUserID(r), projectID); err != nil {
		writeStoreError(w, err, "Project not found")
		return
	}

	conversationID, err := conversationScope(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid id", "Conversation id must be numeric")
		return
	}

	if err := s.store.DeleteMessages(projectID, conversationID); err != nil {
		writeStoreError(w, err, "")
		return
	}
	successResponse(w, nil, "Chat history cleared")
}
