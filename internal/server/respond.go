package server

import (
	"encoding/json"
	"net/http"
)

// successResponse writes the {success, message, data} envelope.
func successResponse(w http.ResponseWriter, data interface{}, message string) {
	if message == "" {
		message = "Success"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// errorResponse writes the {error, message} envelope with a status code.
func errorResponse(w http.ResponseWriter, statusCode int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   errStr,
		"message": message,
	})
}
