// Package api implements the HTTP surface: the producer-facing ingestion
// endpoint plus the operational endpoints (health, replay, metrics).
package api

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// MessageResponse is the error envelope consumers already parse:
// a single human-readable message.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteMessage writes a message-envelope response.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, MessageResponse{Message: message})
}
