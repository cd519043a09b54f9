// Package api provides HTTP handlers for the news chat backend.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/newschat/internal/session"
)

// Handler provides common handler utilities.
type Handler struct {
	sessions  *session.Service
	closeConn func(token string)
}

// NewHandler creates a new Handler with common dependencies. closeConn, if
// non-nil, is called with the token of every cleared session so live
// connections can be dropped.
func NewHandler(sessions *session.Service, closeConn func(token string)) *Handler {
	return &Handler{sessions: sessions, closeConn: closeConn}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Detail writes a JSON error response in the {"detail": ...} shape used by
// the session and chat routes.
func Detail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"detail": message})
}
