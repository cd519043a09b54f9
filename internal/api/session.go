package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/newschat/internal/domain"
	"github.com/ashureev/newschat/internal/session"
	"github.com/go-chi/chi/v5"
)

// maxQueryBody caps the /chat/query request body.
const maxQueryBody = 64 << 10

// SessionHandler handles session lifecycle and request/response chat routes.
type SessionHandler struct {
	*Handler
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(base *Handler) *SessionHandler {
	return &SessionHandler{Handler: base}
}

// RegisterRoutes registers session and chat routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Route("/session", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Get("/history/{token}", h.History)
		r.Delete("/clear/{token}", h.Clear)
	})
	r.Post("/chat/query", h.Query)
}

// StartResponse is returned by POST /session/start.
type StartResponse struct {
	SessionToken string `json:"session_token"`
}

// HistoryResponse is returned by GET /session/history/{token}.
type HistoryResponse struct {
	History []domain.Message `json:"history"`
}

// QueryRequest is the body of POST /chat/query.
type QueryRequest struct {
	Query        string `json:"query"`
	SessionToken string `json:"session_token,omitempty"`
}

// QueryResponse is returned by POST /chat/query.
type QueryResponse struct {
	SessionToken string `json:"session_token"`
	Answer       string `json:"answer"`
}

// Root reports that the backend is up.
func (h *SessionHandler) Root(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"message": "News Chatbot Backend is running!"})
}

// Start creates a new session.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	token, err := h.sessions.Create(r.Context())
	if err != nil {
		slog.Error("Failed to create session", "error", err)
		Detail(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	JSON(w, http.StatusOK, StartResponse{SessionToken: token})
}

// History returns the messages of a session.
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	history, err := h.sessions.History(r.Context(), token)
	if errors.Is(err, session.ErrNotFound) {
		Detail(w, http.StatusNotFound, "Session not found or expired")
		return
	}
	if err != nil {
		slog.Error("Failed to load history", "error", err)
		Detail(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	JSON(w, http.StatusOK, HistoryResponse{History: history})
}

// Clear deletes a session.
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	err := h.sessions.Clear(r.Context(), token)
	if errors.Is(err, session.ErrNotFound) {
		Detail(w, http.StatusNotFound, "Session not found or expired")
		return
	}
	if err != nil {
		slog.Error("Failed to clear session", "error", err)
		Detail(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	if h.closeConn != nil {
		h.closeConn(token)
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Session cleared successfully"})
}

// Query answers a single question, creating a session when none is given.
func (h *SessionHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
		Detail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if domain.IsBlank(req.Query) {
		Detail(w, http.StatusBadRequest, "Query is required")
		return
	}

	ctx := r.Context()
	token := req.SessionToken
	if token == "" {
		var err error
		token, err = h.sessions.Create(ctx)
		if err != nil {
			slog.Error("Failed to create session", "error", err)
			Detail(w, http.StatusInternalServerError, "failed to create session")
			return
		}
	} else if !h.sessions.Validate(ctx, token) {
		Detail(w, http.StatusUnauthorized, "Invalid or expired session token")
		return
	}

	reply, err := h.sessions.Ask(ctx, token, req.Query)
	if errors.Is(err, session.ErrNotFound) {
		Detail(w, http.StatusUnauthorized, "Invalid or expired session token")
		return
	}
	if err != nil {
		slog.Error("Failed to answer query", "error", err)
		Detail(w, http.StatusInternalServerError, "An error occurred")
		return
	}

	JSON(w, http.StatusOK, QueryResponse{SessionToken: token, Answer: reply.Content})
}
