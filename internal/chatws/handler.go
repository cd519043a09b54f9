package chatws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/newschat/internal/domain"
	"github.com/coder/websocket"
)

// Rejection reason and fallback content sent to clients.
const (
	ReasonInvalidToken = "Invalid or expired session token"
	MsgAnswerFailed    = "An error occurred"
)

// readLimit caps a single inbound query.
const readLimit = 64 << 10

// Sessions is the subset of the session service used by the endpoint.
type Sessions interface {
	Validate(ctx context.Context, token string) bool
	Ask(ctx context.Context, token, query string) (domain.Message, error)
}

// Handler serves /chat/ws?token=.
type Handler struct {
	sessions      Sessions
	registry      *Registry
	allowedOrigin string
	isDev         bool
	writeTimeout  time.Duration
}

// NewHandler creates a new chat WebSocket handler.
func NewHandler(sessions Sessions, registry *Registry, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		sessions:      sessions,
		registry:      registry,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		writeTimeout:  10 * time.Second,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Info("Chat WebSocket connection request", "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	// Invalid tokens fail the handshake itself so clients count a failed dial.
	token := r.URL.Query().Get("token")
	if !h.sessions.Validate(r.Context(), token) {
		slog.Warn("Rejected chat connection with invalid token")
		http.Error(w, ReasonInvalidToken, http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()
	ws.SetReadLimit(readLimit)

	h.registry.Register(token, ws)
	defer h.registry.Unregister(token, ws)

	h.serve(r.Context(), ws, token)
	slog.Info("Chat session ended")
}

func (h *Handler) serve(ctx context.Context, ws *websocket.Conn, token string) {
	for {
		typ, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		reply, err := h.sessions.Ask(ctx, token, string(message))
		if err != nil {
			slog.Error("Failed to answer query", "error", err)
			reply = domain.BotMessage(MsgAnswerFailed)
		}
		if err := h.writeJSON(ctx, ws, reply); err != nil {
			slog.Debug("Failed to write reply", "error", err)
			return
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
