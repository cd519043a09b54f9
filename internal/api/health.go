package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/newschat/internal/store"
	"github.com/go-chi/chi/v5"
)

// defaultHealthCheckTimeout bounds the repository ping.
const defaultHealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo        store.Repository
	timeout     time.Duration
	connections func() int
}

// NewHealthHandler creates a new health handler. A non-positive timeout uses
// the default.
func NewHealthHandler(repo store.Repository, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = defaultHealthCheckTimeout
	}
	return &HealthHandler{repo: repo, timeout: timeout}
}

// WithConnections reports the number of live chat connections, as returned
// by count, in the health payload.
func (h *HealthHandler) WithConnections(count func() int) *HealthHandler {
	h.connections = count
	return h
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK
	if h.connections != nil {
		status["connections"] = h.connections()
	}

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route. /health itself is served
// by the heartbeat middleware.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/healthz", h.Health)
}
