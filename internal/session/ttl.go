package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/newschat/internal/store"
)

// CleanupInterval is how often the TTL worker sweeps expired sessions.
const CleanupInterval = 5 * time.Minute

// StartTTLWorker runs a background goroutine that periodically deletes
// expired sessions until ctx is cancelled.
func StartTTLWorker(ctx context.Context, repo store.Repository, interval time.Duration) {
	if interval <= 0 {
		interval = CleanupInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				cleanupExpiredSessions(ctx, repo)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func cleanupExpiredSessions(ctx context.Context, repo store.Repository) {
	deleted, err := repo.DeleteExpired(ctx)
	if err != nil {
		slog.Error("TTL worker failed to delete expired sessions", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("TTL worker cleaned up expired sessions", "count", deleted)
	}
}
