// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/newschat/internal/domain"
)

// ErrSessionNotFound is returned when a session token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found or expired")

// Repository defines the interface for persisting chat sessions and history.
type Repository interface {
	// CreateSession registers a new empty session that expires after ttl.
	CreateSession(ctx context.Context, token string, ttl time.Duration) error

	// SessionExists reports whether token names a live session.
	SessionExists(ctx context.Context, token string) (bool, error)

	// GetHistory returns the ordered messages of a live session.
	GetHistory(ctx context.Context, token string) ([]domain.Message, error)

	// AppendMessage adds msg to the session history and refreshes its expiry to ttl.
	AppendMessage(ctx context.Context, token string, msg domain.Message, ttl time.Duration) error

	// DeleteSession removes a session and its history.
	DeleteSession(ctx context.Context, token string) error

	// DeleteExpired removes sessions whose expiry has passed.
	DeleteExpired(ctx context.Context) (int64, error)

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}
