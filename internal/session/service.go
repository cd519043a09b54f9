// Package session implements server-side chat session lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/newschat/internal/domain"
	"github.com/ashureev/newschat/internal/responder"
	"github.com/ashureev/newschat/internal/store"
	"github.com/google/uuid"
)

// DefaultTTL is how long a session lives after its last message.
const DefaultTTL = time.Hour

// ErrNotFound is returned for unknown or expired session tokens.
var ErrNotFound = store.ErrSessionNotFound

// ErrEmptyQuery is returned by Ask for blank queries.
var ErrEmptyQuery = errors.New("query is required")

// Service creates, validates and clears sessions and runs question/answer
// exchanges against their history.
type Service struct {
	repo      store.Repository
	responder responder.Responder
	ttl       time.Duration
	newToken  func() string
}

// NewService creates a session service. A non-positive ttl uses DefaultTTL.
func NewService(repo store.Repository, r responder.Responder, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo:      repo,
		responder: r,
		ttl:       ttl,
		newToken:  uuid.NewString,
	}
}

// Create generates a new token with an empty history.
func (s *Service) Create(ctx context.Context) (string, error) {
	token := s.newToken()
	if err := s.repo.CreateSession(ctx, token, s.ttl); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	slog.Info("Session created", "ttl", s.ttl)
	return token, nil
}

// Validate reports whether token names a live session.
func (s *Service) Validate(ctx context.Context, token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	ok, err := s.repo.SessionExists(ctx, token)
	if err != nil {
		slog.Warn("Session validation failed", "error", err)
		return false
	}
	return ok
}

// History returns the ordered messages of a session.
func (s *Service) History(ctx context.Context, token string) ([]domain.Message, error) {
	return s.repo.GetHistory(ctx, token)
}

// Clear deletes a session and its history.
func (s *Service) Clear(ctx context.Context, token string) error {
	if err := s.repo.DeleteSession(ctx, token); err != nil {
		return err
	}
	slog.Info("Session cleared")
	return nil
}

// Ask appends query as a user message, produces an answer and appends it as
// a bot message. The bot message is returned.
func (s *Service) Ask(ctx context.Context, token, query string) (domain.Message, error) {
	if domain.IsBlank(query) {
		return domain.Message{}, ErrEmptyQuery
	}

	history, err := s.repo.GetHistory(ctx, token)
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.repo.AppendMessage(ctx, token, domain.UserMessage(query), s.ttl); err != nil {
		return domain.Message{}, fmt.Errorf("record user message: %w", err)
	}

	answer, err := s.responder.Respond(ctx, history, query)
	if err != nil {
		return domain.Message{}, fmt.Errorf("generate answer: %w", err)
	}

	reply := domain.BotMessage(answer)
	if err := s.repo.AppendMessage(ctx, token, reply, s.ttl); err != nil {
		return domain.Message{}, fmt.Errorf("record bot message: %w", err)
	}
	return reply, nil
}
