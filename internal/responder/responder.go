// Package responder produces bot answers for user queries.
package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/newschat/internal/domain"
)

// Responder answers a query given the session history that precedes it.
type Responder interface {
	Respond(ctx context.Context, history []domain.Message, query string) (string, error)
}

// Func adapts a function to Responder.
type Func func(ctx context.Context, history []domain.Message, query string) (string, error)

// Respond implements Responder.
func (f Func) Respond(ctx context.Context, history []domain.Message, query string) (string, error) {
	return f(ctx, history, query)
}

// Echo is a development responder that reflects the query back along with
// how many earlier turns the session has.
type Echo struct{}

// Respond implements Responder.
func (Echo) Respond(ctx context.Context, history []domain.Message, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("empty query")
	}
	turns := 0
	for _, m := range history {
		if m.Role == domain.RoleUser {
			turns++
		}
	}
	if turns == 0 {
		return fmt.Sprintf("You asked: %q.", query), nil
	}
	return fmt.Sprintf("You asked: %q. This session has %d earlier question(s).", query, turns), nil
}
