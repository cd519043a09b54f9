// Package chat binds a session token to the transport and maintains the
// visible message sequence and the "bot is composing" flag.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ashureev/newschat/internal/domain"
	"github.com/ashureev/newschat/internal/transport"
)

// Messages appended when a receive or send cycle fails.
const (
	MsgMalformedFrame = "Error: Received a malformed response from the server."
	MsgSendFailed     = "Error: Failed to send message. Please try again."
)

// Transport is the subset of transport.Manager the controller drives.
type Transport interface {
	Open(token string, onMessage transport.Handler)
	Send(ctx context.Context, text string) error
	Close()
}

// TokenSource yields the persisted session token, or "" when there is none.
type TokenSource interface {
	Get(ctx context.Context) (string, error)
}

// HistoryFetcher loads past messages for a session.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, token string) ([]domain.Message, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithHistory seeds the visible sequence from f on Start.
func WithHistory(f HistoryFetcher) Option {
	return func(c *Controller) { c.history = f }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller is the view model behind the chat UI.
type Controller struct {
	transport Transport
	tokens    TokenSource
	history   HistoryFetcher
	logger    *slog.Logger
	updates   chan struct{}

	mu       sync.Mutex
	token    string
	messages []domain.Message
	thinking bool
}

// NewController creates a controller that reads its token from tokens.
func NewController(t Transport, tokens TokenSource, opts ...Option) *Controller {
	c := &Controller{
		transport: t,
		tokens:    tokens,
		logger:    slog.Default(),
		updates:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start reads the session token once and, if present, loads history and
// opens the transport. With no token the transport stays closed.
func (c *Controller) Start(ctx context.Context) error {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("read session token: %w", err)
	}
	if token == "" {
		c.logger.Info("No session token, chat transport not opened")
		return nil
	}

	var past []domain.Message
	if c.history != nil {
		past, err = c.history.FetchHistory(ctx, token)
		if err != nil {
			c.logger.Warn("Failed to fetch chat history", "error", err)
			past = nil
		}
	}

	c.mu.Lock()
	c.token = token
	c.messages = append(c.messages[:0], past...)
	c.mu.Unlock()
	c.notify()

	c.transport.Open(token, c.receive)
	return nil
}

// Submit sends text as a user message. It returns false without any state
// change for blank input or when no session is active; callers clear their
// input field when it returns true.
func (c *Controller) Submit(ctx context.Context, text string) bool {
	c.mu.Lock()
	if domain.IsBlank(text) || c.token == "" {
		c.mu.Unlock()
		return false
	}
	c.messages = append(c.messages, domain.UserMessage(text))
	c.thinking = true
	c.mu.Unlock()
	c.notify()

	if err := c.transport.Send(ctx, text); err != nil {
		c.logger.Error("Failed to send chat message", "error", err)
		c.appendBot(MsgSendFailed)
	}
	return true
}

// receive handles one inbound frame from the transport.
func (c *Controller) receive(frame string) {
	msg, err := decodeFrame(frame)
	if err != nil {
		c.logger.Warn("Malformed inbound frame", "error", err, "length", len(frame))
		msg = domain.BotMessage(MsgMalformedFrame)
	}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.thinking = false
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) appendBot(content string) {
	c.mu.Lock()
	c.messages = append(c.messages, domain.BotMessage(content))
	c.thinking = false
	c.mu.Unlock()
	c.notify()
}

func decodeFrame(frame string) (domain.Message, error) {
	var msg domain.Message
	if err := json.Unmarshal([]byte(frame), &msg); err != nil {
		return domain.Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if !msg.Role.Valid() {
		return domain.Message{}, fmt.Errorf("decode frame: unknown role %q", msg.Role)
	}
	return msg, nil
}

// Messages returns a copy of the visible message sequence.
func (c *Controller) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.messages...)
}

// IsThinking reports whether a response is awaited.
func (c *Controller) IsThinking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thinking
}

// HasActiveSession reports whether Start found a session token.
func (c *Controller) HasActiveSession() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// Updates signals after every change to the visible state. Signals coalesce;
// readers should re-read the full view on each receive.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Close releases the transport.
func (c *Controller) Close() {
	c.transport.Close()
}
