// Package transport owns the session-bound real-time connection to the chat
// backend: one live WebSocket per Manager, flat-delay bounded reconnect, and
// in-order delivery of inbound frames to a single handler.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/newschat/internal/domain"
)

// ErrNotConnected is returned by Send when no connection is ready.
var ErrNotConnected = errors.New("transport: not connected")

var errEmptyToken = errors.New("empty session token")

// Messages synthesized into the handler when the connection fails.
const (
	MsgInitFailure    = "Error: Failed to connect to WebSocket."
	MsgTransportError = "Error: WebSocket connection failed. Please try again."
	MsgConnectionLost = "Error: WebSocket connection lost. Please start a new session."
)

// Handler receives raw inbound frames.
type Handler func(frame string)

// State is the lifecycle state of the current connection handle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config controls connection targets and the reconnect policy.
type Config struct {
	BaseURL              string
	Path                 string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	DialTimeout          time.Duration
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		Path:                 "/chat/ws",
		MaxReconnectAttempts: 3,
		ReconnectDelay:       3 * time.Second,
		DialTimeout:          10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Path == "" {
		c.Path = def.Path
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	return c
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the default WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager owns zero or one live connection.
//
// Handler invocations are serialized with Open and Close: once Open or Close
// returns, no handler registered before it will run again. Handlers must not
// call Open or Close synchronously.
type Manager struct {
	cfg    Config
	dialer Dialer
	logger *slog.Logger

	deliverMu sync.Mutex

	mu       sync.Mutex
	conn     Conn
	state    State
	target   string
	handler  Handler
	attempts int
	gen      uint64
	retry    *time.Timer
	cancel   context.CancelFunc
}

// NewManager creates an idle transport manager.
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg.withDefaults(),
		dialer: WebSocketDialer{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open replaces any existing connection with a fresh one for token.
// It returns immediately; frames and failures arrive through onMessage.
func (m *Manager) Open(token string, onMessage Handler) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	m.teardownLocked("session replaced")

	target, err := m.endpoint(token)
	if err != nil {
		m.mu.Unlock()
		m.logger.Error("WebSocket connection failed", "error", err)
		if onMessage != nil {
			onMessage(errorFrame(MsgInitFailure))
		}
		return
	}

	m.target = target
	m.handler = onMessage
	m.connectLocked()
	m.mu.Unlock()
}

// Send transmits text as one raw frame on the open connection.
func (m *Manager) Send(ctx context.Context, text string) error {
	m.mu.Lock()
	conn, state := m.conn, m.state
	m.mu.Unlock()

	if conn == nil || state != StateOpen {
		m.logger.Warn("WebSocket is not connected", "state", state.String())
		return ErrNotConnected
	}
	if err := conn.Write(ctx, text); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	m.logger.Debug("WebSocket frame sent", "length", len(text))
	return nil
}

// Close tears down the connection, the handler and any pending retry.
// It is safe to call at any time.
func (m *Manager) Close() {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	m.teardownLocked("client closed")
	m.mu.Unlock()
}

// State returns the state of the current handle.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the consecutive failed connection attempts in the
// current lifecycle.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *Manager) endpoint(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errEmptyToken
	}
	u, err := url.Parse(m.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", m.cfg.BaseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + m.cfg.Path
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// teardownLocked releases the current handle. Callers hold deliverMu and mu.
func (m *Manager) teardownLocked(reason string) {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	m.gen++
	m.handler = nil
	m.target = ""
	m.attempts = 0

	conn := m.conn
	m.conn = nil
	if conn == nil {
		if m.state != StateIdle {
			m.state = StateClosed
		}
		return
	}

	m.state = StateClosing
	gen := m.gen
	m.logger.Info("Disconnecting WebSocket", "reason", reason)
	go func() {
		if err := conn.Close(reason); err != nil {
			m.logger.Debug("Failed to close websocket", "error", err)
		}
		m.mu.Lock()
		if m.gen == gen && m.state == StateClosing {
			m.state = StateClosed
		}
		m.mu.Unlock()
	}()
}

// connectLocked starts dialing m.target under a new generation.
func (m *Manager) connectLocked() {
	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateConnecting

	m.logger.Info("Attempting WebSocket connection", "url", redactToken(m.target), "attempt", m.attempts)
	go m.run(ctx, gen, m.target)
}

func (m *Manager) run(ctx context.Context, gen uint64, target string) {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	conn, err := m.dialer.Dial(dialCtx, target)
	cancel()
	if err != nil {
		m.logger.Warn("WebSocket dial failed", "error", err)
		m.dropped(gen, err, false)
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if closeErr := conn.Close("superseded"); closeErr != nil {
			m.logger.Debug("Failed to close superseded websocket", "error", closeErr)
		}
		return
	}
	m.conn = conn
	m.state = StateOpen
	m.attempts = 0
	m.mu.Unlock()
	m.logger.Info("WebSocket connected successfully")

	for {
		frame, err := conn.Read(ctx)
		if err != nil {
			m.dropped(gen, err, true)
			return
		}
		m.deliver(gen, frame)
	}
}

// deliver hands frame to the handler if gen is still current.
func (m *Manager) deliver(gen uint64, frame string) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	h := m.handler
	current := gen == m.gen
	m.mu.Unlock()

	if !current || h == nil {
		return
	}
	m.logger.Debug("WebSocket message received", "length", len(frame))
	h(frame)
}

// dropped applies the reconnect policy after an unsolicited close.
func (m *Manager) dropped(gen uint64, cause error, wasOpen bool) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	var frames []string
	if wasOpen && !IsRemoteClose(cause) {
		frames = append(frames, errorFrame(MsgTransportError))
	}

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		conn := m.conn
		go func() { _ = conn.Close("connection dropped") }()
	}
	m.conn = nil
	m.state = StateClosed
	h := m.handler

	if m.attempts < m.cfg.MaxReconnectAttempts {
		m.attempts++
		attempt := m.attempts
		m.retry = time.AfterFunc(m.cfg.ReconnectDelay, func() { m.reconnect(gen) })
		m.logger.Info("WebSocket closed, scheduling reconnect",
			"cause", cause,
			"attempt", attempt,
			"delay", m.cfg.ReconnectDelay,
		)
	} else {
		m.logger.Error("Max WebSocket reconnect attempts reached", "cause", cause, "max", m.cfg.MaxReconnectAttempts)
		frames = append(frames, errorFrame(MsgConnectionLost))
		m.handler = nil
		m.target = ""
		m.attempts = 0
		m.retry = nil
	}
	m.mu.Unlock()

	if h == nil {
		return
	}
	for _, f := range frames {
		h(f)
	}
}

// reconnect is fired by the retry timer scheduled under gen.
func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.handler == nil || m.target == "" {
		return
	}
	m.retry = nil
	m.logger.Info("Reconnecting WebSocket", "attempt", m.attempts)
	m.connectLocked()
}

func errorFrame(content string) string {
	data, err := json.Marshal(domain.BotMessage(content))
	if err != nil {
		return content
	}
	return string(data)
}

// redactToken hides the token query value for logging.
func redactToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
