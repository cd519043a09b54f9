// Package chatws serves the token-scoped chat WebSocket endpoint.
package chatws

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks the live connection of each session token. A session has
// at most one connection; registering a new one closes the previous.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*websocket.Conn)}
}

// getActive returns the active connection for token.
func (m *Registry) getActive(token string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[token]
}

// Len returns the number of live connections.
func (m *Registry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register adds conn as the connection for token.
func (m *Registry) Register(token string, conn *websocket.Conn) {
	m.mu.Lock()
	existing, exists := m.active[token]
	m.active[token] = conn
	m.mu.Unlock()

	if exists && existing != conn {
		go func() { _ = existing.Close(websocket.StatusNormalClosure, "session replaced") }()
	}
	slog.Info("Chat connection registered")
}

// Unregister removes conn if it is still the connection for token.
func (m *Registry) Unregister(token string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[token]; exists && current == conn {
		delete(m.active, token)
		slog.Info("Chat connection unregistered")
	}
}

// CloseSession terminates the connection of token, if any.
func (m *Registry) CloseSession(token string) {
	m.mu.Lock()
	conn, ok := m.active[token]
	delete(m.active, token)
	m.mu.Unlock()

	if ok {
		go func() { _ = conn.Close(websocket.StatusNormalClosure, "session closed") }()
	}
}
