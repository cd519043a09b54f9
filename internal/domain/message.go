// Package domain contains core domain types for the news chat application.
package domain

import "strings"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser marks a message typed by the person chatting.
	RoleUser Role = "user"
	// RoleBot marks a message produced by the backend.
	RoleBot Role = "bot"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleBot
}

// Message is a single entry in a chat history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user-authored message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// BotMessage builds a bot-authored message.
func BotMessage(content string) Message {
	return Message{Role: RoleBot, Content: content}
}

// IsBlank reports whether text contains nothing but whitespace.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
