package main

import (
	"strings"

	"github.com/ashureev/newschat/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

var (
	userLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	botLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	tokenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))
)

// renderMessage formats one chat line. Bot messages that report a failure
// are highlighted.
func renderMessage(m domain.Message) string {
	switch m.Role {
	case domain.RoleUser:
		return userLabelStyle.Render("You:") + " " + m.Content
	default:
		content := m.Content
		if strings.HasPrefix(content, "Error:") {
			content = errorStyle.Render(content)
		}
		return botLabelStyle.Render("Bot:") + " " + content
	}
}

func renderThinking() string {
	return mutedStyle.Render("Bot is thinking...")
}

func renderNotice(text string) string {
	return mutedStyle.Render(text)
}
