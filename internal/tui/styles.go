// Package tui is the terminal mini-popup: it shows the current workspace
// and agent in the agent's accent color and maps keys to hotkey actions.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/soyeahso/agentclick/internal/domain"
)

var (
	Success = lipgloss.Color("#2ecc71")
	Warning = lipgloss.Color("#f1c40f")
	Error   = lipgloss.Color("#e74c3c")
	Muted   = lipgloss.Color("#7f8c8d")
)

// Styles groups the popup's lipgloss styles.
type Styles struct {
	Frame     lipgloss.Style
	Title     lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Help      lipgloss.Style
	Notice    map[string]lipgloss.Style
	StateBusy lipgloss.Style
	StateIdle lipgloss.Style
}

// DefaultStyles uses accent as the frame and title color. An empty accent
// uses domain.FallbackColor.
func DefaultStyles(accent string) Styles {
	if accent == "" {
		accent = domain.FallbackColor
	}
	c := lipgloss.Color(accent)
	return Styles{
		Frame:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c).Padding(0, 1),
		Title:     lipgloss.NewStyle().Bold(true).Foreground(c),
		Label:     lipgloss.NewStyle().Foreground(Muted).Width(11),
		Value:     lipgloss.NewStyle().Bold(true),
		Help:      lipgloss.NewStyle().Foreground(Muted),
		StateBusy: lipgloss.NewStyle().Foreground(Warning),
		StateIdle: lipgloss.NewStyle().Foreground(Muted),
		Notice: map[string]lipgloss.Style{
			"success": lipgloss.NewStyle().Foreground(Success),
			"warning": lipgloss.NewStyle().Foreground(Warning),
			"error":   lipgloss.NewStyle().Foreground(Error),
			"info":    lipgloss.NewStyle(),
		},
	}
}

// Swatch renders a colored block for listings.
func Swatch(color string) string {
	if color == "" {
		color = domain.FallbackColor
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
}
