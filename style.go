package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	keywordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"})

	paragraphStyle = lipgloss.NewStyle().
			Margin(1, 2, 0, 2)
)

// keyword renders a highlighted term for help text.
func keyword(s string) string {
	return keywordStyle.Render(s)
}

// paragraph wraps help text to the terminal width.
func paragraph(s string) string {
	width := 80
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && w < width {
			width = w
		}
	}
	return paragraphStyle.Width(width - 4).Render(strings.TrimSpace(s)) + "\n"
}
