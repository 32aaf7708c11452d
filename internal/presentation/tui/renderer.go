package tui

import (
	"github.com/charmbracelet/glamour"
)

// Renderer turns markdown into terminal output.
type Renderer func(string) (string, error)

// NewRenderer returns a glamour renderer that follows the terminal background.
// If glamour cannot be set up the markdown is returned as is.
func NewRenderer() Renderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return Plain
	}
	return r.Render
}

// Plain returns markdown unchanged. Used for piped output.
func Plain(markdown string) (string, error) {
	return markdown, nil
}
