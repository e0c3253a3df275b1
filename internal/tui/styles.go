// Package tui renders sync previews in the terminal and walks the operator
// through resolving each conflict.
package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Palette
var (
	colorAccent   = lipgloss.Color("#8BC34A")
	colorNew      = lipgloss.Color("#2196F3")
	colorModified = lipgloss.Color("#FFC107")
	colorMuted    = lipgloss.Color("#6A737D")
	colorError    = lipgloss.Color("#E53935")
)

// Styles holds the styles used by the preview views.
type Styles struct {
	Title    lipgloss.Style
	Header   lipgloss.Style
	Cell     lipgloss.Style
	New      lipgloss.Style
	Modified lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
}

// NewStyles builds the styles for renderer r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:    r.NewStyle().Bold(true).Foreground(colorAccent),
		Header:   r.NewStyle().Bold(true).Padding(0, 1),
		Cell:     r.NewStyle().Padding(0, 1),
		New:      r.NewStyle().Padding(0, 1).Foreground(colorNew),
		Modified: r.NewStyle().Padding(0, 1).Foreground(colorModified),
		Muted:    r.NewStyle().Foreground(colorMuted),
		Error:    r.NewStyle().Foreground(colorError),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRenderer returns a renderer for w. Output that is not a terminal gets
// plain text; terminals honor NO_COLOR and CLICOLOR_FORCE.
func NewRenderer(w io.Writer) *lipgloss.Renderer {
	profile := termenv.Ascii
	if f, ok := w.(*os.File); ok && IsTerminal(f) {
		profile = termenv.EnvColorProfile()
	}
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)
	return r
}
