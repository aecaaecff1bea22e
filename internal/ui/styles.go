package ui

import "github.com/charmbracelet/lipgloss"

// Color palette.
const (
	colorPrimary = lipgloss.Color("#00BFFF") // headings
	colorAccent  = lipgloss.Color("#FFD700") // warnings
	colorSuccess = lipgloss.Color("#00E676") // passing checks
	colorDanger  = lipgloss.Color("#FF5252") // failures
	colorMuted   = lipgloss.Color("#636363") // diagnostics
	colorWhite   = lipgloss.Color("#EEEEEE") // values
)

type styles struct {
	heading  lipgloss.Style
	value    lipgloss.Style
	ok       lipgloss.Style
	fail     lipgloss.Style
	warn     lipgloss.Style
	errLabel lipgloss.Style
	debug    lipgloss.Style
}

// newStyles binds result styles to out and diagnostic styles to errOut so
// each stream is colored only when it is a terminal.
func newStyles(out, errOut *lipgloss.Renderer) styles {
	return styles{
		heading:  out.NewStyle().Foreground(colorPrimary).Bold(true),
		value:    out.NewStyle().Foreground(colorWhite),
		ok:       out.NewStyle().Foreground(colorSuccess).Bold(true),
		fail:     out.NewStyle().Foreground(colorDanger).Bold(true),
		warn:     out.NewStyle().Foreground(colorAccent).Bold(true),
		errLabel: errOut.NewStyle().Foreground(colorDanger).Bold(true),
		debug:    errOut.NewStyle().Foreground(colorMuted),
	}
}
