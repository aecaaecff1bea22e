// Package ui renders tc's human-readable output. Styles are bound to the
// destination writer, so output piped to a file or captured in tests carries
// no escape codes.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes command output. Out carries results, Err carries errors and
// verbose diagnostics.
type Printer struct {
	Out     io.Writer
	Err     io.Writer
	Verbose bool

	styles styles
}

// New returns a Printer writing to out and errOut.
func New(out, errOut io.Writer, verbose bool) *Printer {
	return &Printer{
		Out:     out,
		Err:     errOut,
		Verbose: verbose,
		styles:  newStyles(lipgloss.NewRenderer(out), lipgloss.NewRenderer(errOut)),
	}
}

// Heading prints a section title.
func (p *Printer) Heading(title string) {
	fmt.Fprintln(p.Out, p.styles.heading.Render(title))
}

// Line prints text verbatim.
func (p *Printer) Line(text string) {
	fmt.Fprintln(p.Out, text)
}

// Bullet prints a "- text" list entry.
func (p *Printer) Bullet(format string, args ...any) {
	fmt.Fprintf(p.Out, "- %s\n", fmt.Sprintf(format, args...))
}

// Item prints a "- label: value" list entry.
func (p *Printer) Item(label string, value any) {
	fmt.Fprintf(p.Out, "- %s: %s\n", label, p.styles.value.Render(fmt.Sprint(value)))
}

// Check prints one diagnostic line with a fixed-width OK/FAIL status.
func (p *Printer) Check(ok bool, name, detail string) {
	status := p.styles.ok.Render("OK") + "  "
	if !ok {
		status = p.styles.fail.Render("FAIL")
	}
	fmt.Fprintf(p.Out, "- %s %s: %s\n", status, name, detail)
}

// Warn prints a highlighted warning on Out, where it stays next to the
// results it qualifies.
func (p *Printer) Warn(msg string) {
	fmt.Fprintln(p.Out, p.styles.warn.Render(msg))
}

// Error prints "error: msg" on Err.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.Err, "%s %s\n", p.styles.errLabel.Render("error:"), msg)
}

// Debugf prints a diagnostic line on Err when verbose output is enabled.
func (p *Printer) Debugf(format string, args ...any) {
	if !p.Verbose {
		return
	}
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintln(p.Err, p.styles.debug.Render(msg))
}

// JSON prints v as indented JSON on Out.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
