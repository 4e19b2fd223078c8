package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the status line colors.
type Theme struct {
	Success lipgloss.Color
	Info    lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Success: lipgloss.Color("#00ff9f"),
	Info:    lipgloss.Color("#58a6ff"),
	Warning: lipgloss.Color("#d29922"),
	Error:   lipgloss.Color("#f85149"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Printer writes styled status lines.
type Printer struct {
	out, err io.Writer

	success, info, warning, fail, dim lipgloss.Style
}

// NewPrinter creates a printer writing status to out and errors to errw.
func NewPrinter(out, errw io.Writer, t Theme) *Printer {
	return &Printer{
		out:     out,
		err:     errw,
		success: lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		info:    lipgloss.NewStyle().Foreground(t.Info),
		warning: lipgloss.NewStyle().Foreground(t.Warning),
		fail:    lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		dim:     lipgloss.NewStyle().Foreground(t.Dim),
	}
}

var stdPrinter = NewPrinter(os.Stdout, os.Stderr, DefaultTheme)

// Success prints a success message with checkmark
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.success.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// Info prints an info message
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.out, p.info.Render("ℹ")+" "+fmt.Sprintf(format, args...))
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.out, p.warning.Render("⚠")+" "+fmt.Sprintf(format, args...))
}

// Error prints an error message to the error writer
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.err, p.fail.Render("Error:")+" "+fmt.Sprintf(format, args...))
}

// Field prints an aligned "label: value" line with a dimmed label.
func (p *Printer) Field(label string, value any) {
	fmt.Fprintf(p.out, "  %s %v\n", p.dim.Render(fmt.Sprintf("%-12s", label+":")), value)
}

// PrintSuccess prints a success message to stdout.
func PrintSuccess(format string, args ...any) { stdPrinter.Success(format, args...) }

// PrintInfo prints an info message to stdout.
func PrintInfo(format string, args ...any) { stdPrinter.Info(format, args...) }

// PrintWarning prints a warning message to stdout.
func PrintWarning(format string, args ...any) { stdPrinter.Warning(format, args...) }

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) { stdPrinter.Error(format, args...) }

// PrintField prints a labeled value to stdout.
func PrintField(label string, value any) { stdPrinter.Field(label, value) }
