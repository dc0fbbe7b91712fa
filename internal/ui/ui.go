// Package ui renders CLI output: status lines, errors, Markdown answers and
// progress bars. Colour and rich rendering are used only on terminals.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

const defaultWidth = 100

// Printer writes user-facing output.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	tty   bool
	theme string
}

// New returns a printer on stdout/stderr. theme is dark, light or auto.
func New(theme string) *Printer {
	fd := os.Stdout.Fd()
	return &Printer{
		Out:   os.Stdout,
		Err:   os.Stderr,
		tty:   isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		theme: theme,
	}
}

// NewPlain returns a printer without colour or Markdown rendering.
func NewPlain(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut}
}

// Interactive reports whether stdout is a terminal.
func (p *Printer) Interactive() bool { return p.tty }

func (p *Printer) paint(s string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if p.tty {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("75")).
	BorderStyle(lipgloss.NormalBorder()).
	BorderBottom(true).
	BorderForeground(lipgloss.Color("240"))

// Header prints a section title.
func (p *Printer) Header(title string) {
	if !p.tty {
		fmt.Fprintf(p.Out, "== %s ==\n", title)
		return
	}
	fmt.Fprintln(p.Out, headerStyle.Render("NEXUS · "+title))
}

// Status prints a muted progress line to stderr.
func (p *Printer) Status(format string, args ...any) {
	fmt.Fprintln(p.Err, p.paint(fmt.Sprintf(format, args...), color.FgHiBlack))
}

// Success prints a confirmation line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.Out, p.paint("✓ ", color.FgGreen, color.Bold)+fmt.Sprintf(format, args...))
}

// Warn prints a warning to stderr.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.Err, p.paint("warning: ", color.FgYellow, color.Bold)+fmt.Sprintf(format, args...))
}

// Field prints an aligned "label: value" line.
func (p *Printer) Field(label string, value any) {
	fmt.Fprintf(p.Out, "  %s %v\n", p.paint(fmt.Sprintf("%-12s", label+":"), color.FgCyan), value)
}

// Error prints "error[kind]: msg" and an optional "hint: ..." to stderr.
func (p *Printer) Error(kind, msg, hint string) {
	fmt.Fprintf(p.Err, "%s %s\n", p.paint("error["+kind+"]:", color.FgRed, color.Bold), msg)
	if hint != "" {
		fmt.Fprintf(p.Err, "%s %s\n", p.paint("hint:", color.FgCyan), hint)
	}
}

// Markdown renders text with glamour on a terminal and prints it verbatim
// otherwise.
func (p *Printer) Markdown(text string) {
	if !p.tty {
		fmt.Fprintln(p.Out, strings.TrimRight(text, "\n"))
		return
	}
	opt := glamour.WithAutoStyle()
	if p.theme == "dark" || p.theme == "light" {
		opt = glamour.WithStandardStyle(p.theme)
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(defaultWidth))
	if err == nil {
		if out, err := r.Render(text); err == nil {
			fmt.Fprint(p.Out, out)
			return
		}
	}
	fmt.Fprintln(p.Out, text)
}

// Fragment writes streamed model output as it arrives.
func (p *Printer) Fragment(text string) {
	fmt.Fprint(p.Out, text)
}

// Restart marks that a streamed answer starts over after a provider retry.
func (p *Printer) Restart(provider string) {
	fmt.Fprintln(p.Out)
	p.Status("-- %s restarted the answer --", provider)
}

// Progress returns a bar on stderr. A total of zero or less renders a
// spinner. The bar is silent when stderr is not a terminal.
func (p *Printer) Progress(total int, description string) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.Err),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetVisibility(p.tty),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(p.tty),
	)
}

// Truncate shortens s to n runes with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
