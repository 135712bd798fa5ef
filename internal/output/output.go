// Package output provides consistent CLI output: status lines, progress and
// the text-or-JSON choice made from whether stdout is a terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Output formats accepted by --format.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
	tty bool
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out, tty: IsTerminal(out)}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// ResolveFormat turns "auto" (or "") into text on a terminal and JSON
// otherwise, so piped output is machine-readable.
func ResolveFormat(format string, w io.Writer) (string, error) {
	switch format {
	case FormatAuto, "":
		if IsTerminal(w) {
			return FormatText, nil
		}
		return FormatJSON, nil
	case FormatText, FormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("unknown format: %s (valid options: auto, text, json)", format)
	}
}

// IsTTY reports whether the writer is a terminal.
func (w *Writer) IsTTY() bool { return w.tty }

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Text prints s followed by a newline.
func (w *Writer) Text(s string) {
	_, _ = fmt.Fprintln(w.out, s)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Progress prints a progress bar with message. On a terminal the line is
// redrawn in place; otherwise only the final line is printed.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}
	if !w.tty && current < total {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)
	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// renderProgressBar creates a text progress bar.
func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
