package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abhishekslab/growwbot/pkg/utils"
)

// Output handles formatted output for the CLI.
type Output struct {
	writer   io.Writer
	jsonMode bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
	dim    *color.Color
}

// NewOutput creates an Output writing to the command's stdout. Colors are
// disabled in JSON mode and when stdout is not a terminal.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	o := &Output{
		writer:   cmd.OutOrStdout(),
		jsonMode: jsonMode,
		green:    color.New(color.FgGreen),
		red:      color.New(color.FgRed),
		yellow:   color.New(color.FgYellow),
		cyan:     color.New(color.FgCyan),
		bold:     color.New(color.Bold),
		dim:      color.New(color.Faint),
	}
	if jsonMode || color.NoColor {
		for _, c := range []*color.Color{o.green, o.red, o.yellow, o.cyan, o.bold, o.dim} {
			c.DisableColor()
		}
	}
	return o
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON outputs data as indented JSON.
func (o *Output) JSON(data any) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// JSONLine outputs data as a single JSON line.
func (o *Output) JSONLine(data any) error {
	return json.NewEncoder(o.writer).Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...any) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...any) {
	fmt.Fprintf(o.writer, format, args...)
}

// Success prints a success message in green.
func (o *Output) Success(format string, args ...any) { o.line(o.green, format, args...) }

// Error prints an error message in red.
func (o *Output) Error(format string, args ...any) { o.line(o.red, format, args...) }

// Warning prints a warning message in yellow.
func (o *Output) Warning(format string, args ...any) { o.line(o.yellow, format, args...) }

// Info prints an info message in cyan.
func (o *Output) Info(format string, args ...any) { o.line(o.cyan, format, args...) }

// Bold prints a bold message.
func (o *Output) Bold(format string, args ...any) { o.line(o.bold, format, args...) }

// Dim prints a dimmed message.
func (o *Output) Dim(format string, args ...any) { o.line(o.dim, format, args...) }

func (o *Output) line(c *color.Color, format string, args ...any) {
	c.Fprintln(o.writer, fmt.Sprintf(format, args...))
}

// FormatPnL formats P&L in rupees, green when positive and red when negative.
func (o *Output) FormatPnL(pnl float64) string {
	text := utils.FormatPnL(pnl)
	switch {
	case pnl > 0:
		return o.green.Sprint(text)
	case pnl < 0:
		return o.red.Sprint(text)
	}
	return text
}

// FormatPercent formats a signed percentage with the same coloring as FormatPnL.
func (o *Output) FormatPercent(pct float64) string {
	text := utils.FormatPercent(pct)
	switch {
	case pct > 0:
		return o.green.Sprint(text)
	case pct < 0:
		return o.red.Sprint(text)
	}
	return text
}

// Table renders aligned columns.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a new table.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{headers: headers, output: output}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	t.printRow(t.headers, widths, true)
	var sep []string
	for _, w := range widths {
		sep = append(sep, strings.Repeat("-", w))
	}
	t.output.dim.Fprintln(t.output.writer, strings.Join(sep, "  "))
	for _, row := range t.rows {
		t.printRow(row, widths, false)
	}
}

func (t *Table) printRow(cells []string, widths []int, header bool) {
	var parts []string
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		padded := cell + strings.Repeat(" ", max(0, widths[i]-visibleLen(cell)))
		if header {
			padded = t.output.bold.Sprint(padded)
		}
		parts = append(parts, padded)
	}
	t.output.Println(strings.Join(parts, "  "))
}

// visibleLen is the rune count of s without ANSI escape sequences.
func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			n++
		}
	}
	return n
}
