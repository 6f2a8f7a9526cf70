package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableWriter is the common surface of the styled and the plain table.
type TableWriter interface {
	SetHeaders(headers []string)
	AppendRow(row []string)
	Render()
}

func (p *Printer) newTable() TableWriter {
	if p.Format == OutputFormatPlain {
		w := NewPlainTableWriter(p.Out)
		w.SetNoHeaders(p.NoHeaders)
		return w
	}
	return newPrettyTable(p.Out, p.NoHeaders)
}

// prettyTable renders rounded tables with cyan headers and colored statuses.
type prettyTable struct {
	t         table.Writer
	headers   []string
	noHeaders bool
}

func newPrettyTable(out io.Writer, noHeaders bool) *prettyTable {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return &prettyTable{t: t, noHeaders: noHeaders}
}

func (p *prettyTable) SetHeaders(headers []string) {
	p.headers = headers
	if p.noHeaders {
		return
	}
	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = text.FgHiCyan.Sprint(strings.ToUpper(h))
	}
	p.t.AppendHeader(row)
}

func (p *prettyTable) AppendRow(cells []string) {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		if i < len(p.headers) && strings.EqualFold(p.headers[i], "status") {
			row[i] = colorStatus(c)
			continue
		}
		row[i] = c
	}
	p.t.AppendRow(row)
}

func (p *prettyTable) Render() {
	p.t.Render()
}

func colorStatus(status string) string {
	switch status {
	case "healthy", "running", "success":
		return text.FgGreen.Sprint(status)
	case "starting", "stopping", "partial":
		return text.FgYellow.Sprint(status)
	case "unhealthy", "failure":
		return text.FgRed.Sprint(status)
	default:
		return text.FgHiBlack.Sprint(status)
	}
}

// PlainTableWriter writes kubectl-style columns without box drawing, for
// piping into grep, awk and cut.
type PlainTableWriter struct {
	headers     []string
	rows        [][]string
	minPadding  int
	showHeaders bool
	output      io.Writer
}

// NewPlainTableWriter creates a plain table writer that shows headers.
func NewPlainTableWriter(output io.Writer) *PlainTableWriter {
	return &PlainTableWriter{
		minPadding:  3,
		showHeaders: true,
		output:      output,
	}
}

// SetHeaders sets the column headers; they are printed upper case.
func (w *PlainTableWriter) SetHeaders(headers []string) {
	w.headers = make([]string, len(headers))
	for i, h := range headers {
		w.headers[i] = strings.ToUpper(h)
	}
}

// SetNoHeaders controls whether to suppress the header row.
func (w *PlainTableWriter) SetNoHeaders(noHeaders bool) {
	w.showHeaders = !noHeaders
}

// AppendRow adds a row, padded or cut to the number of headers.
func (w *PlainTableWriter) AppendRow(row []string) {
	normalized := make([]string, len(w.headers))
	copy(normalized, row)
	w.rows = append(w.rows, normalized)
}

func (w *PlainTableWriter) widths() []int {
	widths := make([]int, len(w.headers))
	for i, h := range w.headers {
		widths[i] = len(h)
	}
	for _, row := range w.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}
	return widths
}

// Render writes the table. Nothing is written without headers, or when
// there are no rows and headers are suppressed.
func (w *PlainTableWriter) Render() {
	if len(w.headers) == 0 || (len(w.rows) == 0 && !w.showHeaders) {
		return
	}
	widths := w.widths()
	if w.showHeaders {
		w.printRow(w.headers, widths)
	}
	for _, row := range w.rows {
		w.printRow(row, widths)
	}
}

func (w *PlainTableWriter) printRow(row []string, widths []int) {
	var sb strings.Builder
	for i, cell := range row {
		if i == len(row)-1 {
			sb.WriteString(cell)
			break
		}
		sb.WriteString(fmt.Sprintf("%-*s", widths[i]+w.minPadding, cell))
	}
	fmt.Fprintln(w.output, strings.TrimRight(sb.String(), " "))
}
