package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/muesli/termenv"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatTSV      Format = "tsv"
)

type WriteOptions struct {
	ColorEnabled bool
}

// Table is a rendered report: a header, string rows, and the value to
// encode when JSON is requested.
type Table struct {
	Header []string
	Rows   [][]string
	JSON   any
}

func Write(w io.Writer, table Table, format Format, opts WriteOptions) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, table.JSON)
	case FormatCSV:
		return writeCSV(w, table, ',')
	case FormatTSV:
		return writeCSV(w, table, '\t')
	case FormatMarkdown:
		return writeMarkdown(w, table)
	default:
		return writeTable(w, table, opts)
	}
}

// ParseFormat maps a --format value to a Format. Empty means table.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "tsv":
		return FormatTSV, nil
	case "table", "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown format: %s", value)
	}
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writeCSV(w io.Writer, table Table, delim rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delim
	if err := writer.Write(table.Header); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeTable(w io.Writer, table Table, opts WriteOptions) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := strings.Join(table.Header, "\t")
	if opts.ColorEnabled {
		output := termenv.NewOutput(w)
		header = output.String(header).Bold().String()
	}
	fmt.Fprintln(tw, header)
	for _, row := range table.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = dash(cell)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func writeMarkdown(w io.Writer, table Table) error {
	if len(table.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	sep := make([]string, len(table.Header))
	for i := range sep {
		sep[i] = "---"
	}
	lines := []string{
		"| " + strings.Join(escapeCells(table.Header), " | ") + " |",
		"| " + strings.Join(sep, " | ") + " |",
	}
	for _, row := range table.Rows {
		lines = append(lines, "| "+strings.Join(escapeCells(row), " | ")+" |")
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, cell := range cells {
		cell = strings.TrimSpace(cell)
		cell = strings.ReplaceAll(cell, "|", `\|`)
		cell = strings.ReplaceAll(cell, "\n", " ")
		out[i] = dash(cell)
	}
	return out
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
