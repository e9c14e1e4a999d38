package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jimezsa/jobops/internal/export"
	"github.com/muesli/termenv"
)

// OutputOptions are the report flags shared by ingest and expire.
type OutputOptions struct {
	Output string `name:"output" short:"o" help:"Write the report table to a file."`
	Format string `help:"Report format: table, csv, tsv, json, md." enum:",table,csv,tsv,json,md" default:""`
}

func (o OutputOptions) wanted() bool {
	return strings.TrimSpace(o.Output) != "" || strings.TrimSpace(o.Format) != ""
}

// writeReport renders table to --output, or to stdout when only --format
// is given. With --json, stdout carries only the command's JSON document,
// which already includes the report rows.
func writeReport(ctx *Context, opts OutputOptions, table export.Table) error {
	if !opts.wanted() {
		return nil
	}
	if ctx.JSONOutput && strings.TrimSpace(opts.Output) == "" {
		return nil
	}

	format, err := resolveFormat(ctx, opts.Format, opts.Output)
	if err != nil {
		return err
	}

	writer := ctx.Out
	if opts.Output != "" {
		file, err := os.Create(opts.Output)
		if err != nil {
			return err
		}
		defer file.Close()
		writer = file
	}

	colorEnabled := ctx.UI != nil && ctx.UI.ColorEnabled && opts.Output == ""
	return export.Write(writer, table, format, export.WriteOptions{ColorEnabled: colorEnabled})
}

func resolveFormat(ctx *Context, format string, outputPath string) (export.Format, error) {
	if outputPath != "" {
		if format == "" {
			if ctx.JSONOutput {
				return export.FormatJSON, nil
			}
			if ctx.PlainText {
				return export.FormatTSV, nil
			}
			return export.FormatCSV, nil
		}
		return export.ParseFormat(format)
	}

	if format != "" {
		return export.ParseFormat(format)
	}
	if ctx.JSONOutput {
		return export.FormatJSON, nil
	}
	if ctx.PlainText {
		return export.FormatTSV, nil
	}
	if isTTY(ctx.Out) {
		return export.FormatTable, nil
	}
	return export.FormatCSV, nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func isTTY(out io.Writer) bool {
	output := termenv.NewOutput(out)
	return output.ColorProfile() != termenv.Ascii
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, value := range values {
		quoted[i] = fmt.Sprintf("'%s'", value)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
