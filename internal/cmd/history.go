package cmd

import (
	"fmt"
	"strings"

	"github.com/jimezsa/jobops/internal/export"
	"github.com/jimezsa/jobops/internal/history"
)

type HistoryCmd struct {
	Limit  int    `help:"Maximum runs to list." default:"20"`
	Kind   string `help:"Only list runs of this kind." enum:",ingest,expire" default:""`
	Format string `help:"Output format: table, csv, tsv, json, md." enum:",table,csv,tsv,json,md" default:""`
}

func (h *HistoryCmd) Run(ctx *Context) error {
	if strings.TrimSpace(ctx.HistoryDB) == "" {
		return fmt.Errorf("history is disabled: set --history-db or JOBOPS_HISTORY_DB")
	}

	store, err := history.Open(ctx.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx.RunContext(), history.ListOptions{Kind: h.Kind, Limit: h.Limit})
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []history.Run{}
	}

	format, err := resolveFormat(ctx, h.Format, "")
	if err != nil {
		return err
	}
	colorEnabled := ctx.UI != nil && ctx.UI.ColorEnabled
	return export.Write(ctx.Out, export.HistoryTable(runs), format, export.WriteOptions{ColorEnabled: colorEnabled})
}
