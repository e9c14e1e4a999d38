package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	KindIngest = "ingest"
	KindExpire = "expire"
)

const timeLayout = time.RFC3339Nano

type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	APIBase    string    `json:"api_base"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Requests   int       `json:"requests"`
	Failures   int       `json:"failures"`
	Total      int       `json:"total"`
	DryRun     bool      `json:"dry_run,omitempty"`
	Error      string    `json:"error,omitempty"`
	Pages      []Page    `json:"pages,omitempty"`
}

type Page struct {
	Query  string `json:"query"`
	Page   int    `json:"page"`
	Status int    `json:"status,omitempty"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// NewRunID returns a fresh random run id.
func NewRunID() string {
	return uuid.NewString()
}

// Record inserts a run and its pages in one transaction. An empty ID is
// filled with a new one and returned.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (id, kind, api_base, started_at, finished_at, requests, failures, total, dry_run, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		run.ID, run.Kind, run.APIBase,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.Requests, run.Failures, run.Total, boolInt(run.DryRun), run.Error,
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, page := range run.Pages {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO run_pages (run_id, seq, query, page, status, count, error)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
			run.ID, i, page.Query, page.Page, page.Status, page.Count, page.Error,
		); err != nil {
			return "", fmt.Errorf("insert run page: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

type ListOptions struct {
	Kind  string
	Limit int
}

// List returns runs newest first, without pages.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, kind, api_base, started_at, finished_at, requests, failures, total, dry_run, error FROM runs`
	args := []any{}
	if opts.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, opts.Kind)
	}
	query += ` ORDER BY started_at DESC LIMIT ?;`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
			dryRun            int
		)
		if err := rows.Scan(&run.ID, &run.Kind, &run.APIBase, &started, &finished,
			&run.Requests, &run.Failures, &run.Total, &dryRun, &run.Error); err != nil {
			return nil, err
		}
		run.StartedAt, _ = time.Parse(timeLayout, started)
		run.FinishedAt, _ = time.Parse(timeLayout, finished)
		run.DryRun = dryRun != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Pages returns the recorded pages of a run in request order.
func (s *Store) Pages(ctx context.Context, runID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT query, page, status, count, error FROM run_pages WHERE run_id = ? ORDER BY seq;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var page Page
		if err := rows.Scan(&page.Query, &page.Page, &page.Status, &page.Count, &page.Error); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
