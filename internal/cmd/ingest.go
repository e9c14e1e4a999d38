package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jimezsa/jobops/internal/backend"
	"github.com/jimezsa/jobops/internal/config"
	"github.com/jimezsa/jobops/internal/export"
	"github.com/jimezsa/jobops/internal/history"
	"github.com/jimezsa/jobops/internal/ingest"
	"github.com/jimezsa/jobops/internal/models"
	"github.com/jimezsa/jobops/internal/ui"
	"github.com/rs/zerolog"
)

type IngestCmd struct {
	Query      []string `name:"query" sep:"none" help:"Search query; repeat for several. Defaults to built-in software engineering terms."`
	QueryFile  string   `help:"Path to JSON file with queries (top-level string array or object with job_titles array)."`
	StartPage  int      `help:"First page to request." default:"${start_page}"`
	Pages      int      `help:"Pages to request per query." default:"${pages}"`
	Country    string   `help:"Country code." default:"${country}"`
	DatePosted string   `help:"Date posted filter." default:"${date_posted}"`
	Delay      float64  `help:"Seconds to wait after each call." default:"${delay}"`
	MaxRate    float64  `help:"Optional ceiling on calls per second (0 disables)."`
	OutputOptions
}

func (c *IngestCmd) Run(ctx *Context) error {
	queries, err := c.resolveQueries(ctx.Config)
	if err != nil {
		return err
	}

	opts := ingest.Options{
		Queries:    queries,
		StartPage:  c.StartPage,
		Pages:      c.Pages,
		Country:    c.Country,
		DatePosted: c.DatePosted,
		Delay:      time.Duration(c.Delay * float64(time.Second)),
		MaxRate:    c.MaxRate,
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	lock, err := acquireRunLock(ctx, history.KindIngest)
	if err != nil {
		return err
	}
	defer releaseRunLock(ctx, lock)

	client, err := ctx.backendClient()
	if err != nil {
		return err
	}

	ctx.UI.Infof("Backend: %s | queries=%s", client.BaseURL(), quoteList(queries))
	runner := ingest.NewRunner(client, &ingestProgress{ui: ctx.UI, logger: ctx.Logger})
	report, runErr := runner.Run(ctx.RunContext(), opts)
	canceled := runErr != nil && ingest.IsCanceled(runErr)
	if runErr != nil && !canceled {
		return runErr
	}
	if canceled {
		ctx.UI.Warnf("Interrupted after %d of %d calls.", report.Requests, len(ingest.Tasks(opts)))
	}

	runID := recordRun(ctx, ingestHistory(client.BaseURL(), report, runErr))

	if err := writeReport(ctx, c.OutputOptions, export.IngestTable(report)); err != nil {
		return err
	}
	if ctx.JSONOutput {
		if err := writeJSON(ctx.Out, export.IngestReportJSON(report, runID, canceled)); err != nil {
			return err
		}
	} else {
		ctx.UI.Successf("Done. Processed %d jobs across all calls.", report.Total)
	}

	if canceled {
		return fmt.Errorf("ingest interrupted: %w", runErr)
	}
	return nil
}

// resolveQueries merges --query and --query-file; with neither, the config
// file's queries and then the built-in defaults apply.
func (c *IngestCmd) resolveQueries(cfg config.Config) ([]string, error) {
	var fileQueries []string
	if strings.TrimSpace(c.QueryFile) != "" {
		var err error
		fileQueries, err = loadQueriesFromJSON(c.QueryFile)
		if err != nil {
			return nil, err
		}
	}
	if hasNonBlank(c.Query, fileQueries) {
		return ingest.NormalizeQueries(c.Query, fileQueries), nil
	}
	return ingest.NormalizeQueries(cfg.Queries), nil
}

func hasNonBlank(groups ...[]string) bool {
	for _, group := range groups {
		for _, value := range group {
			if strings.TrimSpace(value) != "" {
				return true
			}
		}
	}
	return false
}

func loadQueriesFromJSON(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read --query-file %q: %w", path, err)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("parse --query-file %q: %w", path, err)
	}

	switch value := decoded.(type) {
	case []any:
		return parseStringArray(value, path, "root array")
	case map[string]any:
		rawTitles, ok := value["job_titles"]
		if !ok {
			return nil, fmt.Errorf("invalid --query-file %q: expected top-level string array or object with \"job_titles\" string array", path)
		}
		titles, ok := rawTitles.([]any)
		if !ok {
			return nil, fmt.Errorf("invalid --query-file %q: field \"job_titles\" must be an array of strings", path)
		}
		return parseStringArray(titles, path, "job_titles")
	default:
		return nil, fmt.Errorf("invalid --query-file %q: expected top-level string array or object with \"job_titles\" string array", path)
	}
}

func parseStringArray(values []any, path string, fieldName string) ([]string, error) {
	queries := make([]string, 0, len(values))
	for idx, rawValue := range values {
		query, ok := rawValue.(string)
		if !ok {
			return nil, fmt.Errorf("invalid --query-file %q: %s[%d] must be a string", path, fieldName, idx)
		}
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		queries = append(queries, query)
	}
	return queries, nil
}

// ingestProgress prints one line per call as the run advances.
type ingestProgress struct {
	ui     *ui.UI
	logger zerolog.Logger
}

func (p *ingestProgress) Started(task models.QueryTask) {
	p.ui.Infof("Ingesting: query='%s', page=%d, country=%s, date_posted=%s", task.Query, task.Page, task.Country, task.DatePosted)
}

func (p *ingestProgress) Finished(result ingest.PageResult) {
	event := p.logger.Debug().
		Str("query", result.Task.Query).
		Int("page", result.Task.Page).
		Int("status", result.StatusCode).
		Dur("latency", result.Latency)
	if result.OK() {
		event.Int("count", result.Count).Msg("page ingested")
		p.ui.Infof("Upserted/processed %d jobs", result.Count)
		return
	}

	event.Err(result.Err).Msg("page failed")
	if httpErr, ok := backend.AsHTTPError(result.Err); ok {
		p.ui.Warnf("HTTP %d: %s", httpErr.StatusCode, httpErr.Snippet)
		return
	}
	p.ui.Warnf("Error: %v", result.Err)
}

func ingestHistory(apiBase string, report ingest.Report, runErr error) history.Run {
	run := history.Run{
		Kind:       history.KindIngest,
		APIBase:    apiBase,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Requests:   report.Requests,
		Failures:   report.Failures,
		Total:      report.Total,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	for _, page := range report.Pages {
		entry := history.Page{
			Query:  page.Task.Query,
			Page:   page.Task.Page,
			Status: page.StatusCode,
			Count:  page.Count,
		}
		if page.Err != nil {
			entry.Error = page.Err.Error()
		}
		run.Pages = append(run.Pages, entry)
	}
	return run
}
