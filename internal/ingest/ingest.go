// Package ingest drives batch ingestion: one backend search call per
// (query, page) pair, sequentially, with a fixed pause between calls.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jimezsa/jobops/internal/backend"
	"github.com/jimezsa/jobops/internal/models"
	"golang.org/x/time/rate"
)

// DefaultQueries are searched when no query is configured.
var DefaultQueries = []string{
	"software engineer",
	"software developer",
	"SWE",
}

// Searcher is the slice of the backend client the run loop needs.
type Searcher interface {
	Search(ctx context.Context, task models.QueryTask) (int, error)
}

type Options struct {
	Queries    []string
	StartPage  int
	Pages      int
	Country    string
	DatePosted string
	// Delay is slept after every request, successful or not.
	Delay time.Duration
	// MaxRate caps requests per second on top of Delay; zero disables it.
	MaxRate float64
}

func (o Options) Validate() error {
	if o.Pages < 0 {
		return fmt.Errorf("pages must be >= 0, got %d", o.Pages)
	}
	if o.Delay < 0 {
		return fmt.Errorf("delay must be >= 0, got %s", o.Delay)
	}
	if o.MaxRate < 0 {
		return fmt.Errorf("max rate must be >= 0, got %g", o.MaxRate)
	}
	return nil
}

// Tasks expands the options into (query, page) tasks, query-major: every
// page of the first query comes before any page of the second.
func Tasks(opts Options) []models.QueryTask {
	if opts.Pages <= 0 {
		return nil
	}
	tasks := make([]models.QueryTask, 0, len(opts.Queries)*opts.Pages)
	for _, query := range opts.Queries {
		for page := opts.StartPage; page < opts.StartPage+opts.Pages; page++ {
			tasks = append(tasks, models.QueryTask{
				Query:      query,
				Page:       page,
				Country:    opts.Country,
				DatePosted: opts.DatePosted,
			})
		}
	}
	return tasks
}

// Observer receives progress events; any method may be a no-op.
type Observer interface {
	Started(task models.QueryTask)
	Finished(result PageResult)
}

type Runner struct {
	searcher Searcher
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewRunner(searcher Searcher, observer Observer) *Runner {
	return &Runner{
		searcher: searcher,
		observer: observer,
		sleep:    backend.SleepContext,
	}
}

// Run issues every task in order and returns the accumulated report. A
// failed page is recorded and skipped; it never stops the run. The only
// early exit is cancellation of ctx, which returns the partial report
// together with ctx's error.
func (r *Runner) Run(ctx context.Context, opts Options) (report Report, err error) {
	report.StartedAt = time.Now()
	defer func() { report.FinishedAt = time.Now() }()
	if err := opts.Validate(); err != nil {
		return report, err
	}

	var limiter *rate.Limiter
	if opts.MaxRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MaxRate), 1)
	}

	for _, task := range Tasks(opts) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return report, err
			}
		}

		r.started(task)
		result := r.runTask(ctx, task)
		report.add(result)
		r.finished(result)

		if opts.Delay > 0 {
			if err := r.sleep(ctx, opts.Delay); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

func (r *Runner) runTask(ctx context.Context, task models.QueryTask) PageResult {
	start := time.Now()
	count, err := r.searcher.Search(ctx, task)
	result := PageResult{
		Task:    task,
		Count:   count,
		Latency: time.Since(start),
	}
	if err != nil {
		result.Count = 0
		result.Err = err
		if httpErr, ok := backend.AsHTTPError(err); ok {
			result.StatusCode = httpErr.StatusCode
		}
		return result
	}
	result.StatusCode = 200
	return result
}

func (r *Runner) started(task models.QueryTask) {
	if r.observer != nil {
		r.observer.Started(task)
	}
}

func (r *Runner) finished(result PageResult) {
	if r.observer != nil {
		r.observer.Finished(result)
	}
}

// NormalizeQueries trims queries and drops blanks. Duplicates are kept
// because every entry is its own request series. An empty result falls
// back to DefaultQueries.
func NormalizeQueries(queries ...[]string) []string {
	var out []string
	for _, group := range queries {
		for _, query := range group {
			query = strings.TrimSpace(query)
			if query == "" {
				continue
			}
			out = append(out, query)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultQueries...)
	}
	return out
}

// IsCanceled reports whether err came from stopping the run early.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
