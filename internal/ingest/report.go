package ingest

import (
	"time"

	"github.com/jimezsa/jobops/internal/models"
)

// PageResult is the outcome of one search request.
type PageResult struct {
	Task       models.QueryTask
	StatusCode int
	Count      int
	Latency    time.Duration
	Err        error
}

func (p PageResult) OK() bool {
	return p.Err == nil
}

// Report accumulates a run. Total only counts successful pages.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Requests   int
	Failures   int
	Pages      []PageResult
}

func (r *Report) add(result PageResult) {
	r.Requests++
	r.Pages = append(r.Pages, result)
	if !result.OK() {
		r.Failures++
		return
	}
	r.Total += result.Count
}
