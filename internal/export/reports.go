package export

import (
	"strconv"
	"time"

	"github.com/jimezsa/jobops/internal/expiry"
	"github.com/jimezsa/jobops/internal/history"
	"github.com/jimezsa/jobops/internal/ingest"
	"github.com/jimezsa/jobops/internal/models"
)

type PageJSON struct {
	Query      string `json:"query"`
	Page       int    `json:"page"`
	Country    string `json:"country"`
	DatePosted string `json:"date_posted"`
	Status     int    `json:"status,omitempty"`
	Count      int    `json:"count"`
	LatencyMS  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

type IngestJSON struct {
	RunID      string     `json:"run_id,omitempty"`
	Total      int        `json:"total"`
	Requests   int        `json:"requests"`
	Failures   int        `json:"failures"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Canceled   bool       `json:"canceled,omitempty"`
	Pages      []PageJSON `json:"pages"`
}

func IngestReportJSON(report ingest.Report, runID string, canceled bool) IngestJSON {
	pages := make([]PageJSON, 0, len(report.Pages))
	for _, page := range report.Pages {
		pages = append(pages, PageJSON{
			Query:      page.Task.Query,
			Page:       page.Task.Page,
			Country:    page.Task.Country,
			DatePosted: page.Task.DatePosted,
			Status:     page.StatusCode,
			Count:      page.Count,
			LatencyMS:  page.Latency.Milliseconds(),
			Error:      errString(page.Err),
		})
	}
	return IngestJSON{
		RunID:      runID,
		Total:      report.Total,
		Requests:   report.Requests,
		Failures:   report.Failures,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Canceled:   canceled,
		Pages:      pages,
	}
}

// IngestTable lists one row per search request.
func IngestTable(report ingest.Report) Table {
	rows := make([][]string, 0, len(report.Pages))
	for _, page := range report.Pages {
		status := ""
		if page.StatusCode != 0 {
			status = strconv.Itoa(page.StatusCode)
		}
		rows = append(rows, []string{
			page.Task.Query,
			strconv.Itoa(page.Task.Page),
			status,
			strconv.Itoa(page.Count),
			errString(page.Err),
		})
	}
	return Table{
		Header: []string{"query", "page", "status", "count", "error"},
		Rows:   rows,
		JSON:   IngestReportJSON(report, "", false).Pages,
	}
}

type ExpiryJSON struct {
	Message          string         `json:"message"`
	ExpiredCount     int            `json:"expired_count"`
	TotalJobsChecked *int           `json:"total_jobs_checked,omitempty"`
	DryRun           bool           `json:"dry_run"`
	CheckedAt        time.Time      `json:"checked_at"`
	WouldExpire      []models.Job   `json:"would_expire,omitempty"`
	Unparseable      []models.Job   `json:"unparseable,omitempty"`
	Response         map[string]any `json:"response,omitempty"`
	Before           *StatsJSON     `json:"before,omitempty"`
	After            *StatsJSON     `json:"after,omitempty"`
}

func ExpiryResultJSON(result expiry.Result) ExpiryJSON {
	out := ExpiryJSON{
		Message:      result.Message,
		ExpiredCount: result.ExpiredCount,
		DryRun:       result.DryRun,
		CheckedAt:    result.CheckedAt,
		Unparseable:  result.Unparseable,
		Response:     result.Raw,
	}
	if result.DryRun {
		checked := result.TotalJobsChecked
		out.TotalJobsChecked = &checked
		for _, candidate := range result.Candidates {
			out.WouldExpire = append(out.WouldExpire, candidate.Job)
		}
	}
	return out
}

// CandidatesTable lists the jobs a dry run found past expiry.
func CandidatesTable(result expiry.Result) Table {
	rows := make([][]string, 0, len(result.Candidates))
	jobs := make([]models.Job, 0, len(result.Candidates))
	for _, candidate := range result.Candidates {
		job := candidate.Job
		jobs = append(jobs, job)
		rows = append(rows, []string{
			job.DisplayTitle(),
			job.DisplayCompany(),
			job.Status,
			job.ExpiresAt,
		})
	}
	return Table{
		Header: []string{"title", "company", "status", "expires_at"},
		Rows:   rows,
		JSON:   jobs,
	}
}

type StatsJSON struct {
	TotalJobs          int            `json:"total_jobs"`
	SampleSize         int            `json:"sample_size"`
	StatusDistribution map[string]int `json:"status_distribution"`
	Sampled            bool           `json:"sampled"`
	Error              string         `json:"error,omitempty"`
}

func StatsResultJSON(stats expiry.Stats, err error) *StatsJSON {
	return &StatsJSON{
		TotalJobs:          stats.TotalJobs,
		SampleSize:         stats.SampleSize,
		StatusDistribution: stats.StatusDistribution,
		Sampled:            true,
		Error:              errString(err),
	}
}

// HistoryTable lists recorded runs.
func HistoryTable(runs []history.Run) Table {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		mode := ""
		if run.Kind == history.KindExpire {
			mode = "live"
			if run.DryRun {
				mode = "dry-run"
			}
		}
		rows = append(rows, []string{
			run.ID,
			run.Kind,
			mode,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
			strconv.Itoa(run.Requests),
			strconv.Itoa(run.Failures),
			strconv.Itoa(run.Total),
			run.Error,
		})
	}
	return Table{
		Header: []string{"id", "kind", "mode", "started", "duration", "requests", "failures", "total", "error"},
		Rows:   rows,
		JSON:   runs,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
