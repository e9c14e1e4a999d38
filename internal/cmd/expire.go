package cmd

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jimezsa/jobops/internal/backend"
	"github.com/jimezsa/jobops/internal/export"
	"github.com/jimezsa/jobops/internal/expiry"
	"github.com/jimezsa/jobops/internal/history"
)

type ExpireCmd struct {
	DryRun bool `name:"dry-run" help:"Show what would be marked expired without actually doing it."`
	Stats  bool `name:"stats" help:"Show job statistics before and after."`
	OutputOptions
}

func (c *ExpireCmd) Run(ctx *Context) error {
	lock, err := acquireRunLock(ctx, history.KindExpire)
	if err != nil {
		return err
	}
	defer releaseRunLock(ctx, lock)

	client, err := ctx.backendClient()
	if err != nil {
		return err
	}
	svc := expiry.NewService(client)
	runCtx := ctx.RunContext()

	var before, after *export.StatsJSON
	if c.Stats {
		ctx.UI.Headerf("=== BEFORE ===")
		before = printStats(runCtx, ctx, svc)
		ctx.UI.Blank()
	}

	mode := "LIVE"
	if c.DryRun {
		mode = "DRY RUN"
	}
	ctx.UI.Infof("Backend: %s", client.BaseURL())
	ctx.UI.Infof("Mode: %s", mode)
	ctx.UI.Infof("Calling: %s", client.BaseURL()+backend.MarkExpiredPath)

	started := time.Now()
	result, runErr := svc.Run(runCtx, c.DryRun)
	recordRun(ctx, expireHistory(client.BaseURL(), c.DryRun, started, result, runErr))
	if runErr != nil {
		if httpErr, ok := backend.AsHTTPError(runErr); ok {
			ctx.UI.Warnf("HTTP %d: %s", httpErr.StatusCode, httpErr.Snippet)
		}
		return runErr
	}

	for _, candidate := range result.Candidates {
		ctx.UI.Infof("Would expire: %s at %s", candidate.Job.DisplayTitle(), candidate.Job.DisplayCompany())
	}
	if len(result.Unparseable) > 0 {
		ctx.UI.Warnf("Skipped %d jobs with unparseable expires_at.", len(result.Unparseable))
		for _, job := range result.Unparseable {
			ctx.Logger.Debug().Str("title", job.Title).Str("expires_at", job.ExpiresAt).Msg("unparseable expires_at")
		}
	}

	message := result.Message
	if strings.TrimSpace(message) == "" {
		message = "Completed"
	}
	ctx.UI.Successf("Result: %s", message)
	ctx.UI.Infof("Expired jobs: %d", result.ExpiredCount)
	if c.DryRun {
		ctx.UI.Infof("Total jobs checked: %d", result.TotalJobsChecked)
	}

	if c.Stats {
		ctx.UI.Blank()
		ctx.UI.Headerf("=== AFTER ===")
		after = printStats(runCtx, ctx, svc)
	}

	if err := writeReport(ctx, c.OutputOptions, export.CandidatesTable(result)); err != nil {
		return err
	}
	if ctx.JSONOutput {
		out := export.ExpiryResultJSON(result)
		out.Before = before
		out.After = after
		return writeJSON(ctx.Out, out)
	}
	return nil
}

// printStats prints a stats snapshot. Errors are shown and swallowed so
// they never change the outcome of the surrounding command.
func printStats(runCtx context.Context, ctx *Context, svc *expiry.Service) *export.StatsJSON {
	stats, err := svc.Stats(runCtx)
	if err != nil {
		ctx.UI.Warnf("Error getting stats: %v", err)
		return export.StatsResultJSON(stats, err)
	}
	ctx.UI.Infof("Total jobs: %d", stats.TotalJobs)
	ctx.UI.Infof("Status distribution (sample of %d, not exact): %s", stats.SampleSize, formatDistribution(stats))
	return export.StatsResultJSON(stats, nil)
}

func formatDistribution(stats expiry.Stats) string {
	buckets := stats.SortedDistribution()
	if len(buckets) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(buckets))
	for _, bucket := range buckets {
		parts = append(parts, bucket.Status+"="+strconv.Itoa(bucket.Count))
	}
	return strings.Join(parts, ", ")
}

func expireHistory(apiBase string, dryRun bool, started time.Time, result expiry.Result, runErr error) history.Run {
	run := history.Run{
		Kind:       history.KindExpire,
		APIBase:    apiBase,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Requests:   1,
		Total:      result.ExpiredCount,
		DryRun:     dryRun,
	}
	if runErr != nil {
		run.Failures = 1
		run.Error = runErr.Error()
	}
	return run
}
