package cmd

import (
	"github.com/jimezsa/jobops/internal/export"
	"github.com/jimezsa/jobops/internal/expiry"
)

type StatsCmd struct{}

func (s *StatsCmd) Run(ctx *Context) error {
	client, err := ctx.backendClient()
	if err != nil {
		return err
	}
	svc := expiry.NewService(client)

	stats, err := svc.Stats(ctx.RunContext())
	if ctx.JSONOutput {
		if writeErr := writeJSON(ctx.Out, export.StatsResultJSON(stats, err)); writeErr != nil {
			return writeErr
		}
		return err
	}
	if err != nil {
		if stats.TotalJobs > 0 {
			ctx.UI.Infof("Total jobs: %d", stats.TotalJobs)
		}
		return err
	}

	ctx.UI.Infof("Total jobs: %d", stats.TotalJobs)
	ctx.UI.Infof("Status distribution (sample of %d, not exact): %s", stats.SampleSize, formatDistribution(stats))
	return nil
}
