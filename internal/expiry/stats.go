package expiry

import (
	"context"
	"fmt"
	"sort"

	"github.com/jimezsa/jobops/internal/backend"
)

const unknownStatus = "unknown"

// Stats is a status snapshot. StatusDistribution covers only the sample of
// SampleSize jobs, not the whole population of TotalJobs.
type Stats struct {
	TotalJobs          int
	SampleSize         int
	StatusDistribution map[string]int
}

// StatusCount is one bucket of a distribution.
type StatusCount struct {
	Status string
	Count  int
}

// SortedDistribution lists buckets by descending count, then status name.
func (s Stats) SortedDistribution() []StatusCount {
	out := make([]StatusCount, 0, len(s.StatusDistribution))
	for status, count := range s.StatusDistribution {
		out = append(out, StatusCount{Status: status, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// Stats reads the total job count and tallies statuses over a sample of at
// most backend.SampleLimit jobs. When only the sample call fails, the
// returned Stats still carries TotalJobs alongside the error.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	total, err := s.backend.CountJobs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to get job count: %w", err)
	}
	stats.TotalJobs = total

	jobs, err := s.backend.ListJobs(ctx, backend.SampleLimit)
	if err != nil {
		return stats, fmt.Errorf("failed to get job details: %w", err)
	}
	if len(jobs) > backend.SampleLimit {
		jobs = jobs[:backend.SampleLimit]
	}

	stats.SampleSize = len(jobs)
	stats.StatusDistribution = make(map[string]int)
	for _, job := range jobs {
		status := job.Status
		if status == "" {
			status = unknownStatus
		}
		stats.StatusDistribution[status]++
	}
	return stats, nil
}
