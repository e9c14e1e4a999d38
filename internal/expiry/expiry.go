// Package expiry marks expired job postings through the backend, or
// evaluates locally which postings would expire without changing anything.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/jimezsa/jobops/internal/backend"
	"github.com/jimezsa/jobops/internal/models"
)

// Backend is the part of the backend client used here.
type Backend interface {
	MarkExpired(ctx context.Context) (backend.MarkExpiredResponse, error)
	ListJobs(ctx context.Context, limit int) ([]models.Job, error)
	CountJobs(ctx context.Context) (int, error)
}

const dryRunMessage = "Dry run completed"

// Candidate is a job the dry run found past its expiry.
type Candidate struct {
	Job       models.Job
	ExpiresAt time.Time
}

// Result is the outcome of one expiry pass. TotalJobsChecked, Candidates
// and Unparseable are only filled by dry runs.
type Result struct {
	Message          string
	ExpiredCount     int
	TotalJobsChecked int
	DryRun           bool
	CheckedAt        time.Time
	Candidates       []Candidate
	Unparseable      []models.Job
	Raw              map[string]any
}

type Service struct {
	backend  Backend
	now      func() time.Time
	location *time.Location
}

func NewService(b Backend) *Service {
	return &Service{backend: b, now: time.Now, location: time.Local}
}

// MarkExpired asks the backend to transition expired postings.
func (s *Service) MarkExpired(ctx context.Context) (Result, error) {
	resp, err := s.backend.MarkExpired(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to mark expired jobs: %w", err)
	}
	return Result{
		Message:      resp.Message,
		ExpiredCount: int(resp.ExpiredCount),
		CheckedAt:    s.now(),
		Raw:          resp.Raw,
	}, nil
}

// DryRun fetches every job and counts those whose expires_at is at or
// before the instant the call started. Nothing is modified.
func (s *Service) DryRun(ctx context.Context) (Result, error) {
	checkedAt := s.now()
	jobs, err := s.backend.ListJobs(ctx, 0)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch jobs for dry run: %w", err)
	}

	result := Result{
		Message:          dryRunMessage,
		TotalJobsChecked: len(jobs),
		DryRun:           true,
		CheckedAt:        checkedAt,
	}
	for _, job := range jobs {
		if job.ExpiresAt == "" {
			continue
		}
		expiresAt, err := ParseTimestamp(job.ExpiresAt, s.location)
		if err != nil {
			result.Unparseable = append(result.Unparseable, job)
			continue
		}
		if expiresAt.After(checkedAt) {
			continue
		}
		result.Candidates = append(result.Candidates, Candidate{Job: job, ExpiresAt: expiresAt})
	}
	result.ExpiredCount = len(result.Candidates)
	return result, nil
}

// Run dispatches to DryRun or MarkExpired.
func (s *Service) Run(ctx context.Context, dryRun bool) (Result, error) {
	if dryRun {
		return s.DryRun(ctx)
	}
	return s.MarkExpired(ctx)
}
