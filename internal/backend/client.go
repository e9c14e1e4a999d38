package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/jimezsa/jobops/internal/models"
	"github.com/rs/zerolog"
)

const (
	SearchPath      = "/api/jobs/search"
	MarkExpiredPath = "/api/jobs/mark-expired"
	JobsPath        = "/api/jobs"
	CountPath       = "/api/jobs/count"

	// SampleLimit is the page size requested for status statistics.
	SampleLimit = 100

	maxBodyBytes = 64 << 20
)

// Doer sends a single HTTP request. *network.Client satisfies it.
type Doer interface {
	Do(req *fhttp.Request) (*fhttp.Response, error)
}

type Config struct {
	BaseURL string
	Doer    Doer
	Retry   RetryPolicy
	Logger  zerolog.Logger
}

// Client calls the job backend's HTTP API. Calls are sequential; a Client
// is not meant to be shared between goroutines.
type Client struct {
	base   string
	doer   Doer
	retry  RetryPolicy
	logger zerolog.Logger
}

func New(cfg Config) *Client {
	return &Client{
		base:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		doer:   cfg.Doer,
		retry:  cfg.Retry,
		logger: cfg.Logger,
	}
}

func (c *Client) BaseURL() string {
	return c.base
}

// SearchURL builds the ingest search URL for a task. Parameters keep the
// order query, page, country, date_posted.
func (c *Client) SearchURL(task models.QueryTask) string {
	params := []string{
		"query=" + url.QueryEscape(task.Query),
		"page=" + strconv.Itoa(task.Page),
		"country=" + url.QueryEscape(task.Country),
		"date_posted=" + url.QueryEscape(task.DatePosted),
	}
	return c.base + SearchPath + "?" + strings.Join(params, "&")
}

type searchResponse struct {
	Count Count `json:"count"`
}

// Search triggers ingestion of one result page and returns the number of
// jobs the backend reports as upserted or processed.
func (c *Client) Search(ctx context.Context, task models.QueryTask) (int, error) {
	body, err := c.do(ctx, fhttp.MethodGet, c.SearchURL(task))
	if err != nil {
		return 0, err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode search response: %w", err)
	}
	return int(resp.Count), nil
}

// MarkExpiredResponse is the backend's answer to a mark-expired call.
type MarkExpiredResponse struct {
	Message      string         `json:"message"`
	ExpiredCount Count          `json:"expired_count"`
	Raw          map[string]any `json:"-"`
}

func (c *Client) MarkExpired(ctx context.Context) (MarkExpiredResponse, error) {
	var out MarkExpiredResponse
	body, err := c.do(ctx, fhttp.MethodPost, c.base+MarkExpiredPath)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode mark-expired response: %w", err)
	}
	if err := json.Unmarshal(body, &out.Raw); err != nil {
		return out, fmt.Errorf("decode mark-expired response: %w", err)
	}
	return out, nil
}

type jobsResponse struct {
	Jobs []models.Job `json:"jobs"`
}

// ListJobs fetches /api/jobs. A positive limit is sent as ?limit=N;
// otherwise the backend's full listing is requested.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	target := c.base + JobsPath
	if limit > 0 {
		target += "?limit=" + strconv.Itoa(limit)
	}
	body, err := c.do(ctx, fhttp.MethodGet, target)
	if err != nil {
		return nil, err
	}
	var resp jobsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode jobs response: %w", err)
	}
	if resp.Jobs == nil {
		return []models.Job{}, nil
	}
	return resp.Jobs, nil
}

type countResponse struct {
	Total Count `json:"total"`
}

func (c *Client) CountJobs(ctx context.Context) (int, error) {
	body, err := c.do(ctx, fhttp.MethodGet, c.base+CountPath)
	if err != nil {
		return 0, err
	}
	var resp countResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return int(resp.Total), nil
}

func (c *Client) do(ctx context.Context, method, target string) ([]byte, error) {
	var body []byte
	err := c.retry.Do(ctx, func(attempt int) error {
		var err error
		body, err = c.roundTrip(ctx, method, target, attempt)
		return err
	}, func(attempt int, wait time.Duration, err error) {
		c.logger.Debug().
			Str("method", method).
			Str("url", target).
			Int("attempt", attempt).
			Dur("wait", wait).
			Err(err).
			Msg("retrying backend call")
	})
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, method, target string, attempt int) ([]byte, error) {
	req, err := fhttp.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.doer.Do(req)
	if err != nil {
		c.logger.Debug().Str("method", method).Str("url", target).Int("attempt", attempt).Err(err).Msg("backend call failed")
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.logger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Int("attempt", attempt).
		Dur("latency", time.Since(start)).
		Msg("backend call")
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, target, err)
	}

	if resp.StatusCode != fhttp.StatusOK {
		return nil, &HTTPError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Snippet:    Snippet(body, resp.Header.Get("Content-Type")),
		}
	}
	return body, nil
}
