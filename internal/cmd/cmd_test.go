package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/jimezsa/jobops/internal/backend"
	"github.com/jimezsa/jobops/internal/backend/fakebackend"
	"github.com/jimezsa/jobops/internal/config"
	"github.com/jimezsa/jobops/internal/ingest"
	"github.com/jimezsa/jobops/internal/runlock"
	"github.com/jimezsa/jobops/internal/ui"
	"github.com/rs/zerolog"
)

func newTestContext(t *testing.T, apiBase string) (*Context, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("JOBOPS_CONFIG_DIR", t.TempDir())
	t.Setenv("JOBOPS_PROXIES", "")

	var out, errOut bytes.Buffer
	ctx := &Context{
		Out:       &out,
		Err:       &errOut,
		UI:        ui.New(&out, &errOut, ui.ColorNever, true),
		Config:    config.DefaultConfig(),
		ConfigDir: t.TempDir(),
		Logger:    zerolog.Nop(),
		Version:   "test",
		APIBase:   apiBase,
	}
	return ctx, &out, &errOut
}

func TestIngestIssuesQueryMajorRequests(t *testing.T) {
	srv := fakebackend.New(t)
	srv.Search = func(_ string, page int, _ url.Values) fakebackend.Response {
		return fakebackend.JSON(http.StatusOK, map[string]any{"count": page})
	}
	ctx, out, _ := newTestContext(t, srv.URL)

	c := &IngestCmd{Query: []string{"a", "b"}, StartPage: 2, Pages: 2, Country: "us", DatePosted: "week"}
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var got []string
	for _, req := range srv.Requests() {
		if req.Path != backend.SearchPath {
			t.Fatalf("unexpected path %s", req.Path)
		}
		got = append(got, req.Query.Get("query")+":"+req.Query.Get("page"))
	}
	want := []string{"a:2", "a:3", "b:2", "b:3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	if !strings.Contains(out.String(), "Done. Processed 10 jobs across all calls.") {
		t.Fatalf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "Ingesting: query='a', page=2, country=us, date_posted=week") {
		t.Fatalf("missing progress line in %q", out.String())
	}
}

func TestIngestFailedPagesDoNotAbort(t *testing.T) {
	srv := fakebackend.New(t)
	srv.Search = func(_ string, page int, _ url.Values) fakebackend.Response {
		switch page {
		case 1:
			return fakebackend.Text(http.StatusInternalServerError, "text/plain", strings.Repeat("e", 300))
		case 2:
			return fakebackend.Text(http.StatusOK, "application/json", "not json")
		default:
			return fakebackend.JSON(http.StatusOK, map[string]any{"count": "4"})
		}
	}
	ctx, out, errOut := newTestContext(t, srv.URL)

	c := &IngestCmd{Query: []string{"x"}, StartPage: 1, Pages: 3, Country: "us", DatePosted: "week"}
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := len(srv.Requests()); n != 3 {
		t.Fatalf("requests = %d, want 3", n)
	}
	if !strings.Contains(out.String(), "Done. Processed 4 jobs") {
		t.Fatalf("output = %q", out.String())
	}
	wantWarn := "HTTP 500: " + strings.Repeat("e", 200) + "\n"
	if !strings.Contains(errOut.String(), wantWarn) {
		t.Fatalf("stderr = %q, want truncated HTTP warning", errOut.String())
	}
}

func TestIngestJSONAndHistory(t *testing.T) {
	srv := fakebackend.New(t)
	srv.Search = func(string, int, url.Values) fakebackend.Response {
		return fakebackend.JSON(http.StatusOK, map[string]any{"count": 3})
	}
	ctx, out, _ := newTestContext(t, srv.URL)
	ctx.JSONOutput = true
	ctx.UI = ui.New(ctx.Err, ctx.Err, ui.ColorNever, true)
	ctx.HistoryDB = filepath.Join(t.TempDir(), "history.db")

	c := &IngestCmd{Query: []string{"go"}, StartPage: 1, Pages: 2, Country: "us", DatePosted: "week"}
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), `"total": 6`) || !strings.Contains(out.String(), `"run_id"`) {
		t.Fatalf("json output = %s", out.String())
	}

	out.Reset()
	h := &HistoryCmd{Limit: 10, Format: "json"}
	if err := h.Run(ctx); err != nil {
		t.Fatalf("history Run() error = %v", err)
	}
	if !strings.Contains(out.String(), `"kind": "ingest"`) || !strings.Contains(out.String(), `"total": 6`) {
		t.Fatalf("history output = %s", out.String())
	}
}

func TestIngestRejectsNegativePages(t *testing.T) {
	ctx, _, _ := newTestContext(t, "http://127.0.0.1:1")
	c := &IngestCmd{Pages: -1}
	if err := c.Run(ctx); err == nil {
		t.Fatalf("Run() error = nil, want error")
	}
}

func TestIngestRunLockHeld(t *testing.T) {
	ctx, _, _ := newTestContext(t, "http://127.0.0.1:1")
	lock, err := runlock.Acquire(ctx.ConfigDir, "ingest")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	c := &IngestCmd{Query: []string{"x"}, StartPage: 1, Pages: 1}
	err = c.Run(ctx)
	if !errors.Is(err, runlock.ErrLocked) {
		t.Fatalf("Run() error = %v, want ErrLocked", err)
	}
}

func TestExpireLiveSuccess(t *testing.T) {
	srv := fakebackend.New(t)
	srv.MarkExpired = fakebackend.JSON(http.StatusOK, map[string]any{"message": "Expired jobs marked", "expired_count": 5})
	ctx, out, _ := newTestContext(t, srv.URL)

	if err := (&ExpireCmd{}).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Expired jobs: 5") || !strings.Contains(out.String(), "Mode: LIVE") {
		t.Fatalf("output = %q", out.String())
	}
	reqs := srv.Requests()
	if len(reqs) != 1 || reqs[0].Method != http.MethodPost {
		t.Fatalf("requests = %+v", reqs)
	}
}

func TestExpireLiveFailure(t *testing.T) {
	srv := fakebackend.New(t)
	srv.MarkExpired = fakebackend.Text(http.StatusServiceUnavailable, "text/plain", "maintenance")
	ctx, _, errOut := newTestContext(t, srv.URL)

	err := (&ExpireCmd{}).Run(ctx)
	if err == nil {
		t.Fatalf("Run() error = nil, want error")
	}
	if !strings.Contains(errOut.String(), "HTTP 503: maintenance") {
		t.Fatalf("stderr = %q", errOut.String())
	}
}

func TestExpireDryRunWithStats(t *testing.T) {
	srv := fakebackend.New(t)
	srv.Jobs = []map[string]any{
		{"title": "Old Role", "company": "Acme", "status": "active", "expires_at": "2000-01-01T00:00:00Z"},
		{"title": "", "company": "", "status": "active", "expires_at": "2000-01-01"},
		{"title": "Future Role", "company": "Beta", "status": "active", "expires_at": "2999-01-01T00:00:00Z"},
		{"title": "Open Ended", "company": "Gamma", "status": "expired"},
	}
	ctx, out, _ := newTestContext(t, srv.URL)
	outputPath := filepath.Join(t.TempDir(), "candidates.csv")

	c := &ExpireCmd{DryRun: true, Stats: true, OutputOptions: OutputOptions{Output: outputPath}}
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, req := range srv.Requests() {
		if req.Method == http.MethodPost {
			t.Fatalf("dry run sent %s %s", req.Method, req.Path)
		}
	}
	text := out.String()
	for _, want := range []string{
		"=== BEFORE ===",
		"=== AFTER ===",
		"Mode: DRY RUN",
		"Would expire: Old Role at Acme",
		"Would expire: Unknown at Unknown",
		"Expired jobs: 2",
		"Total jobs checked: 4",
		"Total jobs: 4",
		"sample of 4, not exact",
		"active=3, expired=1",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 || lines[0] != "title,company,status,expires_at" {
		t.Fatalf("candidates csv = %q", string(data))
	}
}

func TestExpireStatsFailureDoesNotFail(t *testing.T) {
	srv := fakebackend.New(t)
	srv.Count = fakebackend.Text(http.StatusInternalServerError, "text/plain", "nope")
	srv.MarkExpired = fakebackend.JSON(http.StatusOK, map[string]any{"expired_count": 0})
	ctx, out, errOut := newTestContext(t, srv.URL)

	if err := (&ExpireCmd{Stats: true}).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(errOut.String(), "Error getting stats") {
		t.Fatalf("stderr = %q", errOut.String())
	}
	if !strings.Contains(out.String(), "Result: Completed") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestHistoryDisabled(t *testing.T) {
	ctx, _, _ := newTestContext(t, "http://127.0.0.1:1")
	if err := (&HistoryCmd{}).Run(ctx); err == nil {
		t.Fatalf("Run() error = nil, want error when history is disabled")
	}
}

func TestResolveQueries(t *testing.T) {
	cfg := config.Config{Queries: []string{"from config"}}

	got, err := (&IngestCmd{Query: []string{" go ", ""}}).resolveQueries(cfg)
	if err != nil {
		t.Fatalf("resolveQueries() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"go"}) {
		t.Fatalf("resolveQueries() = %#v", got)
	}

	got, err = (&IngestCmd{}).resolveQueries(cfg)
	if err != nil {
		t.Fatalf("resolveQueries() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"from config"}) {
		t.Fatalf("resolveQueries() = %#v, want config queries", got)
	}

	got, err = (&IngestCmd{}).resolveQueries(config.Config{})
	if err != nil {
		t.Fatalf("resolveQueries() error = %v", err)
	}
	if !reflect.DeepEqual(got, ingest.DefaultQueries) {
		t.Fatalf("resolveQueries() = %#v, want defaults", got)
	}
}

func TestLoadQueriesFromJSON(t *testing.T) {
	t.Run("top-level string array", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "queries.json")
		if err := os.WriteFile(path, []byte(`["software engineer","  Data Scientist  ",""]`), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		got, err := loadQueriesFromJSON(path)
		if err != nil {
			t.Fatalf("loadQueriesFromJSON() error = %v", err)
		}
		want := []string{"software engineer", "Data Scientist"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("loadQueriesFromJSON() = %#v, want %#v", got, want)
		}
	})

	t.Run("object with job_titles", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "queries.json")
		if err := os.WriteFile(path, []byte(`{"job_titles":["Backend Engineer","SRE"]}`), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		got, err := loadQueriesFromJSON(path)
		if err != nil {
			t.Fatalf("loadQueriesFromJSON() error = %v", err)
		}
		if !reflect.DeepEqual(got, []string{"Backend Engineer", "SRE"}) {
			t.Fatalf("loadQueriesFromJSON() = %#v", got)
		}
	})

	t.Run("non-string entry", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "queries.json")
		if err := os.WriteFile(path, []byte(`["ok", 3]`), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if _, err := loadQueriesFromJSON(path); err == nil {
			t.Fatalf("loadQueriesFromJSON() error = nil, want error")
		}
	})
}

func TestParseIngestFlags(t *testing.T) {
	cli := NewCLI()
	parser, err := kong.New(cli, Vars(config.Config{
		APIBase: "http://localhost:3000", StartPage: 1, Pages: 3, Country: "us", DatePosted: "week", DelaySeconds: 1,
	}, "test"))
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}

	if _, err := parser.Parse([]string{"ingest", "--query", "a, b", "--query", "c", "--delay", "0", "--start-page", "2"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(cli.Ingest.Query, []string{"a, b", "c"}) {
		t.Fatalf("Query = %#v", cli.Ingest.Query)
	}
	if cli.Ingest.Delay != 0 || cli.Ingest.StartPage != 2 || cli.Ingest.Pages != 3 {
		t.Fatalf("Ingest = %+v", cli.Ingest)
	}
	if cli.Ingest.Country != "us" || cli.Ingest.DatePosted != "week" || cli.APIBase != "http://localhost:3000" {
		t.Fatalf("defaults not applied: %+v api=%s", cli.Ingest, cli.APIBase)
	}
}

func TestParseExpireFlags(t *testing.T) {
	cli := NewCLI()
	parser, err := kong.New(cli, Vars(config.DefaultConfig(), "test"))
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}
	if _, err := parser.Parse([]string{"expire", "--dry-run", "--stats", "--api-base", "http://backend:9000"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !cli.Expire.DryRun || !cli.Expire.Stats || cli.APIBase != "http://backend:9000" {
		t.Fatalf("Expire = %+v api=%s", cli.Expire, cli.APIBase)
	}
}

func TestStatsCommand(t *testing.T) {
	srv := fakebackend.New(t)
	srv.Count = fakebackend.JSON(http.StatusOK, map[string]any{"total": 250})
	srv.Jobs = []map[string]any{
		{"status": "active"},
		{"status": "active"},
		{"status": "expired"},
		{"status": ""},
	}
	ctx, out, _ := newTestContext(t, srv.URL)

	if err := (&StatsCmd{}).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "Total jobs: 250\nStatus distribution (sample of 4, not exact): active=2, expired=1, unknown=1\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}

	var sawLimit bool
	for _, req := range srv.Requests() {
		if req.Path == backend.JobsPath && req.Query.Get("limit") == "100" {
			sawLimit = true
		}
	}
	if !sawLimit {
		t.Fatalf("stats did not request a sample of 100: %+v", srv.Requests())
	}
}

func TestProxyCheckRequiresProxies(t *testing.T) {
	ctx, _, _ := newTestContext(t, "http://127.0.0.1:1")
	if err := (&ProxyCheckCmd{Timeout: 1}).Run(ctx); err == nil {
		t.Fatalf("Run() error = nil, want error without proxies")
	}
}

func TestVersionCommand(t *testing.T) {
	ctx, out, _ := newTestContext(t, "")
	if err := (&VersionCmd{}).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.String() != "jobops test\n" {
		t.Fatalf("output = %q", out.String())
	}

	out.Reset()
	ctx.JSONOutput = true
	if err := (&VersionCmd{}).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), `"version": "test"`) {
		t.Fatalf("json output = %q", out.String())
	}
}

func numericIDJobs() []map[string]any {
	return []map[string]any{
		{"id": 1, "title": "a", "company": "Acme", "status": "active", "expires_at": "2020-01-01T00:00:00Z"},
		{"id": 2, "title": "b", "company": "Beta", "status": 7, "expires_at": "2999-01-01T00:00:00Z"},
		{"id": 3, "title": "c", "company": "Gamma", "status": "active", "expires_at": 1700000000},
	}
}

func TestExpireDryRunWithNumericIDs(t *testing.T) {
	srv := fakebackend.New(t)
	srv.Jobs = numericIDJobs()
	ctx, out, errOut := newTestContext(t, srv.URL)

	if err := (&ExpireCmd{DryRun: true}).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	text := out.String()
	for _, want := range []string{"Would expire: a at Acme", "Expired jobs: 1", "Total jobs checked: 3"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(errOut.String(), "Skipped 1 jobs with unparseable expires_at.") {
		t.Fatalf("stderr = %q", errOut.String())
	}
}

func TestStatsWithNumericIDs(t *testing.T) {
	srv := fakebackend.New(t)
	srv.Jobs = numericIDJobs()
	ctx, out, _ := newTestContext(t, srv.URL)

	if err := (&StatsCmd{}).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "Total jobs: 3\nStatus distribution (sample of 3, not exact): active=2, unknown=1\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
}

func TestJSONOutputWritesSingleDocument(t *testing.T) {
	srv := fakebackend.New(t)
	srv.Search = func(string, int, url.Values) fakebackend.Response {
		return fakebackend.JSON(http.StatusOK, map[string]any{"count": 2})
	}
	srv.Jobs = numericIDJobs()

	t.Run("ingest", func(t *testing.T) {
		ctx, out, _ := newTestContext(t, srv.URL)
		ctx.JSONOutput = true
		ctx.UI = ui.New(ctx.Err, ctx.Err, ui.ColorNever, true)

		c := &IngestCmd{Query: []string{"go"}, StartPage: 1, Pages: 1, Country: "us", DatePosted: "week", OutputOptions: OutputOptions{Format: "json"}}
		if err := c.Run(ctx); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertSingleJSON(t, out.Bytes())
	})

	t.Run("expire", func(t *testing.T) {
		ctx, out, _ := newTestContext(t, srv.URL)
		ctx.JSONOutput = true
		ctx.UI = ui.New(ctx.Err, ctx.Err, ui.ColorNever, true)

		c := &ExpireCmd{DryRun: true, OutputOptions: OutputOptions{Format: "json"}}
		if err := c.Run(ctx); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		assertSingleJSON(t, out.Bytes())
	})
}

func assertSingleJSON(t *testing.T, data []byte) {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(data))
	var first map[string]any
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode stdout: %v\n%s", err, data)
	}
	if dec.More() {
		t.Fatalf("stdout holds more than one JSON document:\n%s", data)
	}
}
