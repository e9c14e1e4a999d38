// Package fakebackend serves an in-memory job backend for tests and records
// every request it receives.
package fakebackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

type Response struct {
	Status      int
	Body        string
	ContentType string
}

// JSON builds a response with v encoded as the body.
func JSON(status int, v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Response{Status: status, Body: string(data), ContentType: "application/json"}
}

// Text builds a non-JSON response.
func Text(status int, contentType, body string) Response {
	return Response{Status: status, Body: body, ContentType: contentType}
}

type Request struct {
	Method   string
	Path     string
	RawQuery string
	Query    url.Values
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request

	// Search answers /api/jobs/search; defaults to {"count":0}.
	Search func(query string, page int, params url.Values) Response
	// MarkExpired answers POST /api/jobs/mark-expired.
	MarkExpired Response
	// Jobs backs GET /api/jobs; ?limit=N returns the first N entries.
	Jobs []map[string]any
	// JobsResponse overrides the /api/jobs answer when its Status is set.
	JobsResponse Response
	// Count overrides /api/jobs/count when its Status is set; otherwise
	// the total is len(Jobs).
	Count Response
}

func New(t testing.TB) *Server {
	s := &Server{
		MarkExpired: JSON(http.StatusOK, map[string]any{"message": "ok", "expired_count": 0}),
	}

	r := mux.NewRouter()
	r.Use(s.record)
	r.HandleFunc("/api/jobs/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/mark-expired", s.handleMarkExpired).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs/count", s.handleCount).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs", s.handleJobs).Methods(http.MethodGet)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Server.Close)
	return s
}

// Requests returns a copy of every request received so far, in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Query:    r.URL.Query(),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	page, _ := strconv.Atoi(params.Get("page"))
	resp := JSON(http.StatusOK, map[string]any{"count": 0})
	if s.Search != nil {
		resp = s.Search(params.Get("query"), page, params)
	}
	write(w, resp)
}

func (s *Server) handleMarkExpired(w http.ResponseWriter, _ *http.Request) {
	write(w, s.MarkExpired)
}

func (s *Server) handleCount(w http.ResponseWriter, _ *http.Request) {
	if s.Count.Status != 0 {
		write(w, s.Count)
		return
	}
	write(w, JSON(http.StatusOK, map[string]any{"total": len(s.Jobs)}))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.JobsResponse.Status != 0 {
		write(w, s.JobsResponse)
		return
	}
	jobs := s.Jobs
	if jobs == nil {
		jobs = []map[string]any{}
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}
	write(w, JSON(http.StatusOK, map[string]any{"jobs": jobs}))
}

func write(w http.ResponseWriter, resp Response) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}
