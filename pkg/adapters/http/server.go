// Package http exposes the Service as a JSON API on a chi router.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/logging"
	mermaid "github.com/aretw0/tendril/internal/presentation/graph"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/workflows/jobsearch"
	"github.com/aretw0/tendril/pkg/workflows/outreach"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

// Service is the part of tendril.Service the API needs.
type Service interface {
	SearchJobs(ctx context.Context, q jobsearch.Query, limit int) (domain.SearchResult, error)
	SearchJobsBatch(ctx context.Context, queries []jobsearch.Query, limit int) []domain.SearchResult
	SearchPeople(ctx context.Context, company string, limit int, exclude ...string) (domain.PeopleResult, error)
	SendMessage(ctx context.Context, req outreach.Request) (domain.SubmissionResult, error)
	SendMessages(ctx context.Context, reqs []outreach.Request) []domain.SubmissionResult
	ApplyEasy(ctx context.Context, jobURL string) (domain.ApplyResult, error)
	Login(ctx context.Context, c tendril.Credentials) (domain.LoginResult, error)
	ConfirmLogin(ctx context.Context, runID string) (domain.LoginResult, error)
	CancelLogin(runID string) error
	Topology(name string) (graph.Topology, bool)
}

var _ Service = (*tendril.Service)(nil)

// Server holds the handlers.
type Server struct {
	svc      Service
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler builds the router.
func NewHandler(svc Service, opts ...Option) http.Handler {
	s := &Server{
		svc:      svc,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.GetHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/graphs/{name}", s.GetGraph)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/search", s.SearchJobs)
		r.Post("/search/batch", s.SearchJobsBatch)
		r.Post("/apply", s.ApplyJob)
	})
	r.Post("/people/search", s.SearchPeople)
	r.Post("/messages", s.SendMessage)
	r.Post("/messages/batch", s.SendMessages)
	r.Route("/auth/login", func(r chi.Router) {
		r.Post("/", s.Login)
		r.Post("/{runID}/confirm", s.ConfirmLogin)
		r.Delete("/{runID}", s.CancelLogin)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// JobQuery is the body of POST /jobs/search.
type JobQuery struct {
	Keywords  string `json:"keywords"`
	Location  string `json:"location,omitempty"`
	EasyApply bool   `json:"easy_apply,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

func (q JobQuery) query() jobsearch.Query {
	return jobsearch.Query{Keywords: q.Keywords, Location: q.Location, EasyApply: q.EasyApply}
}

// JobBatch is the body of POST /jobs/search/batch.
type JobBatch struct {
	Queries []JobQuery `json:"queries"`
	Limit   int        `json:"limit,omitempty"`
}

// ApplyRequest is the body of POST /jobs/apply.
type ApplyRequest struct {
	JobURL string `json:"job_url"`
}

// PeopleQuery is the body of POST /people/search.
type PeopleQuery struct {
	Company string   `json:"company"`
	Limit   int      `json:"limit,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Message is the body of POST /messages.
type Message struct {
	ProfileURL string `json:"profile_url"`
	Name       string `json:"name,omitempty"`
	Text       string `json:"text"`
	Subject    string `json:"subject,omitempty"`
}

func (m Message) request() outreach.Request {
	return outreach.Request{ProfileURL: m.ProfileURL, Name: m.Name, Text: m.Text, Subject: m.Subject}
}

// MessageBatch is the body of POST /messages/batch.
type MessageBatch struct {
	Messages []Message `json:"messages"`
}

// LoginRequest is the body of POST /auth/login. Empty fields use configured credentials.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	LoginURL string `json:"login_url,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{"status": "ok", "version": tendril.Version})
}

// GetGraph handles GET /graphs/{name} and answers with Mermaid source.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	topo, ok := s.svc.Topology(name)
	if !ok {
		s.fail(w, http.StatusNotFound, fmt.Errorf("unknown workflow %q", name))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(mermaid.GenerateMermaid(topo, nil)))
}

// SearchJobs handles POST /jobs/search.
func (s *Server) SearchJobs(w http.ResponseWriter, r *http.Request) {
	var body JobQuery
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Keywords) == "" {
		s.fail(w, http.StatusBadRequest, errors.New("keywords are required"))
		return
	}
	res, err := s.svc.SearchJobs(r.Context(), body.query(), body.Limit)
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.reply(w, http.StatusOK, res)
}

// SearchJobsBatch handles POST /jobs/search/batch.
func (s *Server) SearchJobsBatch(w http.ResponseWriter, r *http.Request) {
	var body JobBatch
	if !s.decode(w, r, &body) {
		return
	}
	if len(body.Queries) == 0 {
		s.fail(w, http.StatusBadRequest, errors.New("queries are required"))
		return
	}
	queries := make([]jobsearch.Query, len(body.Queries))
	for i, q := range body.Queries {
		queries[i] = q.query()
	}
	s.reply(w, http.StatusOK, s.svc.SearchJobsBatch(r.Context(), queries, body.Limit))
}

// ApplyJob handles POST /jobs/apply.
func (s *Server) ApplyJob(w http.ResponseWriter, r *http.Request) {
	var body ApplyRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.JobURL == "" {
		s.fail(w, http.StatusBadRequest, errors.New("job_url is required"))
		return
	}
	res, err := s.svc.ApplyEasy(r.Context(), body.JobURL)
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.reply(w, http.StatusOK, res)
}

// SearchPeople handles POST /people/search.
func (s *Server) SearchPeople(w http.ResponseWriter, r *http.Request) {
	var body PeopleQuery
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Company) == "" {
		s.fail(w, http.StatusBadRequest, errors.New("company is required"))
		return
	}
	res, err := s.svc.SearchPeople(r.Context(), body.Company, body.Limit, body.Exclude...)
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.reply(w, http.StatusOK, res)
}

// SendMessage handles POST /messages.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body Message
	if !s.decode(w, r, &body) {
		return
	}
	if body.ProfileURL == "" {
		s.fail(w, http.StatusBadRequest, errors.New("profile_url is required"))
		return
	}
	res, err := s.svc.SendMessage(r.Context(), body.request())
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.reply(w, http.StatusOK, res)
}

// SendMessages handles POST /messages/batch.
func (s *Server) SendMessages(w http.ResponseWriter, r *http.Request) {
	var body MessageBatch
	if !s.decode(w, r, &body) {
		return
	}
	if len(body.Messages) == 0 {
		s.fail(w, http.StatusBadRequest, errors.New("messages are required"))
		return
	}
	reqs := make([]outreach.Request, len(body.Messages))
	for i, m := range body.Messages {
		reqs[i] = m.request()
	}
	s.reply(w, http.StatusOK, s.svc.SendMessages(r.Context(), reqs))
}

// Login handles POST /auth/login. A parked login answers 202 with its run ID.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var body LoginRequest
	if r.ContentLength != 0 && !s.decode(w, r, &body) {
		return
	}
	res, err := s.svc.Login(r.Context(), tendril.Credentials{
		Username: body.Username,
		Password: body.Password,
		LoginURL: body.LoginURL,
	})
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.reply(w, loginStatus(res), res)
}

// ConfirmLogin handles POST /auth/login/{runID}/confirm.
func (s *Server) ConfirmLogin(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ConfirmLogin(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.failFor(w, err)
		return
	}
	s.reply(w, loginStatus(res), res)
}

// CancelLogin handles DELETE /auth/login/{runID}.
func (s *Server) CancelLogin(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.CancelLogin(chi.URLParam(r, "runID")); err != nil {
		s.failFor(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func loginStatus(res domain.LoginResult) int {
	if res.Status == domain.LoginAwaiting {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// failFor maps service errors to statuses.
func (s *Server) failFor(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAlreadyContacted), errors.Is(err, domain.ErrAlreadyApplied):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrLockAcquire):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "err", err)
	}
	s.fail(w, status, err)
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	s.reply(w, status, ErrorResponse{Error: err.Error()})
}

func (s *Server) reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
