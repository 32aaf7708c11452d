package tendril

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/internal/textutil"
	"github.com/aretw0/tendril/pkg/act"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/selectors"
	"github.com/aretw0/tendril/pkg/session"
	"github.com/aretw0/tendril/pkg/workflows"
	"github.com/aretw0/tendril/pkg/workflows/auth"
	"github.com/aretw0/tendril/pkg/workflows/easyapply"
	"github.com/aretw0/tendril/pkg/workflows/jobsearch"
	"github.com/aretw0/tendril/pkg/workflows/outreach"
	"github.com/aretw0/tendril/pkg/workflows/people"
	"golang.org/x/sync/errgroup"
)

// Version is the release of the service.
const Version = "0.4.0"

// Ledger namespaces and quota names.
const (
	NamespaceOutreach     = "outreach"
	NamespaceApplications = "applications"
	QuotaMessages         = "messages"
)

// Limits are the safety caps of the cyclic workflows.
type Limits struct {
	MaxPages         int
	MaxShowMore      int
	MaxFormSteps     int
	MaxCaptchaRounds int
}

// Credentials sign in to the target site.
type Credentials struct {
	Username string
	Password string
	LoginURL string
}

// Service builds every workflow once and runs them on leased sessions.
// It is safe for concurrent use.
type Service struct {
	sessions    *session.Manager
	ledger      ports.Ledger
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	catalog     *selectors.Catalog
	answerer    ports.FieldAnswerer
	pacing      workflows.Pacing
	ready       time.Duration
	limits      Limits
	creds       Credentials
	quota       int
	quotaWindow time.Duration
	concurrency int

	auth     *auth.Workflow
	jobs     *jobsearch.Workflow
	people   *people.Workflow
	outreach *outreach.Workflow
	apply    *easyapply.Workflow

	mu     sync.Mutex
	logins map[string]*pendingLogin
}

type pendingLogin struct {
	run   *graph.Run[auth.State]
	lease *session.Lease
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks on every graph and on the action executor.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithLedger sets the dedup and quota store. Defaults to an in-memory ledger.
func WithLedger(ledger ports.Ledger) Option {
	return func(s *Service) {
		s.ledger = ledger
	}
}

// WithSelectors replaces the default selector catalog.
func WithSelectors(catalog *selectors.Catalog) Option {
	return func(s *Service) {
		s.catalog = catalog
	}
}

// WithAnswerer sets the form-field answerer used by ApplyEasy.
func WithAnswerer(answerer ports.FieldAnswerer) Option {
	return func(s *Service) {
		s.answerer = answerer
	}
}

// WithPacing sets the randomized delay range between actions.
func WithPacing(min, max time.Duration) Option {
	return func(s *Service) {
		s.pacing = workflows.Pacing{Min: min, Max: max}
	}
}

// WithReadyTimeout bounds readiness waits after navigation or a click.
func WithReadyTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.ready = d
	}
}

// WithLimits overrides the workflow safety caps. Zero fields keep their default.
func WithLimits(l Limits) Option {
	return func(s *Service) {
		s.limits = l
	}
}

// WithCredentials sets the credentials Login falls back to.
func WithCredentials(c Credentials) Option {
	return func(s *Service) {
		s.creds = c
	}
}

// WithMessageQuota caps successful-or-attempted submissions per day. Zero disables it.
func WithMessageQuota(perDay int) Option {
	return func(s *Service) {
		s.quota = perDay
		s.quotaWindow = 24 * time.Hour
	}
}

// WithConcurrency bounds batch fan-out. Defaults to session.DefaultMaxSessions.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		s.concurrency = n
	}
}

// New compiles every workflow. Graph build errors surface here.
func New(sessions *session.Manager, opts ...Option) (*Service, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	s := &Service{
		sessions:    sessions,
		logger:      logging.NewNop(),
		concurrency: session.DefaultMaxSessions,
		quotaWindow: 24 * time.Hour,
		logins:      make(map[string]*pendingLogin),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ledger == nil {
		s.ledger = memory.NewLedger()
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}

	kit := workflows.Kit{
		Selectors: s.catalog,
		Actions:   act.New(act.WithLifecycleHooks(s.hooks), act.WithLogger(s.logger)),
		Pacing:    s.pacing,
		Ready:     s.ready,
		Logger:    s.logger,
		Graph: []graph.Option{
			graph.WithLifecycleHooks(s.hooks),
			graph.WithLogger(s.logger),
		},
	}

	var authOpts []auth.Option
	if s.limits.MaxCaptchaRounds > 0 {
		authOpts = append(authOpts, auth.WithMaxCaptchaRounds(s.limits.MaxCaptchaRounds))
	}
	var jobOpts []jobsearch.Option
	if s.limits.MaxPages > 0 {
		jobOpts = append(jobOpts, jobsearch.WithMaxPages(s.limits.MaxPages))
	}
	var peopleOpts []people.Option
	if s.limits.MaxShowMore > 0 {
		peopleOpts = append(peopleOpts, people.WithMaxShowMore(s.limits.MaxShowMore))
	}
	var applyOpts []easyapply.Option
	if s.limits.MaxFormSteps > 0 {
		applyOpts = append(applyOpts, easyapply.WithMaxSteps(s.limits.MaxFormSteps))
	}

	var errs []error
	var err error
	if s.auth, err = auth.New(kit, authOpts...); err != nil {
		errs = append(errs, err)
	}
	if s.jobs, err = jobsearch.New(kit, jobOpts...); err != nil {
		errs = append(errs, err)
	}
	if s.people, err = people.New(kit, peopleOpts...); err != nil {
		errs = append(errs, err)
	}
	if s.outreach, err = outreach.New(kit); err != nil {
		errs = append(errs, err)
	}
	if s.apply, err = easyapply.New(kit, s.answerer, applyOpts...); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// SearchJobs collects up to limit jobs. A limit of zero or less means up to the page cap.
func (s *Service) SearchJobs(ctx context.Context, q jobsearch.Query, limit int) (domain.SearchResult, error) {
	var res domain.SearchResult
	err := s.sessions.Do(ctx, "", func(ctx context.Context, sess ports.Session) error {
		res = jobsearch.Result(s.jobs.Run(ctx, sess, q, limit))
		return nil
	})
	if err != nil {
		return domain.SearchResult{Jobs: []domain.Job{}}, err
	}
	s.logger.Info("Job search finished", "keywords", q.Keywords, "jobs", len(res.Jobs), "pages", res.Pages)
	return res, nil
}

// SearchJobsBatch runs independent searches concurrently. Results keep the
// order of queries; a failed search reports its error in its own result.
func (s *Service) SearchJobsBatch(ctx context.Context, queries []jobsearch.Query, limit int) []domain.SearchResult {
	results := make([]domain.SearchResult, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			res, err := s.SearchJobs(ctx, q, limit)
			if err != nil {
				res.Errors = append(res.Errors, err.Error())
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// SearchPeople collects up to limit people from a company's people page,
// skipping profile URLs in exclude.
func (s *Service) SearchPeople(ctx context.Context, company string, limit int, exclude ...string) (domain.PeopleResult, error) {
	var res domain.PeopleResult
	err := s.sessions.Do(ctx, "", func(ctx context.Context, sess ports.Session) error {
		res = people.Result(s.people.Run(ctx, sess, company, limit, exclude...))
		return nil
	})
	if err != nil {
		return domain.PeopleResult{People: []domain.Person{}}, err
	}
	s.logger.Info("People search finished", "company", company, "people", len(res.People))
	return res, nil
}

// SendMessage sends a connection request or a direct message to one profile.
// Profiles already contacted are refused with ErrAlreadyContacted, and
// ErrQuotaExceeded is returned once the daily quota is spent.
func (s *Service) SendMessage(ctx context.Context, req outreach.Request) (domain.SubmissionResult, error) {
	res := domain.SubmissionResult{Identifier: req.ProfileURL, Method: domain.MethodSkip}
	if req.ProfileURL == "" {
		return res, errors.New("profile URL is required")
	}
	// Only the direct-message body is size bounded, inside the workflow.
	// A connection note is cut to its limit instead.
	var err error
	if req.Text, err = textutil.Clean(req.Text); err != nil {
		return res, fmt.Errorf("message text: %w", err)
	}
	if req.Subject, err = textutil.Sanitize(req.Subject); err != nil {
		return res, fmt.Errorf("message subject: %w", err)
	}

	seen, err := s.ledger.Seen(ctx, NamespaceOutreach, req.ProfileURL)
	if err != nil {
		return res, err
	}
	if seen {
		return res, fmt.Errorf("%w: %s", domain.ErrAlreadyContacted, req.ProfileURL)
	}
	if s.quota > 0 {
		ok, err := s.ledger.Consume(ctx, QuotaMessages, s.quota, s.quotaWindow)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, fmt.Errorf("%w: %d messages per %s", domain.ErrQuotaExceeded, s.quota, s.quotaWindow)
		}
	}

	err = s.sessions.Do(ctx, req.ProfileURL, func(ctx context.Context, sess ports.Session) error {
		res = s.outreach.Send(ctx, sess, req)
		return nil
	})
	if err != nil {
		return res, err
	}
	if res.Sent {
		if err := s.ledger.Mark(ctx, NamespaceOutreach, req.ProfileURL); err != nil {
			s.logger.Warn("Failed to record submission", "profile", req.ProfileURL, "err", err)
		}
	}
	s.logger.Info("Submission finished", "profile", req.ProfileURL, "method", res.Method, "sent", res.Sent)
	return res, nil
}

// SendMessages sends to every request concurrently. One failure never stops
// the others; refusals are reported in the item's Error.
func (s *Service) SendMessages(ctx context.Context, reqs []outreach.Request) []domain.SubmissionResult {
	results := make([]domain.SubmissionResult, len(reqs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := s.SendMessage(ctx, req)
			if err != nil {
				res.Sent = false
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ApplyEasy fills and submits the Easy Apply form of one job.
func (s *Service) ApplyEasy(ctx context.Context, jobURL string) (domain.ApplyResult, error) {
	res := domain.ApplyResult{JobURL: jobURL}
	if jobURL == "" {
		return res, errors.New("job URL is required")
	}
	seen, err := s.ledger.Seen(ctx, NamespaceApplications, jobURL)
	if err != nil {
		return res, err
	}
	if seen {
		return res, fmt.Errorf("%w: %s", domain.ErrAlreadyApplied, jobURL)
	}

	err = s.sessions.Do(ctx, jobURL, func(ctx context.Context, sess ports.Session) error {
		res = easyapply.Result(s.apply.Apply(ctx, sess, jobURL))
		return nil
	})
	if err != nil {
		return res, err
	}
	if res.Submitted {
		if err := s.ledger.Mark(ctx, NamespaceApplications, jobURL); err != nil {
			s.logger.Warn("Failed to record application", "job", jobURL, "err", err)
		}
	}
	s.logger.Info("Application finished", "job", jobURL, "submitted", res.Submitted, "steps", res.Steps)
	return res, nil
}

// Login signs in. Empty credential fields fall back to WithCredentials. When
// the site asks for a challenge the result is awaiting_confirmation and the
// session stays leased until ConfirmLogin completes the run or CancelLogin
// drops it.
func (s *Service) Login(ctx context.Context, c Credentials) (domain.LoginResult, error) {
	if c.Username == "" {
		c.Username = s.creds.Username
	}
	if c.Password == "" {
		c.Password = s.creds.Password
	}
	if c.LoginURL == "" {
		c.LoginURL = s.creds.LoginURL
	}
	if c.Username == "" || c.Password == "" {
		return domain.LoginResult{Status: domain.LoginFailed}, errors.New("username and password are required")
	}

	lease, err := s.sessions.Lease(ctx, "login:"+c.Username)
	if err != nil {
		return domain.LoginResult{Status: domain.LoginFailed}, err
	}
	run := s.auth.Start(ctx, lease.Session, c.Username, c.Password, c.LoginURL)
	return s.settle(run, lease), nil
}

// ConfirmLogin resumes a login parked on a challenge.
func (s *Service) ConfirmLogin(ctx context.Context, runID string) (domain.LoginResult, error) {
	p, ok := s.take(runID)
	if !ok {
		return domain.LoginResult{RunID: runID, Status: domain.LoginFailed}, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	if err := s.auth.Confirm(ctx, p.run); err != nil {
		p.lease.Release()
		return auth.Result(p.run), err
	}
	return s.settle(p.run, p.lease), nil
}

// CancelLogin abandons a parked login and releases its session.
func (s *Service) CancelLogin(runID string) error {
	p, ok := s.take(runID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	p.lease.Release()
	s.logger.Info("Login cancelled", "run_id", runID)
	return nil
}

// PendingLogins lists the IDs of parked logins.
func (s *Service) PendingLogins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.logins))
	for id := range s.logins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close releases the sessions of every parked login.
func (s *Service) Close() error {
	s.mu.Lock()
	pending := s.logins
	s.logins = make(map[string]*pendingLogin)
	s.mu.Unlock()
	for _, p := range pending {
		p.lease.Release()
	}
	return nil
}

func (s *Service) settle(run *graph.Run[auth.State], lease *session.Lease) domain.LoginResult {
	res := auth.Result(run)
	if run.Suspended() {
		s.mu.Lock()
		s.logins[run.ID] = &pendingLogin{run: run, lease: lease}
		s.mu.Unlock()
		s.logger.Info("Login awaiting confirmation", "run_id", run.ID, "prompt", run.Prompt)
		return res
	}
	lease.Release()
	s.logger.Info("Login finished", "run_id", run.ID, "status", res.Status)
	return res
}

func (s *Service) take(runID string) (*pendingLogin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.logins[runID]
	if ok {
		delete(s.logins, runID)
	}
	return p, ok
}

// Graphs returns the topology of every workflow, keyed by graph name.
func (s *Service) Graphs() map[string]graph.Topology {
	return map[string]graph.Topology{
		auth.Name:      s.auth.Graph().Topology(),
		jobsearch.Name: s.jobs.Graph().Topology(),
		people.Name:    s.people.Graph().Topology(),
		outreach.Name:  s.outreach.Graph().Topology(),
		easyapply.Name: s.apply.Graph().Topology(),
	}
}

// Topology returns one workflow's topology.
func (s *Service) Topology(name string) (graph.Topology, bool) {
	t, ok := s.Graphs()[name]
	return t, ok
}
