// Package auth implements the sign-in workflow:
//
//	navigate_to_login -> fill_credentials -> submit -> verify -> {captcha_handling | end}
//	captcha_handling -> verify
//
// Credentials are submitted exactly once. A captcha challenge parks the run
// until the host calls Confirm, after which verification is repeated.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/workflows"
)

// Name is the graph name.
const Name = "auth"

// Step names.
const (
	StepNavigate = "navigate_to_login"
	StepFill     = "fill_credentials"
	StepSubmit   = "submit"
	StepVerify   = "verify"
	StepCaptcha  = "captcha_handling"
)

// DefaultLoginURL is the sign-in page.
const DefaultLoginURL = "https://www.linkedin.com/login"

// Verdict is the conclusion of the last verification.
type Verdict string

const (
	VerdictAuthenticated Verdict = "authenticated"
	VerdictChallenge     Verdict = "challenge"
	VerdictFailed        Verdict = "failed"
)

// State is the per-run record of the sign-in workflow.
type State struct {
	Session  ports.Session
	Username string
	Password string
	LoginURL string

	Authenticated   bool
	CaptchaDetected bool
	Submissions     int
	// Confirmations counts external confirmations; CaptchaRounds counts the ones consumed.
	Confirmations int
	CaptchaRounds int
	Verdict       Verdict
	FinalURL      string
	Errors        []string
}

func merge(prev, d State) State {
	if d.Session != nil {
		prev.Session = d.Session
	}
	if d.Username != "" {
		prev.Username = d.Username
	}
	if d.Password != "" {
		prev.Password = d.Password
	}
	if d.LoginURL != "" {
		prev.LoginURL = d.LoginURL
	}
	if d.Authenticated {
		prev.Authenticated = true
	}
	if d.CaptchaDetected {
		prev.CaptchaDetected = true
	}
	if d.Submissions > prev.Submissions {
		prev.Submissions = d.Submissions
	}
	if d.Confirmations > prev.Confirmations {
		prev.Confirmations = d.Confirmations
	}
	if d.CaptchaRounds > prev.CaptchaRounds {
		prev.CaptchaRounds = d.CaptchaRounds
	}
	if d.Verdict != "" {
		prev.Verdict = d.Verdict
	}
	if d.FinalURL != "" {
		prev.FinalURL = d.FinalURL
	}
	prev.Errors = append(prev.Errors, d.Errors...)
	return prev
}

// Options tunes the workflow.
type Options struct {
	VerifyTimeout    time.Duration
	MaxCaptchaRounds int
	ChallengeMarker  string
	LoginMarkers     []string
	SuccessMarkers   []string
}

// Option configures Options.
type Option func(*Options)

// WithVerifyTimeout bounds how long verify waits for a redirect.
func WithVerifyTimeout(d time.Duration) Option {
	return func(o *Options) { o.VerifyTimeout = d }
}

// WithMaxCaptchaRounds bounds the captcha retry cycle.
func WithMaxCaptchaRounds(n int) Option {
	return func(o *Options) { o.MaxCaptchaRounds = n }
}

// Workflow is the compiled sign-in graph.
type Workflow struct {
	kit   workflows.Kit
	opts  Options
	graph *graph.Compiled[State]
}

// New builds the sign-in workflow.
func New(kit workflows.Kit, opts ...Option) (*Workflow, error) {
	o := Options{
		VerifyTimeout:    15 * time.Second,
		MaxCaptchaRounds: 3,
		ChallengeMarker:  "/checkpoint/challenge",
		LoginMarkers:     []string{"/login", "/uas/login", "/checkpoint/lg"},
		SuccessMarkers:   []string{"/feed", "/jobs", "/mynetwork", "/in/"},
	}
	for _, opt := range opts {
		opt(&o)
	}
	w := &Workflow{kit: kit.Defaults(), opts: o}

	halted := func(s State) bool { return len(s.Errors) > 0 }
	g, err := graph.NewBuilder(Name, merge).
		AddNode(StepNavigate, w.navigate).
		AddNode(StepFill, w.fill).
		AddNode(StepSubmit, w.submit).
		AddNode(StepVerify, w.verify).
		AddNode(StepCaptcha, w.captcha).
		SetEntry(StepNavigate).
		AddGuardedEdge(StepNavigate, StepFill, halted).
		AddGuardedEdge(StepFill, StepSubmit, halted).
		AddGuardedEdge(StepSubmit, StepVerify, halted).
		AddConditionalEdges(StepVerify, graph.Router[State]{
			Name:   "verdict",
			Labels: []string{string(VerdictAuthenticated), string(VerdictChallenge), string(VerdictFailed)},
			Pick: func(_ context.Context, s State) string {
				switch s.Verdict {
				case VerdictAuthenticated, VerdictChallenge:
					return string(s.Verdict)
				}
				return string(VerdictFailed)
			},
		}, map[string]string{
			string(VerdictAuthenticated): graph.End,
			string(VerdictChallenge):     StepCaptcha,
			string(VerdictFailed):        graph.End,
		}).
		AddGuardedEdge(StepCaptcha, StepVerify, func(s State) bool { return s.Verdict == VerdictFailed }).
		OnFailure(func(step string, err error) State {
			return State{Errors: []string{workflows.StepError(step, err)}}
		}).
		Build(w.kit.Graph...)
	if err != nil {
		return nil, err
	}
	w.graph = g
	return w, nil
}

// Graph exposes the compiled graph.
func (w *Workflow) Graph() *graph.Compiled[State] { return w.graph }

// Start runs the workflow. The run is either completed or suspended on a captcha.
func (w *Workflow) Start(ctx context.Context, s ports.Session, username, password, loginURL string) *graph.Run[State] {
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	return w.graph.Execute(ctx, State{
		Session:  s,
		Username: username,
		Password: password,
		LoginURL: loginURL,
	})
}

// Confirm records an external confirmation and resumes a suspended run.
func (w *Workflow) Confirm(ctx context.Context, run *graph.Run[State]) error {
	if run == nil {
		return graph.ErrNotSuspended
	}
	return w.graph.Resume(ctx, run, State{Confirmations: run.State.Confirmations + 1})
}

// Result translates a run into the host-facing result.
func Result(run *graph.Run[State]) domain.LoginResult {
	res := domain.LoginResult{
		RunID:         run.ID,
		Authenticated: run.State.Authenticated,
		Error:         workflows.LastError(run.State.Errors),
	}
	switch {
	case run.Suspended():
		res.Status = domain.LoginAwaiting
		res.Prompt = run.Prompt
	case run.State.Authenticated:
		res.Status = domain.LoginAuthenticated
	default:
		res.Status = domain.LoginFailed
	}
	return res
}

func (w *Workflow) navigate(ctx context.Context, s State) (State, error) {
	if s.Session == nil {
		return State{}, errors.New("no browser session")
	}
	if err := workflows.Navigate(ctx, s.Session, s.LoginURL); err != nil {
		return State{}, err
	}
	return State{}, w.kit.Pace(ctx, s.Session)
}

func (w *Workflow) fill(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors
	wait := w.kit.Wait()

	user, err := wait.One(ctx, s.Session, cat.LoginUsername)
	if err != nil {
		return State{}, fmt.Errorf("login form not found - page structure may have changed: %w", err)
	}
	pass, err := cat.LoginPassword.FindOne(ctx, s.Session)
	if err != nil {
		return State{}, fmt.Errorf("login form not found - page structure may have changed: %w", err)
	}

	if err := w.kit.Actions.Fill(ctx, cat.LoginUsername.Name, user, s.Username); err != nil {
		return State{}, fmt.Errorf("fill username: %w", err)
	}
	if err := w.kit.Pace(ctx, s.Session); err != nil {
		return State{}, err
	}
	if err := w.kit.Actions.Fill(ctx, cat.LoginPassword.Name, pass, s.Password); err != nil {
		return State{}, fmt.Errorf("fill password: %w", err)
	}
	return State{}, w.kit.Pace(ctx, s.Session)
}

func (w *Workflow) submit(ctx context.Context, s State) (State, error) {
	if s.Submissions > 0 {
		return State{}, errors.New("credentials were already submitted")
	}
	btn, err := w.kit.Selectors.LoginSubmit.FindOne(ctx, s.Session)
	if err != nil {
		return State{}, fmt.Errorf("sign in button not found: %w", err)
	}
	// Counted before activation so a partial click is never retried.
	d := State{Submissions: s.Submissions + 1}
	if _, err := w.kit.Actions.Activate(ctx, w.kit.Selectors.LoginSubmit.Name, btn); err != nil {
		return d, fmt.Errorf("sign in button not clickable: %w", err)
	}
	return d, nil
}

type location int

const (
	locUnknown location = iota
	locLogin
	locChallenge
	locSuccess
)

func (w *Workflow) classify(u string) location {
	switch {
	case strings.Contains(u, w.opts.ChallengeMarker):
		return locChallenge
	case containsAny(u, w.opts.LoginMarkers):
		return locLogin
	case containsAny(u, w.opts.SuccessMarkers):
		return locSuccess
	}
	return locUnknown
}

func (w *Workflow) verify(ctx context.Context, s State) (State, error) {
	wait := w.kit.Wait()
	wait.Timeout = w.opts.VerifyTimeout
	u, _, err := wait.URL(ctx, s.Session, func(u string) bool {
		loc := w.classify(u)
		return loc == locSuccess || loc == locChallenge
	})
	if err != nil {
		return State{Verdict: VerdictFailed}, err
	}

	d := State{FinalURL: u}
	switch w.classify(u) {
	case locSuccess:
		d.Authenticated = true
		d.Verdict = VerdictAuthenticated
		return d, nil
	case locChallenge:
		d.CaptchaDetected = true
		d.Verdict = VerdictChallenge
		return d, nil
	case locLogin:
		d.Verdict = VerdictFailed
		return d, &domain.VerificationFailure{URL: u, Reason: "Login failed - still on login page"}
	}
	d.Verdict = VerdictFailed
	return d, &domain.VerificationFailure{URL: u, Reason: "ambiguous authentication state"}
}

func (w *Workflow) captcha(ctx context.Context, s State) (State, error) {
	if s.Confirmations > s.CaptchaRounds {
		return State{CaptchaRounds: s.CaptchaRounds + 1}, nil
	}
	if s.CaptchaRounds >= w.opts.MaxCaptchaRounds {
		return State{Verdict: VerdictFailed},
			fmt.Errorf("captcha still present after %d confirmations", s.CaptchaRounds)
	}
	return State{CaptchaDetected: true}, graph.Suspend("captcha challenge detected: solve it in the browser, then confirm")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
