// Package jobsearch implements paginated search and extraction:
//
//	build_query -> navigate -> extract_page -> decide{continue | finish}
//	continue -> navigate_next_page -> extract_page
//
// Extraction stops at the configured limit, at the page cap, or when no
// enabled next-page control remains. A card that fails to extract is
// skipped without aborting its page.
package jobsearch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/workflows"
)

// Name is the graph name.
const Name = "jobsearch"

// Step names.
const (
	StepBuildQuery = "build_query"
	StepNavigate   = "navigate"
	StepExtract    = "extract_page"
	StepNextPage   = "navigate_next_page"
)

// Router labels.
const (
	LabelContinue = "continue"
	LabelFinish   = "finish"
)

// DefaultMaxPages is the hard cap on pages visited per run.
const DefaultMaxPages = 10

const (
	searchURL = "https://www.linkedin.com/jobs/search/"
	siteRoot  = "https://www.linkedin.com"
)

// Pager records whether an enabled next-page control was seen on the last page.
type Pager string

const (
	PagerMore Pager = "more"
	PagerLast Pager = "last"
)

// Query is what to search for.
type Query struct {
	Keywords  string `json:"keywords"`
	Location  string `json:"location,omitempty"`
	EasyApply bool   `json:"easy_apply,omitempty"`
}

// State is the per-run record of a job search.
type State struct {
	Session   ports.Session
	Query     Query
	Limit     int // zero or less means bounded by the page cap only
	SearchURL string
	Page      int
	Next      Pager
	Jobs      []domain.Job
	Seen      map[int64]struct{}
	Errors    []string
}

func merge(prev, d State) State {
	if d.Session != nil {
		prev.Session = d.Session
	}
	if d.Query != (Query{}) {
		prev.Query = d.Query
	}
	if d.Limit != 0 {
		prev.Limit = d.Limit
	}
	if d.SearchURL != "" {
		prev.SearchURL = d.SearchURL
	}
	if d.Page > prev.Page {
		prev.Page = d.Page
	}
	if d.Next != "" {
		prev.Next = d.Next
	}
	prev.Jobs = append(prev.Jobs, d.Jobs...)
	if len(d.Seen) > 0 && prev.Seen == nil {
		prev.Seen = make(map[int64]struct{}, len(d.Seen))
	}
	for id := range d.Seen {
		prev.Seen[id] = struct{}{}
	}
	prev.Errors = append(prev.Errors, d.Errors...)
	return prev
}

func (s State) limitReached() bool {
	return s.Limit > 0 && len(s.Jobs) >= s.Limit
}

// Option configures the workflow.
type Option func(*Workflow)

// WithMaxPages overrides the page cap.
func WithMaxPages(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.maxPages = n
		}
	}
}

// Workflow is the compiled job search graph.
type Workflow struct {
	kit      workflows.Kit
	maxPages int
	graph    *graph.Compiled[State]
}

// New builds the job search workflow.
func New(kit workflows.Kit, opts ...Option) (*Workflow, error) {
	w := &Workflow{kit: kit.Defaults(), maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(w)
	}

	g, err := graph.NewBuilder(Name, merge).
		AddNode(StepBuildQuery, w.buildQuery).
		AddNode(StepNavigate, w.navigate).
		AddNode(StepExtract, w.extractPage).
		AddNode(StepNextPage, w.nextPage).
		SetEntry(StepBuildQuery).
		AddGuardedEdge(StepBuildQuery, StepNavigate, func(s State) bool { return s.SearchURL == "" }).
		AddGuardedEdge(StepNavigate, StepExtract, func(s State) bool { return s.Page == 0 }).
		AddConditionalEdges(StepExtract, graph.Router[State]{
			Name:   "decide",
			Labels: []string{LabelContinue, LabelFinish},
			Pick: func(_ context.Context, s State) string {
				switch {
				case s.limitReached(), s.Page >= w.maxPages, s.Next != PagerMore:
					return LabelFinish
				}
				return LabelContinue
			},
		}, map[string]string{LabelContinue: StepNextPage, LabelFinish: graph.End}).
		AddGuardedEdge(StepNextPage, StepExtract, func(s State) bool { return s.Next == PagerLast }).
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

// Run executes a search on s.
func (w *Workflow) Run(ctx context.Context, s ports.Session, q Query, limit int) *graph.Run[State] {
	return w.graph.Execute(ctx, State{Session: s, Query: q, Limit: limit})
}

// Result translates a run into the host-facing result.
func Result(run *graph.Run[State]) domain.SearchResult {
	jobs := run.State.Jobs
	if jobs == nil {
		jobs = []domain.Job{}
	}
	return domain.SearchResult{Jobs: jobs, Pages: run.State.Page, Errors: run.State.Errors}
}

// SearchURL builds the results URL for q.
func SearchURL(q Query) string {
	v := url.Values{}
	v.Set("keywords", q.Keywords)
	if q.Location != "" {
		v.Set("location", q.Location)
	}
	if q.EasyApply {
		v.Set("f_AL", "true")
	}
	return searchURL + "?" + v.Encode()
}

func (w *Workflow) buildQuery(_ context.Context, s State) (State, error) {
	if strings.TrimSpace(s.Query.Keywords) == "" {
		return State{}, errors.New("keywords are required")
	}
	return State{SearchURL: SearchURL(s.Query)}, nil
}

func (w *Workflow) navigate(ctx context.Context, s State) (State, error) {
	if s.Session == nil {
		return State{}, errors.New("no browser session")
	}
	if err := workflows.Navigate(ctx, s.Session, s.SearchURL); err != nil {
		return State{}, err
	}
	// Cards are awaited by extract_page; an empty page is reported there.
	return State{Page: 1}, w.kit.Pace(ctx, s.Session)
}

func (w *Workflow) extractPage(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors
	cards, err := w.kit.Wait().Many(ctx, s.Session, cat.JobCard)
	if err != nil {
		return State{Next: PagerLast}, fmt.Errorf("no job cards found on page %d: %w", s.Page, err)
	}

	d := State{Seen: make(map[int64]struct{})}
	for i, card := range cards {
		if s.Limit > 0 && len(s.Jobs)+len(d.Jobs) >= s.Limit {
			break
		}
		id, err := cardID(ctx, card)
		if err == nil {
			// Known postings are skipped before their detail view is opened.
			if _, dup := s.Seen[id]; dup {
				continue
			}
			if _, dup := d.Seen[id]; dup {
				continue
			}
		}
		var job domain.Job
		if err == nil {
			job, err = w.extractCard(ctx, s.Session, card, id)
		}
		if err != nil {
			if ctx.Err() != nil {
				return d, ctx.Err()
			}
			d.Errors = append(d.Errors, fmt.Sprintf("page %d card %d: %v", s.Page, i+1, err))
			continue
		}
		d.Seen[job.ID] = struct{}{}
		d.Jobs = append(d.Jobs, job)
		if err := w.kit.Pace(ctx, s.Session); err != nil {
			return d, err
		}
	}

	d.Next = PagerLast
	next, err := cat.NextPage.AsOptional().FindUsable(ctx, s.Session)
	if err != nil {
		return d, err
	}
	if next != nil {
		d.Next = PagerMore
	}
	return d, nil
}

func cardID(ctx context.Context, card ports.Element) (int64, error) {
	raw, ok, err := card.Attribute(ctx, "data-occludable-job-id")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New("card has no job id")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q", raw)
	}
	return id, nil
}

func (w *Workflow) extractCard(ctx context.Context, sess ports.Session, card ports.Element, id int64) (domain.Job, error) {
	cat := w.kit.Selectors

	link, err := cat.JobLink.AsRequired().FindOne(ctx, card)
	if err != nil {
		return domain.Job{}, err
	}
	title, err := link.Text(ctx)
	if err != nil {
		return domain.Job{}, err
	}
	href, _, err := link.Attribute(ctx, "href")
	if err != nil {
		return domain.Job{}, err
	}

	job := domain.Job{ID: id, Title: collapse(title), URL: absolute(href)}
	if company, _ := cat.JobCompany.AsOptional().FindOne(ctx, card); company != nil {
		if text, err := company.Text(ctx); err == nil {
			job.Company = collapse(text)
		}
	}

	if _, err := w.kit.Actions.Activate(ctx, cat.JobLink.Name, link); err != nil {
		return domain.Job{}, err
	}
	desc, err := w.kit.Wait().One(ctx, sess, cat.JobDescription.AsRequired())
	if err != nil {
		return domain.Job{}, err
	}
	text, err := desc.Text(ctx)
	if err != nil {
		return domain.Job{}, err
	}
	job.Description = collapse(text)
	if job.Description == "" {
		return domain.Job{}, errors.New("empty job description")
	}
	return job, nil
}

func (w *Workflow) nextPage(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors
	next, err := cat.NextPage.AsRequired().FindUsable(ctx, s.Session)
	if err != nil {
		return State{Next: PagerLast}, err
	}
	d := State{Page: s.Page + 1}
	if _, err := w.kit.Actions.Activate(ctx, cat.NextPage.Name, next); err != nil {
		d.Next = PagerLast
		return d, err
	}
	return d, w.kit.Pace(ctx, s.Session)
}

// collapse joins whitespace-separated text runs with single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func absolute(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	u.RawQuery = ""
	u.Fragment = ""
	if u.Host == "" {
		return siteRoot + u.Path
	}
	return u.String()
}
