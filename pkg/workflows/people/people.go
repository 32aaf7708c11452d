// Package people extracts members from a company's people list, which grows
// through a "show more" control rather than pages:
//
//	navigate_to_list -> extract_visible -> decide{load_more | finish}
//	load_more -> click_show_more -> extract_visible
//
// Cards already collected are recognized by profile URL and skipped. The
// number of show-more clicks is capped whether or not the control ever
// disables itself.
package people

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/workflows"
)

// Name is the graph name.
const Name = "people"

// Step names.
const (
	StepNavigate = "navigate_to_list"
	StepExtract  = "extract_visible"
	StepShowMore = "click_show_more"
)

// Router labels.
const (
	LabelLoadMore = "load_more"
	LabelFinish   = "finish"
)

// DefaultMaxShowMore caps show-more clicks per run.
const DefaultMaxShowMore = 20

// ErrNoCards is recorded when the list renders no member cards at all.
var ErrNoCards = errors.New("no employee cards found on page")

// Control reports whether a usable show-more control was seen.
type Control string

const (
	ControlAvailable Control = "available"
	ControlMissing   Control = "missing"
)

// State is the per-run record of a people search.
type State struct {
	Session  ports.Session
	Company  string
	Limit    int // zero or less means bounded by the click cap only
	ListURL  string
	People   []domain.Person
	Seen     map[string]struct{}
	Rendered int // cards on the list at the last extraction
	Clicks   int
	More     Control
	Errors   []string
}

func merge(prev, d State) State {
	if d.Session != nil {
		prev.Session = d.Session
	}
	if d.Company != "" {
		prev.Company = d.Company
	}
	if d.Limit != 0 {
		prev.Limit = d.Limit
	}
	if d.ListURL != "" {
		prev.ListURL = d.ListURL
	}
	prev.People = append(prev.People, d.People...)
	if len(d.Seen) > 0 && prev.Seen == nil {
		prev.Seen = make(map[string]struct{}, len(d.Seen))
	}
	for id := range d.Seen {
		prev.Seen[id] = struct{}{}
	}
	if d.Rendered > prev.Rendered {
		prev.Rendered = d.Rendered
	}
	if d.Clicks > prev.Clicks {
		prev.Clicks = d.Clicks
	}
	if d.More != "" {
		prev.More = d.More
	}
	prev.Errors = append(prev.Errors, d.Errors...)
	return prev
}

func (s State) limitReached() bool {
	return s.Limit > 0 && len(s.People) >= s.Limit
}

// Option configures the workflow.
type Option func(*Workflow)

// WithMaxShowMore overrides the click cap.
func WithMaxShowMore(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.maxClicks = n
		}
	}
}

// Workflow is the compiled people search graph.
type Workflow struct {
	kit       workflows.Kit
	maxClicks int
	graph     *graph.Compiled[State]
}

// New builds the people search workflow.
func New(kit workflows.Kit, opts ...Option) (*Workflow, error) {
	w := &Workflow{kit: kit.Defaults(), maxClicks: DefaultMaxShowMore}
	for _, opt := range opts {
		opt(w)
	}

	g, err := graph.NewBuilder(Name, merge).
		AddNode(StepNavigate, w.navigate).
		AddNode(StepExtract, w.extract).
		AddNode(StepShowMore, w.showMore).
		SetEntry(StepNavigate).
		AddGuardedEdge(StepNavigate, StepExtract, func(s State) bool { return s.ListURL == "" }).
		AddConditionalEdges(StepExtract, graph.Router[State]{
			Name:   "decide",
			Labels: []string{LabelLoadMore, LabelFinish},
			Pick: func(_ context.Context, s State) string {
				switch {
				case s.limitReached(), s.Clicks >= w.maxClicks, s.More != ControlAvailable:
					return LabelFinish
				}
				return LabelLoadMore
			},
		}, map[string]string{LabelLoadMore: StepShowMore, LabelFinish: graph.End}).
		AddGuardedEdge(StepShowMore, StepExtract, func(s State) bool { return s.More == ControlMissing }).
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

// Run collects up to limit members of company. Profile URLs in exclude are
// treated as already collected.
func (w *Workflow) Run(ctx context.Context, s ports.Session, company string, limit int, exclude ...string) *graph.Run[State] {
	seen := make(map[string]struct{}, len(exclude))
	for _, u := range exclude {
		seen[CleanProfileURL(u)] = struct{}{}
	}
	return w.graph.Execute(ctx, State{Session: s, Company: company, Limit: limit, Seen: seen})
}

// Result translates a run into the host-facing result.
func Result(run *graph.Run[State]) domain.PeopleResult {
	people := run.State.People
	if people == nil {
		people = []domain.Person{}
	}
	return domain.PeopleResult{People: people, Errors: run.State.Errors}
}

// ListURL turns a company reference (full URL, bare host path, or slug)
// into the company's people list URL.
func ListURL(company string) (string, error) {
	ref := strings.TrimSpace(company)
	if ref == "" {
		return "", errors.New("company is required")
	}
	if !strings.Contains(ref, "/") && !strings.Contains(ref, ".") {
		return "https://www.linkedin.com/company/" + url.PathEscape(ref) + "/people/", nil
	}
	switch {
	case strings.HasPrefix(ref, "https://"):
	case strings.HasPrefix(ref, "http://"):
		ref = "https://" + strings.TrimPrefix(ref, "http://")
	case strings.HasPrefix(ref, "www."):
		ref = "https://" + ref
	default:
		ref = "https://www." + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid company url %q: %w", company, err)
	}
	u.RawQuery, u.Fragment = "", ""
	path := strings.TrimSuffix(u.Path, "/")
	path = strings.TrimSuffix(path, "/people")
	u.Path = path + "/people/"
	return u.String(), nil
}

// CleanProfileURL drops the query string from a profile link.
func CleanProfileURL(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	return href
}

// NameFromLabel extracts the member name from a "View X's profile" label.
func NameFromLabel(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if !strings.HasPrefix(label, "View ") {
		return "", false
	}
	for _, suffix := range []string{"'s profile", "’s profile"} {
		if strings.HasSuffix(label, suffix) {
			name := strings.TrimSpace(label[len("View ") : len(label)-len(suffix)])
			return name, name != ""
		}
	}
	return "", false
}

func (w *Workflow) navigate(ctx context.Context, s State) (State, error) {
	if s.Session == nil {
		return State{}, errors.New("no browser session")
	}
	target, err := ListURL(s.Company)
	if err != nil {
		return State{}, err
	}
	if err := workflows.Navigate(ctx, s.Session, target); err != nil {
		return State{}, err
	}
	return State{ListURL: target}, w.kit.Pace(ctx, s.Session)
}

func (w *Workflow) extract(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors
	cards, err := w.kit.Wait().Many(ctx, s.Session, cat.PersonCard.AsOptional())
	if err != nil {
		return State{More: ControlMissing}, err
	}
	if len(cards) == 0 {
		return State{More: ControlMissing}, ErrNoCards
	}

	// Scrolling the last card in renders the lazy parts of every card above it.
	if err := cards[len(cards)-1].ScrollIntoView(ctx); err != nil {
		w.kit.Logger.Debug("Scroll to last card failed", "err", err)
	}

	d := State{Seen: make(map[string]struct{}), Rendered: len(cards)}
	for i, card := range cards {
		if s.Limit > 0 && len(s.People)+len(d.People) >= s.Limit {
			break
		}
		p, err := w.extractCard(ctx, card)
		if err != nil {
			if ctx.Err() != nil {
				return d, ctx.Err()
			}
			d.Errors = append(d.Errors, fmt.Sprintf("card %d: %v", i+1, err))
			continue
		}
		if _, dup := s.Seen[p.ProfileURL]; dup {
			continue
		}
		if _, dup := d.Seen[p.ProfileURL]; dup {
			continue
		}
		d.Seen[p.ProfileURL] = struct{}{}
		d.People = append(d.People, p)
	}

	d.More = ControlMissing
	more, err := cat.ShowMore.AsOptional().FindUsable(ctx, s.Session)
	if err != nil {
		return d, err
	}
	if more != nil {
		d.More = ControlAvailable
	}
	return d, nil
}

func (w *Workflow) extractCard(ctx context.Context, card ports.Element) (domain.Person, error) {
	cat := w.kit.Selectors

	link, err := cat.PersonProfile.AsRequired().FindOne(ctx, card)
	if err != nil {
		return domain.Person{}, err
	}
	href, _, err := link.Attribute(ctx, "href")
	if err != nil {
		return domain.Person{}, err
	}
	profile := CleanProfileURL(strings.TrimSpace(href))
	if profile == "" {
		return domain.Person{}, errors.New("profile link has no href")
	}

	nameEl, err := cat.PersonName.AsRequired().FindOne(ctx, card)
	if err != nil {
		return domain.Person{}, err
	}
	name, err := readName(ctx, nameEl)
	if err != nil {
		return domain.Person{}, err
	}

	p := domain.Person{Name: name, ProfileURL: profile}
	if el, _ := cat.PersonTitle.AsOptional().FindOne(ctx, card); el != nil {
		if text, err := el.Text(ctx); err == nil {
			p.Title = strings.TrimSpace(text)
		}
	}
	return p, nil
}

func readName(ctx context.Context, el ports.Element) (string, error) {
	label, ok, err := el.Attribute(ctx, "aria-label")
	if err != nil {
		return "", err
	}
	if ok {
		if name, found := NameFromLabel(label); found {
			return name, nil
		}
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	if name := strings.TrimSpace(text); name != "" {
		return name, nil
	}
	return "", errors.New("card has no name")
}

func (w *Workflow) showMore(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors
	more, err := cat.ShowMore.AsRequired().FindUsable(ctx, s.Session)
	if err != nil {
		return State{More: ControlMissing}, err
	}
	d := State{Clicks: s.Clicks + 1}
	if _, err := w.kit.Actions.Activate(ctx, cat.ShowMore.Name, more); err != nil {
		d.More = ControlMissing
		return d, err
	}
	n, err := w.kit.Wait().Count(ctx, s.Session, cat.PersonCard, s.Rendered)
	if err != nil {
		return d, err
	}
	if n <= s.Rendered {
		// Another click would see the same cards.
		d.More = ControlMissing
		return d, fmt.Errorf("no new cards after show more (still %d)", n)
	}
	return d, w.kit.Pace(ctx, s.Session)
}
