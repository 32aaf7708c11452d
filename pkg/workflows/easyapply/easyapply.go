// Package easyapply fills and submits an in-page application form that
// spans several modal steps:
//
//	navigate -> open_apply -> fill_form -> advance -> route{fill | submit | stop}
//	fill -> fill_form, submit -> submit -> end
//
// Answers come from a ports.FieldAnswerer. An answer that cannot be produced
// is written into the field as an explicit marker so the gap is visible on
// review rather than silently skipped.
package easyapply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/tendril/internal/textutil"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/resolve"
	"github.com/aretw0/tendril/pkg/workflows"
)

// Name is the graph name.
const Name = "easyapply"

// Step names.
const (
	StepNavigate = "navigate"
	StepOpen     = "open_apply"
	StepFill     = "fill_form"
	StepAdvance  = "advance"
	StepSubmit   = "submit"
)

// Router labels.
const (
	LabelFill   = "fill"
	LabelSubmit = "submit"
	LabelStop   = "stop"
)

// errorMarker prefixes what is written into a field that could not be answered.
const errorMarker = "Error: "

var optionLocator = ports.Locator{Kind: ports.CSS, Expr: "option"}

// DefaultMaxSteps caps the number of form pages filled per application.
const DefaultMaxSteps = 8

// Phase is what advance found after a form page was filled.
type Phase string

const (
	PhaseFill   Phase = "fill"
	PhaseSubmit Phase = "submit"
	PhaseStuck  Phase = "stuck"
)

// State is the per-run record of one application.
type State struct {
	Session   ports.Session
	JobURL    string
	Steps     int
	Phase     Phase
	Answers   map[string]string
	Submitted bool
	Errors    []string
}

func merge(prev, d State) State {
	if d.Session != nil {
		prev.Session = d.Session
	}
	if d.JobURL != "" {
		prev.JobURL = d.JobURL
	}
	if d.Steps > prev.Steps {
		prev.Steps = d.Steps
	}
	if d.Phase != "" {
		prev.Phase = d.Phase
	}
	if len(d.Answers) > 0 && prev.Answers == nil {
		prev.Answers = make(map[string]string, len(d.Answers))
	}
	for k, v := range d.Answers {
		prev.Answers[k] = v
	}
	prev.Submitted = prev.Submitted || d.Submitted
	prev.Errors = append(prev.Errors, d.Errors...)
	return prev
}

// Option configures the workflow.
type Option func(*Workflow)

// WithMaxSteps overrides the form page cap.
func WithMaxSteps(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.maxSteps = n
		}
	}
}

// Workflow is the compiled application graph.
type Workflow struct {
	kit      workflows.Kit
	answerer ports.FieldAnswerer
	maxSteps int
	graph    *graph.Compiled[State]
}

// ErrNoAnswerer is what every field is answered with when no answerer is configured.
var ErrNoAnswerer = errors.New("no answerer configured")

// New builds the application workflow. A nil answerer marks every field.
func New(kit workflows.Kit, answerer ports.FieldAnswerer, opts ...Option) (*Workflow, error) {
	if answerer == nil {
		answerer = ports.AnswerFunc(func(context.Context, ports.Field) (string, error) {
			return "", ErrNoAnswerer
		})
	}
	w := &Workflow{kit: kit.Defaults(), answerer: answerer, maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(w)
	}

	halted := func(s State) bool { return len(s.Errors) > 0 }
	g, err := graph.NewBuilder(Name, merge).
		AddNode(StepNavigate, w.navigate).
		AddNode(StepOpen, w.open).
		AddNode(StepFill, w.fill).
		AddNode(StepAdvance, w.advance).
		AddNode(StepSubmit, w.submit).
		SetEntry(StepNavigate).
		AddGuardedEdge(StepNavigate, StepOpen, halted).
		AddGuardedEdge(StepOpen, StepFill, halted).
		AddGuardedEdge(StepFill, StepAdvance, halted).
		AddConditionalEdges(StepAdvance, graph.Router[State]{
			Name:   "route",
			Labels: []string{LabelFill, LabelSubmit, LabelStop},
			Pick: func(_ context.Context, s State) string {
				switch s.Phase {
				case PhaseSubmit:
					return LabelSubmit
				case PhaseFill:
					return LabelFill
				}
				return LabelStop
			},
		}, map[string]string{LabelFill: StepFill, LabelSubmit: StepSubmit, LabelStop: graph.End}).
		AddEdge(StepSubmit, graph.End).
		OnFailure(func(step string, err error) State {
			return State{Phase: PhaseStuck, Errors: []string{workflows.StepError(step, err)}}
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

// Apply runs one application on s.
func (w *Workflow) Apply(ctx context.Context, s ports.Session, jobURL string) *graph.Run[State] {
	return w.graph.Execute(ctx, State{Session: s, JobURL: jobURL})
}

// Result translates a run into the host-facing result.
func Result(run *graph.Run[State]) domain.ApplyResult {
	res := domain.ApplyResult{
		JobURL:    run.State.JobURL,
		Submitted: run.State.Submitted,
		Steps:     run.State.Steps,
		Answers:   run.State.Answers,
	}
	if !res.Submitted {
		res.Error = workflows.LastError(run.State.Errors)
	}
	return res
}

func (w *Workflow) navigate(ctx context.Context, s State) (State, error) {
	if s.Session == nil {
		return State{}, errors.New("no browser session")
	}
	if strings.TrimSpace(s.JobURL) == "" {
		return State{}, errors.New("job url is required")
	}
	if err := workflows.Navigate(ctx, s.Session, s.JobURL); err != nil {
		return State{}, err
	}
	return State{}, w.kit.Pace(ctx, s.Session)
}

func (w *Workflow) open(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors
	btn, err := w.kit.Wait().One(ctx, s.Session, cat.ApplyButton.AsRequired())
	if err != nil {
		return State{}, err
	}
	if _, err := w.kit.Actions.Activate(ctx, cat.ApplyButton.Name, btn); err != nil {
		return State{}, err
	}
	if _, err := w.kit.Wait().One(ctx, s.Session, cat.ApplyModal.AsRequired()); err != nil {
		return State{}, err
	}
	return State{}, w.kit.Pace(ctx, s.Session)
}

// fill answers every field on the current form page. Individual field
// failures are recorded in Answers and never fail the step.
func (w *Workflow) fill(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors
	modal, err := cat.ApplyModal.AsRequired().FindOne(ctx, s.Session)
	if err != nil {
		return State{}, err
	}

	d := State{Steps: s.Steps + 1, Answers: make(map[string]string)}
	for _, sel := range []struct {
		fields []ports.Element
		kind   ports.FieldKind
	}{
		{w.many(ctx, modal, cat.TextField), ports.FieldText},
		{w.many(ctx, modal, cat.TextArea), ports.FieldText},
		{w.many(ctx, modal, cat.SelectField), ports.FieldSelect},
	} {
		for _, el := range sel.fields {
			label, answer := w.fillInput(ctx, el, sel.kind)
			if label != "" {
				d.Answers[label] = answer
			}
		}
	}
	for _, group := range w.many(ctx, modal, cat.RadioGroup) {
		label, answer := w.fillRadio(ctx, group)
		if label != "" {
			d.Answers[label] = answer
		}
	}
	return d, nil
}

func (w *Workflow) many(ctx context.Context, scope ports.Scope, sel resolve.Selector) []ports.Element {
	els, err := sel.FindMany(ctx, scope)
	if err != nil {
		w.kit.Logger.Debug("Field lookup failed", "err", err)
	}
	return els
}

func (w *Workflow) fillInput(ctx context.Context, el ports.Element, kind ports.FieldKind) (string, string) {
	field := ports.Field{Label: fieldLabel(ctx, el), Kind: kind}
	if current, ok, _ := el.Attribute(ctx, "value"); ok {
		field.Current = strings.TrimSpace(current)
	}
	if kind == ports.FieldText && field.Current != "" {
		// Prefilled from the profile.
		return field.Label, field.Current
	}
	if kind == ports.FieldSelect {
		field.Options = optionTexts(ctx, el, optionLocator)
	}

	answer, err := w.answer(ctx, field)
	if err != nil {
		answer = errorMarker + err.Error()
		if kind == ports.FieldSelect {
			return field.Label, answer
		}
	}
	target := "field " + field.Label
	switch kind {
	case ports.FieldSelect:
		err = el.Select(ctx, answer)
	default:
		err = w.kit.Actions.Fill(ctx, target, el, answer)
	}
	if err != nil {
		return field.Label, errorMarker + err.Error()
	}
	return field.Label, answer
}

func (w *Workflow) fillRadio(ctx context.Context, group ports.Element) (string, string) {
	cat := w.kit.Selectors
	field := ports.Field{Kind: ports.FieldRadio}
	if legend, _ := cat.RadioLegend.AsOptional().FindOne(ctx, group); legend != nil {
		if text, err := legend.Text(ctx); err == nil {
			field.Label = strings.TrimSpace(text)
		}
	}
	if field.Label == "" {
		field.Label = fieldLabel(ctx, group)
	}
	options := w.many(ctx, group, cat.RadioOption)
	for _, opt := range options {
		text, _ := opt.Text(ctx)
		field.Options = append(field.Options, strings.TrimSpace(text))
	}

	answer, err := w.answer(ctx, field)
	if err != nil {
		return field.Label, errorMarker + err.Error()
	}
	for i, opt := range field.Options {
		if strings.EqualFold(opt, answer) {
			if _, err := w.kit.Actions.Activate(ctx, "option "+opt, options[i]); err != nil {
				return field.Label, errorMarker + err.Error()
			}
			return field.Label, opt
		}
	}
	return field.Label, errorMarker + fmt.Sprintf("answer %q is not an option", answer)
}

func (w *Workflow) answer(ctx context.Context, field ports.Field) (string, error) {
	answer, err := w.answerer.Answer(ctx, field)
	if err != nil {
		return "", err
	}
	return textutil.Sanitize(strings.TrimSpace(answer))
}

func (w *Workflow) advance(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors

	submit, err := cat.SubmitApply.AsOptional().FindUsable(ctx, s.Session)
	if err != nil {
		return State{}, err
	}
	if submit != nil {
		return State{Phase: PhaseSubmit}, nil
	}

	if s.Steps >= w.maxSteps {
		return State{Phase: PhaseStuck}, fmt.Errorf("form still open after %d steps", s.Steps)
	}
	for _, sel := range []struct {
		name string
		find func() (ports.Element, error)
	}{
		{cat.ReviewStep.Name, func() (ports.Element, error) { return cat.ReviewStep.AsOptional().FindUsable(ctx, s.Session) }},
		{cat.NextStep.Name, func() (ports.Element, error) { return cat.NextStep.AsOptional().FindUsable(ctx, s.Session) }},
	} {
		el, err := sel.find()
		if err != nil {
			return State{}, err
		}
		if el == nil {
			continue
		}
		if _, err := w.kit.Actions.Activate(ctx, sel.name, el); err != nil {
			return State{Phase: PhaseStuck}, err
		}
		return State{Phase: PhaseFill}, w.kit.Pace(ctx, s.Session)
	}
	return State{Phase: PhaseStuck}, errors.New("no next, review or submit control")
}

func (w *Workflow) submit(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors
	if err := w.kit.Click(ctx, s.Session, cat.SubmitApply); err != nil {
		return State{}, err
	}
	done, err := w.kit.Wait().One(ctx, s.Session, cat.ApplyConfirmed.AsOptional())
	if err != nil {
		return State{}, err
	}
	if done == nil {
		at, _ := s.Session.CurrentURL(ctx)
		return State{}, &domain.VerificationFailure{URL: at, Reason: "no application confirmation shown"}
	}
	return State{Submitted: true}, w.kit.Pace(ctx, s.Session)
}

// fieldLabel names a form control by the first descriptive attribute it has.
func fieldLabel(ctx context.Context, el ports.Element) string {
	for _, attr := range []string{"aria-label", "placeholder", "name", "id"} {
		if v, ok, err := el.Attribute(ctx, attr); err == nil && ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return "unlabeled"
}

func optionTexts(ctx context.Context, el ports.Element, loc ports.Locator) []string {
	opts, err := el.Query(ctx, loc)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		if text, err := o.Text(ctx); err == nil && strings.TrimSpace(text) != "" {
			out = append(out, strings.TrimSpace(text))
		}
	}
	return out
}
