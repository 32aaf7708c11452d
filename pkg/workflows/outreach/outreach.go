// Package outreach sends one connection request or direct message to a
// profile, choosing the branch from the controls the profile offers:
//
//	navigate_to_target -> detect_action -> route{connection_request | direct_message | skip}
//
// A direct connect control wins over one inside the overflow menu, and both
// win over messaging. A failure aborts only this submission.
package outreach

import (
	"context"
	"errors"
	"strings"

	"github.com/aretw0/tendril/internal/textutil"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/workflows"
)

// Name is the graph name.
const Name = "outreach"

// Step names. The branch steps share their names with the router labels.
const (
	StepNavigate   = "navigate_to_target"
	StepDetect     = "detect_action"
	StepConnection = string(domain.MethodConnectionRequest)
	StepMessage    = string(domain.MethodDirectMessage)
	StepSkip       = string(domain.MethodSkip)
)

// NoteLimit is the longest connection note the site accepts, in characters.
const NoteLimit = 300

// ErrNoAction is recorded when a profile offers neither connecting nor messaging.
var ErrNoAction = errors.New("no message or connect button found")

// Request is one submission.
type Request struct {
	ProfileURL string `json:"profile_url"`
	Name       string `json:"name,omitempty"`
	Text       string `json:"text"`
	Subject    string `json:"subject,omitempty"`
}

// State is the per-run record of a submission.
type State struct {
	Session  ports.Session
	Request  Request
	Method   domain.Method
	Overflow bool // connect control was found in the overflow menu
	Noted    bool
	Sent     bool
	Errors   []string
}

func merge(prev, d State) State {
	if d.Session != nil {
		prev.Session = d.Session
	}
	if d.Request != (Request{}) {
		prev.Request = d.Request
	}
	if d.Method != "" {
		prev.Method = d.Method
	}
	prev.Overflow = prev.Overflow || d.Overflow
	prev.Noted = prev.Noted || d.Noted
	prev.Sent = prev.Sent || d.Sent
	prev.Errors = append(prev.Errors, d.Errors...)
	return prev
}

// Workflow is the compiled outreach graph.
type Workflow struct {
	kit   workflows.Kit
	graph *graph.Compiled[State]
}

// New builds the outreach workflow.
func New(kit workflows.Kit) (*Workflow, error) {
	w := &Workflow{kit: kit.Defaults()}

	g, err := graph.NewBuilder(Name, merge).
		AddNode(StepNavigate, w.navigate).
		AddNode(StepDetect, w.detect).
		AddNode(StepConnection, w.connect).
		AddNode(StepMessage, w.message).
		AddNode(StepSkip, w.skip).
		SetEntry(StepNavigate).
		AddGuardedEdge(StepNavigate, StepDetect, func(s State) bool { return len(s.Errors) > 0 }).
		AddConditionalEdges(StepDetect, graph.Router[State]{
			Name:   "route",
			Labels: []string{StepConnection, StepMessage, StepSkip},
			Pick: func(_ context.Context, s State) string {
				if s.Method == "" {
					return StepSkip
				}
				return string(s.Method)
			},
		}, map[string]string{StepConnection: StepConnection, StepMessage: StepMessage, StepSkip: StepSkip}).
		AddEdge(StepConnection, graph.End).
		AddEdge(StepMessage, graph.End).
		AddEdge(StepSkip, graph.End).
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

// Send runs one submission on s.
func (w *Workflow) Send(ctx context.Context, s ports.Session, req Request) domain.SubmissionResult {
	return Result(w.graph.Execute(ctx, State{Session: s, Request: req}))
}

// Result translates a run into the host-facing result.
func Result(run *graph.Run[State]) domain.SubmissionResult {
	method := run.State.Method
	if method == "" {
		method = domain.MethodSkip
	}
	res := domain.SubmissionResult{
		Identifier: run.State.Request.ProfileURL,
		Sent:       run.State.Sent,
		Method:     method,
	}
	if !res.Sent {
		res.Error = workflows.LastError(run.State.Errors)
	}
	return res
}

func (w *Workflow) navigate(ctx context.Context, s State) (State, error) {
	if s.Session == nil {
		return State{}, errors.New("no browser session")
	}
	if strings.TrimSpace(s.Request.ProfileURL) == "" {
		return State{}, errors.New("profile url is required")
	}
	if err := workflows.Navigate(ctx, s.Session, s.Request.ProfileURL); err != nil {
		return State{}, err
	}
	if err := w.kit.Pace(ctx, s.Session); err != nil {
		return State{}, err
	}
	_, err := w.kit.Wait().One(ctx, s.Session, w.kit.Selectors.ProfileReady.AsRequired())
	return State{}, err
}

func (w *Workflow) detect(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors

	connect, err := cat.ConnectButton.AsOptional().FindUsable(ctx, s.Session)
	if err != nil {
		return State{}, err
	}
	if connect != nil {
		return State{Method: domain.MethodConnectionRequest}, nil
	}

	more, err := cat.MoreActions.AsOptional().FindUsable(ctx, s.Session)
	if err != nil {
		return State{}, err
	}
	if more != nil {
		if _, err := w.kit.Actions.Activate(ctx, cat.MoreActions.Name, more); err != nil {
			w.kit.Logger.Debug("Overflow menu did not open", "err", err)
		} else {
			item, err := w.kit.Wait().One(ctx, s.Session, cat.OverflowConnect.AsOptional())
			if err != nil {
				return State{}, err
			}
			if item != nil {
				return State{Method: domain.MethodConnectionRequest, Overflow: true}, nil
			}
		}
	}

	msg, err := cat.MessageButton.AsOptional().FindUsable(ctx, s.Session)
	if err != nil {
		return State{}, err
	}
	if msg != nil {
		return State{Method: domain.MethodDirectMessage}, nil
	}
	return State{Method: domain.MethodSkip}, nil
}

func (w *Workflow) skip(context.Context, State) (State, error) {
	return State{}, ErrNoAction
}

func (w *Workflow) connect(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors

	control := cat.ConnectButton
	if s.Overflow {
		control = cat.OverflowConnect
	}
	if err := w.kit.Click(ctx, s.Session, control); err != nil {
		return State{}, err
	}
	if err := w.kit.Pace(ctx, s.Session); err != nil {
		return State{}, err
	}

	var d State
	note, err := textutil.Clean(s.Request.Text)
	if err != nil {
		return d, err
	}
	note = textutil.Truncate(strings.TrimSpace(note), NoteLimit)
	if note != "" {
		noted, err := w.writeNote(ctx, s.Session, note)
		if err != nil {
			return d, err
		}
		d.Noted = noted
	}

	send, err := w.kit.Wait().One(ctx, s.Session, cat.SendInvite.AsRequired())
	if err != nil {
		return d, err
	}
	if _, err := w.kit.Actions.Activate(ctx, cat.SendInvite.Name, send); err != nil {
		return d, err
	}
	d.Sent = true
	return d, w.kit.Pace(ctx, s.Session)
}

// writeNote opens the note editor and types note. It reports false when the
// invitation offers no note at all.
func (w *Workflow) writeNote(ctx context.Context, s ports.Session, note string) (bool, error) {
	cat := w.kit.Selectors

	add, err := w.kit.Wait().One(ctx, s, cat.AddNote.AsOptional())
	if err != nil {
		return false, err
	}
	if add != nil {
		if _, err := w.kit.Actions.Activate(ctx, cat.AddNote.Name, add); err != nil {
			return false, err
		}
		if err := w.kit.Pace(ctx, s); err != nil {
			return false, err
		}
	}

	field, err := w.kit.Wait().One(ctx, s, cat.NoteField.AsOptional())
	if err != nil {
		return false, err
	}
	if field == nil {
		// The editor may render inside a shadow root.
		field, err = cat.NoteField.AsOptional().FindPierced(ctx, s)
		if err != nil {
			return false, err
		}
	}
	if field == nil {
		if add == nil {
			w.kit.Logger.Info("Invitation offers no note, sending without one")
			return false, nil
		}
		_, err := cat.NoteField.AsRequired().FindPierced(ctx, s)
		return false, err
	}

	if err := w.kit.Actions.Fill(ctx, cat.NoteField.Name, field, note); err != nil {
		return false, err
	}
	return true, w.kit.Pace(ctx, s)
}

func (w *Workflow) message(ctx context.Context, s State) (State, error) {
	cat := w.kit.Selectors

	body, err := textutil.Sanitize(strings.TrimSpace(s.Request.Text))
	if err != nil {
		return State{}, err
	}
	if body == "" {
		return State{}, errors.New("message text is required")
	}
	subject, err := textutil.Sanitize(strings.TrimSpace(s.Request.Subject))
	if err != nil {
		return State{}, err
	}

	btn, err := cat.MessageButton.AsRequired().FindUsable(ctx, s.Session)
	if err != nil {
		return State{}, err
	}
	if _, err := w.kit.Actions.Activate(ctx, cat.MessageButton.Name, btn); err != nil {
		return State{}, err
	}
	if err := w.kit.Pace(ctx, s.Session); err != nil {
		return State{}, err
	}

	box, err := w.kit.Wait().One(ctx, s.Session, cat.ComposeBox.AsRequired())
	if err != nil {
		return State{}, err
	}
	if subject != "" {
		// Not every compose surface has a subject line.
		if field, _ := cat.ComposeSubject.AsOptional().FindOne(ctx, s.Session); field != nil {
			if err := w.kit.Actions.Fill(ctx, cat.ComposeSubject.Name, field, subject); err != nil {
				return State{}, err
			}
		}
	}
	if err := w.kit.Actions.Fill(ctx, cat.ComposeBox.Name, box, body); err != nil {
		return State{}, err
	}
	if err := w.kit.Pace(ctx, s.Session); err != nil {
		return State{}, err
	}

	send, err := cat.ComposeSend.AsRequired().FindUsable(ctx, s.Session)
	if err != nil {
		return State{}, err
	}
	if _, err := w.kit.Actions.Activate(ctx, cat.ComposeSend.Name, send); err != nil {
		return State{}, err
	}
	return State{Sent: true}, w.kit.Pace(ctx, s.Session)
}
