package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/tendril/pkg/domain"
)

// End is the terminal sentinel. Routing to End finishes the run.
const End = "__end__"

// Labels used by guarded edges.
const (
	LabelNext = "next"
	LabelHalt = "halt"
)

// NodeFunc is a step. It returns a delta holding only what it changed or produced.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Reducer merges a step's delta into the running state.
type Reducer[S any] func(prev, delta S) S

// FailureFunc builds the delta that records a failed step.
type FailureFunc[S any] func(step string, err error) S

// Router picks the label of the next edge from the updated state.
// Labels declares every value Pick may return.
type Router[S any] struct {
	Name   string
	Labels []string
	Pick   func(ctx context.Context, state S) string
}

type route[S any] struct {
	router  Router[S]
	targets map[string]string
}

// Builder manages the graph construction.
type Builder[S any] struct {
	name     string
	reducer  Reducer[S]
	failure  FailureFunc[S]
	nodes    map[string]NodeFunc[S]
	order    []string
	entry    string
	edges    map[string]string
	routes   map[string]route[S]
	problems []string
}

// NewBuilder creates a new graph builder.
func NewBuilder[S any](name string, reducer Reducer[S]) *Builder[S] {
	return &Builder[S]{
		name:    name,
		reducer: reducer,
		nodes:   make(map[string]NodeFunc[S]),
		edges:   make(map[string]string),
		routes:  make(map[string]route[S]),
	}
}

// AddNode declares a step.
func (b *Builder[S]) AddNode(name string, fn NodeFunc[S]) *Builder[S] {
	switch {
	case name == "" || name == End:
		b.problem("invalid node name %q", name)
		return b
	case fn == nil:
		b.problem("node %q has no function", name)
		return b
	}
	if _, ok := b.nodes[name]; ok {
		b.problem("duplicate node %q", name)
		return b
	}
	b.nodes[name] = fn
	b.order = append(b.order, name)
	return b
}

// SetEntry designates the first step.
func (b *Builder[S]) SetEntry(name string) *Builder[S] {
	b.entry = name
	return b
}

// AddEdge declares an unconditional transition.
func (b *Builder[S]) AddEdge(from, to string) *Builder[S] {
	if b.hasExit(from) {
		b.problem("node %q already has an outgoing edge", from)
		return b
	}
	b.edges[from] = to
	return b
}

// AddConditionalEdges attaches a router to from. targets maps each label to a node or End.
func (b *Builder[S]) AddConditionalEdges(from string, r Router[S], targets map[string]string) *Builder[S] {
	if b.hasExit(from) {
		b.problem("node %q already has an outgoing edge", from)
		return b
	}
	if r.Name == "" {
		r.Name = from
	}
	b.routes[from] = route[S]{router: r, targets: targets}
	return b
}

// AddGuardedEdge continues to `to` unless halted reports true, in which case the run ends.
func (b *Builder[S]) AddGuardedEdge(from, to string, halted func(S) bool) *Builder[S] {
	return b.AddConditionalEdges(from, Router[S]{
		Name:   from + "?",
		Labels: []string{LabelNext, LabelHalt},
		Pick: func(_ context.Context, s S) string {
			if halted(s) {
				return LabelHalt
			}
			return LabelNext
		},
	}, map[string]string{LabelNext: to, LabelHalt: End})
}

// OnFailure sets the recorder used to write step failures into state.
func (b *Builder[S]) OnFailure(fn FailureFunc[S]) *Builder[S] {
	b.failure = fn
	return b
}

// Build validates the graph and compiles it. Compiled graphs are immutable.
func (b *Builder[S]) Build(opts ...Option) (*Compiled[S], error) {
	problems := append([]string(nil), b.problems...)
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if b.reducer == nil {
		add("no reducer")
	}
	switch {
	case b.entry == "":
		add("no entry node")
	case b.nodes[b.entry] == nil:
		add("entry node %q is not declared", b.entry)
	}

	known := func(name string) bool {
		return name == End || b.nodes[name] != nil
	}

	for _, name := range b.order {
		if !b.hasExit(name) {
			add("node %q has no outgoing edge", name)
		}
	}
	for from, to := range b.edges {
		if b.nodes[from] == nil {
			add("edge source %q is not declared", from)
		}
		if !known(to) {
			add("edge %q -> %q targets an undeclared node", from, to)
		}
	}
	for from, rt := range b.routes {
		if b.nodes[from] == nil {
			add("router source %q is not declared", from)
		}
		if rt.router.Pick == nil {
			add("router %q has no pick function", rt.router.Name)
		}
		if len(rt.router.Labels) == 0 {
			add("router %q declares no labels", rt.router.Name)
		}
		declared := make(map[string]bool, len(rt.router.Labels))
		for _, label := range rt.router.Labels {
			declared[label] = true
			to, ok := rt.targets[label]
			switch {
			case !ok:
				add("router %q label %q has no target", rt.router.Name, label)
			case !known(to):
				add("router %q label %q targets undeclared node %q", rt.router.Name, label, to)
			}
		}
		for label := range rt.targets {
			if !declared[label] {
				add("router %q has a target for undeclared label %q", rt.router.Name, label)
			}
		}
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return nil, &domain.BuildError{Graph: b.name, Problems: problems}
	}

	g := &Compiled[S]{
		name:    b.name,
		entry:   b.entry,
		order:   append([]string(nil), b.order...),
		nodes:   make(map[string]NodeFunc[S], len(b.nodes)),
		edges:   make(map[string]string, len(b.edges)),
		routes:  make(map[string]route[S], len(b.routes)),
		reducer: b.reducer,
		failure: b.failure,
	}
	for k, v := range b.nodes {
		g.nodes[k] = v
	}
	for k, v := range b.edges {
		g.edges[k] = v
	}
	for k, v := range b.routes {
		targets := make(map[string]string, len(v.targets))
		for label, to := range v.targets {
			targets[label] = to
		}
		g.routes[k] = route[S]{router: v.router, targets: targets}
	}
	g.apply(opts)
	return g, nil
}

func (b *Builder[S]) hasExit(name string) bool {
	_, edge := b.edges[name]
	_, routed := b.routes[name]
	return edge || routed
}

func (b *Builder[S]) problem(format string, args ...any) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}
