package graph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	Count  int
	Items  []string
	Errors []string
	Ready  bool
}

func mergeCounter(prev, delta counterState) counterState {
	if delta.Count != 0 {
		prev.Count = delta.Count
	}
	prev.Items = append(prev.Items, delta.Items...)
	prev.Errors = append(prev.Errors, delta.Errors...)
	if delta.Ready {
		prev.Ready = true
	}
	return prev
}

func recordError(step string, err error) counterState {
	return counterState{Errors: []string{step + ": " + err.Error()}}
}

func loopGraph(t *testing.T, limit int, opts ...graph.Option) *graph.Compiled[counterState] {
	t.Helper()
	g, err := graph.NewBuilder("loop", mergeCounter).
		AddNode("produce", func(_ context.Context, s counterState) (counterState, error) {
			return counterState{Count: s.Count + 1, Items: []string{"item"}}, nil
		}).
		SetEntry("produce").
		AddConditionalEdges("produce", graph.Router[counterState]{
			Name:   "more",
			Labels: []string{"again", "done"},
			Pick: func(_ context.Context, s counterState) string {
				if s.Count < limit {
					return "again"
				}
				return "done"
			},
		}, map[string]string{"again": "produce", "done": graph.End}).
		OnFailure(recordError).
		Build(opts...)
	require.NoError(t, err)
	return g
}

func TestBuild_Validation(t *testing.T) {
	noop := func(_ context.Context, s counterState) (counterState, error) { return counterState{}, nil }

	tests := []struct {
		name  string
		build func() *graph.Builder[counterState]
		want  string
	}{
		{
			name: "missing entry",
			build: func() *graph.Builder[counterState] {
				return graph.NewBuilder("g", mergeCounter).AddNode("a", noop).AddEdge("a", graph.End)
			},
			want: "no entry node",
		},
		{
			name: "undeclared entry",
			build: func() *graph.Builder[counterState] {
				return graph.NewBuilder("g", mergeCounter).AddNode("a", noop).AddEdge("a", graph.End).SetEntry("b")
			},
			want: `entry node "b" is not declared`,
		},
		{
			name: "undeclared edge target",
			build: func() *graph.Builder[counterState] {
				return graph.NewBuilder("g", mergeCounter).AddNode("a", noop).AddEdge("a", "ghost").SetEntry("a")
			},
			want: `edge "a" -> "ghost" targets an undeclared node`,
		},
		{
			name: "router label without target",
			build: func() *graph.Builder[counterState] {
				return graph.NewBuilder("g", mergeCounter).AddNode("a", noop).SetEntry("a").
					AddConditionalEdges("a", graph.Router[counterState]{
						Name:   "r",
						Labels: []string{"x", "y"},
						Pick:   func(context.Context, counterState) string { return "x" },
					}, map[string]string{"x": graph.End})
			},
			want: `router "r" label "y" has no target`,
		},
		{
			name: "target for undeclared label",
			build: func() *graph.Builder[counterState] {
				return graph.NewBuilder("g", mergeCounter).AddNode("a", noop).SetEntry("a").
					AddConditionalEdges("a", graph.Router[counterState]{
						Name:   "r",
						Labels: []string{"x"},
						Pick:   func(context.Context, counterState) string { return "x" },
					}, map[string]string{"x": graph.End, "z": "a"})
			},
			want: `router "r" has a target for undeclared label "z"`,
		},
		{
			name: "dead end",
			build: func() *graph.Builder[counterState] {
				return graph.NewBuilder("g", mergeCounter).AddNode("a", noop).AddNode("b", noop).AddEdge("a", "b").SetEntry("a")
			},
			want: `node "b" has no outgoing edge`,
		},
		{
			name: "duplicate node",
			build: func() *graph.Builder[counterState] {
				return graph.NewBuilder("g", mergeCounter).AddNode("a", noop).AddNode("a", noop).AddEdge("a", graph.End).SetEntry("a")
			},
			want: `duplicate node "a"`,
		},
		{
			name: "reserved name",
			build: func() *graph.Builder[counterState] {
				return graph.NewBuilder("g", mergeCounter).AddNode(graph.End, noop).AddNode("a", noop).AddEdge("a", graph.End).SetEntry("a")
			},
			want: "invalid node name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Build()
			require.Error(t, err)

			var be *domain.BuildError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, "g", be.Graph)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExecute_LoopUntilRouterEnds(t *testing.T) {
	g := loopGraph(t, 4)

	run := g.Execute(context.Background(), counterState{})

	assert.Equal(t, graph.StatusCompleted, run.Status)
	assert.Equal(t, graph.End, run.Cursor)
	assert.Equal(t, 4, run.State.Count)
	assert.Len(t, run.State.Items, 4, "reducer appends only the new items of each step")
	assert.Equal(t, 4, run.Visits("produce"))
	assert.NotEmpty(t, run.ID)
}

func TestExecute_FailureIsRecordedNotRaised(t *testing.T) {
	var reached bool
	g, err := graph.NewBuilder("failing", mergeCounter).
		AddNode("boom", func(context.Context, counterState) (counterState, error) {
			return counterState{Items: []string{"partial"}}, errors.New("kaput")
		}).
		AddNode("after", func(context.Context, counterState) (counterState, error) {
			reached = true
			return counterState{}, nil
		}).
		SetEntry("boom").
		AddEdge("boom", "after").
		AddEdge("after", graph.End).
		OnFailure(recordError).
		Build()
	require.NoError(t, err)

	run := g.Execute(context.Background(), counterState{})

	assert.True(t, reached, "a failed step still follows its edge")
	assert.Equal(t, []string{"partial"}, run.State.Items, "partial delta is kept")
	assert.Equal(t, []string{"boom: kaput"}, run.State.Errors)
	require.Len(t, run.Failures(), 1)
	assert.Equal(t, "boom", run.Failures()[0].Step)
}

func TestExecute_GuardedEdgeHalts(t *testing.T) {
	var reached bool
	g, err := graph.NewBuilder("guarded", mergeCounter).
		AddNode("check", func(context.Context, counterState) (counterState, error) {
			return counterState{}, errors.New("form missing")
		}).
		AddNode("submit", func(context.Context, counterState) (counterState, error) {
			reached = true
			return counterState{}, nil
		}).
		SetEntry("check").
		AddGuardedEdge("check", "submit", func(s counterState) bool { return len(s.Errors) > 0 }).
		AddEdge("submit", graph.End).
		OnFailure(recordError).
		Build()
	require.NoError(t, err)

	run := g.Execute(context.Background(), counterState{})
	assert.False(t, reached)
	assert.Equal(t, graph.StatusCompleted, run.Status)
	assert.Equal(t, "check", run.LastStep())
}

func TestExecute_PanicIsRecovered(t *testing.T) {
	g, err := graph.NewBuilder("panics", mergeCounter).
		AddNode("wild", func(context.Context, counterState) (counterState, error) {
			panic("nil element")
		}).
		SetEntry("wild").
		AddEdge("wild", graph.End).
		OnFailure(recordError).
		Build()
	require.NoError(t, err)

	run := g.Execute(context.Background(), counterState{})
	require.Len(t, run.State.Errors, 1)
	assert.Contains(t, run.State.Errors[0], "panic: nil element")
}

func TestExecute_UndeclaredLabelTerminates(t *testing.T) {
	g, err := graph.NewBuilder("liar", mergeCounter).
		AddNode("a", func(context.Context, counterState) (counterState, error) { return counterState{}, nil }).
		SetEntry("a").
		AddConditionalEdges("a", graph.Router[counterState]{
			Name:   "r",
			Labels: []string{"ok"},
			Pick:   func(context.Context, counterState) string { return "surprise" },
		}, map[string]string{"ok": "a"}).
		OnFailure(recordError).
		Build()
	require.NoError(t, err)

	run := g.Execute(context.Background(), counterState{})
	assert.Equal(t, graph.StatusCompleted, run.Status)
	assert.Equal(t, 1, len(run.Failures()))
	assert.Contains(t, run.State.Errors[0], `undeclared label "surprise"`)
}

func TestExecute_MaxSteps(t *testing.T) {
	g := loopGraph(t, 1000, graph.WithMaxSteps(10))

	run := g.Execute(context.Background(), counterState{})
	assert.Equal(t, 10, run.State.Count)
	require.NotEmpty(t, run.State.Errors)
	assert.Contains(t, run.State.Errors[0], "step limit of 10 reached")
}

func TestExecute_CancelledContext(t *testing.T) {
	g := loopGraph(t, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := g.Execute(ctx, counterState{})
	assert.Equal(t, 0, run.State.Count)
	assert.Equal(t, graph.StatusCompleted, run.Status)
	assert.Len(t, run.Failures(), 1)
}

func TestSuspendAndResume(t *testing.T) {
	g, err := graph.NewBuilder("confirm", mergeCounter).
		AddNode("gate", func(_ context.Context, s counterState) (counterState, error) {
			if !s.Ready {
				return counterState{Items: []string{"asked"}}, graph.Suspend("please confirm")
			}
			return counterState{Items: []string{"passed"}}, nil
		}).
		SetEntry("gate").
		AddEdge("gate", graph.End).
		OnFailure(recordError).
		Build()
	require.NoError(t, err)

	ctx := context.Background()
	run := g.Execute(ctx, counterState{})
	require.True(t, run.Suspended())
	assert.Equal(t, "gate", run.Cursor)
	assert.Equal(t, "please confirm", run.Prompt)
	assert.Equal(t, []string{"asked"}, run.State.Items)
	assert.Equal(t, domain.OutcomeSuspended, run.History[0].Outcome)

	require.NoError(t, g.Resume(ctx, run, counterState{Ready: true}))
	assert.Equal(t, graph.StatusCompleted, run.Status)
	assert.Equal(t, []string{"asked", "passed"}, run.State.Items)
	assert.Empty(t, run.State.Errors)

	assert.ErrorIs(t, g.Resume(ctx, run, counterState{}), graph.ErrNotSuspended)
}

func TestHooks(t *testing.T) {
	var enters, leaves []string
	hooks := domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) { enters = append(enters, e.Step) },
		OnStepLeave: func(_ context.Context, e *domain.StepEvent) {
			leaves = append(leaves, e.Step+":"+string(e.Outcome))
		},
	}
	g := loopGraph(t, 2, graph.WithLifecycleHooks(hooks))

	g.Execute(context.Background(), counterState{})
	assert.Equal(t, []string{"produce", "produce"}, enters)
	assert.Equal(t, []string{"produce:ok", "produce:ok"}, leaves)
}

func TestTopology(t *testing.T) {
	g := loopGraph(t, 1)
	topo := g.Topology()

	assert.Equal(t, "loop", topo.Name)
	assert.Equal(t, "produce", topo.Entry)
	assert.Equal(t, []graph.Edge{
		{From: "produce", To: "produce", Label: "again"},
		{From: "produce", To: graph.End, Label: "done"},
	}, topo.Edges)
}
