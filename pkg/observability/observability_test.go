package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnStepLeave(ctx, &domain.StepEvent{Graph: "jobsearch", Step: "navigate", Outcome: domain.OutcomeOK, Duration: time.Second})
	hooks.OnStepLeave(ctx, &domain.StepEvent{Graph: "jobsearch", Step: "navigate", Outcome: domain.OutcomeOK, Duration: time.Second})
	hooks.OnStepLeave(ctx, &domain.StepEvent{Graph: "jobsearch", Step: "navigate", Outcome: domain.OutcomeFailed})
	hooks.OnAction(ctx, &domain.ActionEvent{Technique: "scroll_dispatch", Succeeded: false})
	hooks.OnAction(ctx, &domain.ActionEvent{Technique: "native_click", Succeeded: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Steps.WithLabelValues("jobsearch", "navigate", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("jobsearch", "navigate", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues("scroll_dispatch", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues("native_click", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))

	n, err := testutil.GatherAndCount(reg, "tendril_step_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_NilRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		observability.NewMetrics(nil)
		observability.NewMetrics(nil)
	})
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)
	ctx := context.Background()

	hooks.OnStepEnter(ctx, &domain.StepEvent{Graph: "auth", RunID: "r1", Step: "submit"})
	hooks.OnStepLeave(ctx, &domain.StepEvent{Graph: "auth", RunID: "r1", Step: "submit", Outcome: domain.OutcomeFailed, Err: errors.New("boom")})
	hooks.OnAction(ctx, &domain.ActionEvent{Target: "sign_in", Technique: "enter_key", Succeeded: true})

	out := buf.String()
	assert.Contains(t, out, "msg=step_enter")
	assert.Contains(t, out, "level=WARN msg=step_leave")
	assert.Contains(t, out, "err=boom")
	assert.Contains(t, out, "technique=enter_key")
}

func TestHooksMerge(t *testing.T) {
	m := observability.NewMetrics(nil)
	var buf bytes.Buffer
	hooks := m.Hooks().Merge(observability.LogHooks(slog.New(slog.NewTextHandler(&buf, nil))))

	hooks.OnStepLeave(context.Background(), &domain.StepEvent{Graph: "people", Step: "extract_visible", Outcome: domain.OutcomeOK})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("people", "extract_visible", "ok")))
	assert.Contains(t, buf.String(), "step=extract_visible")
}
