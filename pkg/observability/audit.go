package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tendril/pkg/domain"
)

// LogHooks returns lifecycle hooks that write an audit trail to logger.
// Step entries and successful actions log at debug; failures at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_enter", "graph", e.Graph, "run_id", e.RunID, "step", e.Step)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			attrs := []any{
				"graph", e.Graph,
				"run_id", e.RunID,
				"step", e.Step,
				"outcome", e.Outcome,
				"duration", e.Duration,
			}
			if e.Err != nil {
				logger.WarnContext(ctx, "step_leave", append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "step_leave", attrs...)
		},
		OnAction: func(ctx context.Context, e *domain.ActionEvent) {
			if e.Succeeded {
				logger.DebugContext(ctx, "action", "target", e.Target, "technique", e.Technique)
				return
			}
			logger.DebugContext(ctx, "action_failed", "target", e.Target, "technique", e.Technique, "err", e.Err)
		},
	}
}
