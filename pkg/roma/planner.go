package roma

import (
	"context"
	"strings"

	"github.com/ntclick/ai-research-roma/pkg/logx"
)

// MaxPlannedSteps caps a decomposition.
const MaxPlannedSteps = 4

// Planner decomposes a non-atomic task into ordered subtasks.
type Planner struct {
	decomposer Decomposer
}

// NewPlanner creates a planner over a decomposition capability.
func NewPlanner(decomposer Decomposer) *Planner {
	return &Planner{decomposer: decomposer}
}

// Plan returns one to MaxPlannedSteps steps. Any decomposition failure, or output
// with no usable step, yields exactly the original task.
func (p *Planner) Plan(ctx context.Context, task Task) []PlannedStep {
	fallback := []PlannedStep{{Query: task.Query, Kind: task.Kind}}

	if p.decomposer == nil {
		return fallback
	}

	steps, err := p.decomposer.Decompose(ctx, task.Query)
	if err != nil {
		logx.Debug(ctx, "planner", "decomposition failed, using single task: %v", err)
		return fallback
	}

	planned := make([]PlannedStep, 0, MaxPlannedSteps)
	for _, s := range steps {
		q := strings.TrimSpace(s.Query)
		if q == "" {
			continue
		}
		planned = append(planned, PlannedStep{Query: q, Kind: ParseTaskKind(string(s.Kind))})
		if len(planned) == MaxPlannedSteps {
			break
		}
	}

	if len(planned) == 0 {
		logx.Debug(ctx, "planner", "decomposition returned no usable steps, using single task")
		return fallback
	}

	logx.Debug(ctx, "planner", "planned %d steps for %q", len(planned), task.Query)
	return planned
}
