package workflow

import (
	"context"
	"fmt"

	"github.com/agentsquad/evoloop/internal/application/runtime"
	"github.com/agentsquad/evoloop/internal/application/squad"
	"github.com/agentsquad/evoloop/internal/domain/agent"
	"github.com/agentsquad/evoloop/internal/infrastructure/config"
	"github.com/agentsquad/evoloop/internal/infrastructure/llm"
	"go.uber.org/zap"
)

// UpgradeWorkflow drives the Evolution Loop over an existing project
// path. It is a thin composition over the runtime, squad, and shared
// document context: register all agents, set the default execution order,
// build the initial task, and run.
type UpgradeWorkflow struct {
	*base
	squad *squad.Squad
}

// NewUpgradeWorkflow constructs an UpgradeWorkflow. provider may be nil
// when no registered agent sets RequiresAI.
func NewUpgradeWorkflow(cfg config.Config, provider llm.Provider, registrations []AgentRegistration, logger *zap.Logger) *UpgradeWorkflow {
	b := newBase(cfg, provider, logger)
	sq := buildSquad(b, squad.EvolutionLoop, registrations)
	return &UpgradeWorkflow{base: b, squad: sq}
}

// Execute runs the Evolution Loop against an existing project at
// projectPath to satisfy requirements, then persists the final report and
// per-agent documents under the configured OutputDir.
func (w *UpgradeWorkflow) Execute(ctx context.Context, requirements, projectPath string) (Report, error) {
	task := agent.Task{
		Intent: "upgrade",
		Inputs: map[string]any{
			"requirements": requirements,
			"project_path": projectPath,
		},
		RequiresAI: true,
		Prompt:     fmt.Sprintf("Project upgrade requirements:\n%s\n\nProject path: %s\n\nAnalyze these requirements and produce an upgrade plan.", requirements, projectPath),
	}

	result, err := w.squad.ExecuteSquad(ctx, task)
	if err != nil {
		return Report{}, fmt.Errorf("execute upgrade squad: %w", err)
	}

	report := Report{
		Workflow:       "upgrade",
		Iterations:     result.State.CurrentIteration,
		Converged:      result.State.Converged,
		FinalGapScore:  result.State.GapScore,
		EvolutionSteps: result.Iterations,
		SharedContext:  w.ctx.GetAllDocuments(),
		GeneratedAt:    nowStamp(),
	}

	if w.cfg.OutputDir != "" {
		if err := Persist(w.cfg.OutputDir, "upgrade", report, w.ctx); err != nil {
			return report, fmt.Errorf("persist upgrade report: %w", err)
		}
	}

	return report, nil
}

// Metrics exposes the underlying runtime's observability surface.
func (w *UpgradeWorkflow) Metrics() runtime.Metrics {
	return w.rt.GetMetrics()
}
