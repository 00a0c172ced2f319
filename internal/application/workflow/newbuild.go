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

// NewBuildWorkflow bootstraps a minimal seed artifact and then evolves it.
// Its first iteration is special (a fixed agent order run directly through
// the runtime, no current-state analysis, gap read as priorities); the
// order is not chosen by the AIDriven strategy or by any model call. From
// iteration 2 it behaves exactly like the Upgrade workflow's Evolution Loop.
type NewBuildWorkflow struct {
	*base
	registrations []AgentRegistration
	evolution     *squad.Squad
}

// NewNewBuildWorkflow constructs a NewBuildWorkflow. provider may be nil
// when no registered agent sets RequiresAI.
func NewNewBuildWorkflow(cfg config.Config, provider llm.Provider, registrations []AgentRegistration, logger *zap.Logger) *NewBuildWorkflow {
	b := newBase(cfg, provider, logger)
	evolution := buildSquad(b, squad.EvolutionLoop, registrations)
	return &NewBuildWorkflow{base: b, registrations: registrations, evolution: evolution}
}

// CreateSeedProduct runs the special first iteration directly against the
// runtime (bypassing Squad strategy dispatch, matching the narrow order
// hint that iteration follows), then hands off to the standard Evolution
// Loop for iterations 2 and on.
func (w *NewBuildWorkflow) CreateSeedProduct(ctx context.Context, requirements, projectName string) (Report, error) {
	firstLoop := w.runFirstLoop(ctx, requirements, projectName)

	evolutionTask := agent.Task{
		Intent: "evolution",
		Inputs: map[string]any{
			"requirements": requirements,
			"seed_product": firstLoop,
			"project_name": projectName,
		},
		RequiresAI: true,
		Prompt:     fmt.Sprintf("Evolve the seed product toward these requirements:\n%s", requirements),
	}

	result, err := w.evolution.ExecuteSquad(ctx, evolutionTask)
	if err != nil {
		return Report{}, fmt.Errorf("execute newbuild evolution squad: %w", err)
	}

	report := Report{
		Workflow:       "newbuild",
		Iterations:     result.State.CurrentIteration + 1, // +1 for the seed-creation loop
		Converged:      result.State.Converged,
		FinalGapScore:  result.State.GapScore,
		EvolutionSteps: result.Iterations,
		SharedContext:  w.ctx.GetAllDocuments(),
		GeneratedAt:    nowStamp(),
	}

	if w.cfg.OutputDir != "" {
		if err := Persist(w.cfg.OutputDir, "newbuild", report, w.ctx); err != nil {
			return report, fmt.Errorf("persist newbuild report: %w", err)
		}
	}

	return report, nil
}

// runFirstLoop implements the special first iteration: requirement,
// research, gap-as-priorities, then the improvement chain, with no
// current-state fan-out. gap_score from GapAnalyzer is read into
// "priorities" and ignored as a convergence signal.
func (w *NewBuildWorkflow) runFirstLoop(ctx context.Context, requirements, projectName string) agent.Output {
	byName := make(map[string]AgentRegistration, len(w.registrations))
	for _, r := range w.registrations {
		byName[r.Name] = r
	}

	seedContext := agent.ContextMap{}
	results := agent.Output{}

	run := func(name string, task agent.Task) {
		reg, ok := byName[name]
		if !ok {
			return
		}
		personaKey := reg.PersonaKey
		if personaKey == "" {
			personaKey = name
		}
		out, err := w.rt.ExecuteAgentWithPersona(ctx, name, personaKey, reg.Callable, task, seedContext)
		if err != nil {
			w.logger.Warn("first-loop agent failed", zap.String("agent", name), zap.Error(err))
			return
		}
		results[name] = out
	}

	run("RequirementAnalyzer", agent.Task{
		Intent:     "requirement_analysis",
		Inputs:     map[string]any{"requirements": requirements},
		RequiresAI: true,
	})

	run("ExternalResearcher", agent.Task{
		Intent:     "research",
		Inputs:     map[string]any{"requirements": requirements, "project_name": projectName},
		RequiresAI: true,
	})

	run("GapAnalyzer", agent.Task{
		Intent: "priority_analysis",
		Inputs: map[string]any{
			"requirements": requirements,
			"research":     results["ExternalResearcher"],
		},
		RequiresAI: true,
		Prompt:     "Determine SeedProduct implementation priorities from the requirements and research above.",
	})
	// gap output from this call is carried forward as "priorities," never
	// as a convergence signal; the loop below never reads gap_score.
	priorities := results["GapAnalyzer"]

	run("SystemArchitect", agent.Task{
		Intent:     "architecture_design",
		Inputs:     map[string]any{"requirements": results["RequirementAnalyzer"], "priorities": priorities},
		RequiresAI: true,
	})

	run("OrchestratorDesigner", agent.Task{
		Intent:     "orchestrator_design",
		Inputs:     map[string]any{"architecture": results["SystemArchitect"], "priorities": priorities},
		RequiresAI: true,
	})

	run("PlannerAgent", agent.Task{
		Intent:     "planning",
		Inputs:     map[string]any{"architecture": results["SystemArchitect"], "priorities": priorities},
		RequiresAI: true,
	})

	run("TaskCreatorAgent", agent.Task{
		Intent:     "task_creation",
		Inputs:     map[string]any{"plan": results["PlannerAgent"]},
		RequiresAI: true,
	})

	run("CodeGenerator", agent.Task{
		Intent:     "code_generation",
		Inputs:     map[string]any{"tasks": results["TaskCreatorAgent"], "architecture": results["SystemArchitect"]},
		RequiresAI: true,
	})

	run("TestAgent", agent.Task{
		Intent:     "testing",
		Inputs:     map[string]any{"code": results["CodeGenerator"]},
		RequiresAI: true,
	})

	return results
}

// Metrics exposes the underlying runtime's observability surface.
func (w *NewBuildWorkflow) Metrics() runtime.Metrics {
	return w.rt.GetMetrics()
}
