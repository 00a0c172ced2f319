// Package workflow composes the runtime, squad orchestrator, shared
// document context, and persona registry into the two top-level entry
// points: the Upgrade workflow and the NewBuild workflow.
package workflow

import (
	"time"

	"github.com/agentsquad/evoloop/internal/application/runtime"
	"github.com/agentsquad/evoloop/internal/application/squad"
	"github.com/agentsquad/evoloop/internal/domain/agent"
	"github.com/agentsquad/evoloop/internal/domain/blackboard"
	"github.com/agentsquad/evoloop/internal/domain/persona"
	"github.com/agentsquad/evoloop/internal/infrastructure/config"
	"github.com/agentsquad/evoloop/internal/infrastructure/llm"
	"go.uber.org/zap"
)

// defaultExecutionOrder is the 14-agent default order both workflows
// register their squad with. EvolutionLoop ignores it in favor of its
// fixed phase chain; only the Sequential and AIDriven strategies iterate it.
var defaultExecutionOrder = []string{
	"RequirementAnalyzer",
	"StaticAnalyzer",
	"CodeAnalysisAgent",
	"BehaviorAnalyzer",
	"ImpactAnalyzer",
	"QualityGate",
	"ExternalResearcher",
	"GapAnalyzer",
	"SystemArchitect",
	"OrchestratorDesigner",
	"PlannerAgent",
	"TaskCreatorAgent",
	"CodeGenerator",
	"TestAgent",
}

// AgentRegistration is one entry a caller supplies when constructing a
// workflow: the agent's registry name, its callable implementation, and
// an optional persona alias (defaults to name).
type AgentRegistration struct {
	Name       string
	Callable   agent.Callable
	PersonaKey string
}

// base holds the shared plumbing both workflows build on top of.
type base struct {
	cfg     config.Config
	ctx     *blackboard.SharedDocumentContext
	rt      *runtime.Runtime
	invoker *llm.ModelInvoker
	logger  *zap.Logger
}

func newBase(cfg config.Config, provider llm.Provider, logger *zap.Logger) *base {
	docCtx := blackboard.New()

	var invoker *llm.ModelInvoker
	if provider != nil {
		invoker = llm.NewModelInvoker(provider, llm.InvokerConfig{
			ModelID:     cfg.ModelID,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			RetryCount:  cfg.RetryCount,
			RetryDelay:  cfg.RetryDelay(),
		}, logger)
	}

	rt := runtime.New(runtime.Config{
		MaxParallelAgents: cfg.MaxParallelAgents,
		Timeout:           cfg.Timeout(),
		RetryCount:        cfg.RetryCount,
		RetryDelay:        cfg.RetryDelay(),
		EnablePersonas:    cfg.EnablePersonas,
		ShareAllDocuments: cfg.ShareAllDocuments,
	}, docCtx, invoker, logger)

	if cfg.PersonaOverridesPath != "" {
		overrides, err := persona.LoadOverrides(cfg.PersonaOverridesPath)
		if err != nil {
			logger.Warn("failed to load persona overrides, using built-in catalog only",
				zap.String("path", cfg.PersonaOverridesPath), zap.Error(err))
		} else if len(overrides) > 0 {
			rt.UsePersonas(persona.Registry{}.WithOverrides(overrides))
			logger.Info("loaded persona overrides", zap.Int("count", len(overrides)))
		}
	}

	return &base{cfg: cfg, ctx: docCtx, rt: rt, invoker: invoker, logger: logger}
}

func buildSquad(b *base, strategy squad.Strategy, registrations []AgentRegistration) *squad.Squad {
	sq := squad.New(strategy, b.rt, b.invoker, squad.Config{
		MaxIterations:        b.cfg.MaxEvolutionIterations,
		ConvergenceThreshold: b.cfg.ConvergenceThreshold,
		GapTolerance:         b.cfg.GapTolerance,
		AnalysisAgents:       []string{"StaticAnalyzer", "CodeAnalysisAgent", "BehaviorAnalyzer", "ImpactAnalyzer", "QualityGate"},
		ExecutionAgents:      []string{"SystemArchitect", "OrchestratorDesigner", "PlannerAgent", "TaskCreatorAgent", "CodeGenerator", "TestAgent"},
	}, b.logger)

	for _, reg := range registrations {
		sq.RegisterAgent(reg.Name, reg.Callable, reg.PersonaKey)
	}
	sq.SetExecutionOrder(defaultExecutionOrder)
	return sq
}

func nowStamp() time.Time { return time.Now() }
