// Package squad implements the Squad Orchestrator: a registered set of
// agents driven to completion under one of five execution strategies.
package squad

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentsquad/evoloop/internal/application/runtime"
	"github.com/agentsquad/evoloop/internal/domain/agent"
	"github.com/agentsquad/evoloop/internal/infrastructure/llm"
	"go.uber.org/zap"
)

// Strategy is the squad's top-level execution discipline.
type Strategy string

const (
	Sequential    Strategy = "sequential"
	Parallel      Strategy = "parallel"
	Hybrid        Strategy = "hybrid"
	AIDriven      Strategy = "ai_driven"
	EvolutionLoop Strategy = "evolution_loop"
)

// registration is one agent's entry in the squad's registry.
type registration struct {
	name       string
	personaKey string
	callable   agent.Callable
}

// Config configures the squad's convergence and hybrid-subset behavior.
// MaxIterations and ConvergenceThreshold only matter to EvolutionLoop;
// AnalysisAgents/ExecutionAgents only matter to Hybrid. GapTolerance is
// carried but not read by any strategy.
type Config struct {
	MaxIterations        int
	ConvergenceThreshold float64
	GapTolerance         float64
	AnalysisAgents       []string
	ExecutionAgents      []string
}

// State is the squad's externally observable progress, read back by a
// workflow after ExecuteSquad returns.
type State struct {
	Strategy         Strategy
	CurrentIteration int
	GapScore         float64
	Converged        bool
}

// Result is what ExecuteSquad returns: the per-agent outputs of every agent
// the run dispatched (for Sequential/Parallel/Hybrid/AIDriven) or the full
// sequence of per-iteration bundles (for EvolutionLoop).
type Result struct {
	Outputs    map[string]agent.Output
	Errors     map[string]error
	Iterations []IterationResult
	State      State
}

// IterationResult is one Evolution Loop iteration's outcome.
type IterationResult struct {
	Iteration      int
	GapScore       float64
	CurrentState   map[string]agent.Output
	ResearchOutput agent.Output
	GapOutput      agent.Output
	Improvements   map[string]agent.Output
}

// Squad drives a registered agent set under one chosen Strategy.
type Squad struct {
	rt      *runtime.Runtime
	invoker *llm.ModelInvoker
	logger  *zap.Logger
	cfg     Config

	strategy Strategy
	order    []string
	names    []string
	agents   map[string]registration
}

// New builds a Squad over rt, using invoker for the AIDriven strategy's
// next-agent planning (may be nil if AIDriven is never used).
func New(strategy Strategy, rt *runtime.Runtime, invoker *llm.ModelInvoker, cfg Config, logger *zap.Logger) *Squad {
	return &Squad{
		rt:       rt,
		invoker:  invoker,
		logger:   logger.With(zap.String("component", "squad-orchestrator")),
		cfg:      cfg,
		strategy: strategy,
		agents:   map[string]registration{},
	}
}

// RegisterAgent adds name to the squad's registry. personaKey, if
// non-empty, overrides name as the persona lookup key forwarded to the
// runtime.
func (s *Squad) RegisterAgent(name string, callable agent.Callable, personaKey string) {
	if _, exists := s.agents[name]; !exists {
		s.names = append(s.names, name)
	}
	s.agents[name] = registration{name: name, personaKey: personaKey, callable: callable}
}

// Has reports whether name is registered.
func (s *Squad) Has(name string) bool {
	_, ok := s.agents[name]
	return ok
}

// SetExecutionOrder records the sequence Sequential iterates over. Absent
// agents named here are ignored; agents not named here are appended in
// registration order after it.
func (s *Squad) SetExecutionOrder(names []string) {
	s.order = names
}

func (s *Squad) effectiveOrder() []string {
	if len(s.order) == 0 {
		return s.names
	}
	seen := make(map[string]bool, len(s.order))
	ordered := make([]string, 0, len(s.names))
	for _, n := range s.order {
		if _, ok := s.agents[n]; ok {
			ordered = append(ordered, n)
			seen[n] = true
		}
	}
	for _, n := range s.names {
		if !seen[n] {
			ordered = append(ordered, n)
		}
	}
	return ordered
}

func (s *Squad) sharedContext() agent.ContextMap {
	snapshot, err := s.rt.Context().RenderForModel(false, 0)
	if err != nil {
		snapshot = ""
	}
	return agent.ContextMap{"shared_documents": snapshot}
}

// ExecuteSquad runs initialTask under the squad's configured Strategy.
func (s *Squad) ExecuteSquad(ctx context.Context, initialTask agent.Task) (Result, error) {
	switch s.strategy {
	case Sequential:
		outputs, errs := s.runSequential(ctx, s.effectiveOrder(), initialTask)
		return Result{Outputs: outputs, Errors: errs, State: State{Strategy: Sequential}}, nil
	case Parallel:
		outputs, errs := s.runParallel(ctx, s.names, initialTask)
		return Result{Outputs: outputs, Errors: errs, State: State{Strategy: Parallel}}, nil
	case Hybrid:
		return s.runHybrid(ctx, initialTask)
	case AIDriven:
		outputs, errs := s.runAIDriven(ctx, initialTask)
		return Result{Outputs: outputs, Errors: errs, State: State{Strategy: AIDriven}}, nil
	case EvolutionLoop:
		return s.runEvolutionLoop(ctx, initialTask)
	default:
		return Result{}, fmt.Errorf("unknown strategy %q", s.strategy)
	}
}

func (s *Squad) runSequential(ctx context.Context, names []string, task agent.Task) (map[string]agent.Output, map[string]error) {
	outputs := make(map[string]agent.Output, len(names))
	errs := map[string]error{}
	for _, name := range names {
		reg := s.agents[name]
		out, err := s.rt.ExecuteAgentWithPersona(ctx, reg.name, personaKeyOf(reg), reg.callable, task, s.sharedContext())
		if err != nil {
			errs[name] = err
			continue
		}
		outputs[name] = out
	}
	return outputs, errs
}

func (s *Squad) runParallel(ctx context.Context, names []string, task agent.Task) (map[string]agent.Output, map[string]error) {
	agents := make([]runtime.NamedAgent, 0, len(names))
	for _, name := range names {
		reg, ok := s.agents[name]
		if !ok {
			continue
		}
		agents = append(agents, runtime.NamedAgent{Name: reg.name, PersonaKey: personaKeyOf(reg), Callable: reg.callable, Task: task})
	}

	results := s.rt.ExecuteParallel(ctx, agents, s.sharedContext())
	outputs := make(map[string]agent.Output, len(results))
	errs := map[string]error{}
	for _, r := range results {
		if r.Err != nil {
			errs[r.Name] = r.Err
			continue
		}
		outputs[r.Name] = r.Output
	}
	return outputs, errs
}

func (s *Squad) runHybrid(ctx context.Context, task agent.Task) (Result, error) {
	analysisOut, analysisErrs := s.runParallel(ctx, s.cfg.AnalysisAgents, task)
	execOut, execErrs := s.runSequential(ctx, s.cfg.ExecutionAgents, task)

	outputs := mergeOutputs(analysisOut, execOut)
	errs := mergeErrors(analysisErrs, execErrs)
	return Result{Outputs: outputs, Errors: errs, State: State{Strategy: Hybrid}}, nil
}

func mergeOutputs(maps ...map[string]agent.Output) map[string]agent.Output {
	out := map[string]agent.Output{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func mergeErrors(maps ...map[string]error) map[string]error {
	out := map[string]error{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func personaKeyOf(reg registration) string {
	if reg.personaKey != "" {
		return reg.personaKey
	}
	return reg.name
}

// aiPlan is the decoded shape an AIDriven model response is expected to
// carry.
type aiPlan struct {
	NextAgents    []string `json:"next_agents"`
	ExecutionType string   `json:"execution_type"`
}

func (s *Squad) runAIDriven(ctx context.Context, task agent.Task) (map[string]agent.Output, map[string]error) {
	remaining := make([]string, len(s.effectiveOrder()))
	copy(remaining, s.effectiveOrder())

	outputs := map[string]agent.Output{}
	errs := map[string]error{}

	for len(remaining) > 0 {
		plan := s.planNext(ctx, remaining, task)

		var batch []string
		for _, n := range plan.NextAgents {
			if contains(remaining, n) {
				batch = append(batch, n)
			}
		}
		if len(batch) == 0 {
			batch = []string{remaining[0]}
			plan.ExecutionType = "sequential"
		}

		var batchOut map[string]agent.Output
		var batchErrs map[string]error
		if plan.ExecutionType == "parallel" {
			batchOut, batchErrs = s.runParallel(ctx, batch, task)
		} else {
			batchOut, batchErrs = s.runSequential(ctx, batch, task)
		}
		for k, v := range batchOut {
			outputs[k] = v
		}
		for k, v := range batchErrs {
			errs[k] = v
		}

		remaining = remove(remaining, batch)
	}

	return outputs, errs
}

// planNext asks the model invoker which of remaining to run next and in
// what mode. On any decode failure it falls back deterministically to
// "remaining[0], sequential" rather than masking the failure.
func (s *Squad) planNext(ctx context.Context, remaining []string, task agent.Task) aiPlan {
	fallback := aiPlan{NextAgents: []string{remaining[0]}, ExecutionType: "sequential"}
	if s.invoker == nil {
		return fallback
	}

	prompt := fmt.Sprintf("Given the remaining agents %v and the current task intent %q, choose which to run next. Respond as JSON: {\"next_agents\": [...], \"execution_type\": \"parallel|sequential\"}.", remaining, task.Intent)
	raw, err := s.invoker.Invoke(ctx, prompt, s.sharedContext())
	if err != nil {
		s.logger.Warn("ai-driven planning call failed, falling back", zap.Error(err))
		return fallback
	}

	var plan aiPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil || len(plan.NextAgents) == 0 {
		s.logger.Warn("ai-driven planning response unparseable, falling back", zap.String("raw", raw))
		return fallback
	}
	return plan
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func remove(from []string, remove []string) []string {
	out := make([]string, 0, len(from))
	for _, f := range from {
		if !contains(remove, f) {
			out = append(out, f)
		}
	}
	return out
}

// currentStateAgents is the fixed phase-2 fan-out set of the Evolution
// Loop phase chain.
var currentStateAgents = []string{"StaticAnalyzer", "CodeAnalysisAgent", "BehaviorAnalyzer", "ImpactAnalyzer", "QualityGate"}

// improvementChainAgents is the fixed phase-6 sequential set.
var improvementChainAgents = []string{"SystemArchitect", "OrchestratorDesigner", "PlannerAgent", "TaskCreatorAgent", "CodeGenerator", "TestAgent"}

// runEvolutionLoop drives the Init -> Iterate -> Converged/Exhausted state
// machine through its fixed six-phase chain until the gap closes or
// MaxIterations is reached.
func (s *Squad) runEvolutionLoop(ctx context.Context, task agent.Task) (Result, error) {
	gap := 1.0
	iteration := 0
	var iterations []IterationResult
	converged := false

	maxIterations := s.cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}

	for {
		iteration++

		if reg, ok := s.agents["RequirementAnalyzer"]; ok {
			s.rt.ExecuteAgentWithPersona(ctx, reg.name, personaKeyOf(reg), reg.callable, task, s.sharedContext())
		}

		currentState, _ := s.runParallel(ctx, currentStateAgents, task)

		var researchOutput agent.Output
		if reg, ok := s.agents["ExternalResearcher"]; ok {
			researchOutput, _ = s.rt.ExecuteAgentWithPersona(ctx, reg.name, personaKeyOf(reg), reg.callable, task, s.sharedContext())
		}

		var gapOutput agent.Output
		if reg, ok := s.agents["GapAnalyzer"]; ok {
			out, err := s.rt.ExecuteAgentWithPersona(ctx, reg.name, personaKeyOf(reg), reg.callable, task, s.sharedContext())
			if err == nil {
				gapOutput = out
				if v, ok := out["gap_score"]; ok {
					if f, ok := toFloat(v); ok {
						gap = clamp01(f)
					}
				}
			}
		}

		threshold := s.cfg.ConvergenceThreshold
		if threshold <= 0 {
			threshold = 0.95
		}

		var improvements map[string]agent.Output
		if gap <= (1 - threshold) {
			converged = true
		} else {
			improvements, _ = s.runSequential(ctx, intersect(improvementChainAgents, s.names), task)
		}

		iterations = append(iterations, IterationResult{
			Iteration:      iteration,
			GapScore:       gap,
			CurrentState:   currentState,
			ResearchOutput: researchOutput,
			GapOutput:      gapOutput,
			Improvements:   improvements,
		})

		if converged || iteration >= maxIterations {
			break
		}
	}

	return Result{
		Iterations: iterations,
		State:      State{Strategy: EvolutionLoop, CurrentIteration: iteration, GapScore: gap, Converged: converged},
	}, nil
}

func intersect(want []string, have []string) []string {
	haveSet := make(map[string]bool, len(have))
	for _, h := range have {
		haveSet[h] = true
	}
	out := make([]string, 0, len(want))
	for _, w := range want {
		if haveSet[w] {
			out = append(out, w)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
