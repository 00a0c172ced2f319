// Package agents provides minimal default Callable implementations for
// the named agent catalog the core expects a squad to register. Each
// default simply echoes its AI response (when its inputs carry an
// ai_response) or its inputs back as output — real deployments are expected to replace these with
// domain-specific callables; the defaults exist so a workflow is runnable
// out of the box.
package agents

import (
	"context"

	"github.com/agentsquad/evoloop/internal/domain/agent"
)

// Names is the full registered-agent catalog the core's Evolution Loop
// phase chain references by name.
var Names = []string{
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

// Echo returns a Callable that reports the model's response (if the task's
// inputs carry an ai_response) or the task's inputs, tagged with name.
func Echo(name string) agent.Callable {
	return agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		out := agent.Output{"agent": name, "intent": task.Intent}
		if resp, ok := task.Inputs["ai_response"]; ok {
			out["response"] = resp
		} else {
			out["inputs"] = task.Inputs
		}
		return out, nil
	})
}

// DefaultGapAnalyzer reports a fixed gap_score of 0, so an Evolution Loop
// wired only with defaults converges on its first iteration rather than
// always exhausting (a registry with no real GapAnalyzer always exhausts,
// per the core's documented edge case).
func DefaultGapAnalyzer() agent.Callable {
	return agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		return agent.Output{"agent": "GapAnalyzer", "gap_score": 0.0}, nil
	})
}

// DefaultSet builds the full named registry using Echo for everything
// except GapAnalyzer, which uses DefaultGapAnalyzer.
func DefaultSet() map[string]agent.Callable {
	set := make(map[string]agent.Callable, len(Names))
	for _, name := range Names {
		if name == "GapAnalyzer" {
			set[name] = DefaultGapAnalyzer()
			continue
		}
		set[name] = Echo(name)
	}
	return set
}
