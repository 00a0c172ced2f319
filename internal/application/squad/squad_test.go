package squad

import (
	"context"
	"testing"
	"time"

	"github.com/agentsquad/evoloop/internal/application/runtime"
	"github.com/agentsquad/evoloop/internal/domain/agent"
	"github.com/agentsquad/evoloop/internal/domain/blackboard"
	"go.uber.org/zap"
)

func newTestSquad(t *testing.T, strategy Strategy, cfg Config) (*Squad, *runtime.Runtime) {
	t.Helper()
	rt := runtime.New(runtime.Config{MaxParallelAgents: 5, Timeout: time.Second}, blackboard.New(), nil, zap.NewNop())
	return New(strategy, rt, nil, cfg, zap.NewNop()), rt
}

func identityAgent(out agent.Output) agent.Callable {
	return agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		return out, nil
	})
}

func TestSequentialIteratesRegisteredOrder(t *testing.T) {
	sq, _ := newTestSquad(t, Sequential, Config{})

	var order []string
	for _, name := range []string{"A", "B", "C"} {
		name := name
		sq.RegisterAgent(name, agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
			order = append(order, name)
			return agent.Output{}, nil
		}), "")
	}
	sq.SetExecutionOrder([]string{"C", "A", "B"})

	if _, err := sq.ExecuteSquad(context.Background(), agent.Task{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != "C" || order[1] != "A" || order[2] != "B" {
		t.Errorf("unexpected execution order: %v", order)
	}
}

func TestParallelFanOutOrderingMatchesInputOrder(t *testing.T) {
	sq, rt := newTestSquad(t, Parallel, Config{})
	_ = rt

	sq.RegisterAgent("A", identityAgent(agent.Output{"who": "A"}), "")
	sq.RegisterAgent("B", agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		time.Sleep(20 * time.Millisecond)
		return agent.Output{"who": "B"}, nil
	}), "")
	sq.RegisterAgent("C", identityAgent(agent.Output{"who": "C"}), "")

	result, err := sq.ExecuteSquad(context.Background(), agent.Task{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"A", "B", "C"} {
		if result.Outputs[name]["who"] != name {
			t.Errorf("expected output for %s, got %#v", name, result.Outputs[name])
		}
	}
}

func TestEvolutionLoopConvergesOnSecondIteration(t *testing.T) {
	sq, _ := newTestSquad(t, EvolutionLoop, Config{MaxIterations: 10, ConvergenceThreshold: 0.95})

	gapCalls := 0
	sq.RegisterAgent("GapAnalyzer", agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		gapCalls++
		if gapCalls == 1 {
			return agent.Output{"gap_score": 0.8}, nil
		}
		return agent.Output{"gap_score": 0.02}, nil
	}), "")

	result, err := sq.ExecuteSquad(context.Background(), agent.Task{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State.CurrentIteration != 2 {
		t.Errorf("expected 2 iterations, got %d", result.State.CurrentIteration)
	}
	if !result.State.Converged {
		t.Errorf("expected convergence")
	}
	if result.State.GapScore != 0.02 {
		t.Errorf("expected final gap score 0.02, got %f", result.State.GapScore)
	}
}

func TestEvolutionLoopExhaustsWithoutConvergence(t *testing.T) {
	sq, _ := newTestSquad(t, EvolutionLoop, Config{MaxIterations: 3, ConvergenceThreshold: 0.95})

	sq.RegisterAgent("GapAnalyzer", agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		return agent.Output{"gap_score": 0.5}, nil
	}), "")

	result, err := sq.ExecuteSquad(context.Background(), agent.Task{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State.CurrentIteration != 3 {
		t.Errorf("expected 3 iterations, got %d", result.State.CurrentIteration)
	}
	if result.State.Converged {
		t.Errorf("expected no convergence")
	}
	if result.State.GapScore != 0.5 {
		t.Errorf("expected final gap score 0.5, got %f", result.State.GapScore)
	}
}

func TestEvolutionLoopWithoutGapAnalyzerAlwaysExhausts(t *testing.T) {
	sq, _ := newTestSquad(t, EvolutionLoop, Config{MaxIterations: 2, ConvergenceThreshold: 0.95})

	result, err := sq.ExecuteSquad(context.Background(), agent.Task{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State.Converged {
		t.Errorf("expected no convergence when GapAnalyzer is never registered")
	}
	if result.State.CurrentIteration != 2 {
		t.Errorf("expected loop to run to MaxIterations, got %d", result.State.CurrentIteration)
	}
}

func TestEvolutionLoopClampsOutOfRangeGapScore(t *testing.T) {
	sq, _ := newTestSquad(t, EvolutionLoop, Config{MaxIterations: 1, ConvergenceThreshold: 0.95})

	sq.RegisterAgent("GapAnalyzer", agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		return agent.Output{"gap_score": 5.0}, nil
	}), "")

	result, err := sq.ExecuteSquad(context.Background(), agent.Task{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State.GapScore != 1.0 {
		t.Errorf("expected gap score clamped to 1.0, got %f", result.State.GapScore)
	}
}

func TestAIDrivenFallsBackToSequentialWithoutInvoker(t *testing.T) {
	sq, _ := newTestSquad(t, AIDriven, Config{})

	var order []string
	for _, name := range []string{"A", "B"} {
		name := name
		sq.RegisterAgent(name, agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
			order = append(order, name)
			return agent.Output{}, nil
		}), "")
	}

	result, err := sq.ExecuteSquad(context.Background(), agent.Task{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 {
		t.Fatalf("expected both agents to eventually run, got order %v", order)
	}
	if len(result.Outputs) != 2 {
		t.Errorf("expected 2 outputs, got %d", len(result.Outputs))
	}
}
