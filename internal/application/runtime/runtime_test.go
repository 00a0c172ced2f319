package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentsquad/evoloop/internal/domain/agent"
	"github.com/agentsquad/evoloop/internal/domain/blackboard"
	"github.com/agentsquad/evoloop/internal/infrastructure/llm"
	"go.uber.org/zap"
)

func newTestRuntime(cfg Config) *Runtime {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	return New(cfg, blackboard.New(), nil, zap.NewNop())
}

// echoProvider returns a response identifying which call number it was,
// so tests can tell apart the ai_response each concurrent agent received.
type echoProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *echoProvider) Generate(ctx context.Context, req llm.ModelRequest) (llm.ModelResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return llm.ModelResponse{Text: fmt.Sprintf("response-%d:%s", p.calls, req.Prompt)}, nil
}
func (p *echoProvider) Name() string                         { return "echo" }
func (p *echoProvider) Models() []string                     { return []string{"echo-model"} }
func (p *echoProvider) SupportsModel(model string) bool      { return true }
func (p *echoProvider) IsAvailable(ctx context.Context) bool { return true }

func newTestRuntimeWithInvoker(cfg Config, provider llm.Provider) *Runtime {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	invoker := llm.NewModelInvoker(provider, llm.InvokerConfig{ModelID: "echo-model", MaxTokens: 64}, zap.NewNop())
	return New(cfg, blackboard.New(), invoker, zap.NewNop())
}

func TestExecuteAgentBindsSharedDocumentsIntoCallerContext(t *testing.T) {
	rt := newTestRuntime(Config{})

	var seen agent.ContextMap
	callable := agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		seen = callerContext
		return agent.Output{"ok": true}, nil
	})

	_, err := rt.ExecuteAgent(context.Background(), "Worker", callable, agent.Task{Intent: "do-thing"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := seen["shared_documents"]; !ok {
		t.Errorf("expected shared_documents key to be bound in caller context")
	}
}

func TestExecuteAgentWritesSuccessOutputToSharedContext(t *testing.T) {
	rt := newTestRuntime(Config{ShareAllDocuments: true})

	callable := agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		return agent.Output{"result": "done"}, nil
	})

	_, err := rt.ExecuteAgent(context.Background(), "Worker", callable, agent.Task{Intent: "do-thing"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, ok := rt.Context().GetDocument("Worker")
	if !ok {
		t.Fatalf("expected Worker's output to be recorded in the shared context")
	}
	out, ok := doc.Content.(agent.Output)
	if !ok || out["result"] != "done" {
		t.Errorf("unexpected recorded content: %#v", doc.Content)
	}
}

func TestExecuteAgentRetriesUpToRetryCountThenSurfacesError(t *testing.T) {
	rt := newTestRuntime(Config{RetryCount: 2, RetryDelay: time.Millisecond})

	attempts := 0
	callable := agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		attempts++
		return nil, errors.New("boom")
	})

	_, err := rt.ExecuteAgent(context.Background(), "Worker", callable, agent.Task{Intent: "do-thing"}, nil)
	if err == nil {
		t.Fatalf("expected an error after exhausting retries")
	}
	if attempts != 3 { // 1 + RetryCount
		t.Errorf("expected 3 attempts (1+RetryCount), got %d", attempts)
	}

	m := rt.GetMetrics()
	if m.Failed != 3 || m.Successful != 0 {
		t.Errorf("expected 3 failed records and 0 successful, got %+v", m)
	}
}

func TestExecuteAgentRecoversAfterTransientFailure(t *testing.T) {
	rt := newTestRuntime(Config{RetryCount: 2, RetryDelay: time.Millisecond})

	attempts := 0
	callable := agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("transient")
		}
		return agent.Output{"ok": true}, nil
	})

	out, err := rt.ExecuteAgent(context.Background(), "Worker", callable, agent.Task{Intent: "do-thing"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["ok"] != true {
		t.Errorf("unexpected output: %#v", out)
	}

	m := rt.GetMetrics()
	if m.Failed != 1 || m.Successful != 1 {
		t.Errorf("expected 1 failed then 1 successful record, got %+v", m)
	}
}

func TestExecuteParallelWithSharedTaskInputsDoesNotCorruptPerAgentAIResponses(t *testing.T) {
	rt := newTestRuntimeWithInvoker(Config{MaxParallelAgents: 5}, &echoProvider{})

	sharedInputs := map[string]any{"seed": "common"}
	sharedTask := agent.Task{Intent: "analyze", Prompt: "look at this", RequiresAI: true, Inputs: sharedInputs}

	agents := make([]NamedAgent, 0, 8)
	for i := 0; i < 8; i++ {
		agents = append(agents, NamedAgent{
			Name: fmt.Sprintf("agent-%d", i),
			Callable: agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
				resp, _ := task.Inputs["ai_response"].(string)
				return agent.Output{"ai_response": resp, "seed": task.Inputs["seed"]}, nil
			}),
			Task: sharedTask,
		})
	}

	results := rt.ExecuteParallel(context.Background(), agents, nil)

	seen := map[string]bool{}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error at index %d: %v", i, r.Err)
		}
		resp, _ := r.Output["ai_response"].(string)
		if resp == "" {
			t.Fatalf("expected agent %d to carry a non-empty ai_response", i)
		}
		if seen[resp] {
			t.Errorf("agent %d got an ai_response %q already claimed by another agent", i, resp)
		}
		seen[resp] = true
		if r.Output["seed"] != "common" {
			t.Errorf("expected seed input to survive the clone, got %#v", r.Output["seed"])
		}
	}

	if _, ok := sharedInputs["ai_response"]; ok {
		t.Errorf("caller's original Inputs map must not be mutated by concurrent agents")
	}
}

func TestExecuteAgentRetryDoesNotAccumulatePersonaPrefixOnPrompt(t *testing.T) {
	attempts := 0
	var seenPrompts []string

	callable := agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		attempts++
		seenPrompts = append(seenPrompts, task.Prompt)
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return agent.Output{"ok": true}, nil
	})

	rt := newTestRuntime(Config{RetryCount: 2, RetryDelay: time.Millisecond, EnablePersonas: true})

	_, err := rt.ExecuteAgent(context.Background(), "GapAnalyzer", callable, agent.Task{Intent: "measure", Prompt: "how far are we"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seenPrompts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(seenPrompts))
	}
	for i, p := range seenPrompts {
		if p != seenPrompts[0] {
			t.Errorf("attempt %d saw a different prompt than attempt 0:\n%s\nvs\n%s", i, p, seenPrompts[0])
		}
		if strings.Count(p, "Gap Surveyor") > 1 {
			t.Errorf("attempt %d accumulated the persona fragment: %s", i, p)
		}
	}
}

func TestExecuteParallelPreservesInputOrderAndBoundsConcurrency(t *testing.T) {
	rt := newTestRuntime(Config{MaxParallelAgents: 2})

	var mu sync.Mutex
	active, maxActive := 0, 0

	agents := make([]NamedAgent, 0, 5)
	for i := 0; i < 5; i++ {
		i := i
		agents = append(agents, NamedAgent{
			Name: "agent-" + string(rune('A'+i)),
			Callable: agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return agent.Output{"index": i}, nil
			}),
			Task: agent.Task{Intent: "work"},
		})
	}

	results := rt.ExecuteParallel(context.Background(), agents, nil)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error at index %d: %v", i, r.Err)
		}
		if r.Output["index"] != i {
			t.Errorf("expected result %d to carry index %d, got %#v", i, i, r.Output["index"])
		}
	}
	if maxActive > 2 {
		t.Errorf("expected at most 2 agents running at once (MaxParallelAgents), got %d", maxActive)
	}
}

func TestExecuteParallelCapturesPerAgentErrorsWithoutFailingOthers(t *testing.T) {
	rt := newTestRuntime(Config{MaxParallelAgents: 3})

	agents := []NamedAgent{
		{Name: "ok", Callable: agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
			return agent.Output{"ok": true}, nil
		})},
		{Name: "broken", Callable: agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
			return nil, errors.New("kaboom")
		})},
	}

	results := rt.ExecuteParallel(context.Background(), agents, nil)
	if results[0].Err != nil {
		t.Errorf("expected first agent to succeed, got %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Errorf("expected second agent's error to be captured")
	}
}

func TestGetMetricsComputesSuccessRateAndAverageDuration(t *testing.T) {
	rt := newTestRuntime(Config{})

	ok := agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		return agent.Output{}, nil
	})
	fail := agent.CallableFunc(func(ctx context.Context, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
		return nil, errors.New("nope")
	})

	rt.ExecuteAgent(context.Background(), "a", ok, agent.Task{}, nil)
	rt.ExecuteAgent(context.Background(), "b", ok, agent.Task{}, nil)
	rt.ExecuteAgent(context.Background(), "c", fail, agent.Task{}, nil)

	m := rt.GetMetrics()
	if m.Total != 3 || m.Successful != 2 || m.Failed != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if m.SuccessRate < 0.66 || m.SuccessRate > 0.67 {
		t.Errorf("unexpected success rate: %f", m.SuccessRate)
	}
}
