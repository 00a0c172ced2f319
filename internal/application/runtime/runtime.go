// Package runtime implements the Agent Runtime: persona injection,
// context binding, optional model invocation, retry, timing, and metrics
// for a single agent dispatch.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentsquad/evoloop/internal/domain/agent"
	"github.com/agentsquad/evoloop/internal/domain/blackboard"
	"github.com/agentsquad/evoloop/internal/domain/persona"
	"github.com/agentsquad/evoloop/internal/infrastructure/llm"
	apperrors "github.com/agentsquad/evoloop/pkg/errors"
	"github.com/agentsquad/evoloop/pkg/safego"
	"golang.org/x/sync/semaphore"
	"go.uber.org/zap"
)

// Config controls dispatch, retry, and concurrency behavior.
type Config struct {
	MaxParallelAgents int
	Timeout           time.Duration
	RetryCount        int
	RetryDelay        time.Duration
	EnablePersonas    bool
	ShareAllDocuments bool
}

// Runtime executes individual agent invocations on behalf of a squad.
type Runtime struct {
	cfg      Config
	personas persona.Lookup
	invoker  *llm.ModelInvoker
	ctx      *blackboard.SharedDocumentContext
	logger   *zap.Logger
	sem      *semaphore.Weighted

	mu          sync.Mutex
	records     []agent.Record
	activeCount int32
}

// New builds a Runtime over the given shared document context. invoker may
// be nil when no agent in the squad sets RequiresAI.
func New(cfg Config, ctx *blackboard.SharedDocumentContext, invoker *llm.ModelInvoker, logger *zap.Logger) *Runtime {
	if cfg.MaxParallelAgents <= 0 {
		cfg.MaxParallelAgents = 5
	}
	return &Runtime{
		cfg:      cfg,
		personas: persona.Registry{},
		invoker:  invoker,
		ctx:      ctx,
		logger:   logger.With(zap.String("component", "agent-runtime")),
		sem:      semaphore.NewWeighted(int64(cfg.MaxParallelAgents)),
	}
}

// Context returns the shared document context backing this runtime.
func (r *Runtime) Context() *blackboard.SharedDocumentContext { return r.ctx }

// UsePersonas swaps in a persona lookup, e.g. an OverriddenRegistry loaded
// from an operator-supplied override file. Call before the first
// ExecuteAgent; not safe to call concurrently with in-flight dispatches.
func (r *Runtime) UsePersonas(l persona.Lookup) { r.personas = l }

// ExecuteAgent runs one agent invocation to completion, including
// persona injection, optional model invocation, and retry. The agent's own
// name doubles as its persona lookup key; use ExecuteAgentWithPersona when
// a squad registration supplies a distinct persona alias.
func (r *Runtime) ExecuteAgent(ctx context.Context, name string, callable agent.Callable, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
	return r.executeAgent(ctx, name, name, callable, task, callerContext)
}

// ExecuteAgentWithPersona is ExecuteAgent but resolves the persona under
// personaKey instead of name, for agents registered under a persona alias.
func (r *Runtime) ExecuteAgentWithPersona(ctx context.Context, name, personaKey string, callable agent.Callable, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
	return r.executeAgent(ctx, name, personaKey, callable, task, callerContext)
}

func (r *Runtime) executeAgent(ctx context.Context, name, personaKey string, callable agent.Callable, task agent.Task, callerContext agent.ContextMap) (agent.Output, error) {
	if callerContext == nil {
		callerContext = agent.ContextMap{}
	}
	if _, ok := callerContext["shared_documents"]; !ok {
		snapshot, err := r.ctx.RenderForModel(false, 0)
		if err != nil {
			return nil, fmt.Errorf("render shared documents: %w", err)
		}
		callerContext["shared_documents"] = snapshot
	}

	// runTask carries this attempt's persona-prefixed prompt and AI response,
	// derived from task without mutating it: task is what gets retried, and
	// must keep its original inputs so a retry doesn't re-prepend the
	// persona fragment or write into a map another concurrent attempt holds.
	runTask := task

	if r.cfg.EnablePersonas {
		if p, ok := r.personas.Get(personaKey); ok && task.Prompt != "" {
			runTask.Prompt = p.Render() + task.Prompt
		}
	}

	if runTask.RequiresAI && r.invoker != nil {
		resp, err := r.invoker.Invoke(ctx, runTask.Prompt, callerContext)
		if err != nil {
			return nil, fmt.Errorf("model invocation for %s: %w", name, err)
		}
		inputs := make(map[string]any, len(task.Inputs)+1)
		for k, v := range task.Inputs {
			inputs[k] = v
		}
		inputs["ai_response"] = resp
		runTask.Inputs = inputs
	}

	atomic.AddInt32(&r.activeCount, 1)
	defer atomic.AddInt32(&r.activeCount, -1)

	runCtx := ctx
	var cancel context.CancelFunc
	if r.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := callable.Execute(runCtx, runTask, callerContext)
	duration := time.Since(start)

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			err = apperrors.NewDeadlineExceeded(fmt.Sprintf("%s exceeded its per-agent deadline", name))
		} else {
			err = apperrors.NewAgentFailure(fmt.Sprintf("%s failed", name), err)
		}
		r.appendRecord(agent.Record{AgentName: name, TaskIntent: task.Intent, DurationSeconds: duration.Seconds(), Status: agent.StatusFailed, Timestamp: time.Now()})

		if task.RetryCount < r.cfg.RetryCount {
			select {
			case <-time.After(r.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			task.RetryCount++
			return r.executeAgent(ctx, name, personaKey, callable, task, callerContext)
		}
		return nil, err
	}

	r.appendRecord(agent.Record{AgentName: name, TaskIntent: task.Intent, DurationSeconds: duration.Seconds(), Status: agent.StatusSuccess, Timestamp: time.Now()})

	if r.cfg.ShareAllDocuments {
		r.ctx.AddDocument(name, output, task.Intent)
	}

	return output, nil
}

func (r *Runtime) appendRecord(rec agent.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// NamedAgent pairs a registered agent name/callable with the task it
// should run, for ExecuteParallel's fan-out. PersonaKey defaults to Name
// when empty.
type NamedAgent struct {
	Name       string
	PersonaKey string
	Callable   agent.Callable
	Task       agent.Task
}

// Result is ExecuteParallel's per-agent outcome, keyed by input position.
type Result struct {
	Name   string
	Output agent.Output
	Err    error
}

// ExecuteParallel runs every agent in agents concurrently, bounded by
// MaxParallelAgents. The result slice preserves input order regardless of
// completion order; a failing agent's slot carries its error rather than
// failing the whole call.
func (r *Runtime) ExecuteParallel(ctx context.Context, agents []NamedAgent, callerContext agent.ContextMap) []Result {
	results := make([]Result, len(agents))
	var wg sync.WaitGroup

	for i, a := range agents {
		wg.Add(1)
		i, a := i, a
		safego.Go(r.logger, "execute-parallel:"+a.Name, func() {
			defer wg.Done()

			if err := r.sem.Acquire(ctx, 1); err != nil {
				results[i] = Result{Name: a.Name, Err: err}
				return
			}
			defer r.sem.Release(1)

			personaKey := a.PersonaKey
			if personaKey == "" {
				personaKey = a.Name
			}
			out, err := r.executeAgent(ctx, a.Name, personaKey, a.Callable, a.Task, callerContext)
			results[i] = Result{Name: a.Name, Output: out, Err: err}
		})
	}

	wg.Wait()
	return results
}

// Metrics is the runtime's observability surface over recorded
// invocations.
type Metrics struct {
	Total                  int
	Successful             int
	Failed                 int
	SuccessRate            float64
	AverageDurationSeconds float64
	ActiveAgents           int
	RecentHistory          []agent.Record
}

// GetMetrics summarizes every recorded invocation so far.
func (r *Runtime) GetMetrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := Metrics{Total: len(r.records), ActiveAgents: int(atomic.LoadInt32(&r.activeCount))}
	var totalDuration float64
	for _, rec := range r.records {
		totalDuration += rec.DurationSeconds
		if rec.Status == agent.StatusSuccess {
			m.Successful++
		} else {
			m.Failed++
		}
	}
	if m.Total > 0 {
		m.SuccessRate = float64(m.Successful) / float64(m.Total)
		m.AverageDurationSeconds = totalDuration / float64(m.Total)
	}

	start := len(r.records) - 10
	if start < 0 {
		start = 0
	}
	m.RecentHistory = append(m.RecentHistory, r.records[start:]...)
	return m
}
