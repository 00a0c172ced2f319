package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// InvokerConfig configures a ModelInvoker's request envelope and retry
// policy.
type InvokerConfig struct {
	ModelID     string
	MaxTokens   int
	Temperature float64
	RetryCount  int
	RetryDelay  time.Duration
}

// ModelInvoker wraps a Provider: it builds a context-augmented prompt,
// issues the request, and retries on transport/decode failure up to
// RetryCount times with a fixed delay.
type ModelInvoker struct {
	provider Provider
	breaker  *CircuitBreaker
	cfg      InvokerConfig
	logger   *zap.Logger
}

// NewModelInvoker builds a ModelInvoker over provider. The circuit breaker
// wraps the provider's availability as an additional resilience layer; it
// never changes the RetryCount/RetryDelay policy itself, it only causes an
// attempt to fail fast (counted as one of the RetryCount attempts) while
// the provider is known to be down.
func NewModelInvoker(provider Provider, cfg InvokerConfig, logger *zap.Logger) *ModelInvoker {
	return &ModelInvoker{
		provider: provider,
		breaker:  NewCircuitBreaker(5, 30*time.Second),
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "model-invoker")),
	}
}

// BuildPrompt renders contextMap and prompt into the single user-role
// message the model receives. Each context key becomes a labeled section
// in sorted key order (for reproducibility); "shared_documents" is expected
// to already be a rendered string (blackboard.RenderForModel's output) and
// is inlined as-is rather than re-serialized.
func BuildPrompt(prompt string, contextMap map[string]any) string {
	keys := make([]string, 0, len(contextMap))
	for k := range contextMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString("### ")
		b.WriteString(k)
		b.WriteString(":\n")
		b.WriteString(serializeValue(contextMap[k]))
		b.WriteString("\n")
	}
	b.WriteString("### Task:\n")
	b.WriteString(prompt)
	return b.String()
}

// serializeValue renders a context value as stable JSON with sorted keys
// (encoding/json already sorts map[string]any keys). A raw string — the
// shape blackboard.RenderForModel returns — is inlined verbatim rather
// than re-quoted as a JSON string.
func serializeValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Invoke builds the prompt, submits it to the provider, and retries on
// failure up to cfg.RetryCount times with a fixed cfg.RetryDelay between
// attempts. The prompt is deterministic, so retries are idempotent.
func (m *ModelInvoker) Invoke(ctx context.Context, prompt string, contextMap map[string]any) (string, error) {
	fullPrompt := BuildPrompt(prompt, contextMap)

	var lastErr error
	for attempt := 0; attempt <= m.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(m.cfg.RetryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if !m.breaker.Allow() {
			lastErr = fmt.Errorf("model provider %s unavailable (circuit open)", m.provider.Name())
			m.logger.Warn("model invocation skipped, circuit open", zap.Int("attempt", attempt))
			continue
		}

		resp, err := m.provider.Generate(ctx, ModelRequest{
			Model:       m.cfg.ModelID,
			MaxTokens:   m.cfg.MaxTokens,
			Temperature: m.cfg.Temperature,
			Prompt:      fullPrompt,
		})
		if err != nil {
			m.breaker.RecordError(err)
			lastErr = err
			m.logger.Warn("model invocation failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		m.breaker.RecordError(nil)
		return resp.Text, nil
	}

	return "", fmt.Errorf("model invocation exhausted %d attempts: %w", m.cfg.RetryCount+1, lastErr)
}
