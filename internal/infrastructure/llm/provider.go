package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ModelRequest is the single-turn invocation envelope the Model Invoker
// sends to a Provider: one system-free prompt, no conversation history,
// no tool definitions. Multi-turn conversation and tool use belong to the
// agents a Provider is invoked on behalf of, not to this layer.
type ModelRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature,omitempty"`
	Prompt      string  `json:"prompt"`
}

// ModelResponse is the decoded result of a ModelRequest.
type ModelResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Usage reports token consumption for a single invocation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns total token count.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Provider is the infrastructure-layer model provider interface. Each
// concrete provider translates a ModelRequest into its own wire format and
// decodes the reply back into a ModelResponse.
type Provider interface {
	// Generate invokes the model for a single prompt and returns its text.
	Generate(ctx context.Context, req ModelRequest) (ModelResponse, error)

	// Name returns the provider identifier (e.g. "bedrock", "anthropic").
	Name() string

	// Models returns the list of supported model identifiers.
	Models() []string

	// SupportsModel checks if a specific model is supported.
	SupportsModel(model string) bool

	// IsAvailable checks if the provider is reachable.
	IsAvailable(ctx context.Context) bool
}

// ProviderConfig holds configuration for a model provider.
type ProviderConfig struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // "anthropic" (default)
	BaseURL  string   `json:"base_url"`
	APIKey   string   `json:"api_key"`
	Region   string   `json:"region"`
	Models   []string `json:"models"`
	Priority int      `json:"priority"` // Lower = higher priority
}

// --- Provider Factory Registry ---
// Providers register themselves via init() in their own package.
// Adding a new provider type = implement Provider + RegisterFactory("type", New).

// ProviderFactory creates a Provider from config.
type ProviderFactory func(cfg ProviderConfig, logger *zap.Logger) Provider

var (
	factoryMu sync.RWMutex
	factories = map[string]ProviderFactory{}
)

// RegisterFactory registers a provider factory for the given type name.
// Called from init() in each provider sub-package.
func RegisterFactory(typeName string, factory ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[typeName] = factory
}

// CreateProvider creates a Provider using the registered factory for cfg.Type.
// If Type is empty, defaults to "anthropic".
func CreateProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	t := cfg.Type
	if t == "" {
		t = "anthropic"
	}

	factoryMu.RLock()
	factory, ok := factories[t]
	factoryMu.RUnlock()

	if !ok {
		available := make([]string, 0, len(factories))
		factoryMu.RLock()
		for k := range factories {
			available = append(available, k)
		}
		factoryMu.RUnlock()
		return nil, fmt.Errorf("unknown provider type %q (available: %v)", t, available)
	}

	return factory(cfg, logger), nil
}
