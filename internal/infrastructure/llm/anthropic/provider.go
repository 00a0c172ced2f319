// Package anthropic implements llm.Provider against the Anthropic Messages
// API wire format, the format the spec's model invocation protocol
// (model_id/max_tokens/temperature, single user message,
// content[0].text response) is drawn from.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/agentsquad/evoloop/pkg/errors"
	"github.com/agentsquad/evoloop/internal/infrastructure/llm"
	"go.uber.org/zap"
)

func init() {
	llm.RegisterFactory("anthropic", New)
}

// request is the Anthropic Messages API request envelope, trimmed to the
// single-user-message shape the core ever sends.
type request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// response is the Anthropic Messages API response envelope.
type response struct {
	Content []contentBlock `json:"content"`
	Usage   usage          `json:"usage"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Provider invokes an Anthropic-compatible Messages API endpoint over
// HTTP.
type Provider struct {
	cfg        llm.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Provider from cfg. Registered as the "anthropic" factory.
func New(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger.With(zap.String("provider", "anthropic")),
	}
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req llm.ModelRequest) (llm.ModelResponse, error) {
	body, err := json.Marshal(request{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []message{
			{Role: "user", Content: []contentBlock{{Type: "text", Text: req.Prompt}}},
		},
	})
	if err != nil {
		return llm.ModelResponse{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return llm.ModelResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return llm.ModelResponse{}, apperrors.NewTransportFailure("anthropic request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return llm.ModelResponse{}, apperrors.NewTransportFailure("reading anthropic response body failed", err)
	}

	if httpResp.StatusCode >= 400 {
		return llm.ModelResponse{}, apperrors.NewTransportFailure(
			fmt.Sprintf("model endpoint returned %d: %s", httpResp.StatusCode, string(respBody)), nil)
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return llm.ModelResponse{}, apperrors.NewDecodeFailure("decoding anthropic response failed", err)
	}
	if len(resp.Content) == 0 {
		return llm.ModelResponse{}, apperrors.NewDecodeFailure("model response carried no content blocks", nil)
	}

	return llm.ModelResponse{
		Text: resp.Content[0].Text,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "anthropic" }

// Models implements llm.Provider.
func (p *Provider) Models() []string { return p.cfg.Models }

// SupportsModel implements llm.Provider.
func (p *Provider) SupportsModel(model string) bool {
	for _, m := range p.cfg.Models {
		if m == model {
			return true
		}
	}
	return len(p.cfg.Models) == 0
}

// IsAvailable implements llm.Provider.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	return p.cfg.BaseURL != "" && p.cfg.APIKey != ""
}
