package config

import "testing"

func TestValidateRequiresModelID(t *testing.T) {
	cfg := Config{
		MaxTokens:            1,
		MaxParallelAgents:    1,
		ConvergenceThreshold: 0.5,
		OutputDir:            "./out",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing model_id")
	}
}

func TestValidateRejectsOutOfRangeConvergenceThreshold(t *testing.T) {
	cfg := Config{
		ModelID:              "anthropic.claude-3-5-sonnet",
		MaxTokens:            1,
		MaxParallelAgents:    1,
		ConvergenceThreshold: 1.5,
		OutputDir:            "./out",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for convergence_threshold > 1")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := Config{
		ModelID:              "anthropic.claude-3-5-sonnet",
		MaxTokens:            4096,
		MaxParallelAgents:    5,
		ConvergenceThreshold: 0.95,
		OutputDir:            "./out",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTimeoutAndRetryDelayConversions(t *testing.T) {
	cfg := Config{TimeoutSeconds: 30, RetryDelaySeconds: 2}
	if cfg.Timeout().Seconds() != 30 {
		t.Errorf("expected 30s timeout, got %v", cfg.Timeout())
	}
	if cfg.RetryDelay().Seconds() != 2 {
		t.Errorf("expected 2s retry delay, got %v", cfg.RetryDelay())
	}
}
