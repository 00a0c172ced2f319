package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Bootstrap ensures the ~/.evoloop directory and the configured OutputDir
// exist, seeding a default config.yaml on first run. Safe to call multiple
// times — only creates missing items, never overwrites user edits.
func Bootstrap(cfg Config, logger *zap.Logger) error {
	root := HomeDir()
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", root, err)
	}

	seedPath := filepath.Join(root, "config.yaml")
	if _, err := os.Stat(seedPath); os.IsNotExist(err) {
		if err := os.WriteFile(seedPath, []byte(defaultConfigYAML), 0644); err != nil {
			logger.Warn("failed to write default config", zap.String("path", seedPath), zap.Error(err))
		} else {
			logger.Info("wrote default configuration", zap.String("path", seedPath))
		}
	}

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("create output dir %s: %w", cfg.OutputDir, err)
		}
		if err := os.MkdirAll(filepath.Join(cfg.OutputDir, "documents"), 0755); err != nil {
			return fmt.Errorf("create documents dir: %w", err)
		}
	}

	return nil
}

const defaultConfigYAML = `# evoloop configuration — auto-generated on first launch, edit freely.

region: us-east-1
model_id: ""                    # e.g. "anthropic.claude-3-5-sonnet"
max_tokens: 4096
temperature: 0.7

max_parallel_agents: 5
timeout_seconds: 120
retry_count: 3
retry_delay_seconds: 2

max_evolution_iterations: 10
convergence_threshold: 0.95
gap_tolerance: 0.01

enable_personas: true
share_all_documents: true
output_dir: ./output

log:
  level: info
  format: console
`
