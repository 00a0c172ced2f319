package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/agentsquad/evoloop/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the full configuration surface recognized by the runtime,
// squad orchestrator, and workflows.
type Config struct {
	Region      string  `mapstructure:"region"`
	ModelID     string  `mapstructure:"model_id"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`

	MaxParallelAgents int           `mapstructure:"max_parallel_agents"`
	TimeoutSeconds    int           `mapstructure:"timeout_seconds"`
	RetryCount        int           `mapstructure:"retry_count"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds"`

	MaxEvolutionIterations int     `mapstructure:"max_evolution_iterations"`
	ConvergenceThreshold   float64 `mapstructure:"convergence_threshold"`
	GapTolerance           float64 `mapstructure:"gap_tolerance"`

	EnablePersonas       bool   `mapstructure:"enable_personas"`
	ShareAllDocuments    bool   `mapstructure:"share_all_documents"`
	OutputDir            string `mapstructure:"output_dir"`
	PersonaOverridesPath string `mapstructure:"persona_overrides_path"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Timeout returns TimeoutSeconds as a time.Duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns RetryDelaySeconds as a time.Duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// Validate enforces the configuration invariants a ConfigurationError must
// be raised for before any agent runs.
func (c Config) Validate() error {
	if c.ModelID == "" {
		return apperrors.NewConfigurationError("model_id is required")
	}
	if c.MaxTokens <= 0 {
		return apperrors.NewConfigurationError("max_tokens must be positive")
	}
	if c.MaxParallelAgents <= 0 {
		return apperrors.NewConfigurationError("max_parallel_agents must be positive")
	}
	if c.ConvergenceThreshold <= 0 || c.ConvergenceThreshold > 1 {
		return apperrors.NewConfigurationError("convergence_threshold must be in (0, 1]")
	}
	if c.OutputDir == "" {
		return apperrors.NewConfigurationError("output_dir is required")
	}
	return nil
}

// AppName is the canonical application name, used to locate the home
// configuration directory.
const AppName = "evoloop"

// HomeDir returns the user's evoloop configuration home: ~/.evoloop
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Load reads layered configuration: built-in defaults, then
// ~/.evoloop/config.yaml, then ./evoloop.yaml (if present), then
// EVOLOOP_* environment overrides — matching the teacher's
// lowest-to-highest precedence chain.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(HomeDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	if _, err := os.Stat("evoloop.yaml"); err == nil {
		v2 := viper.New()
		v2.SetConfigFile("evoloop.yaml")
		if err := v2.ReadInConfig(); err == nil {
			_ = v.MergeConfigMap(v2.AllSettings())
		}
	}

	v.SetEnvPrefix("EVOLOOP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("region", "us-east-1")
	v.SetDefault("model_id", "")
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("temperature", 0.7)

	v.SetDefault("max_parallel_agents", 5)
	v.SetDefault("timeout_seconds", 120)
	v.SetDefault("retry_count", 3)
	v.SetDefault("retry_delay_seconds", 2)

	v.SetDefault("max_evolution_iterations", 10)
	v.SetDefault("convergence_threshold", 0.95)
	v.SetDefault("gap_tolerance", 0.01)

	v.SetDefault("enable_personas", true)
	v.SetDefault("share_all_documents", true)
	v.SetDefault("output_dir", "./output")
	v.SetDefault("persona_overrides_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
