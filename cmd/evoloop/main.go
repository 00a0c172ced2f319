package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/agentsquad/evoloop/internal/infrastructure/llm/anthropic"

	"github.com/agentsquad/evoloop/internal/application/agents"
	"github.com/agentsquad/evoloop/internal/application/workflow"
	"github.com/agentsquad/evoloop/internal/infrastructure/config"
	"github.com/agentsquad/evoloop/internal/infrastructure/llm"
	"github.com/agentsquad/evoloop/internal/infrastructure/logger"
)

const (
	cliVersion = "0.1.0"
	cliName    = "evoloop"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   cliName,
		Short: "evoloop — AI agent squad orchestration runtime",
		Long:  "evoloop drives a squad of specialized agents toward a declared goal by repeatedly measuring and closing the gap between an artifact's current and desired state.",
	}

	rootCmd.AddCommand(newUpgradeCmd())
	rootCmd.AddCommand(newNewBuildCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cliName, cliVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newUpgradeCmd() *cobra.Command {
	var projectPath string

	cmd := &cobra.Command{
		Use:   "upgrade [requirements]",
		Short: "Evolve an existing project toward the given requirements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cfg, provider, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			wf := workflow.NewUpgradeWorkflow(*cfg, provider, defaultRegistrations(), log)
			report, err := wf.Execute(context.Background(), args[0], projectPath)
			if err != nil {
				log.Error("upgrade workflow failed", zap.Error(err))
				return err
			}

			log.Info("upgrade workflow finished",
				zap.Int("iterations", report.Iterations),
				zap.Bool("converged", report.Converged),
				zap.Float64("final_gap_score", report.FinalGapScore),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectPath, "project-path", ".", "path to the existing project to evolve")
	return cmd
}

func newNewBuildCmd() *cobra.Command {
	var projectName string

	cmd := &cobra.Command{
		Use:   "newbuild [requirements]",
		Short: "Create a seed product and evolve it toward the given requirements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cfg, provider, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()

			wf := workflow.NewNewBuildWorkflow(*cfg, provider, defaultRegistrations(), log)
			report, err := wf.CreateSeedProduct(context.Background(), args[0], projectName)
			if err != nil {
				log.Error("newbuild workflow failed", zap.Error(err))
				return err
			}

			log.Info("newbuild workflow finished",
				zap.Int("iterations", report.Iterations),
				zap.Bool("converged", report.Converged),
				zap.Float64("final_gap_score", report.FinalGapScore),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectName, "project-name", "seed-product", "name of the seed project, passed to the agents as project_name")
	return cmd
}

func bootstrap() (*zap.Logger, *config.Config, llm.Provider, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, OutputPath: "stdout"})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	if err := config.Bootstrap(*cfg, log); err != nil {
		return nil, nil, nil, fmt.Errorf("bootstrap config dirs: %w", err)
	}

	var provider llm.Provider
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		provider, err = llm.CreateProvider(llm.ProviderConfig{
			Name:     "anthropic",
			Type:     "anthropic",
			BaseURL:  envOr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			APIKey:   apiKey,
			Region:   cfg.Region,
			Priority: 1,
		}, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create model provider: %w", err)
		}
	} else {
		log.Warn("ANTHROPIC_API_KEY not set; running without model invocation (agents run with no ai_response)")
	}

	return log, cfg, provider, nil
}

func defaultRegistrations() []workflow.AgentRegistration {
	set := agents.DefaultSet()
	regs := make([]workflow.AgentRegistration, 0, len(agents.Names))
	for _, name := range agents.Names {
		regs = append(regs, workflow.AgentRegistration{Name: name, Callable: set[name]})
	}
	return regs
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
