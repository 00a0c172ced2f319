package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentsquad/evoloop/internal/application/squad"
	"github.com/agentsquad/evoloop/internal/domain/blackboard"
)

// Report is the persisted summary of one workflow run, written to
// <outputDir>/<workflow>_report_<YYYYMMDD_HHMMSS>.json.
type Report struct {
	Workflow       string                              `json:"workflow"`
	Iterations     int                                  `json:"iterations"`
	Converged      bool                                 `json:"converged"`
	FinalGapScore  float64                              `json:"final_gap_score"`
	EvolutionSteps []squad.IterationResult               `json:"evolution_steps,omitempty"`
	SharedContext  map[string]blackboard.DocumentEntry  `json:"shared_context"`
	GeneratedAt    time.Time                            `json:"generated_at"`
}

// Persist writes the report and one file per current-loop document under
// outputDir, per the persisted-state layout: 2-space indented UTF-8 JSON,
// ISO-8601 timestamps (handled by Go's default time.Time marshaling).
func Persist(outputDir, workflowName string, report Report, ctx *blackboard.SharedDocumentContext) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	docsDir := filepath.Join(outputDir, "documents")
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return fmt.Errorf("create documents dir: %w", err)
	}

	stamp := report.GeneratedAt.Format("20060102_150405")
	reportPath := filepath.Join(outputDir, fmt.Sprintf("%s_report_%s.json", workflowName, stamp))

	reportBody, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(reportPath, reportBody, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	for agentName, doc := range ctx.GetAllDocuments() {
		docBody, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode document for %s: %w", agentName, err)
		}
		docPath := filepath.Join(docsDir, agentName+".json")
		if err := os.WriteFile(docPath, docBody, 0o644); err != nil {
			return fmt.Errorf("write document for %s: %w", agentName, err)
		}
	}

	return nil
}
