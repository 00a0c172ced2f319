package persona

import (
	"strings"
	"testing"
)

func TestRegistryGetOrchestratorPersonas(t *testing.T) {
	reg := Registry{}

	p, ok := reg.Get("UpgradeOrchestrator")
	if !ok {
		t.Fatalf("expected UpgradeOrchestrator persona to be registered")
	}
	if p.Name != "Evolution Maestro" {
		t.Errorf("unexpected name: %s", p.Name)
	}

	p, ok = reg.Get("NewBuildOrchestrator")
	if !ok || p.Role == "" {
		t.Fatalf("expected NewBuildOrchestrator persona to be registered")
	}
}

func TestRegistryGetAgentPersona(t *testing.T) {
	reg := Registry{}

	p, ok := reg.Get("GapAnalyzer")
	if !ok {
		t.Fatalf("expected GapAnalyzer persona to be registered")
	}
	if p.Name != "Gap Surveyor" {
		t.Errorf("unexpected name: %s", p.Name)
	}
}

func TestRegistryGetSupplementalAgnoManager(t *testing.T) {
	reg := Registry{}

	if _, ok := reg.Get("AgnoManager"); !ok {
		t.Fatalf("expected supplemental AgnoManager persona to be registered")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := Registry{}

	if _, ok := reg.Get("DoesNotExist"); ok {
		t.Errorf("expected unknown persona name to miss")
	}
}

func TestRegistryAllContainsEveryPersona(t *testing.T) {
	reg := Registry{}
	all := reg.All()

	const wantCount = 17 // 2 orchestrator + 14 named agent + AgnoManager
	if len(all) != wantCount {
		t.Fatalf("expected %d personas, got %d", wantCount, len(all))
	}
}

func TestPersonaRenderIncludesIdentifyingFields(t *testing.T) {
	reg := Registry{}
	p, _ := reg.Get("StaticAnalyzer")

	rendered := p.Render()
	for _, want := range []string{p.Name, p.Role, p.Catchphrase, "code quality metrics"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered persona missing %q:\n%s", want, rendered)
		}
	}
}
