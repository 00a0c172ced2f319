package persona

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesMissingFileIsNotAnError(t *testing.T) {
	overrides, err := LoadOverrides(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overrides != nil {
		t.Errorf("expected nil overrides for missing file, got %#v", overrides)
	}
}

func TestLoadOverridesParsesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	content := `
personas:
  GapAnalyzer:
    name: Custom Surveyor
    role: Tenant-specific Gap Analyst
    traits: [analytical, pragmatic]
    expertise: [custom domain knowledge]
    communication_style: plain and direct
    decision_making_approach: data first
    core_values: [accuracy]
    catchphrase: "Measure twice."
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	overrides, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := overrides["GapAnalyzer"]
	if !ok {
		t.Fatalf("expected GapAnalyzer override to be present")
	}
	if p.Name != "Custom Surveyor" || len(p.Traits) != 2 || p.Traits[0] != Analytical {
		t.Errorf("unexpected override contents: %#v", p)
	}
}

func TestOverriddenRegistryPrefersOverrideThenFallsBackToCatalog(t *testing.T) {
	reg := Registry{}.WithOverrides(map[string]Persona{
		"GapAnalyzer": {Name: "Custom Surveyor", Role: "Tenant-specific Gap Analyst"},
	})

	p, ok := reg.Get("GapAnalyzer")
	if !ok || p.Name != "Custom Surveyor" {
		t.Fatalf("expected override to take precedence, got %#v", p)
	}

	p, ok = reg.Get("StaticAnalyzer")
	if !ok || p.Name != "Code Inspector" {
		t.Fatalf("expected fallback to built-in catalog, got %#v", p)
	}
}

func TestOverriddenRegistryAllMergesOverridesOverCatalog(t *testing.T) {
	reg := Registry{}.WithOverrides(map[string]Persona{
		"GapAnalyzer": {Name: "Custom Surveyor"},
		"NewPersona":  {Name: "Newcomer"},
	})

	all := reg.All()
	if len(all) != 18 {
		t.Fatalf("expected 17 built-in + 1 new persona, got %d", len(all))
	}
	if all["GapAnalyzer"].Name != "Custom Surveyor" {
		t.Errorf("expected override to win on collision")
	}
}
