package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overrideFile is the on-disk shape of a persona override document, modeled
// on the teacher's manifest.yaml loader: plain structs with yaml tags, one
// entry per persona key.
type overrideFile struct {
	Personas map[string]overrideEntry `yaml:"personas"`
}

type overrideEntry struct {
	Name                   string   `yaml:"name,omitempty"`
	Role                   string   `yaml:"role,omitempty"`
	Traits                 []string `yaml:"traits,omitempty"`
	Expertise              []string `yaml:"expertise,omitempty"`
	CommunicationStyle     string   `yaml:"communication_style,omitempty"`
	DecisionMakingApproach string   `yaml:"decision_making_approach,omitempty"`
	CoreValues             []string `yaml:"core_values,omitempty"`
	Catchphrase            string   `yaml:"catchphrase,omitempty"`
}

// LoadOverrides reads a persona override document from path and returns the
// personas it redefines or introduces, keyed by persona name. A missing
// file is not an error; operators only need one when they want to reskin an
// agent's personality without touching code.
func LoadOverrides(path string) (map[string]Persona, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read persona overrides %s: %w", path, err)
	}

	var doc overrideFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse persona overrides %s: %w", path, err)
	}

	out := make(map[string]Persona, len(doc.Personas))
	for key, entry := range doc.Personas {
		traits := make([]Trait, len(entry.Traits))
		for i, t := range entry.Traits {
			traits[i] = Trait(t)
		}
		out[key] = Persona{
			Name:                   entry.Name,
			Role:                   entry.Role,
			Traits:                 traits,
			Expertise:              entry.Expertise,
			CommunicationStyle:     entry.CommunicationStyle,
			DecisionMakingApproach: entry.DecisionMakingApproach,
			CoreValues:             entry.CoreValues,
			Catchphrase:            entry.Catchphrase,
		}
	}
	return out, nil
}

// WithOverrides returns a Registry that resolves personas from overrides
// before falling back to the built-in catalog, letting operators replace or
// add personas without recompiling.
func (Registry) WithOverrides(overrides map[string]Persona) OverriddenRegistry {
	return OverriddenRegistry{overrides: overrides}
}

// OverriddenRegistry is a Registry layered with operator-supplied persona
// overrides.
type OverriddenRegistry struct {
	overrides map[string]Persona
}

// Get resolves name from the override set first, then the built-in catalog.
func (r OverriddenRegistry) Get(name string) (Persona, bool) {
	if p, ok := r.overrides[name]; ok {
		return p, true
	}
	return Registry{}.Get(name)
}

// All returns the built-in catalog merged with overrides, overrides taking
// precedence on key collision.
func (r OverriddenRegistry) All() map[string]Persona {
	out := Registry{}.All()
	for k, v := range r.overrides {
		out[k] = v
	}
	return out
}
