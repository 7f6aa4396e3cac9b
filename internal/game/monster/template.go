// Package monster provides creature template definitions, live instances,
// and the wave spawner that populates floors with them.
package monster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hollowroot/keeper/internal/game/party"
)

// Template defines a reusable creature archetype loaded from YAML.
type Template struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	MaxHealth int    `yaml:"max_health"`
	Attack    int    `yaml:"attack"`
	// Healer marks the template as healing-capable within a party.
	Healer bool `yaml:"healer"`
	// Side is "defender" or "invader".
	Side string `yaml:"side"`
}

// Validate checks that the template satisfies basic invariants.
//
// Postcondition: Returns nil iff ID and Name are non-empty, MaxHealth >= 1,
// Attack >= 0, and Side is a known affiliation.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("monster template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("monster template %q: name must not be empty", t.ID)
	}
	if t.MaxHealth < 1 {
		return fmt.Errorf("monster template %q: max_health must be >= 1, got %d", t.ID, t.MaxHealth)
	}
	if t.Attack < 0 {
		return fmt.Errorf("monster template %q: attack must be >= 0, got %d", t.ID, t.Attack)
	}
	if _, err := t.Affiliation(); err != nil {
		return err
	}
	return nil
}

// Affiliation resolves the template's side to a party affiliation.
func (t *Template) Affiliation() (party.Affiliation, error) {
	switch t.Side {
	case "defender":
		return party.Defender, nil
	case "invader":
		return party.Invader, nil
	default:
		return 0, fmt.Errorf("monster template %q: side must be defender or invader, got %q", t.ID, t.Side)
	}
}

// yamlTemplateFile is the top-level YAML structure for template files.
type yamlTemplateFile struct {
	Monsters []*Template `yaml:"monsters"`
}

// LoadTemplatesFromBytes parses and validates templates from YAML bytes.
//
// Postcondition: Returns the templates keyed by ID, or a non-nil error on
// parse failure, validation failure, or duplicate IDs.
func LoadTemplatesFromBytes(data []byte) (map[string]*Template, error) {
	var file yamlTemplateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing monster YAML: %w", err)
	}

	templates := make(map[string]*Template, len(file.Monsters))
	for _, t := range file.Monsters {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, exists := templates[t.ID]; exists {
			return nil, fmt.Errorf("duplicate monster template ID: %q", t.ID)
		}
		templates[t.ID] = t
	}
	return templates, nil
}

// LoadTemplatesFromDir loads all YAML files in a directory as templates.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns all validated templates or the first error.
func LoadTemplatesFromDir(dir string) (map[string]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading monster directory %s: %w", dir, err)
	}

	templates := make(map[string]*Template)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading monster file %s: %w", name, err)
		}
		loaded, err := LoadTemplatesFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading monsters from %s: %w", name, err)
		}
		for id, t := range loaded {
			if _, exists := templates[id]; exists {
				return nil, fmt.Errorf("duplicate monster template ID %q in %s", id, name)
			}
			templates[id] = t
		}
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("no monster templates found in %s", dir)
	}
	return templates, nil
}
