package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilnhq/kiln/internal/ir"
)

// Declaration is the top-level structure of a kiln declaration file.
type Declaration struct {
	Version   string         `yaml:"version"`
	Provider  string         `yaml:"provider"`
	Region    string         `yaml:"region,omitempty"`
	State     string         `yaml:"state,omitempty"`
	Resources []*ir.Resource `yaml:"resources"`
}

// Load reads and validates a declaration file.
func Load(path string) (*Declaration, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read declaration file: %w", err)
	}

	var decl Declaration
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("failed to parse declaration: %w: %w", ir.ErrValidation, err)
	}

	if err := decl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid declaration %s: %w", path, err)
	}

	return &decl, nil
}

// Validate ensures the declaration has the required shape. Graph-level
// checks (cycles, dangling references) happen when the graph is built.
func (d *Declaration) Validate() error {
	if d.Version == "" {
		return fmt.Errorf("%w: version is required", ir.ErrValidation)
	}
	if d.Provider == "" {
		return fmt.Errorf("%w: provider is required", ir.ErrValidation)
	}
	if d.Provider == "aws" && d.Region == "" {
		return fmt.Errorf("%w: region is required for the aws provider", ir.ErrValidation)
	}

	for i, res := range d.Resources {
		if res.ID == "" {
			return fmt.Errorf("%w: resource at index %d has no id", ir.ErrValidation, i)
		}
		if res.Type == "" {
			return fmt.Errorf("%w: resource %q has no type", ir.ErrValidation, res.ID)
		}
		if !ir.IsKnownType(res.Type) {
			return fmt.Errorf("%w: resource %q has unknown type %q", ir.ErrValidation, res.ID, res.Type)
		}
	}

	return nil
}
