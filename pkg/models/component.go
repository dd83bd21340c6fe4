// Package models defines the shared domain types for the generation pipeline.
package models

import (
	"fmt"
	"sort"
)

// ExportedSymbol describes one symbol a component exposes to its dependents.
type ExportedSymbol struct {
	// Name is the symbol name as it appears in the generated source.
	Name string `json:"name"`
	// Signature is the declared shape of the symbol (props interface, function
	// signature, or similar). It is taken verbatim from the plan.
	Signature string `json:"signature,omitempty"`
}

// ComponentSpec is one planned unit of generated source: a file with declared
// exports and dependencies. Specs are immutable once planning completes.
type ComponentSpec struct {
	// ID uniquely identifies the component within a plan.
	ID string `json:"id"`
	// FilePath is the path the generated source will be written to.
	FilePath string `json:"file_path"`
	// Description tells the synthesis capability what the component does.
	Description string `json:"description,omitempty"`
	// ExportedSymbols lists the symbols this component declares, in order.
	ExportedSymbols []ExportedSymbol `json:"exported_symbols,omitempty"`
	// DependencyIDs is the set of component IDs this component depends on.
	DependencyIDs []string `json:"dependency_ids,omitempty"`
}

// Plan is the full set of components for one planning round.
type Plan struct {
	// SessionID links the plan to the conversation that produced it.
	SessionID string `json:"session_id"`
	// Components is the ordered list of components to generate.
	Components []ComponentSpec `json:"components"`
}

// Validate checks the plan's structural invariants: every component has a
// non-empty ID and file path, IDs are unique, and DependencyIDs form a
// well-formed set. Dangling dependency references are deliberately NOT checked
// here; the graph builder reports those with full context.
func (p *Plan) Validate() error {
	if len(p.Components) == 0 {
		return fmt.Errorf("plan has no components")
	}

	seen := make(map[string]bool, len(p.Components))
	for i := range p.Components {
		c := &p.Components[i]
		if c.ID == "" {
			return fmt.Errorf("component %d has an empty id", i)
		}
		if c.FilePath == "" {
			return fmt.Errorf("component %s has an empty file path", c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate component id %s", c.ID)
		}
		seen[c.ID] = true

		deps := make(map[string]bool, len(c.DependencyIDs))
		for _, dep := range c.DependencyIDs {
			if dep == "" {
				return fmt.Errorf("component %s has an empty dependency id", c.ID)
			}
			if deps[dep] {
				return fmt.Errorf("component %s lists dependency %s twice", c.ID, dep)
			}
			deps[dep] = true
		}
	}

	return nil
}

// Component returns the spec with the given ID, or nil if the plan has none.
func (p *Plan) Component(id string) *ComponentSpec {
	for i := range p.Components {
		if p.Components[i].ID == id {
			return &p.Components[i]
		}
	}
	return nil
}

// ComponentIDs returns all component IDs in the plan, sorted for deterministic
// iteration.
func (p *Plan) ComponentIDs() []string {
	ids := make([]string, 0, len(p.Components))
	for i := range p.Components {
		ids = append(ids, p.Components[i].ID)
	}
	sort.Strings(ids)
	return ids
}
