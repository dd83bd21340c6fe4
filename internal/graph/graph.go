// Package graph builds and validates the component dependency graph.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forgeline/forgeline/pkg/models"
)

// UnknownDependencyError reports a dependency reference to a component ID
// that does not exist in the plan.
type UnknownDependencyError struct {
	// ComponentID is the component declaring the dependency.
	ComponentID string
	// MissingID is the referenced ID that is absent from the plan.
	MissingID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("component %s depends on unknown component %s", e.ComponentID, e.MissingID)
}

// CyclicDependencyError reports a dependency cycle in the plan.
type CyclicDependencyError struct {
	// Members lists the component IDs participating in the cycle, in the
	// order they were encountered.
	Members []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Members, " -> "))
}

// Graph is a validated, acyclic dependency graph over a plan's components.
// Nodes are component IDs; an edge dep -> comp means comp depends on dep.
// A Graph is immutable after Build returns it.
type Graph struct {
	// specs maps component ID to its spec.
	specs map[string]models.ComponentSpec
	// deps maps component ID to the IDs it depends on.
	deps map[string][]string
	// dependents is the reverse adjacency: dependency ID -> dependent IDs.
	dependents map[string][]string
	// order holds all component IDs sorted for deterministic iteration.
	order []string
}

// Build validates the plan's dependency structure and returns the graph.
// It fails with UnknownDependencyError if a dependency references an ID not
// present in the plan, and with CyclicDependencyError if a cycle exists.
// No partial graph is ever returned on failure.
func Build(plan *models.Plan) (*Graph, error) {
	g := &Graph{
		specs:      make(map[string]models.ComponentSpec, len(plan.Components)),
		deps:       make(map[string][]string, len(plan.Components)),
		dependents: make(map[string][]string),
	}

	for _, spec := range plan.Components {
		if _, exists := g.specs[spec.ID]; exists {
			return nil, fmt.Errorf("duplicate component id %s", spec.ID)
		}
		g.specs[spec.ID] = spec
		g.order = append(g.order, spec.ID)
	}
	sort.Strings(g.order)

	for _, id := range g.order {
		spec := g.specs[id]
		deps := append([]string(nil), spec.DependencyIDs...)
		sort.Strings(deps)
		for _, depID := range deps {
			if _, exists := g.specs[depID]; !exists {
				return nil, &UnknownDependencyError{ComponentID: id, MissingID: depID}
			}
			g.deps[id] = append(g.deps[id], depID)
			g.dependents[depID] = append(g.dependents[depID], id)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Members: cycle}
	}

	for id := range g.dependents {
		sort.Strings(g.dependents[id])
	}

	return g, nil
}

// findCycle runs a depth-first traversal with a recursion-stack marker.
// Component IDs are visited in sorted order so the first cycle reported is
// deterministic. Returns nil when the graph is acyclic.
func (g *Graph) findCycle() []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the recursion stack
		black = 2 // fully explored
	)
	colors := make(map[string]int, len(g.order))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = gray
		stack = append(stack, id)

		for _, depID := range g.deps[id] {
			switch colors[depID] {
			case gray:
				// Back edge: the cycle is the stack segment from depID on.
				for i, member := range stack {
					if member == depID {
						return append([]string(nil), stack[i:]...)
					}
				}
			case white:
				if cycle := visit(depID); cycle != nil {
					return cycle
				}
			}
		}

		colors[id] = black
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, id := range g.order {
		if colors[id] == white {
			stack = stack[:0]
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}

// Spec returns the component spec for the given ID.
func (g *Graph) Spec(id string) (models.ComponentSpec, bool) {
	spec, ok := g.specs[id]
	return spec, ok
}

// ComponentIDs returns all component IDs in sorted order.
func (g *Graph) ComponentIDs() []string {
	return append([]string(nil), g.order...)
}

// Dependencies returns the IDs the given component depends on, sorted.
func (g *Graph) Dependencies(id string) []string {
	return append([]string(nil), g.deps[id]...)
}

// DependencyCount returns the number of dependencies of the given component.
func (g *Graph) DependencyCount(id string) int {
	return len(g.deps[id])
}

// Dependents returns the IDs that directly depend on the given component,
// sorted.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// Roots returns the components with zero dependencies, sorted. In an acyclic
// graph every component is reachable from this frontier.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.deps[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// TransitiveDependents returns every component that directly or indirectly
// depends on the given component, sorted.
func (g *Graph) TransitiveDependents(id string) []string {
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(cur string) {
		for _, dep := range g.dependents[cur] {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(id)

	out := make([]string, 0, len(seen))
	for dep := range seen {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of components in the graph.
func (g *Graph) Size() int {
	return len(g.specs)
}
