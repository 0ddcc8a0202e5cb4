package pipeline

import (
	"fmt"
)

// Graph is a directed acyclic graph of build stages. The standard build
// wires exactly two nodes (resolve -> assemble), but the graph accepts
// any acyclic arrangement so additional stages can be inserted without
// touching the runner.
type Graph struct {
	stages map[string]Stage
	order  []string // insertion order, used as a deterministic tie-break
}

// NewGraph creates an empty stage graph.
func NewGraph() *Graph {
	return &Graph{stages: make(map[string]Stage)}
}

// Add registers a stage. Stage names must be unique.
func (g *Graph) Add(s Stage) error {
	name := s.Name()
	if _, exists := g.stages[name]; exists {
		return fmt.Errorf("duplicate stage %q", name)
	}
	g.stages[name] = s
	g.order = append(g.order, name)
	return nil
}

// Plan returns the stages in dependency order. Unknown dependencies and
// cycles are planning errors: the runner never starts a graph it cannot
// finish.
func (g *Graph) Plan() ([]Stage, error) {
	indegree := make(map[string]int, len(g.stages))
	dependents := make(map[string][]string, len(g.stages))

	for _, name := range g.order {
		s := g.stages[name]
		for _, dep := range s.Deps() {
			if _, ok := g.stages[dep]; !ok {
				return nil, fmt.Errorf("stage %q depends on unknown stage %q", name, dep)
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	// Kahn's algorithm, scanning ready stages in insertion order.
	var plan []Stage
	done := make(map[string]bool, len(g.stages))
	for len(plan) < len(g.stages) {
		progressed := false
		for _, name := range g.order {
			if done[name] || indegree[name] > 0 {
				continue
			}
			done[name] = true
			plan = append(plan, g.stages[name])
			for _, dep := range dependents[name] {
				indegree[dep]--
			}
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("stage graph contains a cycle")
		}
	}

	return plan, nil
}
