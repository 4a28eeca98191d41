// Package resolver provides the pure dependency-graph algorithms behind
// session planning: graph construction, cycle detection, phase partitioning,
// order validation, and critical-path analysis. The package holds no state;
// a graph is built per session and discarded after phase computation.
package resolver

import (
	"fmt"

	"github.com/harrison/testflow/internal/models"
)

// Node is a single suite in the dependency graph.
type Node struct {
	ID         string
	DependsOn  []string // Suite IDs this suite requires
	Dependents []string // Suite IDs that require this suite
	Level      int      // 0 for roots, else 1 + max(level of dependencies)
}

// Graph is a directed acyclic dependency graph over enabled suites.
type Graph struct {
	Nodes  map[string]*Node
	Levels map[int][]string // level -> suite IDs, in configuration order
	Suites map[string]models.TestSuiteConfig
	order  []string // enabled suite IDs in configuration order
}

// BuildGraph constructs the dependency graph for the enabled suites in the
// list. It returns a ConfigurationError when a dependency references an
// unknown (or disabled) suite id. Levels are computed by memoized recursion
// over dependencies; callers must run DetectCycles first, as level
// computation assumes acyclicity.
func BuildGraph(suites []models.TestSuiteConfig) (*Graph, error) {
	g := &Graph{
		Nodes:  make(map[string]*Node),
		Levels: make(map[int][]string),
		Suites: make(map[string]models.TestSuiteConfig),
	}

	for _, s := range suites {
		if !s.Enabled {
			continue
		}
		g.Nodes[s.ID] = &Node{ID: s.ID, DependsOn: append([]string(nil), s.DependsOn...)}
		g.Suites[s.ID] = s
		g.order = append(g.order, s.ID)
	}

	// Validate edges and record dependents
	for _, id := range g.order {
		node := g.Nodes[id]
		for _, dep := range node.DependsOn {
			depNode, exists := g.Nodes[dep]
			if !exists {
				return nil, models.NewConfigurationError(id, fmt.Sprintf("depends on unknown or disabled suite %q", dep))
			}
			depNode.Dependents = append(depNode.Dependents, id)
		}
	}

	// Memoized level computation: level(n) = 0 without dependencies,
	// else 1 + max(level(d)) over its dependencies.
	memo := make(map[string]int, len(g.Nodes))
	var levelOf func(id string) int
	levelOf = func(id string) int {
		if lvl, ok := memo[id]; ok {
			return lvl
		}
		node := g.Nodes[id]
		level := 0
		for _, dep := range node.DependsOn {
			if depLevel := levelOf(dep) + 1; depLevel > level {
				level = depLevel
			}
		}
		memo[id] = level
		return level
	}

	for _, id := range g.order {
		node := g.Nodes[id]
		node.Level = levelOf(id)
		g.Levels[node.Level] = append(g.Levels[node.Level], id)
	}

	return g, nil
}

// MaxLevel returns the highest level present in the graph, or -1 when the
// graph is empty.
func (g *Graph) MaxLevel() int {
	max := -1
	for level := range g.Levels {
		if level > max {
			max = level
		}
	}
	return max
}

// Size returns the number of nodes in the graph.
func (g *Graph) Size() int {
	return len(g.Nodes)
}
