package resolver

import (
	"sort"
	"time"
)

// CriticalPath returns the maximum-duration root-to-leaf path through the
// dependency edges, as an ordered suite-id list starting at a level-0
// suite. The path length is the theoretical minimum session duration. Ties
// are broken by suite id so the result is deterministic. An empty graph
// yields an empty path.
func CriticalPath(g *Graph) []string {
	if len(g.Nodes) == 0 {
		return nil
	}

	// Dynamic programming over levels: cost(n) is the duration of the
	// heaviest dependency chain ending at n, inclusive.
	cost := make(map[string]time.Duration, len(g.Nodes))
	pred := make(map[string]string, len(g.Nodes))

	levels := make([]int, 0, len(g.Levels))
	for level := range g.Levels {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	for _, level := range levels {
		ids := append([]string(nil), g.Levels[level]...)
		sort.Strings(ids)
		for _, id := range ids {
			node := g.Nodes[id]
			best := time.Duration(-1)
			bestDep := ""
			for _, dep := range node.DependsOn {
				if cost[dep] > best || (cost[dep] == best && dep < bestDep) {
					best = cost[dep]
					bestDep = dep
				}
			}
			cost[id] = g.Suites[id].EstimatedDuration
			if bestDep != "" {
				cost[id] += best
				pred[id] = bestDep
			}
		}
	}

	// The path ends at the suite with the maximum accumulated cost.
	endID := ""
	var endCost time.Duration = -1
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if cost[id] > endCost {
			endCost = cost[id]
			endID = id
		}
	}

	// Walk predecessors back to a level-0 root, then reverse.
	var reversed []string
	for id := endID; id != ""; id = pred[id] {
		reversed = append(reversed, id)
	}
	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}

// PathDuration sums the estimated durations of the suites along a path.
func PathDuration(g *Graph, path []string) time.Duration {
	var total time.Duration
	for _, id := range path {
		total += g.Suites[id].EstimatedDuration
	}
	return total
}
