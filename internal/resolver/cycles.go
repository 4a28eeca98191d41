package resolver

import (
	"sort"

	"github.com/harrison/testflow/internal/models"
)

// DetectCycles runs a depth-first traversal over the enabled suites'
// dependency edges with an explicit recursion stack. When a suite already
// on the stack is re-encountered, the cycle is returned as the ordered id
// list from the re-encountered suite through the current suite. An empty
// result means the suite set is acyclic.
//
// Dependencies on ids outside the enabled set are ignored here; BuildGraph
// reports those as configuration errors.
func DetectCycles(suites []models.TestSuiteConfig) []string {
	const (
		white = 0 // not visited
		gray  = 1 // on the recursion stack
		black = 2 // fully explored
	)

	deps := make(map[string][]string)
	for _, s := range suites {
		if s.Enabled {
			deps[s.ID] = s.DependsOn
		}
	}

	colors := make(map[string]int, len(deps))
	var stack []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		colors[id] = gray
		stack = append(stack, id)

		for _, dep := range deps[id] {
			if _, known := deps[dep]; !known {
				continue
			}
			if colors[dep] == gray {
				// Back edge: slice the stack from the re-encountered
				// suite through the current one.
				for i, onStack := range stack {
					if onStack == dep {
						cycle = append([]string(nil), stack[i:]...)
						return true
					}
				}
			}
			if colors[dep] == white && dfs(dep) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
		return false
	}

	// Deterministic traversal order so repeated runs report the same cycle.
	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if colors[id] == white && dfs(id) {
			return cycle
		}
	}

	return nil
}
