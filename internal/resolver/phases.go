package resolver

import (
	"fmt"
	"sort"

	"github.com/harrison/testflow/internal/models"
)

const (
	// DefaultMaxConcurrencyPerPhase caps suites per phase when the caller
	// does not supply a limit.
	DefaultMaxConcurrencyPerPhase = 10
)

// BuildPhases partitions the graph's suites into sequential execution
// phases by level. A level whose suite count exceeds maxConcurrency is
// split into multiple sub-phases preserving relative order. Each phase's
// estimated duration is the maximum member estimate (members run
// concurrently) and its resource requirement is the sum of member
// baselines. Every phase depends on the phase immediately before it.
func BuildPhases(g *Graph, maxConcurrency int) []models.ExecutionPhase {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrencyPerPhase
	}

	levels := make([]int, 0, len(g.Levels))
	for level := range g.Levels {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	var phases []models.ExecutionPhase
	for _, level := range levels {
		ids := g.Levels[level]
		for start := 0; start < len(ids); start += maxConcurrency {
			end := start + maxConcurrency
			if end > len(ids) {
				end = len(ids)
			}
			chunk := ids[start:end]

			phase := models.ExecutionPhase{
				ID:             fmt.Sprintf("phase-%d", len(phases)+1),
				Name:           fmt.Sprintf("Phase %d", len(phases)+1),
				Suites:         append([]string(nil), chunk...),
				MaxConcurrency: maxConcurrency,
			}
			if len(chunk) < maxConcurrency {
				phase.MaxConcurrency = len(chunk)
			}
			for _, id := range chunk {
				suite := g.Suites[id]
				if suite.EstimatedDuration > phase.EstimatedDuration {
					phase.EstimatedDuration = suite.EstimatedDuration
				}
				phase.Resources = phase.Resources.Add(suite.Resources)
			}
			if n := len(phases); n > 0 {
				phase.DependsOn = []string{phases[n-1].ID}
			}
			phases = append(phases, phase)
		}
	}

	return phases
}

// ValidateOrder replays the phases in order and checks that every suite's
// declared dependencies have executed in a strictly earlier phase. It
// returns false on the first violation.
func ValidateOrder(phases []models.ExecutionPhase, g *Graph) bool {
	executed := make(map[string]bool, len(g.Nodes))

	for _, phase := range phases {
		for _, id := range phase.Suites {
			node, exists := g.Nodes[id]
			if !exists {
				return false
			}
			for _, dep := range node.DependsOn {
				if !executed[dep] {
					return false
				}
			}
		}
		// Suites within a phase run concurrently, so the phase only
		// counts as executed once it is complete.
		for _, id := range phase.Suites {
			executed[id] = true
		}
	}

	return true
}
