package orchestrator

import (
	"fmt"
	"time"

	"github.com/harrison/testflow/internal/models"
	"github.com/harrison/testflow/internal/resolver"
)

const (
	riskSuiteCountThreshold = 20
	riskDurationThreshold   = 30 * time.Minute
	riskChainThreshold      = 5
)

// buildPlan turns a dependency graph into the immutable execution plan for
// a session. The plan's resource requirement is the per-dimension peak
// across phases: phases run sequentially, so the peak phase is the most
// the session ever holds at once.
func buildPlan(sessionID string, g *resolver.Graph, maxConcurrency int) *models.ExecutionPlan {
	phases := resolver.BuildPhases(g, maxConcurrency)

	plan := &models.ExecutionPlan{
		SessionID: sessionID,
		Phases:    phases,
	}
	for _, phase := range phases {
		plan.TotalEstimatedDuration += phase.EstimatedDuration
		plan.Resources = plan.Resources.Max(phase.Resources)
	}
	plan.Risk = assessRisk(g, plan)
	return plan
}

// assessRisk derives a coarse risk level from plan shape: suite volume,
// estimated runtime, and dependency-chain depth.
func assessRisk(g *resolver.Graph, plan *models.ExecutionPlan) models.RiskAssessment {
	var factors []string

	if n := g.Size(); n > riskSuiteCountThreshold {
		factors = append(factors, fmt.Sprintf("large suite count (%d)", n))
	}
	if plan.TotalEstimatedDuration > riskDurationThreshold {
		factors = append(factors, fmt.Sprintf("long estimated runtime (%s)", plan.TotalEstimatedDuration))
	}
	if path := resolver.CriticalPath(g); len(path) > riskChainThreshold {
		factors = append(factors, fmt.Sprintf("deep dependency chain (%d suites)", len(path)))
	}

	level := models.RiskLow
	switch {
	case len(factors) >= 2:
		level = models.RiskHigh
	case len(factors) == 1:
		level = models.RiskMedium
	}

	return models.RiskAssessment{Level: level, Factors: factors}
}
