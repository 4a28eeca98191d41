package models

import "time"

// ExecutionPhase is a batch of suites that run together. Phases execute
// strictly in order; every suite's dependencies live in earlier phases.
type ExecutionPhase struct {
	ID                string               // Phase identifier (e.g. "phase-2")
	Name              string               // Display name (e.g. "Phase 2")
	Suites            []string             // Suite IDs in this phase
	DependsOn         []string             // IDs of phases that must complete first
	EstimatedDuration time.Duration        // Max member estimate (members run concurrently)
	MaxConcurrency    int                  // Cap on suites running at once within the phase
	Resources         ResourceRequirements // Sum of member baseline requirements
}

// ExecutionPlan is the immutable schedule produced for one session.
type ExecutionPlan struct {
	SessionID              string
	Phases                 []ExecutionPhase
	TotalEstimatedDuration time.Duration        // Sum of phase estimates (phases are sequential)
	Resources              ResourceRequirements // Per-dimension peak across phases; reserved at admission
	Risk                   RiskAssessment
}

// RiskAssessment is a coarse pre-execution judgement of how likely the
// plan is to contend for resources or run long.
type RiskAssessment struct {
	Level   string   // "low", "medium", or "high"
	Factors []string // Human-readable reasons for the level
}

// Risk level constants.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// QueueItem is a unit of pending work held by the execution queue.
type QueueItem struct {
	Session           *TestSession
	Plan              *ExecutionPlan
	Priority          int
	EstimatedDuration time.Duration
	EnqueuedAt        time.Time
	Attempts          int // Admission attempts consumed so far
}
