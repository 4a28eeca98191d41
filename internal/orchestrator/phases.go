package orchestrator

import (
	"context"
	"time"

	"github.com/harrison/testflow/internal/models"
)

// runSession executes the plan's phases strictly in order. Each phase is
// a barrier: all of its suites finish before the next phase starts.
// Cancellation is checked at phase boundaries and before each suite
// launch; in-flight suite calls are never preempted.
func (o *Orchestrator) runSession(ctx context.Context, item *models.QueueItem) {
	session := item.Session

	suites := make(map[string]models.TestSuiteConfig)
	for _, s := range session.Configuration.EnabledSuites() {
		suites[s.ID] = s
	}

	// Suites that failed, errored, or were skipped; their dependents are
	// skipped without invoking the runner.
	blocked := make(map[string]bool)

	cancelled := false
	for _, phase := range item.Plan.Phases {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		o.executePhase(ctx, session, phase, suites, blocked)
		if ctx.Err() != nil {
			cancelled = true
			break
		}
	}

	o.finishSession(session, cancelled)
}

// executePhase runs a phase's suites concurrently up to the phase's
// concurrency cap, after filtering out suites whose dependencies are
// blocked.
func (o *Orchestrator) executePhase(ctx context.Context, session *models.TestSession, phase models.ExecutionPhase, suites map[string]models.TestSuiteConfig, blocked map[string]bool) {
	var toRun []models.TestSuiteConfig
	for _, id := range phase.Suites {
		suite, exists := suites[id]
		if !exists {
			continue
		}
		if dep := blockedDependency(suite, blocked); dep != "" {
			blocked[id] = true
			o.recordResult(session, models.TestResult{
				SuiteID: id,
				Status:  models.SuiteSkipped,
				Message: "skipped: dependency " + dep + " did not pass",
			})
			continue
		}
		toRun = append(toRun, suite)
	}
	if len(toRun) == 0 {
		return
	}

	maxConcurrency := phase.MaxConcurrency
	if maxConcurrency <= 0 || maxConcurrency > len(toRun) {
		maxConcurrency = len(toRun)
	}

	semaphore := make(chan struct{}, maxConcurrency)
	results := make(chan models.TestResult, len(toRun))
	launched := 0

launch:
	for _, suite := range toRun {
		// Check the context before blocking on a semaphore slot so a
		// cancelled session stops launching promptly.
		select {
		case <-ctx.Done():
			break launch
		case semaphore <- struct{}{}:
		}

		launched++
		go func(sc models.TestSuiteConfig) {
			defer func() { <-semaphore }()
			results <- o.runSuite(ctx, sc)
		}(suite)
	}

	// Phase barrier: wait for every launched suite.
	for i := 0; i < launched; i++ {
		result := <-results
		if result.Failed() {
			blocked[result.SuiteID] = true
		}
		o.recordResult(session, result)
	}
}

// runSuite invokes the external runner and normalizes its result. Runner
// errors become error-status results; suite failures are already data.
func (o *Orchestrator) runSuite(ctx context.Context, suite models.TestSuiteConfig) models.TestResult {
	start := time.Now()
	result, err := o.runner.RunSuite(ctx, suite)
	if err != nil {
		result = models.TestResult{
			SuiteID: suite.ID,
			Status:  models.SuiteError,
			Message: err.Error(),
		}
	}
	if result.SuiteID == "" {
		result.SuiteID = suite.ID
	}
	if result.Status == "" {
		result.Status = models.SuiteError
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}

// recordResult appends a suite result, updates progress, and publishes
// ProgressUpdated. Results arriving after the session turned terminal
// (cancelled mid-suite) are dropped to keep terminal sessions immutable.
func (o *Orchestrator) recordResult(session *models.TestSession, result models.TestResult) {
	o.mu.Lock()
	if session.Status.Terminal() {
		o.mu.Unlock()
		return
	}

	session.Results = append(session.Results, result)
	switch {
	case result.Status == models.SuiteSkipped:
		session.Progress.SkippedSuites++
	case result.Failed():
		session.Progress.FailedSuites++
	default:
		session.Progress.CompletedSuites++
	}
	if total := session.Progress.TotalSuites; total > 0 {
		finished := session.Progress.CompletedSuites + session.Progress.FailedSuites + session.Progress.SkippedSuites
		session.Progress.OverallProgress = float64(finished) / float64(total) * 100
	} else {
		session.Progress.OverallProgress = 100
	}
	progress := session.Progress
	o.mu.Unlock()

	o.infof("suite %s: %s (%s)", result.SuiteID, result.Status, result.Duration.Round(time.Millisecond))
	o.events.publish(ProgressUpdated{SessionID: session.ID, Progress: progress})
}

// blockedDependency returns the first dependency of the suite that is
// blocked, or empty when all dependencies passed.
func blockedDependency(suite models.TestSuiteConfig, blocked map[string]bool) string {
	for _, dep := range suite.DependsOn {
		if blocked[dep] {
			return dep
		}
	}
	return ""
}
