package models

import "time"

// Suite result status constants.
const (
	SuitePassed  = "passed"  // Suite ran and all cases passed
	SuiteFailed  = "failed"  // Suite ran and at least one case failed
	SuiteError   = "error"   // Suite could not run to completion
	SuiteSkipped = "skipped" // Suite was not run because a dependency failed
)

// TestResult is the outcome of running a single suite, as reported by the
// suite-runner collaborator (or synthesized for skipped suites).
type TestResult struct {
	SuiteID  string
	Status   string // passed, failed, error, skipped
	Message  string
	Duration time.Duration
	Details  map[string]string // Optional runner-specific detail fields
}

// Passed reports whether the result counts as a success.
func (r TestResult) Passed() bool {
	return r.Status == SuitePassed
}

// Failed reports whether the result counts as a failure (failed or error).
func (r TestResult) Failed() bool {
	return r.Status == SuiteFailed || r.Status == SuiteError
}
