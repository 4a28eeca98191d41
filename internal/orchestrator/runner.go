package orchestrator

import (
	"context"

	"github.com/harrison/testflow/internal/models"
)

// SuiteRunner executes a single test suite. Implementations are external
// collaborators; the orchestrator treats suite execution as opaque.
//
// Cancellation is cooperative: the orchestrator only checks for
// cancellation at suite and phase boundaries, so a runner must honor
// ctx.Done() between its own internal steps for stop requests to take
// effect promptly. Errors returned here mean the suite could not run;
// test failures inside a suite are reported through TestResult.Status.
type SuiteRunner interface {
	RunSuite(ctx context.Context, suite models.TestSuiteConfig) (models.TestResult, error)
}

// SuiteRunnerFunc adapts a function to the SuiteRunner interface.
type SuiteRunnerFunc func(ctx context.Context, suite models.TestSuiteConfig) (models.TestResult, error)

// RunSuite implements SuiteRunner.
func (f SuiteRunnerFunc) RunSuite(ctx context.Context, suite models.TestSuiteConfig) (models.TestResult, error) {
	return f(ctx, suite)
}

// Logger is the logging surface the orchestrator uses. It may be nil;
// all call sites check before use.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Recorder persists terminal sessions, typically to the history store.
// Recording failures are logged, never fatal to the orchestrator.
type Recorder interface {
	RecordSession(session models.TestSession) error
}
