package models

import "time"

// SessionStatus is the lifecycle state of a test session.
type SessionStatus string

// Session lifecycle states. Completed, failed, and cancelled are terminal.
const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionCancelled
}

// SessionProgress tracks suite completion counts for a session.
type SessionProgress struct {
	TotalSuites     int
	CompletedSuites int // Suites that ran and passed
	FailedSuites    int
	SkippedSuites   int
	OverallProgress float64 // 0-100; 100 for empty configurations
}

// SessionMetrics summarizes timing and outcomes once a session is terminal.
type SessionMetrics struct {
	QueueWait time.Duration // Time between enqueue and admission
	Execution time.Duration // Time between admission and terminal state
	PassRate  float64       // Passed suites / total, 0-1; 1.0 for empty sessions
}

// SessionError is a non-fatal error recorded against a session. Errors are
// data on the session, not panics or aborts of the orchestrator.
type SessionError struct {
	Stage   string // Where the error occurred: "configuration", "resolution", "admission", "suite"
	SuiteID string // Affected suite, if any
	Message string
	Time    time.Time
}

// TestSession is the orchestrator's record of one submitted configuration.
// The orchestrator is the only writer; accessors hand out snapshots.
type TestSession struct {
	ID              string
	ConfigurationID string
	Configuration   TestConfiguration
	Status          SessionStatus
	Progress        SessionProgress
	Results         []TestResult
	Errors          []SessionError
	Metrics         SessionMetrics
	ResourceUsage   ResourceRequirements // Capacity reserved while the session ran
	CreatedAt       time.Time
	StartedAt       *time.Time
	EndedAt         *time.Time
}

// Snapshot returns a copy of the session safe to read while the scheduler
// keeps mutating the original. Slices are copied; the configuration is
// immutable by contract and shared.
func (s *TestSession) Snapshot() TestSession {
	out := *s
	if s.Results != nil {
		out.Results = make([]TestResult, len(s.Results))
		copy(out.Results, s.Results)
	}
	if s.Errors != nil {
		out.Errors = make([]SessionError, len(s.Errors))
		copy(out.Errors, s.Errors)
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return out
}
