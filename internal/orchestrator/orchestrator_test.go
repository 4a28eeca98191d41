package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/testflow/internal/models"
	"github.com/harrison/testflow/internal/queue"
)

// fakeRunner is a controllable SuiteRunner for tests.
type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	outcomes map[string]string // suite id -> result status, default passed
	gate     chan struct{}     // when non-nil, suites wait here (or on ctx)
}

func (f *fakeRunner) RunSuite(ctx context.Context, suite models.TestSuiteConfig) (models.TestResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, suite.ID)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.TestResult{}, ctx.Err()
		}
	}

	status := models.SuitePassed
	f.mu.Lock()
	if s, ok := f.outcomes[suite.ID]; ok {
		status = s
	}
	f.mu.Unlock()

	return models.TestResult{
		SuiteID:  suite.ID,
		Status:   status,
		Duration: time.Millisecond,
	}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func bigLimits() models.ResourceRequirements {
	return models.ResourceRequirements{MemoryMB: 8192, CPUCores: 16, NetworkMbps: 1000, StorageMB: 10240, ConcurrentUsers: 500}
}

func testOptions() Options {
	return Options{
		MaxConcurrentSessions: 3,
		AdmissionRetryLimit:   3,
		AdmissionRetryDelay:   10 * time.Millisecond,
		Limits:                bigLimits(),
	}
}

func enabledSuite(id string, deps ...string) models.TestSuiteConfig {
	return models.TestSuiteConfig{
		ID:                id,
		Name:              id,
		Enabled:           true,
		EstimatedDuration: time.Second,
		Resources:         models.ResourceRequirements{MemoryMB: 64},
		DependsOn:         deps,
	}
}

func firebaseConfig() models.TestConfiguration {
	return models.TestConfiguration{
		ID: "firebase-regression",
		Suites: []models.TestSuiteConfig{
			enabledSuite("firebase-auth"),
			enabledSuite("ui-components"),
			enabledSuite("firebase-firestore", "firebase-auth"),
			enabledSuite("websocket-connection", "firebase-auth"),
			enabledSuite("booking-workflows", "firebase-auth", "firebase-firestore", "websocket-connection"),
		},
	}
}

func waitForStatus(t *testing.T, o *Orchestrator, id string, want models.SessionStatus) models.TestSession {
	t.Helper()
	var session models.TestSession
	require.Eventually(t, func() bool {
		s, err := o.GetTestSession(id)
		if err != nil {
			return false
		}
		session = s
		return s.Status == want
	}, 5*time.Second, 5*time.Millisecond, "session %s never reached %s (last: %+v)", id, want, session.Status)
	return session
}

func TestZeroSuiteSessionCompletes(t *testing.T) {
	runner := &fakeRunner{}
	o := New(runner, testOptions(), nil)
	defer o.Close()

	id, err := o.StartTestSession(models.TestConfiguration{ID: "empty"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	session := waitForStatus(t, o, id, models.SessionCompleted)
	assert.Equal(t, float64(100), session.Progress.OverallProgress)
	assert.Equal(t, 1.0, session.Metrics.PassRate)
	assert.Zero(t, runner.callCount(), "runner must not be invoked for empty configurations")
	assert.NotNil(t, session.EndedAt)
}

func TestSessionRespectsDependencyOrder(t *testing.T) {
	runner := &fakeRunner{}
	o := New(runner, testOptions(), nil)
	defer o.Close()

	id, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)

	session := waitForStatus(t, o, id, models.SessionCompleted)
	assert.Equal(t, 5, session.Progress.CompletedSuites)
	assert.Len(t, session.Results, 5)

	order := runner.callOrder()
	pos := make(map[string]int, len(order))
	for i, suiteID := range order {
		pos[suiteID] = i
	}
	for _, dep := range []string{"firebase-auth", "firebase-firestore", "websocket-connection"} {
		assert.Greater(t, pos["booking-workflows"], pos[dep],
			"booking-workflows must run after %s", dep)
	}
}

func TestSuiteFailureSkipsDependents(t *testing.T) {
	runner := &fakeRunner{outcomes: map[string]string{"firebase-auth": models.SuiteFailed}}
	o := New(runner, testOptions(), nil)
	defer o.Close()

	id, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)

	// Partial suite failure still ends in completed.
	session := waitForStatus(t, o, id, models.SessionCompleted)

	assert.Equal(t, 1, session.Progress.CompletedSuites, "ui-components still passes")
	assert.Equal(t, 1, session.Progress.FailedSuites)
	assert.Equal(t, 3, session.Progress.SkippedSuites, "all transitive dependents are skipped")
	assert.Equal(t, float64(100), session.Progress.OverallProgress)

	statuses := make(map[string]string)
	for _, r := range session.Results {
		statuses[r.SuiteID] = r.Status
	}
	assert.Equal(t, models.SuiteSkipped, statuses["firebase-firestore"])
	assert.Equal(t, models.SuiteSkipped, statuses["booking-workflows"])
	assert.Equal(t, models.SuitePassed, statuses["ui-components"])
}

func TestStopRunningSession(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	o := New(runner, testOptions(), nil)
	defer o.Close()

	id, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)
	waitForStatus(t, o, id, models.SessionRunning)

	require.NoError(t, o.StopTestSession(id))

	session, err := o.GetTestSession(id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, session.Status)
	assert.NotNil(t, session.EndedAt, "cancelled sessions get an end time")

	// Reserved resources are visibly released.
	assert.Eventually(t, func() bool {
		return o.Pool().Available() == bigLimits()
	}, time.Second, 5*time.Millisecond)

	// Stopping a terminal session has no effect.
	require.NoError(t, o.StopTestSession(id))
	again, err := o.GetTestSession(id)
	require.NoError(t, err)
	assert.Equal(t, session.EndedAt.UnixNano(), again.EndedAt.UnixNano())
}

func TestStopPendingSession(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	opts := testOptions()
	opts.MaxConcurrentSessions = 1
	o := New(runner, opts, nil)
	defer o.Close()

	first, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)
	waitForStatus(t, o, first, models.SessionRunning)

	second, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)

	require.NoError(t, o.StopTestSession(second))
	session, err := o.GetTestSession(second)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, session.Status)
	assert.NotNil(t, session.EndedAt)
	assert.Zero(t, o.Queue().Size(), "cancelled pending session leaves the queue")
}

func TestMaxConcurrentSessions(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	opts := testOptions()
	opts.MaxConcurrentSessions = 1
	o := New(runner, opts, nil)
	defer o.Close()

	first, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)
	waitForStatus(t, o, first, models.SessionRunning)

	second, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)

	// The second session stays pending while the first holds the slot.
	time.Sleep(50 * time.Millisecond)
	session, err := o.GetTestSession(second)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPending, session.Status)
	assert.Len(t, o.GetActiveSessions(), 1)

	close(runner.gate)
	waitForStatus(t, o, first, models.SessionCompleted)
	waitForStatus(t, o, second, models.SessionCompleted)
}

func TestQueueFullRejectsWithoutSession(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	opts := testOptions()
	opts.MaxConcurrentSessions = 1
	opts.QueueSize = 1
	o := New(runner, opts, nil)
	defer o.Close()

	first, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)
	waitForStatus(t, o, first, models.SessionRunning)

	_, err = o.StartTestSession(firebaseConfig())
	require.NoError(t, err, "one item fits the queue")

	id, err := o.StartTestSession(firebaseConfig())
	require.Error(t, err)
	assert.True(t, queue.IsFull(err))
	assert.Empty(t, id)
	assert.Len(t, o.GetAllSessions(), 2, "rejected start must not create a session")

	close(runner.gate)
}

func TestInvalidConfigurationMarksSessionFailed(t *testing.T) {
	runner := &fakeRunner{}
	o := New(runner, testOptions(), nil)
	defer o.Close()

	cfg := models.TestConfiguration{
		ID:     "broken",
		Suites: []models.TestSuiteConfig{enabledSuite("a", "does-not-exist")},
	}

	id, err := o.StartTestSession(cfg)
	require.NoError(t, err, "resolution errors are recorded, not thrown")

	session := waitForStatus(t, o, id, models.SessionFailed)
	require.NotEmpty(t, session.Errors)
	assert.Equal(t, "resolution", session.Errors[0].Stage)
	assert.Zero(t, runner.callCount())
}

func TestCyclicConfigurationMarksSessionFailed(t *testing.T) {
	runner := &fakeRunner{}
	o := New(runner, testOptions(), nil)
	defer o.Close()

	cfg := models.TestConfiguration{
		ID: "cyclic",
		Suites: []models.TestSuiteConfig{
			enabledSuite("a", "b"),
			enabledSuite("b", "a"),
		},
	}

	id, err := o.StartTestSession(cfg)
	require.NoError(t, err)

	session := waitForStatus(t, o, id, models.SessionFailed)
	require.NotEmpty(t, session.Errors)
	assert.Contains(t, session.Errors[0].Message, "circular dependency")
}

func TestAdmissionRetryBudgetExhausted(t *testing.T) {
	runner := &fakeRunner{}
	opts := testOptions()
	opts.Limits = models.ResourceRequirements{MemoryMB: 10}
	opts.AdmissionRetryLimit = 2
	opts.AdmissionRetryDelay = 5 * time.Millisecond
	o := New(runner, opts, nil)
	defer o.Close()

	cfg := models.TestConfiguration{
		ID:     "oversized",
		Suites: []models.TestSuiteConfig{enabledSuite("hungry")},
	}
	// The suite needs more memory than the pool will ever have.
	cfg.Suites[0].Resources = models.ResourceRequirements{MemoryMB: 100}

	id, err := o.StartTestSession(cfg)
	require.NoError(t, err)

	session := waitForStatus(t, o, id, models.SessionFailed)
	require.NotEmpty(t, session.Errors)
	assert.Equal(t, "admission", session.Errors[0].Stage)
	assert.Zero(t, runner.callCount())
}

func TestAdmissionRetriesUntilResourcesFree(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	opts := testOptions()
	opts.Limits = models.ResourceRequirements{MemoryMB: 100}
	opts.AdmissionRetryLimit = 50
	opts.AdmissionRetryDelay = 5 * time.Millisecond
	o := New(runner, opts, nil)
	defer o.Close()

	cfg := models.TestConfiguration{
		ID:     "exclusive",
		Suites: []models.TestSuiteConfig{enabledSuite("big")},
	}
	cfg.Suites[0].Resources = models.ResourceRequirements{MemoryMB: 100}

	first, err := o.StartTestSession(cfg)
	require.NoError(t, err)
	waitForStatus(t, o, first, models.SessionRunning)

	second, err := o.StartTestSession(cfg)
	require.NoError(t, err)

	// Second session cannot be admitted while the first holds the pool.
	time.Sleep(30 * time.Millisecond)
	session, err := o.GetTestSession(second)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPending, session.Status)

	close(runner.gate)
	waitForStatus(t, o, first, models.SessionCompleted)
	waitForStatus(t, o, second, models.SessionCompleted)
}

func TestLifecycleEvents(t *testing.T) {
	runner := &fakeRunner{}
	o := New(runner, testOptions(), nil)
	defer o.Close()

	events := o.Subscribe()

	id, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)
	waitForStatus(t, o, id, models.SessionCompleted)

	var started, completed bool
	var progressCount int
	deadline := time.After(2 * time.Second)
	for !completed {
		select {
		case e := <-events:
			switch ev := e.(type) {
			case SessionStarted:
				assert.Equal(t, id, ev.SessionID)
				started = true
			case ProgressUpdated:
				progressCount++
			case SessionCompleted:
				assert.Equal(t, id, ev.SessionID)
				assert.Equal(t, models.SessionCompleted, ev.Session.Status)
				completed = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for lifecycle events")
		}
	}
	assert.True(t, started)
	assert.Equal(t, 5, progressCount, "one progress event per suite")
}

func TestCancelledEventEmitted(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	o := New(runner, testOptions(), nil)
	defer o.Close()

	events := o.Subscribe()

	id, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)
	waitForStatus(t, o, id, models.SessionRunning)
	require.NoError(t, o.StopTestSession(id))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-events:
			if ev, ok := e.(SessionCancelled); ok {
				assert.Equal(t, id, ev.SessionID)
				assert.Equal(t, models.SessionCancelled, ev.Session.Status)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for SessionCancelled")
		}
	}
}

func TestSessionAccessors(t *testing.T) {
	runner := &fakeRunner{}
	o := New(runner, testOptions(), nil)
	defer o.Close()

	_, err := o.GetTestSession("missing")
	assert.Error(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := o.StartTestSession(models.TestConfiguration{ID: "cfg"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for _, id := range ids {
		waitForStatus(t, o, id, models.SessionCompleted)
	}

	all := o.GetAllSessions()
	assert.Len(t, all, 3)
	assert.Empty(t, o.GetActiveSessions())
}

type recordingSink struct {
	mu       sync.Mutex
	sessions []models.TestSession
}

func (r *recordingSink) RecordSession(s models.TestSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
	return nil
}

func TestRecorderReceivesTerminalSessions(t *testing.T) {
	runner := &fakeRunner{}
	o := New(runner, testOptions(), nil)
	defer o.Close()

	sink := &recordingSink{}
	o.SetRecorder(sink)

	id, err := o.StartTestSession(firebaseConfig())
	require.NoError(t, err)
	waitForStatus(t, o, id, models.SessionCompleted)

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.sessions) == 1
	}, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, id, sink.sessions[0].ID)
	assert.Equal(t, models.SessionCompleted, sink.sessions[0].Status)
}
