// Package orchestrator coordinates test session execution: it turns a
// configuration into an execution plan, gates admission on resource
// availability, drives phase-by-phase execution through an external
// suite-runner collaborator, and publishes lifecycle events.
//
// Orchestrators are explicitly constructed, caller-owned objects; multiple
// independent instances can coexist (each owns its pool, queue, and
// session registry).
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/testflow/internal/models"
	"github.com/harrison/testflow/internal/queue"
	"github.com/harrison/testflow/internal/resolver"
	"github.com/harrison/testflow/internal/resources"
)

// Defaults for Options fields left zero.
const (
	DefaultMaxConcurrentSessions = 3
	DefaultAdmissionRetryLimit   = 10
	DefaultAdmissionRetryDelay   = 500 * time.Millisecond
)

// Options configures an Orchestrator.
type Options struct {
	// MaxConcurrentSessions caps sessions executing at once.
	MaxConcurrentSessions int

	// MaxConcurrencyPerPhase caps suites per execution phase.
	MaxConcurrencyPerPhase int

	// QueueSize bounds the pending-session queue.
	QueueSize int

	// AdmissionRetryLimit bounds how often a session may fail resource
	// admission before it is marked failed.
	AdmissionRetryLimit int

	// AdmissionRetryDelay is the pause before a rejected session is
	// re-enqueued at its original priority.
	AdmissionRetryDelay time.Duration

	// Limits are the pool's per-dimension capacity limits.
	Limits models.ResourceRequirements
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrentSessions <= 0 {
		o.MaxConcurrentSessions = DefaultMaxConcurrentSessions
	}
	if o.MaxConcurrencyPerPhase <= 0 {
		o.MaxConcurrencyPerPhase = resolver.DefaultMaxConcurrencyPerPhase
	}
	if o.QueueSize <= 0 {
		o.QueueSize = queue.DefaultMaxQueueSize
	}
	if o.AdmissionRetryLimit <= 0 {
		o.AdmissionRetryLimit = DefaultAdmissionRetryLimit
	}
	if o.AdmissionRetryDelay <= 0 {
		o.AdmissionRetryDelay = DefaultAdmissionRetryDelay
	}
	return o
}

// Orchestrator is the top-level coordinator. It exclusively owns the
// session registry and is the only writer of session status.
type Orchestrator struct {
	opts     Options
	pool     *resources.Pool
	queue    *queue.ExecutionQueue
	runner   SuiteRunner
	logger   Logger
	recorder Recorder
	events   *bus

	mu       sync.RWMutex
	sessions map[string]*models.TestSession
	cancels  map[string]context.CancelFunc
	active   int

	wake       chan struct{}
	done       chan struct{}
	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// New creates an orchestrator and starts its scheduling loop. The runner
// is required; logger and recorder are optional.
func New(runner SuiteRunner, opts Options, logger Logger) *Orchestrator {
	if runner == nil {
		panic("suite runner cannot be nil")
	}

	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	o := &Orchestrator{
		opts:       opts,
		pool:       resources.NewPool(opts.Limits, logger),
		queue:      queue.New(opts.QueueSize),
		runner:     runner,
		logger:     logger,
		events:     newBus(),
		sessions:   make(map[string]*models.TestSession),
		cancels:    make(map[string]context.CancelFunc),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		rootCtx:    ctx,
		rootCancel: cancel,
	}

	go o.schedule()
	return o
}

// SetRecorder wires a session recorder. Must be called before sessions
// are started.
func (o *Orchestrator) SetRecorder(r Recorder) {
	o.recorder = r
}

// Subscribe returns a channel of lifecycle events. The channel is closed
// when the orchestrator shuts down; slow subscribers miss events rather
// than blocking the scheduler.
func (o *Orchestrator) Subscribe() <-chan Event {
	return o.events.subscribe()
}

// Pool exposes the resource pool for observation (availability snapshots,
// utilization, prediction).
func (o *Orchestrator) Pool() *resources.Pool {
	return o.pool
}

// Queue exposes the execution queue for observation (metrics, health).
func (o *Orchestrator) Queue() *queue.ExecutionQueue {
	return o.queue
}

// StartTestSession validates the configuration, computes the execution
// plan, registers a pending session, and enqueues it for admission. The
// session id is returned synchronously; execution happens asynchronously.
// A full queue returns a queue.FullError and creates no session.
// Configuration and resolution problems do not return errors: they are
// recorded on the session, which is created in the failed state.
func (o *Orchestrator) StartTestSession(cfg models.TestConfiguration) (string, error) {
	if err := o.rootCtx.Err(); err != nil {
		return "", fmt.Errorf("orchestrator is shut down")
	}

	now := time.Now()
	session := &models.TestSession{
		ID:              uuid.NewString(),
		ConfigurationID: cfg.ID,
		Configuration:   cfg,
		Status:          models.SessionPending,
		CreatedAt:       now,
	}
	session.Progress.TotalSuites = len(cfg.EnabledSuites())

	if err := cfg.Validate(); err != nil {
		return o.registerFailed(session, "configuration", err), nil
	}
	if cycle := resolver.DetectCycles(cfg.Suites); len(cycle) > 0 {
		err := fmt.Errorf("circular dependency: %s", strings.Join(cycle, " -> "))
		return o.registerFailed(session, "resolution", err), nil
	}
	graph, err := resolver.BuildGraph(cfg.Suites)
	if err != nil {
		return o.registerFailed(session, "resolution", err), nil
	}

	concurrency := cfg.ConcurrencyLevel
	if concurrency <= 0 {
		concurrency = o.opts.MaxConcurrencyPerPhase
	}
	plan := buildPlan(session.ID, graph, concurrency)

	item := &models.QueueItem{
		Session:           session,
		Plan:              plan,
		Priority:          cfg.Priority,
		EstimatedDuration: plan.TotalEstimatedDuration,
		EnqueuedAt:        now,
	}
	if err := o.queue.Enqueue(item); err != nil {
		return "", err
	}

	o.mu.Lock()
	o.sessions[session.ID] = session
	o.mu.Unlock()

	o.infof("session %s queued (%d suites, priority %d)", session.ID, session.Progress.TotalSuites, cfg.Priority)
	o.nudge()
	return session.ID, nil
}

// registerFailed records a session that could not proceed at all.
func (o *Orchestrator) registerFailed(session *models.TestSession, stage string, cause error) string {
	now := time.Now()
	session.Errors = append(session.Errors, models.SessionError{
		Stage:   stage,
		Message: cause.Error(),
		Time:    now,
	})
	session.Status = models.SessionFailed
	session.EndedAt = &now

	o.mu.Lock()
	o.sessions[session.ID] = session
	snapshot := session.Snapshot()
	o.mu.Unlock()

	o.warnf("session %s failed during %s: %v", session.ID, stage, cause)
	o.events.publish(SessionCompleted{SessionID: session.ID, Session: snapshot})
	o.record(snapshot)
	return session.ID
}

// GetTestSession returns a snapshot of the session with the given id.
func (o *Orchestrator) GetTestSession(id string) (models.TestSession, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	session, exists := o.sessions[id]
	if !exists {
		return models.TestSession{}, fmt.Errorf("session %s not found", id)
	}
	return session.Snapshot(), nil
}

// GetAllSessions returns snapshots of every known session, ordered by
// creation time.
func (o *Orchestrator) GetAllSessions() []models.TestSession {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]models.TestSession, 0, len(o.sessions))
	for _, s := range o.sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// GetActiveSessions returns snapshots of sessions currently running.
func (o *Orchestrator) GetActiveSessions() []models.TestSession {
	var out []models.TestSession
	for _, s := range o.GetAllSessions() {
		if s.Status == models.SessionRunning {
			out = append(out, s)
		}
	}
	return out
}

// StopTestSession cancels a pending or running session. Pending sessions
// are removed from the queue; running sessions get cooperative
// cancellation checked at suite and phase boundaries, and their resource
// reservation is released immediately. Terminal sessions are unaffected.
func (o *Orchestrator) StopTestSession(id string) error {
	o.mu.Lock()
	session, exists := o.sessions[id]
	if !exists {
		o.mu.Unlock()
		return fmt.Errorf("session %s not found", id)
	}
	if session.Status.Terminal() {
		o.mu.Unlock()
		return nil
	}

	wasRunning := session.Status == models.SessionRunning
	cancel := o.cancels[id]

	now := time.Now()
	session.Status = models.SessionCancelled
	session.EndedAt = &now
	if session.StartedAt != nil {
		session.Metrics.Execution = now.Sub(*session.StartedAt)
	}
	snapshot := session.Snapshot()
	o.mu.Unlock()

	if wasRunning {
		o.pool.Release(id)
		if cancel != nil {
			cancel()
		}
	} else {
		o.queue.Remove(id)
	}

	o.infof("session %s cancelled", id)
	o.events.publish(SessionCancelled{SessionID: id, Session: snapshot})
	o.record(snapshot)
	o.nudge()
	return nil
}

// Close shuts the orchestrator down: the scheduler stops, running
// sessions are cancelled cooperatively, the pool is destroyed, and the
// event bus is closed. Idempotent.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.rootCancel()
		<-o.done
		o.wg.Wait()
		o.pool.Destroy()
		o.events.close()
	})
}

func (o *Orchestrator) nudge() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) infof(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Infof(format, args...)
	}
}

func (o *Orchestrator) warnf(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Warnf(format, args...)
	}
}

func (o *Orchestrator) record(session models.TestSession) {
	if o.recorder == nil || !session.Status.Terminal() {
		return
	}
	if err := o.recorder.RecordSession(session); err != nil {
		o.warnf("failed to record session %s: %v", session.ID, err)
	}
}
