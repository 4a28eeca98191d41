package orchestrator

import (
	"context"
	"time"

	"github.com/harrison/testflow/internal/models"
	"github.com/harrison/testflow/internal/resources"
)

// schedule is the single admission coordinator. It wakes on new work,
// retries, and session completion, and admits queued sessions while the
// concurrency limit and resource pool allow.
func (o *Orchestrator) schedule() {
	defer close(o.done)

	for {
		select {
		case <-o.rootCtx.Done():
			return
		case <-o.wake:
		}
		o.admitPending()
	}
}

// admitPending dequeues items by priority and attempts resource
// admission. A session that cannot obtain resources is re-enqueued after
// a delay instead of blocking lower-priority sessions that can proceed.
func (o *Orchestrator) admitPending() {
	for {
		o.mu.RLock()
		slots := o.active < o.opts.MaxConcurrentSessions
		o.mu.RUnlock()
		if !slots {
			return
		}

		item := o.queue.Dequeue()
		if item == nil {
			return
		}

		o.mu.RLock()
		terminal := item.Session.Status.Terminal()
		o.mu.RUnlock()
		if terminal {
			// Cancelled while waiting; drop the item.
			continue
		}

		if err := o.pool.Reserve(item.Session.ID, item.Plan.Resources); err != nil {
			if resources.IsInsufficientResources(err) {
				item.Attempts++
				if item.Attempts > o.opts.AdmissionRetryLimit {
					o.failAdmission(item.Session, err)
					continue
				}
				o.requeueLater(item)
				continue
			}
			o.failAdmission(item.Session, err)
			continue
		}

		o.beginSession(item)
	}
}

// requeueLater re-enqueues an item at its original priority after the
// admission retry delay.
func (o *Orchestrator) requeueLater(item *models.QueueItem) {
	o.wg.Add(1)
	time.AfterFunc(o.opts.AdmissionRetryDelay, func() {
		defer o.wg.Done()

		if o.rootCtx.Err() != nil {
			return
		}
		o.mu.RLock()
		terminal := item.Session.Status.Terminal()
		o.mu.RUnlock()
		if terminal {
			return
		}

		if err := o.queue.Enqueue(item); err != nil {
			o.failAdmission(item.Session, err)
			return
		}
		o.nudge()
	})
}

// failAdmission marks a session failed after its admission budget is
// exhausted (or the queue rejected a retry).
func (o *Orchestrator) failAdmission(session *models.TestSession, cause error) {
	now := time.Now()

	o.mu.Lock()
	if session.Status.Terminal() {
		o.mu.Unlock()
		return
	}
	session.Status = models.SessionFailed
	session.EndedAt = &now
	session.Errors = append(session.Errors, models.SessionError{
		Stage:   "admission",
		Message: cause.Error(),
		Time:    now,
	})
	snapshot := session.Snapshot()
	o.mu.Unlock()

	o.warnf("session %s failed admission: %v", session.ID, cause)
	o.events.publish(SessionCompleted{SessionID: session.ID, Session: snapshot})
	o.record(snapshot)
}

// beginSession transitions an admitted session to running and launches
// its execution goroutine.
func (o *Orchestrator) beginSession(item *models.QueueItem) {
	session := item.Session
	now := time.Now()

	o.mu.Lock()
	if session.Status.Terminal() {
		// Cancelled between dequeue and admission.
		o.mu.Unlock()
		o.pool.Release(session.ID)
		return
	}

	session.Status = models.SessionRunning
	session.StartedAt = &now
	session.Metrics.QueueWait = now.Sub(item.EnqueuedAt)
	session.ResourceUsage = item.Plan.Resources

	var ctx context.Context
	var cancel context.CancelFunc
	if timeout := session.Configuration.Timeout; timeout > 0 {
		ctx, cancel = context.WithTimeout(o.rootCtx, timeout)
	} else {
		ctx, cancel = context.WithCancel(o.rootCtx)
	}
	o.cancels[session.ID] = cancel
	o.active++
	o.mu.Unlock()

	o.infof("session %s started (%d phases)", session.ID, len(item.Plan.Phases))
	o.events.publish(SessionStarted{SessionID: session.ID})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.runSession(ctx, item)
	}()
}

// finishSession finalizes a session after its last phase (or after
// cancellation was observed at a boundary), releases resources, and wakes
// the scheduler for the next admission.
func (o *Orchestrator) finishSession(session *models.TestSession, cancelled bool) {
	o.pool.Release(session.ID)

	o.mu.Lock()
	if session.Status.Terminal() {
		// StopTestSession already finalized the session.
		o.active--
		delete(o.cancels, session.ID)
		o.mu.Unlock()
		o.nudge()
		return
	}

	now := time.Now()
	session.EndedAt = &now
	if session.StartedAt != nil {
		session.Metrics.Execution = now.Sub(*session.StartedAt)
	}
	session.Metrics.PassRate = passRate(session)
	if session.Progress.TotalSuites == 0 {
		session.Progress.OverallProgress = 100
	}
	if cancelled {
		session.Status = models.SessionCancelled
	} else {
		// Completed even when some suites failed; failed is reserved for
		// sessions that could not proceed at all.
		session.Status = models.SessionCompleted
	}
	snapshot := session.Snapshot()
	o.active--
	delete(o.cancels, session.ID)
	o.mu.Unlock()

	if cancelled {
		o.infof("session %s cancelled after %s", session.ID, snapshot.Metrics.Execution.Round(time.Millisecond))
		o.events.publish(SessionCancelled{SessionID: session.ID, Session: snapshot})
	} else {
		o.infof("session %s completed: %d passed, %d failed, %d skipped",
			session.ID, snapshot.Progress.CompletedSuites, snapshot.Progress.FailedSuites, snapshot.Progress.SkippedSuites)
		o.events.publish(SessionCompleted{SessionID: session.ID, Session: snapshot})
	}
	o.record(snapshot)
	o.nudge()
}

// passRate computes passed suites over total. Empty sessions count as
// fully passing.
func passRate(session *models.TestSession) float64 {
	total := session.Progress.TotalSuites
	if total == 0 {
		return 1.0
	}
	passed := 0
	for _, r := range session.Results {
		if r.Passed() {
			passed++
		}
	}
	return float64(passed) / float64(total)
}
