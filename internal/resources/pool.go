// Package resources tracks available capacity across named resource
// dimensions and performs atomic reserve/release with admission checks.
// The pool's counters are the only cross-session shared mutable state in
// the system, so every operation is serialized behind a single mutex.
package resources

import (
	"fmt"
	"sync"
	"time"

	"github.com/harrison/testflow/internal/models"
)

// Logger is the minimal logging surface the pool needs. Implementations
// may be nil; the pool checks before use.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Pool tracks fixed per-dimension capacity limits and the live available
// counters, plus one active reservation per session id.
type Pool struct {
	mu          sync.Mutex
	total       models.ResourceRequirements
	available   models.ResourceRequirements
	allocations map[string]models.ResourceRequirements
	logger      Logger
	destroyed   bool
}

// NewPool creates a pool with the given per-dimension limits. Available
// capacity starts equal to the limits. The logger is optional.
func NewPool(limits models.ResourceRequirements, logger Logger) *Pool {
	return &Pool{
		total:       limits,
		available:   limits,
		allocations: make(map[string]models.ResourceRequirements),
		logger:      logger,
	}
}

// Reserve atomically checks every dimension and either allocates the full
// request or makes no allocation at all. A shortfall in any dimension
// fails with an InsufficientResourcesError naming the exceeded dimensions.
// A session may hold at most one reservation; re-reserving without
// releasing is an error.
func (p *Pool) Reserve(sessionID string, req models.ResourceRequirements) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return fmt.Errorf("resource pool is destroyed")
	}
	if _, held := p.allocations[sessionID]; held {
		return fmt.Errorf("session %s already holds a reservation", sessionID)
	}

	if exceeded := req.Exceeds(p.available); len(exceeded) > 0 {
		return NewInsufficientResourcesError(sessionID, exceeded, req, p.available)
	}

	p.available = p.available.Sub(req)
	p.allocations[sessionID] = req
	return nil
}

// Release restores the capacity recorded for the session and clears the
// reservation. An unknown session id is a no-op, logged but not fatal.
func (p *Pool) Release(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	alloc, held := p.allocations[sessionID]
	if !held {
		if p.logger != nil {
			p.logger.Warnf("release for session %s ignored: no active reservation", sessionID)
		}
		return
	}

	p.available = p.available.Add(alloc)
	delete(p.allocations, sessionID)
}

// Total returns a snapshot of the pool's capacity limits.
func (p *Pool) Total() models.ResourceRequirements {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Available returns a snapshot of the currently available capacity.
func (p *Pool) Available() models.ResourceRequirements {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// Reserved returns the reservation held by the session, if any.
func (p *Pool) Reserved(sessionID string) (models.ResourceRequirements, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	alloc, held := p.allocations[sessionID]
	return alloc, held
}

// Utilization returns the mean fractional usage across dimensions with a
// non-zero limit, in [0, 1].
func (p *Pool) Utilization() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.utilizationLocked()
}

func (p *Pool) utilizationLocked() float64 {
	totals := p.total.Dimensions()
	avails := p.available.Dimensions()

	var sum float64
	count := 0
	for i, d := range totals {
		if d.Value <= 0 {
			continue
		}
		sum += (d.Value - avails[i].Value) / d.Value
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// PredictAvailability estimates the probability, in [0, 1], that the
// request can be satisfied within the time window. When the request fits
// right now the probability is high, scaled down by current utilization.
// When it does not fit, 1 - utilization serves as a proxy for the
// likelihood that enough capacity is released within the window; a
// non-positive window leaves no room for releases and predicts zero.
func (p *Pool) PredictAvailability(req models.ResourceRequirements, window time.Duration) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	util := p.utilizationLocked()

	if len(req.Exceeds(p.available)) == 0 {
		return clamp01(0.95 - 0.25*util)
	}
	if window <= 0 {
		return 0
	}
	return clamp01(1 - util)
}

// Destroy releases the pool's internal state. Idempotent; subsequent
// reservations fail and releases are no-ops.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return
	}
	p.destroyed = true
	p.allocations = make(map[string]models.ResourceRequirements)
	p.available = p.total
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
