// Package queue holds pending (session, plan) work items ordered by
// priority with FIFO tie-break among equal priorities, and reports size
// and health metrics for admission monitoring.
package queue

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/harrison/testflow/internal/models"
)

const (
	// DefaultMaxQueueSize bounds the queue when no capacity is supplied.
	DefaultMaxQueueSize = 1000

	// DefaultStaleThreshold is how long the oldest waiting item may sit
	// before the queue reports critical health.
	DefaultStaleThreshold = 10 * time.Minute

	warningOccupancy  = 0.6
	criticalOccupancy = 0.9
)

// Health status constants.
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Metrics is a snapshot of queue counters.
type Metrics struct {
	TotalItems              int64         // Monotonic count of all enqueues ever
	WaitingItems            int           // Items currently waiting
	EstimatedProcessingTime time.Duration // Sum of waiting items' estimates
}

// Health is the queue's self-assessment for admission monitoring.
type Health struct {
	Status string   // healthy, warning, or critical
	Issues []string // Human-readable descriptions of detected conditions
}

// entry wraps a queue item with the bookkeeping the heap needs.
type entry struct {
	item  *models.QueueItem
	seq   int64 // Insertion order; breaks priority ties FIFO
	index int   // Heap index, maintained by the heap interface
}

// itemHeap is a max-heap on priority with FIFO tie-break.
type itemHeap []*entry

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority > h[j].item.Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// ExecutionQueue is a bounded priority queue of pending work items. It is
// safe for concurrent use; submission and the scheduler loop run on
// different goroutines.
type ExecutionQueue struct {
	mu             sync.Mutex
	items          itemHeap
	maxSize        int
	staleThreshold time.Duration
	seq            int64
	totalEnqueued  int64
}

// New creates a queue bounded at maxSize items. Non-positive sizes fall
// back to DefaultMaxQueueSize.
func New(maxSize int) *ExecutionQueue {
	if maxSize <= 0 {
		maxSize = DefaultMaxQueueSize
	}
	return &ExecutionQueue{
		maxSize:        maxSize,
		staleThreshold: DefaultStaleThreshold,
	}
}

// SetStaleThreshold overrides the staleness threshold used by Health.
func (q *ExecutionQueue) SetStaleThreshold(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if d > 0 {
		q.staleThreshold = d
	}
}

// Enqueue inserts an item keyed by its priority. At capacity it fails
// with a FullError and leaves the queue unchanged.
func (q *ExecutionQueue) Enqueue(item *models.QueueItem) error {
	if item == nil {
		return fmt.Errorf("queue item cannot be nil")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.maxSize {
		return NewFullError(q.maxSize)
	}

	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}

	q.seq++
	q.totalEnqueued++
	heap.Push(&q.items, &entry{item: item, seq: q.seq})
	return nil
}

// Dequeue pops the highest-priority, earliest-inserted item, or nil when
// the queue is empty.
func (q *ExecutionQueue) Dequeue() *models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(&q.items).(*entry).item
}

// Remove extracts the waiting item for the given session id, if present.
// Used when a pending session is stopped before admission.
func (q *ExecutionQueue) Remove(sessionID string) *models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.items {
		if e.item.Session != nil && e.item.Session.ID == sessionID {
			heap.Remove(&q.items, e.index)
			return e.item
		}
	}
	return nil
}

// Size returns the current number of waiting items.
func (q *ExecutionQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Capacity returns the queue's maximum size.
func (q *ExecutionQueue) Capacity() int {
	return q.maxSize
}

// GetMetrics returns a snapshot of queue counters.
func (q *ExecutionQueue) GetMetrics() Metrics {
	q.mu.Lock()
	defer q.mu.Unlock()

	m := Metrics{
		TotalItems:   q.totalEnqueued,
		WaitingItems: len(q.items),
	}
	for _, e := range q.items {
		m.EstimatedProcessingTime += e.item.EstimatedDuration
	}
	return m
}

// GetHealth assesses queue health. Warning starts at 60% occupancy;
// critical at 90% occupancy or when the oldest waiting item has exceeded
// the staleness threshold. Issues list each detected condition.
func (q *ExecutionQueue) GetHealth() Health {
	q.mu.Lock()
	defer q.mu.Unlock()

	h := Health{Status: HealthHealthy}
	occupancy := float64(len(q.items)) / float64(q.maxSize)

	if occupancy >= criticalOccupancy {
		h.Status = HealthCritical
		h.Issues = append(h.Issues, fmt.Sprintf("queue at %d/%d capacity", len(q.items), q.maxSize))
	} else if occupancy >= warningOccupancy {
		h.Status = HealthWarning
		h.Issues = append(h.Issues, fmt.Sprintf("queue occupancy high: %d/%d", len(q.items), q.maxSize))
	}

	if oldest := q.oldestLocked(); oldest != nil {
		if age := time.Since(oldest.EnqueuedAt); age > q.staleThreshold {
			h.Status = HealthCritical
			h.Issues = append(h.Issues, fmt.Sprintf("oldest waiting item is %s old (threshold %s)",
				age.Round(time.Second), q.staleThreshold))
		}
	}

	return h
}

func (q *ExecutionQueue) oldestLocked() *models.QueueItem {
	var oldest *models.QueueItem
	for _, e := range q.items {
		if oldest == nil || e.item.EnqueuedAt.Before(oldest.EnqueuedAt) {
			oldest = e.item
		}
	}
	return oldest
}
