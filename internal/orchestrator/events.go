package orchestrator

import (
	"sync"

	"github.com/harrison/testflow/internal/models"
)

// Event is one of the closed set of session lifecycle notifications:
// SessionStarted, ProgressUpdated, SessionCompleted, SessionCancelled.
type Event interface {
	isEvent()
}

// SessionStarted is published when a session is admitted and begins
// executing its first phase.
type SessionStarted struct {
	SessionID string
}

// ProgressUpdated is published after every suite result.
type ProgressUpdated struct {
	SessionID string
	Progress  models.SessionProgress
}

// SessionCompleted is published when a session reaches the completed or
// failed state. The session snapshot carries the terminal status.
type SessionCompleted struct {
	SessionID string
	Session   models.TestSession
}

// SessionCancelled is published when a session is stopped from pending or
// running.
type SessionCancelled struct {
	SessionID string
	Session   models.TestSession
}

func (SessionStarted) isEvent()   {}
func (ProgressUpdated) isEvent()  {}
func (SessionCompleted) isEvent() {}
func (SessionCancelled) isEvent() {}

const eventBuffer = 64

// bus fans events out to subscribers. Publishing never blocks the
// scheduler: a subscriber whose buffer is full misses the event.
type bus struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

func newBus() *bus {
	return &bus{}
}

// subscribe registers a new subscriber channel.
func (b *bus) subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, eventBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// publish delivers the event to every subscriber without blocking.
func (b *bus) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// close shuts the bus down and closes all subscriber channels.
func (b *bus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
