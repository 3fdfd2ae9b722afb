package session

import (
	"sync"

	"github.com/layer-3/tonauth/core"
)

// DefaultEventLogSize is the number of connection events kept by default
const DefaultEventLogSize = 100

// EventLog is a bounded, ordered record of connection events.
// Once full, appending evicts the oldest entry.
type EventLog struct {
	mu    sync.Mutex
	buf   []core.ConnectionEvent
	head  int // index of the oldest entry
	count int
}

// NewEventLog creates a log holding at most size events
func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = DefaultEventLogSize
	}
	return &EventLog{buf: make([]core.ConnectionEvent, size)}
}

// Append records an event
func (l *EventLog) Append(event core.ConnectionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count < len(l.buf) {
		l.buf[(l.head+l.count)%len(l.buf)] = event
		l.count++
		return
	}
	l.buf[l.head] = event
	l.head = (l.head + 1) % len(l.buf)
}

// Events returns the recorded events, oldest first
func (l *EventLog) Events() []core.ConnectionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]core.ConnectionEvent, l.count)
	for i := range out {
		out[i] = l.buf[(l.head+i)%len(l.buf)]
	}
	return out
}

// Len returns the number of recorded events
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
