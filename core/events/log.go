package events

import "sync"

// DefaultLogCapacity bounds the in-memory event tail kept by a Log.
const DefaultLogCapacity = 4_096

// Log is an emitter that retains the most recent events in arrival order,
// dropping the oldest once the capacity is reached. It backs the audit tail
// surfaced over RPC and doubles as a capture helper in tests.
type Log struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewLog returns an empty event log with the default capacity.
func NewLog() *Log {
	return NewLogWithCapacity(DefaultLogCapacity)
}

// NewLogWithCapacity returns an empty event log retaining at most capacity
// events. Non-positive capacities fall back to the default.
func NewLogWithCapacity(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{capacity: capacity}
}

// Emit implements the Emitter interface.
func (l *Log) Emit(evt Event) {
	if l == nil || evt == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == l.capacity {
		copy(l.events, l.events[1:])
		l.events[len(l.events)-1] = evt
		return
	}
	l.events = append(l.events, evt)
}

// Events returns a snapshot of the retained events in emission order.
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len reports the number of retained events.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
