package events

import (
	"sync"

	"steadrent/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render the canonical attribute map.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, logs).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events until they are released. Instructions emit into a
// buffer and the node flushes it only after the state commit succeeds.
type Buffer struct {
	events []Event
}

func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// FlushTo forwards buffered events to dst and clears the buffer.
func (b *Buffer) FlushTo(dst Emitter) {
	if dst != nil {
		for _, evt := range b.events {
			dst.Emit(evt)
		}
	}
	b.events = nil
}

// Log keeps the most recent events in memory for query endpoints.
type Log struct {
	mu       sync.RWMutex
	capacity int
	next     int64
	entries  []LogEntry
}

// LogEntry is one recorded event with its position in the log.
type LogEntry struct {
	Sequence int64
	Event    *types.Event
}

// NewLog returns a log retaining at most capacity events.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Log{capacity: capacity}
}

// Emit records payload events; others are ignored.
func (l *Log) Emit(evt Event) {
	payload, ok := evt.(Payload)
	if !ok || payload.Event() == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	l.entries = append(l.entries, LogEntry{Sequence: l.next, Event: payload.Event().Clone()})
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// Recent returns up to limit entries, newest last, optionally filtered by a
// type prefix.
func (l *Log) Recent(prefix string, limit int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]LogEntry, 0, len(l.entries))
	for _, entry := range l.entries {
		if prefix != "" && (len(entry.Event.Type) < len(prefix) || entry.Event.Type[:len(prefix)] != prefix) {
			continue
		}
		out = append(out, LogEntry{Sequence: entry.Sequence, Event: entry.Event.Clone()})
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Multi fans an event out to several emitters.
type Multi []Emitter

func (m Multi) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
