package events

import "sync"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. HTTP streams, logs).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds events raised during an operation until the operation commits.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// Emit queues the event.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Reset drops every queued event.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// Flush forwards queued events to dst in order and clears the buffer.
func (b *Buffer) Flush(dst Emitter) []Event {
	b.mu.Lock()
	queued := b.events
	b.events = nil
	b.mu.Unlock()
	if dst != nil {
		for _, evt := range queued {
			dst.Emit(evt)
		}
	}
	return queued
}

// Recorder keeps every emitted event. Handy for tests and in-process
// subscribers.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
