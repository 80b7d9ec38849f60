package server

import (
	"log/slog"
	"sync"

	"nhbenergy/core/events"
	"nhbenergy/core/types"
)

type attributed interface {
	Event() *types.Event
}

// EventLog logs committed ledger events and keeps the most recent ones for
// GET /v1/events.
type EventLog struct {
	logger *slog.Logger
	limit  int

	mu     sync.Mutex
	recent []types.Event
}

func NewEventLog(logger *slog.Logger, limit int) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 256
	}
	return &EventLog{logger: logger, limit: limit}
}

// Emit implements events.Emitter.
func (l *EventLog) Emit(evt events.Event) {
	rendered := types.Event{Type: evt.EventType()}
	if a, ok := evt.(attributed); ok {
		if e := a.Event(); e != nil {
			rendered = *e
		}
	}
	attrs := make([]any, 0, len(rendered.Attributes)+1)
	attrs = append(attrs, slog.String("type", rendered.Type))
	for k, v := range rendered.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	l.logger.Info("ledger event", attrs...)

	l.mu.Lock()
	l.recent = append(l.recent, rendered)
	if over := len(l.recent) - l.limit; over > 0 {
		l.recent = append([]types.Event(nil), l.recent[over:]...)
	}
	l.mu.Unlock()
}

// Recent returns up to n of the latest events, oldest first.
func (l *EventLog) Recent(n int) []types.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.recent) {
		n = len(l.recent)
	}
	return append([]types.Event(nil), l.recent[len(l.recent)-n:]...)
}
