// Package analytics records named usage events. Logging an event never fails
// and never blocks the caller for long; a broken sink only costs the event.
package analytics

import (
	"context"
	"log/slog"
	"sort"
)

// Event names emitted by the group store.
const (
	EventGroupCreated        = "group_created"
	EventGroupImported       = "group_imported"
	EventGroupRenamed        = "group_renamed"
	EventGroupDeleted        = "group_deleted"
	EventProductsReplaced    = "products_replaced"
	EventCostEntriesReplaced = "cost_entries_replaced"

	// EventTransactionCreated is the older name for a cost entry being added.
	// It is still emitted so existing dashboards keep counting.
	EventTransactionCreated = "transaction_created"
)

// Params are an event's attributes.
type Params map[string]any

// Sink receives events.
type Sink interface {
	Log(ctx context.Context, event string, params Params)
}

// Nop discards every event.
type Nop struct{}

// Log implements Sink.
func (Nop) Log(context.Context, string, Params) {}

// Logger writes events to a slog.Logger at info level.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a sink writing to logger, or slog.Default() if nil.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// Log implements Sink.
func (l *Logger) Log(ctx context.Context, event string, params Params) {
	l.logger.InfoContext(ctx, "Analytics event", append([]any{"event", event}, params.attrs()...)...)
}

// Multi sends each event to every sink in order.
type Multi []Sink

// Log implements Sink.
func (m Multi) Log(ctx context.Context, event string, params Params) {
	for _, s := range m {
		s.Log(ctx, event, params)
	}
}

// attrs flattens params into slog key/value pairs in key order.
func (p Params) attrs() []any {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, p[k])
	}
	return out
}
