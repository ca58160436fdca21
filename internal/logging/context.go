package logging

import (
	"context"
	"log/slog"

	"bibneat/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPassID identifies one reconciliation pass.
	FieldPassID = "pass_id"
	// FieldKind is the identifier kind a pass or lookup concerns.
	FieldKind = "kind"
	// FieldEntryKey is the display key (cite key) of a library entry.
	FieldEntryKey = "entry_key"
	// FieldEntryIndex is the store handle of a library entry.
	FieldEntryIndex = "entry_index"
	// FieldIdentifier is a normalized registry identifier.
	FieldIdentifier = "identifier"
	// FieldStatus is a lookup outcome.
	FieldStatus = "status"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the user what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.PassIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPassID, id))
	}
	if kind, ok := services.KindFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldKind, kind))
	}
	if key, ok := services.EntryKeyFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEntryKey, key))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
