package services

import "context"

type contextKey string

const (
	passIDKey   contextKey = "pass_id"
	kindKey     contextKey = "kind"
	entryKeyKey contextKey = "entry_key"
)

// WithPassID annotates context with the reconciliation pass identifier.
func WithPassID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, passIDKey, id)
}

// PassIDFromContext extracts the pass identifier if present.
func PassIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(passIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithKind annotates context with the identifier kind a pass is checking.
func WithKind(ctx context.Context, kind string) context.Context {
	if kind == "" {
		return ctx
	}
	return context.WithValue(ctx, kindKey, kind)
}

// KindFromContext returns the identifier kind if present.
func KindFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(kindKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEntryKey annotates context with the display key of the entry being handled.
func WithEntryKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, entryKeyKey, key)
}

// EntryKeyFromContext returns the entry display key if present.
func EntryKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(entryKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
