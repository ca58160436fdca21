// Package logging assembles the slog loggers used across bibneat.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag every line of a reconciliation pass with its pass
// id and identifier kind. WarnWithContext enforces the event_type, error_hint
// and impact fields, and ErrorWithContext the first two, so failure logs
// always carry a cause and a next step. StreamHub captures recent events in
// memory so a command can attach them to its JSON report.
package logging
