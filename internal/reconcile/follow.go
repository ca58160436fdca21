package reconcile

import (
	"context"
	"log/slog"

	"bibneat/internal/identifier"
	"bibneat/internal/library"
	"bibneat/internal/logging"
	"bibneat/internal/policy"
	"bibneat/internal/registry"
)

// follow runs the phase-two resolver batch for found preprints. The resolver
// payload replaces the entry only when the preprint policy replaces; the
// earlier replacement is simply overwritten.
func (o *Orchestrator) follow(ctx context.Context, logger *slog.Logger, cfg policy.Config, generation int64, report *Report, tasks []followTask) error {
	ids := make(map[library.EntryIndex]identifier.Identifier, len(tasks))
	for _, task := range tasks {
		ids[report.Outcomes[task.outcome].Index] = task.target
	}
	logger.Info("following preprints to published versions", logging.Int("entries", len(ids)))

	results := o.batch().CheckAll(ctx, ids, identifier.Resolver)
	discard, err := o.reset(ctx, logger, generation)
	if err != nil {
		return err
	}
	if discard {
		report.Discarded = true
		return nil
	}

	for _, task := range tasks {
		outcome := &report.Outcomes[task.outcome]
		result := results[outcome.Index]
		followed := &FollowOutcome{Identifier: task.target.Value, Status: result.Status}
		outcome.Followed = followed
		entryLogger := logger.With(
			logging.String(logging.FieldEntryKey, outcome.Key),
			logging.String("alternate", task.target.Value))

		if !result.Found() {
			if result.Err != nil {
				followed.Error = result.Err.Error()
			}
			logging.WarnWithContext(entryLogger, "published version lookup failed", "follow_failed",
				logging.String(logging.FieldStatus, result.Status.String()),
				logging.String(logging.FieldImpact, "entry keeps the preprint metadata"),
				logging.String(logging.FieldErrorHint, hintFor(result.Status)))
			continue
		}

		if !cfg.ReplaceOnFound {
			followed.Applied = AppliedFlagged
			logging.WarnWithContext(entryLogger, "published version resolves", policy.EventFlag,
				logging.String(logging.FieldImpact, "entry still cites the preprint"),
				logging.String(logging.FieldErrorHint, "rerun with --replace --follow to switch to the published record"))
			continue
		}

		applied, err := o.replace(ctx, entryLogger, outcome.Index, result.Payload)
		if err != nil {
			return err
		}
		followed.Applied = applied
		if applied != AppliedReplaced {
			continue
		}
		if err := o.store.MarkSuperseded(ctx, outcome.Index, task.preprint); err != nil {
			return storeErr("mark superseded", err)
		}
		entryLogger.Info("preprint superseded by published version",
			logging.String(logging.FieldIdentifier, task.preprint.Value))
	}
	return nil
}

// bestEffort runs op and logs, rather than returns, its failure. The
// interactive add path uses it for the immediate follow-up lookup, whose
// failure must not undo or fail the add.
func bestEffort(logger *slog.Logger, what string, op func() error) {
	if err := op(); err != nil {
		logger.Info(what+" skipped",
			logging.String(logging.FieldEventType, "best_effort_failed"),
			logging.Error(err))
	}
}

// errLookup carries a non-found result through bestEffort.
type errLookup struct {
	id     identifier.Identifier
	result registry.Result
}

func (e *errLookup) Error() string {
	msg := e.id.Kind.Registry() + " lookup for " + e.id.Value + ": " + e.result.Status.Describe()
	if e.result.Err != nil {
		msg += ": " + e.result.Err.Error()
	}
	return msg
}

func (e *errLookup) Unwrap() error {
	return e.result.Err
}
