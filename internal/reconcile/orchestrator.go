package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"bibneat/internal/bibtex"
	"bibneat/internal/identifier"
	"bibneat/internal/library"
	"bibneat/internal/logging"
	"bibneat/internal/policy"
	"bibneat/internal/registry"
	"bibneat/internal/services"
)

// Store is the slice of the library the orchestrator consumes.
type Store interface {
	Candidates(ctx context.Context, kind identifier.Kind) ([]library.Candidate, error)
	DisplayKey(ctx context.Context, idx library.EntryIndex) (string, error)
	Replace(ctx context.Context, idx library.EntryIndex, content string) error
	MarkSuperseded(ctx context.Context, idx library.EntryIndex, id identifier.Identifier) error
	Generation(ctx context.Context) (int64, error)
	Insert(ctx context.Context, content, source string) (*library.Entry, error)
}

// RefreshFunc is invoked after every pass so derived views can reload.
type RefreshFunc func(ctx context.Context, report *Report)

// Orchestrator runs reconciliation passes against a Store.
type Orchestrator struct {
	store    Store
	fetcher  registry.Fetcher
	policies policy.Set
	logger   *slog.Logger
	limit    int
	progress ProgressFunc
	refresh  RefreshFunc
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMaxInFlight caps concurrent lookups per batch. Zero means no cap.
func WithMaxInFlight(n int) Option {
	return func(o *Orchestrator) {
		o.limit = n
	}
}

// WithProgress registers a callback invoked as each lookup settles.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// WithRefresh registers the post-pass refresh hook.
func WithRefresh(fn RefreshFunc) Option {
	return func(o *Orchestrator) {
		o.refresh = fn
	}
}

// New constructs an Orchestrator.
func New(store Store, fetcher registry.Fetcher, policies policy.Set, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("reconcile: store is required")
	}
	if fetcher == nil {
		return nil, errors.New("reconcile: fetcher is required")
	}
	o := &Orchestrator{
		store:    store,
		fetcher:  fetcher,
		policies: policies,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "reconcile")
	return o, nil
}

func (o *Orchestrator) batch() *Batch {
	return NewBatch(o.fetcher, WithLimit(o.limit), WithBatchProgress(o.progress))
}

type followTask struct {
	outcome  int
	preprint identifier.Identifier
	target   identifier.Identifier
}

// Run performs one pass over every identifier of kind. Lookup failures are
// reported per entry; store failures, including an index the store no
// longer knows, abort the pass.
func (o *Orchestrator) Run(ctx context.Context, kind identifier.Kind) (*Report, error) {
	if kind != identifier.Preprint && kind != identifier.Resolver {
		return nil, services.Wrap(services.ErrValidation, "reconcile", "run", fmt.Sprintf("unsupported kind %q", kind), nil)
	}
	passID := uuid.NewString()
	ctx = services.WithKind(services.WithPassID(ctx, passID), kind.String())
	logger := logging.WithContext(ctx, o.logger)

	report, err := o.run(ctx, logger, kind, passID)
	if err != nil {
		logging.ErrorWithContext(logger, "reconciliation pass aborted", "pass_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the library file, then rerun the check"))
		return nil, err
	}
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, kind identifier.Kind, passID string) (*Report, error) {
	cfg := o.policies.For(kind)
	report := &Report{PassID: passID, Kind: kind.String(), Started: o.now()}

	generation, err := o.store.Generation(ctx)
	if err != nil {
		return nil, storeErr("read generation", err)
	}
	candidates, err := o.store.Candidates(ctx, kind)
	if err != nil {
		return nil, storeErr("enumerate candidates", err)
	}

	ids := make(map[library.EntryIndex]identifier.Identifier, len(candidates))
	presettled := make(map[library.EntryIndex]registry.Result)
	raws := make(map[library.EntryIndex]string, len(candidates))
	for _, c := range candidates {
		raws[c.Index] = c.Raw
		id, err := identifier.Normalize(c.Raw, kind)
		if err != nil {
			presettled[c.Index] = registry.Invalid(err)
			continue
		}
		ids[c.Index] = id
	}

	logger.Info("reconciliation pass started",
		logging.Int("entries", len(candidates)),
		logging.Bool("replace", cfg.ReplaceOnFound),
		logging.Bool("follow", cfg.FollowToPublished))

	results := o.batch().CheckAll(ctx, ids, kind)
	for idx, result := range presettled {
		results[idx] = result
	}

	discard, err := o.reset(ctx, logger, generation)
	if err != nil {
		return nil, err
	}
	if discard {
		report.Discarded = true
		o.finish(ctx, logger, report)
		return report, nil
	}

	indexes := make([]library.EntryIndex, 0, len(results))
	for idx := range results {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	var follows []followTask
	for _, idx := range indexes {
		result := results[idx]
		key, err := o.store.DisplayKey(ctx, idx)
		if err != nil {
			return nil, storeErr("read display key", err)
		}

		outcome := Outcome{Index: idx, Key: key, Kind: kind, Identifier: displayID(ids[idx], raws[idx]), Status: result.Status}
		if result.Err != nil {
			outcome.Error = result.Err.Error()
		}
		var alternate identifier.Identifier
		if result.Found() && kind == identifier.Preprint {
			alternate = extractAlternate(result.Payload)
			outcome.Alternate = alternate.Value
		}

		entryLogger := logger.With(logging.String(logging.FieldEntryKey, key))
		decision := policy.Decide(cfg, kind, result, alternate.Value)
		switch decision.Action {
		case policy.ActionReplace:
			applied, err := o.replace(ctx, entryLogger, idx, result.Payload)
			if err != nil {
				return nil, err
			}
			outcome.Applied = applied
		case policy.ActionFlag:
			outcome.Applied = AppliedFlagged
			logDecision(ctx, entryLogger, decision, "published version available",
				logging.String(logging.FieldIdentifier, outcome.Identifier),
				logging.String("alternate", alternate.Value),
				logging.String(logging.FieldImpact, "entry still cites the preprint"),
				logging.String(logging.FieldErrorHint, "rerun with --replace --follow to switch to the published record"))
		case policy.ActionNone:
			logOutcome(ctx, entryLogger, decision, outcome, result)
		}
		if decision.Follow {
			follows = append(follows, followTask{outcome: len(report.Outcomes), preprint: ids[idx], target: alternate})
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if len(follows) > 0 {
		if err := o.follow(ctx, logger, cfg, generation, report, follows); err != nil {
			return nil, err
		}
	}

	o.finish(ctx, logger, report)
	return report, nil
}

// reset reports whether the library generation moved since the pass began.
// A failed read aborts the pass rather than letting stale results through.
func (o *Orchestrator) reset(ctx context.Context, logger *slog.Logger, started int64) (bool, error) {
	current, err := o.store.Generation(ctx)
	if err != nil {
		return false, storeErr("read generation", err)
	}
	if current == started {
		return false, nil
	}
	logging.WarnWithContext(logger, "library reset during pass; discarding results", "pass_discarded",
		logging.Int64("generation_started", started),
		logging.Int64("generation_now", current),
		logging.String(logging.FieldImpact, "no entries were changed"),
		logging.String(logging.FieldErrorHint, "rerun the check against the new library"))
	return true, nil
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, report *Report) {
	report.Finished = o.now()
	sortOutcomes(report.Outcomes)
	counts := report.Counts()
	attrs := []logging.Attr{
		logging.Int("entries", len(report.Outcomes)),
		logging.Int("replaced", report.Replaced()),
		logging.Bool("discarded", report.Discarded),
	}
	for _, status := range registry.Statuses {
		if n := counts[status]; n > 0 {
			attrs = append(attrs, logging.Int(status.String(), n))
		}
	}
	logger.Info("reconciliation pass complete", logging.Args(attrs...)...)
	if o.refresh != nil {
		o.refresh(ctx, report)
	}
}

// replace writes payload over idx. Payloads the store cannot parse are
// reported on the entry; any other store failure, an unknown index
// included, aborts the pass.
func (o *Orchestrator) replace(ctx context.Context, logger *slog.Logger, idx library.EntryIndex, payload string) (AppliedAction, error) {
	err := o.store.Replace(ctx, idx, payload)
	switch {
	case err == nil:
		logger.Info("entry replaced with registry metadata", logging.String(logging.FieldEventType, policy.EventReplace))
		return AppliedReplaced, nil
	case errors.Is(err, library.ErrInvalidContent):
		logging.WarnWithContext(logger, "registry payload rejected", "payload_rejected",
			logging.Error(err),
			logging.String(logging.FieldImpact, "entry left unchanged"),
			logging.String(logging.FieldErrorHint, "inspect the registry response with --log-level debug"))
		return AppliedNone, nil
	default:
		return AppliedNone, storeErr("replace entry", err)
	}
}

// logDecision logs msg at the level the policy assigned to the decision.
// Warnings go through WarnWithContext so they carry a hint and an impact.
func logDecision(ctx context.Context, logger *slog.Logger, d policy.Decision, msg string, attrs ...logging.Attr) {
	if d.Level >= slog.LevelWarn {
		logging.WarnWithContext(logger, msg, d.Event, attrs...)
		return
	}
	attrs = append(attrs, logging.String(logging.FieldEventType, d.Event))
	logger.Log(ctx, d.Level, msg, logging.Args(attrs...)...)
}

func logOutcome(ctx context.Context, logger *slog.Logger, d policy.Decision, outcome Outcome, result registry.Result) {
	if result.Found() {
		logDecision(ctx, logger, d, "identifier found",
			logging.String(logging.FieldIdentifier, outcome.Identifier))
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldIdentifier, outcome.Identifier),
		logging.String(logging.FieldStatus, result.Status.String()),
		logging.String(logging.FieldImpact, "entry left unchanged"),
		logging.String(logging.FieldErrorHint, hintFor(result.Status)),
	}
	if result.HTTPStatus != 0 {
		attrs = append(attrs, logging.Int("http_status", result.HTTPStatus))
	}
	if result.Err != nil {
		attrs = append(attrs, logging.Error(result.Err))
	}
	logDecision(ctx, logger, d, fmt.Sprintf("%s: %s", outcome.Key, result.Status.Describe()), attrs...)
}

func hintFor(status registry.Status) string {
	switch status {
	case registry.StatusNotFound:
		return "check the identifier in the entry"
	case registry.StatusUnknownResponse:
		return "the registry may be degraded; retry later"
	case registry.StatusTimeout:
		return "retry later or raise registries.request_timeout_ms"
	case registry.StatusTransportError:
		return "check network access or the relay socket"
	case registry.StatusInvalidIdentifier:
		return "fix the identifier format in the entry"
	case registry.StatusFound:
		return ""
	default:
		return "rerun with --log-level debug for request details"
	}
}

// extractAlternate pulls a resolver identifier out of a preprint payload.
func extractAlternate(payload string) identifier.Identifier {
	raw := bibtex.FindDOI(payload)
	if raw == "" {
		return identifier.Identifier{}
	}
	id, err := identifier.Normalize(raw, identifier.Resolver)
	if err != nil {
		return identifier.Identifier{}
	}
	return id
}

func displayID(id identifier.Identifier, raw string) string {
	if id.IsZero() {
		return raw
	}
	return id.Value
}

func storeErr(operation string, err error) error {
	return services.Wrap(services.ErrStore, "reconcile", operation, "", err)
}
