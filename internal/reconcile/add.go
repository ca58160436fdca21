package reconcile

import (
	"context"
	"errors"
	"fmt"

	"bibneat/internal/identifier"
	"bibneat/internal/library"
	"bibneat/internal/logging"
	"bibneat/internal/registry"
	"bibneat/internal/services"
)

// AddResult describes an interactive add.
type AddResult struct {
	Entry      *library.Entry  `json:"entry"`
	Identifier string          `json:"identifier"`
	Followed   *FollowOutcome  `json:"followed,omitempty"`
	Status     registry.Status `json:"status"`
}

// AddOption tunes one interactive add.
type AddOption func(*addOptions)

type addOptions struct {
	follow *bool
}

// WithImmediateFollow overrides the configured immediate-follow switch.
func WithImmediateFollow(enabled bool) AddOption {
	return func(o *addOptions) {
		o.follow = &enabled
	}
}

// AddPreprint fetches raw from the preprint registry and appends it to the
// library. When immediate follow is on and the payload carries a DOI, one
// resolver lookup is attempted and, if found, replaces the new entry. That
// follow-up never fails the add.
func (o *Orchestrator) AddPreprint(ctx context.Context, raw string, opts ...AddOption) (*AddResult, error) {
	options := addOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	follow := o.policies.ImmediateFollow
	if options.follow != nil {
		follow = *options.follow
	}

	id, result, entry, err := o.add(ctx, raw, identifier.Preprint, library.SourcePreprint)
	if err != nil {
		return nil, err
	}
	out := &AddResult{Entry: entry, Identifier: id.Value, Status: result.Status}
	if !follow {
		return out, nil
	}
	alternate := extractAlternate(result.Payload)
	if alternate.IsZero() {
		return out, nil
	}

	logger := logging.WithContext(ctx, o.logger).With(
		logging.String(logging.FieldEntryKey, entry.Key),
		logging.String("alternate", alternate.Value))
	followed := &FollowOutcome{Identifier: alternate.Value}
	out.Followed = followed
	bestEffort(logger, "immediate follow", func() error {
		res := o.fetcher.Fetch(ctx, alternate)
		followed.Status = res.Status
		if !res.Found() {
			return &errLookup{id: alternate, result: res}
		}
		if err := o.store.Replace(ctx, entry.Index, res.Payload); err != nil {
			return err
		}
		followed.Applied = AppliedReplaced
		if err := o.store.MarkSuperseded(ctx, entry.Index, id); err != nil {
			return err
		}
		logger.Info("added entry upgraded to published version")
		return nil
	})
	if followed.Applied == AppliedReplaced {
		if fresh, err := o.lookupEntry(ctx, entry.Index); err == nil {
			out.Entry = fresh
		}
	}
	return out, nil
}

// AddResolver fetches raw from the resolver registry and appends it.
func (o *Orchestrator) AddResolver(ctx context.Context, raw string) (*AddResult, error) {
	id, result, entry, err := o.add(ctx, raw, identifier.Resolver, library.SourceResolver)
	if err != nil {
		return nil, err
	}
	return &AddResult{Entry: entry, Identifier: id.Value, Status: result.Status}, nil
}

func (o *Orchestrator) add(ctx context.Context, raw string, kind identifier.Kind, source string) (identifier.Identifier, registry.Result, *library.Entry, error) {
	id, err := identifier.Normalize(raw, kind)
	if err != nil {
		return id, registry.Invalid(err), nil, services.Wrap(services.ErrValidation, "reconcile", "add", "", err)
	}
	ctx = services.WithKind(ctx, kind.String())
	logger := logging.WithContext(ctx, o.logger)

	result := o.fetcher.Fetch(ctx, id)
	if !result.Found() {
		marker := services.ErrTransport
		if result.Status == registry.StatusNotFound {
			marker = services.ErrNotFound
		}
		lookupErr := &errLookup{id: id, result: result}
		logging.WarnWithContext(logger, "add failed", "add_failed",
			logging.String(logging.FieldIdentifier, id.Value),
			logging.String(logging.FieldStatus, result.Status.String()),
			logging.String(logging.FieldImpact, "nothing was added"),
			logging.String(logging.FieldErrorHint, hintFor(result.Status)))
		return id, result, nil, services.Wrap(marker, "reconcile", "add", "", lookupErr)
	}

	entry, err := o.store.Insert(ctx, result.Payload, source)
	switch {
	case err == nil:
	case errors.Is(err, library.ErrDuplicateKey), errors.Is(err, library.ErrInvalidContent):
		return id, result, nil, services.Wrap(services.ErrValidation, "reconcile", "add", fmt.Sprintf("%s %s", kind.Registry(), id.Value), err)
	default:
		return id, result, nil, storeErr("insert entry", err)
	}
	logger.Info("entry added",
		logging.String(logging.FieldEntryKey, entry.Key),
		logging.String(logging.FieldIdentifier, id.Value),
		logging.Int64(logging.FieldEntryIndex, int64(entry.Index)))
	return id, result, entry, nil
}

type entryGetter interface {
	Get(ctx context.Context, idx library.EntryIndex) (*library.Entry, error)
}

func (o *Orchestrator) lookupEntry(ctx context.Context, idx library.EntryIndex) (*library.Entry, error) {
	getter, ok := o.store.(entryGetter)
	if !ok {
		return nil, errors.New("store cannot read entries")
	}
	return getter.Get(ctx, idx)
}
