package reconcile

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"bibneat/internal/identifier"
	"bibneat/internal/library"
	"bibneat/internal/registry"
)

// ProgressFunc is called once per settled lookup. Calls are serialized.
type ProgressFunc func(idx library.EntryIndex, result registry.Result, settled, total int)

// Batch issues a set of lookups concurrently and joins on all of them.
type Batch struct {
	fetcher  registry.Fetcher
	limit    int
	progress ProgressFunc
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithLimit caps concurrent lookups. Zero or less means no cap.
func WithLimit(n int) BatchOption {
	return func(b *Batch) {
		b.limit = n
	}
}

// WithBatchProgress registers a per-settle callback.
func WithBatchProgress(fn ProgressFunc) BatchOption {
	return func(b *Batch) {
		b.progress = fn
	}
}

// NewBatch constructs a Batch over fetcher.
func NewBatch(fetcher registry.Fetcher, opts ...BatchOption) *Batch {
	b := &Batch{fetcher: fetcher}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CheckAll looks up every identifier and returns exactly one result per
// index. It returns only after every request has settled. Identifiers of
// another kind settle as invalid without being dispatched.
func (b *Batch) CheckAll(ctx context.Context, ids map[library.EntryIndex]identifier.Identifier, kind identifier.Kind) map[library.EntryIndex]registry.Result {
	results := make(map[library.EntryIndex]registry.Result, len(ids))
	var mu sync.Mutex
	settle := func(idx library.EntryIndex, result registry.Result) {
		mu.Lock()
		defer mu.Unlock()
		results[idx] = result
		if b.progress != nil {
			b.progress(idx, result, len(results), len(ids))
		}
	}

	var group errgroup.Group
	if b.limit > 0 {
		group.SetLimit(b.limit)
	}
	for idx, id := range ids {
		if id.IsZero() || id.Kind != kind {
			settle(idx, registry.Invalid(fmt.Errorf("%w: expected %s identifier, got %q", identifier.ErrInvalid, kind, id)))
			continue
		}
		group.Go(func() error {
			settle(idx, b.fetcher.Fetch(ctx, id))
			return nil
		})
	}
	_ = group.Wait()
	return results
}
