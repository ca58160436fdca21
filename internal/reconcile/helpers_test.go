package reconcile_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"bibneat/internal/config"
	"bibneat/internal/identifier"
	"bibneat/internal/library"
	"bibneat/internal/logging"
	"bibneat/internal/policy"
	"bibneat/internal/reconcile"
	"bibneat/internal/registry"
	"bibneat/internal/testsupport"
	"bibneat/internal/transport"
)

type fetchFunc func(ctx context.Context, id identifier.Identifier) registry.Result

func (f fetchFunc) Fetch(ctx context.Context, id identifier.Identifier) registry.Result {
	return f(ctx, id)
}

type harness struct {
	store *library.Store
	reg   *testsupport.Registry
	hub   *logging.StreamHub
	cfg   *config.Config
}

func newHarness(t *testing.T, bib string) *harness {
	t.Helper()
	reg := testsupport.NewRegistry(t)
	cfg := testsupport.NewConfig(t, testsupport.WithRegistry(reg))
	store := testsupport.MustOpenLibrary(t, cfg, library.WithPreserveKeys(true))
	if bib != "" {
		if _, err := store.Import(context.Background(), bib); err != nil {
			t.Fatalf("Import failed: %v", err)
		}
	}
	return &harness{store: store, reg: reg, hub: logging.NewStreamHub(256), cfg: cfg}
}

func (h *harness) fetcher(t *testing.T, timeout time.Duration) *registry.Client {
	t.Helper()
	client, err := registry.New(transport.NewDirect(),
		registry.WithEndpoints(registry.Endpoints{
			PreprintBaseURL: h.reg.PreprintBaseURL(),
			ResolverBaseURL: h.reg.ResolverBaseURL(),
		}),
		registry.WithTimeout(timeout))
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	return client
}

func (h *harness) orchestrator(t *testing.T, set policy.Set, timeout time.Duration, opts ...reconcile.Option) *reconcile.Orchestrator {
	t.Helper()
	opts = append([]reconcile.Option{reconcile.WithLogger(slog.New(h.hub.Handler(slog.LevelDebug)))}, opts...)
	orch, err := reconcile.New(h.store, h.fetcher(t, timeout), set, opts...)
	if err != nil {
		t.Fatalf("reconcile.New: %v", err)
	}
	return orch
}

func (h *harness) entry(t *testing.T, key string) library.Entry {
	t.Helper()
	entries, err := h.store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, e := range entries {
		if e.Key == key {
			return e
		}
	}
	t.Fatalf("entry %q not found", key)
	return library.Entry{}
}

func (h *harness) warningsFor(key string) []logging.LogEvent {
	events, _ := h.hub.Tail(0)
	var out []logging.LogEvent
	for _, evt := range events {
		if evt.Level == "warn" && evt.EntryKey == key {
			out = append(out, evt)
		}
	}
	return out
}

func outcomeFor(t *testing.T, report *reconcile.Report, key string) reconcile.Outcome {
	t.Helper()
	for _, o := range report.Outcomes {
		if o.Key == key {
			return o
		}
	}
	t.Fatalf("no outcome for %q in %+v", key, report.Outcomes)
	return reconcile.Outcome{}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
