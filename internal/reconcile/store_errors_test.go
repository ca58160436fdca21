package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"bibneat/internal/identifier"
	"bibneat/internal/library"
	"bibneat/internal/logging"
	"bibneat/internal/policy"
	"bibneat/internal/reconcile"
	"bibneat/internal/services"
	"bibneat/internal/testsupport"
)

// faultyStore fails selected calls on top of a real library.
type faultyStore struct {
	*library.Store
	missing          library.EntryIndex
	generationReads  int
	failGenerationAt int
}

func (s *faultyStore) DisplayKey(ctx context.Context, idx library.EntryIndex) (string, error) {
	if s.missing != 0 && idx == s.missing {
		return "", fmt.Errorf("%w: %d", library.ErrEntryNotFound, idx)
	}
	return s.Store.DisplayKey(ctx, idx)
}

func (s *faultyStore) Generation(ctx context.Context) (int64, error) {
	s.generationReads++
	if s.failGenerationAt != 0 && s.generationReads >= s.failGenerationAt {
		return 0, errors.New("disk I/O error")
	}
	return s.Store.Generation(ctx)
}

func (h *harness) faultyOrchestrator(t *testing.T, store *faultyStore, set policy.Set, opts ...reconcile.Option) *reconcile.Orchestrator {
	t.Helper()
	opts = append([]reconcile.Option{reconcile.WithLogger(slog.New(h.hub.Handler(slog.LevelDebug)))}, opts...)
	orch, err := reconcile.New(store, h.fetcher(t, time.Second), set, opts...)
	if err != nil {
		t.Fatalf("reconcile.New: %v", err)
	}
	return orch
}

func (h *harness) event(eventType, key string) (logging.LogEvent, bool) {
	events, _ := h.hub.Tail(0)
	for _, evt := range events {
		if evt.EventType == eventType && (key == "" || evt.EntryKey == key) {
			return evt, true
		}
	}
	return logging.LogEvent{}, false
}

func TestRunAbortsWhenStoreLosesAnIndex(t *testing.T) {
	h := newHarness(t, threePreprints)
	h.reg.Preprint("2101.00001", testsupport.Response{Body: alphaPreprintPayload})
	store := &faultyStore{Store: h.store, missing: h.entry(t, "beta2021").Index}

	report, err := h.faultyOrchestrator(t, store, replacePolicy()).Run(context.Background(), identifier.Preprint)
	if !errors.Is(err, services.ErrStore) || !errors.Is(err, library.ErrEntryNotFound) {
		t.Fatalf("expected store error wrapping ErrEntryNotFound, got %v", err)
	}
	if report != nil {
		t.Fatalf("expected no report from an aborted pass, got %+v", report)
	}
	evt, ok := h.event("pass_aborted", "")
	if !ok || evt.Level != "error" || evt.Fields[logging.FieldErrorHint] == "" {
		t.Fatalf("expected pass_aborted error event, got %+v (found=%v)", evt, ok)
	}
}

func TestRunAbortsWhenGenerationUnreadable(t *testing.T) {
	h := newHarness(t, threePreprints)
	h.reg.Preprint("2101.00001", testsupport.Response{Body: alphaPreprintPayload})
	before := h.entry(t, "alpha2021").Content
	store := &faultyStore{Store: h.store, failGenerationAt: 2}

	_, err := h.faultyOrchestrator(t, store, replacePolicy()).Run(context.Background(), identifier.Preprint)
	if !errors.Is(err, services.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if got := h.entry(t, "alpha2021").Content; got != before {
		t.Fatalf("entry changed although the reset check failed: %s", got)
	}
}

func TestRunRefreshSeesFinishedReport(t *testing.T) {
	h := newHarness(t, threePreprints)
	var seen *reconcile.Report
	var finished time.Time
	orch := h.orchestrator(t, policy.Set{}, time.Second, reconcile.WithRefresh(func(_ context.Context, report *reconcile.Report) {
		seen = report
		finished = report.Finished
	}))

	report, err := orch.Run(context.Background(), identifier.Preprint)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if seen != report {
		t.Fatal("refresh hook did not receive the pass report")
	}
	if finished.IsZero() || finished.Before(report.Started) {
		t.Fatalf("refresh hook saw finished=%v started=%v", finished, report.Started)
	}
}

func TestRunLogsAtPolicyLevel(t *testing.T) {
	h := newHarness(t, threePreprints)
	h.reg.Preprint("2101.00003", testsupport.Response{Body: `@misc{gamma, title = {Gamma}}`})

	if _, err := h.orchestrator(t, policy.Set{}, time.Second).Run(context.Background(), identifier.Preprint); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if evt, ok := h.event(policy.EventFound, "gamma2021"); !ok || evt.Level != "info" {
		t.Fatalf("expected info found event for gamma2021, got %+v (found=%v)", evt, ok)
	}
	evt, ok := h.event(policy.EventLookupFailed, "beta2021")
	if !ok || evt.Level != "warn" || evt.Fields[logging.FieldImpact] == "" {
		t.Fatalf("expected warn lookup_failed event for beta2021, got %+v (found=%v)", evt, ok)
	}
}
