package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bibneat/internal/identifier"
	"bibneat/internal/policy"
	"bibneat/internal/reconcile"
	"bibneat/internal/registry"
	"bibneat/internal/services"
	"bibneat/internal/testsupport"
)

const threePreprints = `@misc{alpha2021,
  title = {Alpha Preprint},
  eprint = {2101.00001v1},
  archivePrefix = {arXiv},
}

@misc{beta2021,
  title = {Beta Preprint},
  eprint = {2101.00002},
}

@misc{gamma2021,
  title = {Gamma Preprint},
  url = {https://arxiv.org/abs/2101.00003v3},
}
`

const alphaPreprintPayload = `@misc{arxiv210100001,
  title = {Alpha Preprint (registry)},
  eprint = {2101.00001},
  doi = {10.1000/alpha},
}`

const alphaPublishedPayload = `@article{Alpha_2022,
  title = {Alpha Published},
  journal = {Journal of Tests},
  doi = {10.1000/alpha},
}`

func replacePolicy() policy.Set {
	return policy.Set{Preprint: policy.Config{ReplaceOnFound: true}}
}

func TestRunMixedOutcomesWithReplace(t *testing.T) {
	h := newHarness(t, threePreprints)
	h.reg.Preprint("2101.00001", testsupport.Response{Body: alphaPreprintPayload})
	h.reg.Preprint("2101.00003", testsupport.Response{Body: "@misc{late,}", Delay: 5 * time.Second})

	before := map[string]string{
		"beta2021":  h.entry(t, "beta2021").Content,
		"gamma2021": h.entry(t, "gamma2021").Content,
	}

	orch := h.orchestrator(t, replacePolicy(), 200*time.Millisecond)
	start := time.Now()
	report, err := orch.Run(context.Background(), identifier.Preprint)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("pass waited on the slow lookup: %v", elapsed)
	}
	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %+v", report.Outcomes)
	}

	want := map[string]registry.Status{
		"alpha2021": registry.StatusFound,
		"beta2021":  registry.StatusNotFound,
		"gamma2021": registry.StatusTimeout,
	}
	for key, status := range want {
		if got := outcomeFor(t, report, key).Status; got != status {
			t.Fatalf("%s: got %v want %v", key, got, status)
		}
	}
	if outcomeFor(t, report, "alpha2021").Applied != reconcile.AppliedReplaced {
		t.Fatal("expected alpha2021 replaced")
	}

	alpha := h.entry(t, "alpha2021")
	if !contains(alpha.Content, "Alpha Preprint (registry)") || alpha.Revision != 2 {
		t.Fatalf("expected alpha replaced once with key preserved, got rev %d: %s", alpha.Revision, alpha.Content)
	}
	for key, content := range before {
		if got := h.entry(t, key).Content; got != content {
			t.Fatalf("%s was modified: %s", key, got)
		}
	}

	if len(h.warningsFor("beta2021")) != 1 || len(h.warningsFor("gamma2021")) != 1 {
		t.Fatalf("expected one warning each for beta and gamma")
	}
	if len(h.warningsFor("alpha2021")) != 0 {
		t.Fatal("expected no warnings for alpha2021")
	}
	counts := report.Counts()
	if counts[registry.StatusFound] != 1 || counts[registry.StatusNotFound] != 1 || counts[registry.StatusTimeout] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if report.PassID == "" {
		t.Fatal("expected pass id")
	}
}

func TestRunCheckOnlyLeavesLibraryUntouched(t *testing.T) {
	h := newHarness(t, threePreprints)
	h.reg.Preprint("2101.00001", testsupport.Response{Body: alphaPreprintPayload})
	h.reg.Preprint("2101.00002", testsupport.Response{Body: "@misc{b, title={B}}"})

	orch := h.orchestrator(t, policy.Set{}, time.Second)
	report, err := orch.Run(context.Background(), identifier.Preprint)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	alpha := outcomeFor(t, report, "alpha2021")
	if alpha.Applied != reconcile.AppliedFlagged || alpha.Alternate != "10.1000/alpha" {
		t.Fatalf("expected alpha flagged with alternate, got %+v", alpha)
	}
	if beta := outcomeFor(t, report, "beta2021"); beta.Applied != reconcile.AppliedNone || beta.Status != registry.StatusFound {
		t.Fatalf("unexpected beta outcome %+v", beta)
	}
	for _, key := range []string{"alpha2021", "beta2021", "gamma2021"} {
		if rev := h.entry(t, key).Revision; rev != 1 {
			t.Fatalf("%s revision changed to %d", key, rev)
		}
	}
	if report.Replaced() != 0 {
		t.Fatalf("expected no replacements, got %d", report.Replaced())
	}
}

func TestRunReplaceAndFollowEndsOnPublishedRecord(t *testing.T) {
	h := newHarness(t, threePreprints)
	h.reg.Preprint("2101.00001", testsupport.Response{Body: alphaPreprintPayload})
	h.reg.Resolver("10.1000/alpha", testsupport.Response{Body: alphaPublishedPayload})

	set := policy.Set{Preprint: policy.Config{ReplaceOnFound: true, FollowToPublished: true}}
	refreshed := 0
	orch := h.orchestrator(t, set, time.Second, reconcile.WithRefresh(func(context.Context, *reconcile.Report) { refreshed++ }))
	report, err := orch.Run(context.Background(), identifier.Preprint)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	alpha := outcomeFor(t, report, "alpha2021")
	if alpha.Applied != reconcile.AppliedReplaced || alpha.Followed == nil {
		t.Fatalf("expected replace and follow, got %+v", alpha)
	}
	if alpha.Followed.Status != registry.StatusFound || alpha.Followed.Applied != reconcile.AppliedReplaced {
		t.Fatalf("unexpected follow outcome %+v", alpha.Followed)
	}
	entry := h.entry(t, "alpha2021")
	if entry.Revision != 3 {
		t.Fatalf("expected two sequential replacements, got revision %d", entry.Revision)
	}
	if !contains(entry.Content, "Alpha Published") || entry.Type != "article" {
		t.Fatalf("expected published payload, got %s", entry.Content)
	}
	if h.reg.Count("/bibtex/2101.00001") != 1 || h.reg.Count("/doi/10.1000/alpha") != 1 {
		t.Fatalf("unexpected request log %v", h.reg.Requests())
	}
	if accepts := h.reg.ResolverAccepts(); len(accepts) != 1 || accepts[0] != registry.DefaultResolverAccept {
		t.Fatalf("unexpected resolver accept headers %v", accepts)
	}

	superseded, err := h.store.SupersededFor(context.Background(), entry.Index)
	if err != nil {
		t.Fatalf("SupersededFor failed: %v", err)
	}
	if len(superseded) != 1 || superseded[0].Identifier != "2101.00001" {
		t.Fatalf("expected preprint marked superseded, got %+v", superseded)
	}
	if report.Replaced() != 2 || refreshed != 1 {
		t.Fatalf("unexpected replaced=%d refreshed=%d", report.Replaced(), refreshed)
	}
}

func TestRunFollowWithoutReplaceOnlyFlags(t *testing.T) {
	h := newHarness(t, threePreprints)
	h.reg.Preprint("2101.00001", testsupport.Response{Body: alphaPreprintPayload})
	h.reg.Resolver("10.1000/alpha", testsupport.Response{Body: alphaPublishedPayload})

	set := policy.Set{Preprint: policy.Config{FollowToPublished: true}}
	report, err := h.orchestrator(t, set, time.Second).Run(context.Background(), identifier.Preprint)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	alpha := outcomeFor(t, report, "alpha2021")
	if alpha.Applied != reconcile.AppliedFlagged || alpha.Followed == nil || alpha.Followed.Applied != reconcile.AppliedFlagged {
		t.Fatalf("expected flagged outcome and follow, got %+v", alpha)
	}
	if rev := h.entry(t, "alpha2021").Revision; rev != 1 {
		t.Fatalf("expected no mutation, got revision %d", rev)
	}
}

func TestRunReportsInvalidIdentifiersWithoutDispatch(t *testing.T) {
	h := newHarness(t, `@misc{broken, eprint = {not-an-id}}`)
	report, err := h.orchestrator(t, replacePolicy(), time.Second).Run(context.Background(), identifier.Preprint)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := outcomeFor(t, report, "broken"); got.Status != registry.StatusInvalidIdentifier || got.Identifier != "not-an-id" {
		t.Fatalf("unexpected outcome %+v", got)
	}
	if len(h.reg.Requests()) != 0 {
		t.Fatalf("expected no requests, got %v", h.reg.Requests())
	}
}

func TestRunDiscardsResultsAfterReset(t *testing.T) {
	h := newHarness(t, threePreprints)
	var once sync.Once
	fetcher := fetchFunc(func(ctx context.Context, _ identifier.Identifier) registry.Result {
		once.Do(func() {
			if err := h.store.Reset(ctx); err != nil {
				t.Errorf("Reset failed: %v", err)
			}
		})
		return registry.Result{Status: registry.StatusFound, Payload: alphaPreprintPayload}
	})
	orch, err := reconcile.New(h.store, fetcher, replacePolicy())
	if err != nil {
		t.Fatalf("reconcile.New: %v", err)
	}
	report, err := orch.Run(context.Background(), identifier.Preprint)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Discarded || len(report.Outcomes) != 0 {
		t.Fatalf("expected discarded report, got %+v", report)
	}
	entries, err := h.store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty library after reset, got %d entries", len(entries))
	}
}

func TestRunRejectsUnknownKind(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.orchestrator(t, policy.Set{}, time.Second).Run(context.Background(), identifier.KindUnknown)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunResolverKindReplaces(t *testing.T) {
	h := newHarness(t, `@article{Abbott2016, title = {Old}, doi = {https://doi.org/10.1103/PhysRevLett.116.061102}}`)
	h.reg.Resolver("10.1103/PhysRevLett.116.061102", testsupport.Response{Body: `@article{Abbott_2016, title = {Observation}, doi = {10.1103/PhysRevLett.116.061102}}`})

	set := policy.Set{Resolver: policy.Config{ReplaceOnFound: true}}
	report, err := h.orchestrator(t, set, time.Second).Run(context.Background(), identifier.Resolver)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := outcomeFor(t, report, "Abbott2016"); got.Applied != reconcile.AppliedReplaced || got.Followed != nil {
		t.Fatalf("unexpected outcome %+v", got)
	}
	if entry := h.entry(t, "Abbott2016"); !contains(entry.Content, "Observation") {
		t.Fatalf("expected resolver payload, got %s", entry.Content)
	}
}
