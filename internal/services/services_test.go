package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bibneat/internal/services"
)

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := services.Wrap(services.ErrStore, "library", "replace", "entry 4", cause)
	if !errors.Is(err, services.ErrStore) {
		t.Fatalf("expected ErrStore marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "library: replace: entry 4") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestExitCode(t *testing.T) {
	cases := map[error]int{
		nil: 0,
		services.Wrap(services.ErrConfiguration, "config", "load", "", nil): 2,
		services.Wrap(services.ErrBusy, "library", "lock", "", nil):        3,
		errors.New("boom"): 1,
	}
	for err, want := range cases {
		if got := services.ExitCode(err); got != want {
			t.Fatalf("ExitCode(%v) = %d, want %d", err, got, want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := services.WithPassID(context.Background(), "pass-1")
	ctx = services.WithKind(ctx, "preprint")
	ctx = services.WithEntryKey(ctx, "smith2021")
	if id, ok := services.PassIDFromContext(ctx); !ok || id != "pass-1" {
		t.Fatalf("unexpected pass id %q", id)
	}
	if kind, ok := services.KindFromContext(ctx); !ok || kind != "preprint" {
		t.Fatalf("unexpected kind %q", kind)
	}
	if key, ok := services.EntryKeyFromContext(ctx); !ok || key != "smith2021" {
		t.Fatalf("unexpected entry key %q", key)
	}
	if got := services.WithPassID(ctx, ""); got != ctx {
		t.Fatal("empty pass id should return the original context")
	}
}
