package policy

import (
	"log/slog"
	"testing"

	"bibneat/internal/config"
	"bibneat/internal/identifier"
	"bibneat/internal/registry"
)

func TestDecide(t *testing.T) {
	found := registry.Result{Status: registry.StatusFound, Payload: "@article{x,}"}
	missing := registry.Result{Status: registry.StatusNotFound}
	timeout := registry.Result{Status: registry.StatusTimeout}

	checkOnly := Config{}
	replace := Config{ReplaceOnFound: true}
	replaceFollow := Config{ReplaceOnFound: true, FollowToPublished: true}
	followOnly := Config{FollowToPublished: true}

	cases := []struct {
		name      string
		cfg       Config
		kind      identifier.Kind
		result    registry.Result
		alternate string
		want      Decision
	}{
		{"check-only found", checkOnly, identifier.Preprint, found, "", Decision{ActionNone, false, EventFound, slog.LevelInfo}},
		{"check-only missing", checkOnly, identifier.Preprint, missing, "", Decision{ActionNone, false, EventLookupFailed, slog.LevelWarn}},
		{"check-only alternate", checkOnly, identifier.Preprint, found, "10.1/x", Decision{ActionFlag, false, EventFlag, slog.LevelWarn}},
		{"replace found", replace, identifier.Resolver, found, "", Decision{ActionReplace, false, EventReplace, slog.LevelInfo}},
		{"replace timeout", replace, identifier.Resolver, timeout, "", Decision{ActionNone, false, EventLookupFailed, slog.LevelWarn}},
		{"replace follow", replaceFollow, identifier.Preprint, found, "10.1/x", Decision{ActionReplace, true, EventReplace, slog.LevelInfo}},
		{"replace follow without doi", replaceFollow, identifier.Preprint, found, "", Decision{ActionReplace, false, EventReplace, slog.LevelInfo}},
		{"follow on resolver kind", replaceFollow, identifier.Resolver, found, "10.1/x", Decision{ActionReplace, false, EventReplace, slog.LevelInfo}},
		{"follow without replace", followOnly, identifier.Preprint, found, "10.1/x", Decision{ActionFlag, true, EventFlag, slog.LevelWarn}},
		{"follow on failure", replaceFollow, identifier.Preprint, missing, "10.1/x", Decision{ActionNone, false, EventLookupFailed, slog.LevelWarn}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.cfg, tc.kind, tc.result, tc.alternate)
			if got != tc.want {
				t.Fatalf("Decide = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSetForDropsResolverFollow(t *testing.T) {
	set := FromConfig(config.Policy{
		ImmediateFollow: true,
		Preprint:        config.KindPolicy{ReplaceOnFound: true, FollowToPublished: true},
		Resolver:        config.KindPolicy{ReplaceOnFound: true, FollowToPublished: true},
	})
	if got := set.For(identifier.Preprint); !got.ReplaceOnFound || !got.FollowToPublished {
		t.Fatalf("unexpected preprint policy %+v", got)
	}
	if got := set.For(identifier.Resolver); !got.ReplaceOnFound || got.FollowToPublished {
		t.Fatalf("unexpected resolver policy %+v", got)
	}
	if got := set.For(identifier.KindUnknown); got != (Config{}) {
		t.Fatalf("expected check-only for unknown kind, got %+v", got)
	}
	if !set.ImmediateFollow {
		t.Fatal("expected immediate follow carried over")
	}
}
