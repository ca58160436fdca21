// Package policy maps a lookup result to the action the orchestrator takes.
// Decide is pure; it never touches the store or the network.
package policy

import (
	"log/slog"

	"bibneat/internal/config"
	"bibneat/internal/identifier"
	"bibneat/internal/registry"
)

// Config is the policy for one identifier kind.
type Config struct {
	ReplaceOnFound    bool
	FollowToPublished bool
}

// Set holds the per-kind policies plus the interactive-add switch.
type Set struct {
	Preprint        Config
	Resolver        Config
	ImmediateFollow bool
}

// For returns the policy for kind. Unknown kinds get check-only.
func (s Set) For(kind identifier.Kind) Config {
	switch kind {
	case identifier.Preprint:
		return s.Preprint
	case identifier.Resolver:
		// Follow only chains from preprints.
		return Config{ReplaceOnFound: s.Resolver.ReplaceOnFound}
	default:
		return Config{}
	}
}

// FromConfig builds a Set from the policy section of the config file.
func FromConfig(p config.Policy) Set {
	return Set{
		Preprint: Config{
			ReplaceOnFound:    p.Preprint.ReplaceOnFound,
			FollowToPublished: p.Preprint.FollowToPublished,
		},
		Resolver:        Config{ReplaceOnFound: p.Resolver.ReplaceOnFound},
		ImmediateFollow: p.ImmediateFollow,
	}
}

// Action is what the orchestrator does with one outcome.
type Action int

const (
	ActionNone Action = iota
	ActionReplace
	ActionFlag
)

func (a Action) String() string {
	switch a {
	case ActionReplace:
		return "replace"
	case ActionFlag:
		return "flag"
	default:
		return "none"
	}
}

// Event names logged for each decision.
const (
	EventFound        = "found"
	EventLookupFailed = "lookup_failed"
	EventReplace      = "replace"
	EventFlag         = "alternate_identifier"
)

// Decision is the result of Decide.
type Decision struct {
	Action Action
	// Follow asks for one resolver lookup of the alternate identifier.
	Follow bool
	Event  string
	Level  slog.Level
}

// Decide returns the action for one settled lookup. alternate is the
// resolver identifier carried by a found preprint payload, or "".
func Decide(cfg Config, kind identifier.Kind, result registry.Result, alternate string) Decision {
	if !result.Found() {
		return Decision{Action: ActionNone, Event: EventLookupFailed, Level: slog.LevelWarn}
	}

	follow := cfg.FollowToPublished && kind == identifier.Preprint && alternate != ""
	switch {
	case cfg.ReplaceOnFound:
		return Decision{Action: ActionReplace, Follow: follow, Event: EventReplace, Level: slog.LevelInfo}
	case alternate != "":
		return Decision{Action: ActionFlag, Follow: follow, Event: EventFlag, Level: slog.LevelWarn}
	default:
		return Decision{Action: ActionNone, Event: EventFound, Level: slog.LevelInfo}
	}
}
