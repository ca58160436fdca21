package reconcile

import (
	"sort"
	"time"

	"bibneat/internal/identifier"
	"bibneat/internal/library"
	"bibneat/internal/registry"
)

// AppliedAction records what a pass did to one entry.
type AppliedAction int

const (
	AppliedNone AppliedAction = iota
	AppliedReplaced
	AppliedFlagged
)

func (a AppliedAction) String() string {
	switch a {
	case AppliedReplaced:
		return "replaced"
	case AppliedFlagged:
		return "flagged"
	default:
		return "none"
	}
}

// MarshalText renders the action name for JSON output.
func (a AppliedAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// FollowOutcome is the phase-two resolver lookup for a found preprint.
type FollowOutcome struct {
	Identifier string          `json:"identifier"`
	Status     registry.Status `json:"status"`
	Applied    AppliedAction   `json:"applied"`
	Error      string          `json:"error,omitempty"`
}

// Outcome is the per-entry result of a pass.
type Outcome struct {
	Index      library.EntryIndex `json:"index"`
	Key        string             `json:"key"`
	Kind       identifier.Kind    `json:"-"`
	Identifier string             `json:"identifier"`
	Status     registry.Status    `json:"status"`
	Applied    AppliedAction      `json:"applied"`
	// Alternate is the resolver identifier found in a preprint payload.
	Alternate string         `json:"alternate,omitempty"`
	Followed  *FollowOutcome `json:"followed,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Report summarizes one pass.
type Report struct {
	PassID   string    `json:"pass_id"`
	Kind     string    `json:"kind"`
	Outcomes []Outcome `json:"outcomes"`
	// Discarded is set when the library was reset while lookups were in
	// flight; no outcome was applied.
	Discarded bool      `json:"discarded,omitempty"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

// Counts tallies outcomes by status.
func (r *Report) Counts() map[registry.Status]int {
	counts := make(map[registry.Status]int, len(registry.Statuses))
	if r == nil {
		return counts
	}
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Replaced returns how many entries were overwritten, counting a follow-up
// replacement separately.
func (r *Report) Replaced() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Applied == AppliedReplaced {
			n++
		}
		if o.Followed != nil && o.Followed.Applied == AppliedReplaced {
			n++
		}
	}
	return n
}

// Duration is the wall time of the pass.
func (r *Report) Duration() time.Duration {
	if r == nil || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

func sortOutcomes(outcomes []Outcome) {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Index < outcomes[j].Index })
}
