package library

import (
	"context"
	"fmt"
	"time"

	"bibneat/internal/bibtex"
	"bibneat/internal/identifier"
	"bibneat/internal/logging"
)

// Candidate pairs an entry with the raw identifier found in its fields.
type Candidate struct {
	Index EntryIndex
	Raw   string
}

// Superseded records an identifier retired by a follow-up lookup.
type Superseded struct {
	Kind         identifier.Kind
	Identifier   string
	SupersededAt time.Time
}

// Candidates returns every record carrying an identifier of kind, in library
// order. Identifiers already marked superseded for an entry are left out.
// Raw values are returned unnormalized.
func (s *Store) Candidates(ctx context.Context, kind identifier.Kind) ([]Candidate, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	retired, err := s.supersededSet(ctx, kind)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, entry := range entries {
		if !entry.IsRecord() {
			continue
		}
		block, err := bibtex.ParseEntry(entry.Content)
		if err != nil {
			logging.WarnWithContext(s.logger, "stored entry does not parse; skipped", "entry_unparseable",
				logging.String(logging.FieldEntryKey, entry.Key),
				logging.Int64(logging.FieldEntryIndex, int64(entry.Index)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "entry is not checked in this pass"),
				logging.String(logging.FieldErrorHint, "fix the entry's BibTeX and re-import it"))
			continue
		}
		var raw string
		switch kind {
		case identifier.Preprint:
			raw = bibtex.PreprintCandidate(block)
		case identifier.Resolver:
			raw = bibtex.DOICandidate(block)
		default:
			return nil, fmt.Errorf("no candidates for kind %s", kind)
		}
		if raw == "" {
			continue
		}
		if id, err := identifier.Normalize(raw, kind); err == nil {
			if _, gone := retired[entry.Index][id.Value]; gone {
				continue
			}
		}
		out = append(out, Candidate{Index: entry.Index, Raw: raw})
	}
	return out, nil
}

func (s *Store) supersededSet(ctx context.Context, kind identifier.Kind) (map[EntryIndex]map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT entry_id, identifier FROM superseded_identifiers WHERE kind = ?", kind.String())
	if err != nil {
		return nil, fmt.Errorf("list superseded identifiers: %w", err)
	}
	defer rows.Close()

	set := make(map[EntryIndex]map[string]struct{})
	for rows.Next() {
		var (
			idx   EntryIndex
			value string
		)
		if err := rows.Scan(&idx, &value); err != nil {
			return nil, fmt.Errorf("scan superseded identifier: %w", err)
		}
		if set[idx] == nil {
			set[idx] = make(map[string]struct{})
		}
		set[idx][value] = struct{}{}
	}
	return set, rows.Err()
}

// MarkSuperseded records that id no longer describes the entry.
func (s *Store) MarkSuperseded(ctx context.Context, idx EntryIndex, id identifier.Identifier) error {
	if id.IsZero() {
		return fmt.Errorf("mark superseded: empty identifier")
	}
	if _, err := s.DisplayKey(ctx, idx); err != nil {
		return err
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO superseded_identifiers (entry_id, kind, identifier, superseded_at)
         VALUES (?, ?, ?, ?)`,
		int64(idx), id.Kind.String(), id.Value, timestampNow()); err != nil {
		return fmt.Errorf("mark superseded: %w", err)
	}
	return nil
}

// SupersededFor lists identifiers retired for one entry.
func (s *Store) SupersededFor(ctx context.Context, idx EntryIndex) ([]Superseded, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, identifier, superseded_at FROM superseded_identifiers
         WHERE entry_id = ? ORDER BY id`, int64(idx))
	if err != nil {
		return nil, fmt.Errorf("list superseded identifiers: %w", err)
	}
	defer rows.Close()

	var out []Superseded
	for rows.Next() {
		var kind, value, at string
		if err := rows.Scan(&kind, &value, &at); err != nil {
			return nil, fmt.Errorf("scan superseded identifier: %w", err)
		}
		parsed, _ := identifier.ParseKind(kind)
		out = append(out, Superseded{Kind: parsed, Identifier: value, SupersededAt: parseTimestamp(at)})
	}
	return out, rows.Err()
}
