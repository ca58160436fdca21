// Package library persists bibliography entries in SQLite and exposes the
// record-store operations reconciliation runs against.
//
// Each entry keeps its verbatim BibTeX text plus the parsed type and cite
// key. Rows are addressed by EntryIndex, the row id, which is stable for the
// lifetime of the row. Reset deletes every entry and bumps a generation
// counter; a pass that observes a different generation after its lookups
// have settled must discard its results.
//
// Identifiers replaced by a follow-up lookup are recorded as superseded so
// later passes do not fetch them again for the same entry.
//
// A sibling lock file (library.db.lock) serializes mutating passes across
// processes.
package library
