package library

import "errors"

var (
	// ErrEntryNotFound indicates no entry exists for an EntryIndex.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrDuplicateKey indicates an insert would reuse an existing cite key.
	ErrDuplicateKey = errors.New("duplicate cite key")
	// ErrInvalidContent indicates text that does not hold a BibTeX record.
	ErrInvalidContent = errors.New("content is not a bibtex record")
	// ErrPassInProgress indicates another process holds the pass lock.
	ErrPassInProgress = errors.New("another reconciliation pass is running")
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
