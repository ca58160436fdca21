// Package registry looks up bibliographic metadata for a normalized
// identifier and classifies the reply.
//
// Preprint identifiers are fetched from the arXiv BibTeX endpoint and
// resolver identifiers from doi.org with a BibTeX Accept header. Every call
// is bounded by a per-request timeout and settles into exactly one Status;
// Fetch never returns an error, so callers can fan out without any failure
// escaping its own entry.
package registry
