// Package bibtex splits BibTeX text into entries and reads the handful of
// fields reconciliation needs.
//
// It is deliberately not a full grammar: entries are located by brace
// matching, fields are split on top-level commas, and values keep their
// inner text verbatim. @string, @preamble and @comment blocks are preserved
// as opaque entries so a library can round-trip them on export.
package bibtex
