// Command bibneat keeps a BibTeX library in step with arXiv and doi.org.
//
// Entries are imported into a local SQLite library, checked against the
// registries in concurrent passes, and optionally replaced with the
// registry's metadata. Run `bibneat --help` for the command list.
package main
