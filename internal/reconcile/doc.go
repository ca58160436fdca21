// Package reconcile runs reconciliation passes over the library.
//
// A pass enumerates every identifier of one kind, looks them all up
// concurrently, applies the policy to each settled result and, for found
// preprints carrying a DOI, runs one follow-up resolver batch. Network work
// fans out on goroutines; the orchestrator is the only goroutine that
// mutates the store and it does so only after each batch has joined.
//
// The interactive add path (AddPreprint, AddResolver) fetches a single
// identifier and inserts it. Its immediate follow-up lookup is best effort.
package reconcile
