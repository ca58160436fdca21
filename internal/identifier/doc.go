// Package identifier normalizes raw registry identifiers pulled from
// bibliography fields or typed by the user.
//
// Two kinds are supported. Preprint identifiers address arXiv manuscripts and
// lose any URL prefix and version suffix during normalization. Resolver
// identifiers are DOIs and lose any resolver host prefix. Normalize is
// idempotent, and anything that does not look like an identifier of the
// requested kind after stripping is rejected with ErrInvalid so that it never
// reaches the network.
package identifier
