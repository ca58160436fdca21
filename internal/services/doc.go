// Package services holds the small cross-cutting pieces every component
// shares: context annotations for pass and entry identity, and the error
// markers used to classify failures at the CLI boundary.
package services
