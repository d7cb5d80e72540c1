// Package repair patches generated artifacts that failed validation.
// Each repairable check category maps to one narrowly scoped, idempotent
// patch; the coordinator applies them in a fixed severity order and the
// ShouldRetry predicate alone bounds the repair loop.
package repair
