// Package pipeline drives a generation run through the fixed stage
// sequence. Stages read the shared state and return partial updates merged
// by the generation schema; the only branch is the bounded repair loop
// between the validation rounds and packaging.
package pipeline
