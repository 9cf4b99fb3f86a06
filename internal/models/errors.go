package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every lookup failure.
var ErrNotFound = errors.New("not found")

// Sentinel errors for entity lookups.
var (
	ErrNodeNotFound         = fmt.Errorf("node %w", ErrNotFound)
	ErrRelationshipNotFound = fmt.Errorf("relationship %w", ErrNotFound)
)

// Sentinel errors for graph contract violations.
var (
	// ErrInvalidTopology indicates a relationship referencing a missing endpoint.
	ErrInvalidTopology = errors.New("invalid topology")

	// ErrIDRetired indicates an attempt to reuse an id removed earlier in the session.
	ErrIDRetired = errors.New("id already retired in this session")
)

// Sentinel errors surfaced to callers of the canvas.
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrMutationRejected = errors.New("mutation rejected")
	ErrIllegalAction    = errors.New("action not allowed in current state")
	ErrClosed           = errors.New("canvas closed")
)

// ErrMissingField returns a validation error for a required field.
func ErrMissingField(field string) error {
	return fmt.Errorf("%w: %s is required", ErrValidationFailed, field)
}
