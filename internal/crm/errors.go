package crm

import "errors"

var (
	// ErrNotFound is returned when a scoped lookup matches nothing.
	ErrNotFound = errors.New("crm: not found")

	// ErrDuplicate is returned when an insert loses to a uniqueness
	// constraint. Creation paths must treat it as "someone else won the
	// race" and fall back to a lookup, never as a failure.
	ErrDuplicate = errors.New("crm: duplicate")
)
