// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking engine to distinguish between different failure scenarios
// without inspecting driver-specific errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// the row is not in the state the caller expected.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique
// key: an active booking already holds the slot, the client already
// claimed a free session type, or the ledger already holds an entry of
// the same kind for the booking.
var ErrDuplicate = errors.New("duplicate key")

// ErrInsufficientCredit is returned by the conditional credit decrement
// when the client's balance is below one.
var ErrInsufficientCredit = errors.New("insufficient credit")
