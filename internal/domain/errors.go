// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates the input was rejected before any mutation.
var ErrValidation = errors.New("validation failed")

// ErrConflict indicates the requested change is not allowed in the entity's current state.
var ErrConflict = errors.New("conflict")

// ErrCycle indicates a task would become its own ancestor.
var ErrCycle = errors.New("task ancestry contains a cycle")
