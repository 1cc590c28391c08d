// Package errs defines the error taxonomy shared by services and routes.
// Services wrap these sentinels with context via fmt.Errorf("...: %w", ...);
// routes match them with errors.Is to pick an HTTP status.
package errs

import "errors"

var (
	// ErrNotFound means the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the actor has no authority over the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict means an availability overlap or duplicate resource.
	ErrConflict = errors.New("conflict")

	// ErrBusinessRule means a domain rule rejected the operation
	// (capacity, minimum stay, invalid state transition, refund bounds).
	ErrBusinessRule = errors.New("business rule violation")

	// ErrValidation means malformed input (bad dates, missing fields).
	ErrValidation = errors.New("validation error")
)
