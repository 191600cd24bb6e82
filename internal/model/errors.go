package model

import "errors"

// Error taxonomy shared by every layer. Callers wrap these with context and
// the HTTP layer matches them with errors.Is.
var (
	// ErrInvalidParameter marks a malformed or out-of-policy request.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNoAvailability marks a valid range that collides with an active reservation.
	ErrNoAvailability = errors.New("there are no availabilities for the dates provided")
	// ErrNotFound is returned when the target reservation does not exist or is not active.
	ErrNotFound = errors.New("reservation not found")
	// ErrConflict is returned when a reservation changed since it was read.
	ErrConflict = errors.New("reservation was modified concurrently")
	// ErrLockTimeout is returned when the admission lock could not be taken in time.
	// It is safe to retry.
	ErrLockTimeout = errors.New("timed out waiting for the reservation lock")
	// ErrDuplicateExternalID is returned by a store when an external id is already taken.
	ErrDuplicateExternalID = errors.New("external identifier already exists")
)
