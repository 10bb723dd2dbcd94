package domain

import "errors"

// Error taxonomy shared by every layer. Callers classify failures with
// errors.Is; none of them is fatal to the process.
var (
	// ErrValidation marks empty or otherwise invalid user input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a deck or card that no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrPersistence marks a failed storage write. In-memory state stays
	// authoritative when it is returned.
	ErrPersistence = errors.New("persistence failed")
	// ErrGeneration marks a failed or unparseable content source.
	ErrGeneration = errors.New("generation failed")
	// ErrGenerationInFlight is returned when a trigger already has a
	// generation running.
	ErrGenerationInFlight = errors.New("generation already in progress")
)
