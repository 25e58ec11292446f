package pipeline

import "errors"

var (
	// ErrDuplicateIncident is returned when the same customer and transcript
	// were already submitted within the dedupe window.
	ErrDuplicateIncident = errors.New("duplicate incident")
	// ErrInvalidIncident is returned when an event lacks its customer or transcript id.
	ErrInvalidIncident = errors.New("invalid incident")
	// ErrRunDeadline is returned when the run's timeout expires before a stage starts.
	ErrRunDeadline = errors.New("run deadline exceeded")
)
