package action

import "errors"

// Precondition errors. Each is returned before any side effect runs.
var (
	ErrNoViableSolution = errors.New("no viable solution")
	ErrMissingContact   = errors.New("case file has no contact")
	ErrUnknownAction    = errors.New("unknown action kind")
	ErrInvalidCandidate = errors.New("candidate is missing required parameters")
)
