package collab

import "errors"

// Sentinel errors shared by every collaborator implementation.
var (
	ErrNotFound         = errors.New("collaborator record not found")
	ErrUnavailable      = errors.New("collaborator unavailable")
	ErrTimeout          = errors.New("collaborator timeout")
	ErrExecutionFailure = errors.New("action execution failed")
	ErrDeliveryFailure  = errors.New("message delivery failed")
	ErrWriteFailure     = errors.New("record write failed")
)
