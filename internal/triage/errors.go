package triage

import "errors"

// ErrLookupFailure wraps any failed or empty read of the customer profile or
// transcript. The run aborts before any side effect.
var ErrLookupFailure = errors.New("triage lookup failure")
