package solution

import "errors"

// ErrPolicyLookupFailure is returned when policy text cannot be fetched or is
// empty. No candidates are produced.
var ErrPolicyLookupFailure = errors.New("policy lookup failure")
