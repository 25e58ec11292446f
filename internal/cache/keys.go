package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func RunStateKey(runID uuid.UUID) string {
	return fmt.Sprintf("run:%s", runID)
}

// IncidentKey marks an incident fingerprint as in flight or handled.
func IncidentKey(fingerprint string) string {
	return fmt.Sprintf("incident:%s", fingerprint)
}

func PolicyKey(queryHash string) string {
	return fmt.Sprintf("policy:%s", queryHash)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
