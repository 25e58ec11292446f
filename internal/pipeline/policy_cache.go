package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/rescuedesk/internal/cache"
	"github.com/kiranshivaraju/rescuedesk/internal/collab"
)

// CachedPolicyLookup serves repeated policy queries from the cache. Cache
// failures fall through to the wrapped lookup.
type CachedPolicyLookup struct {
	next  collab.PolicyLookup
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedPolicyLookup wraps next. A non-positive ttl disables caching.
func NewCachedPolicyLookup(next collab.PolicyLookup, ca cache.Cache, ttl time.Duration) *CachedPolicyLookup {
	return &CachedPolicyLookup{next: next, cache: ca, ttl: ttl}
}

func (c *CachedPolicyLookup) Policy(ctx context.Context, query string) (string, error) {
	if c.ttl <= 0 {
		return c.next.Policy(ctx, query)
	}

	key := cache.PolicyKey(fmt.Sprintf("%x", sha256.Sum256([]byte(query))))

	val, found, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("policy cache read failed", "error", err)
	}
	if found {
		return string(val), nil
	}

	text, err := c.next.Policy(ctx, query)
	if err != nil {
		return "", err
	}
	if text != "" {
		if err := c.cache.Set(ctx, key, []byte(text), c.ttl); err != nil {
			slog.Warn("policy cache write failed", "error", err)
		}
	}
	return text, nil
}

var _ collab.PolicyLookup = (*CachedPolicyLookup)(nil)
