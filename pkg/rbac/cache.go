package rbac

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/apimodels"
)

// DefaultCacheTTL is the default time-to-live for cached verdicts.
const DefaultCacheTTL = 10 * time.Second

// cacheEntry stores a cached verdict with its expiration time.
type cacheEntry struct {
	allowed   bool
	expiresAt time.Time
}

// CachedAuthorizer wraps another Authorizer with a short-lived in-memory
// verdict cache to reduce the number of oracle round-trips.
type CachedAuthorizer struct {
	inner Authorizer
	ttl   time.Duration
	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewCachedAuthorizer creates a CachedAuthorizer wrapping inner.
func NewCachedAuthorizer(inner Authorizer, ttl time.Duration) *CachedAuthorizer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedAuthorizer{
		inner: inner,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// CheckPermissions answers cached resources locally and forwards the rest
// to the inner authorizer in one batch.
func (c *CachedAuthorizer) CheckPermissions(ctx context.Context, user apimodels.UserRef, resources []Resource, action Action) (map[Resource]bool, error) {
	verdicts := make(map[Resource]bool, len(resources))
	var misses []Resource

	now := time.Now()
	c.mu.RLock()
	for _, r := range resources {
		entry, ok := c.cache[cacheKey(user, r, action)]
		if ok && now.Before(entry.expiresAt) {
			verdicts[r] = entry.allowed
		} else {
			misses = append(misses, r)
		}
	}
	c.mu.RUnlock()

	if len(misses) == 0 {
		return verdicts, nil
	}

	fetched, err := c.inner.CheckPermissions(ctx, user, misses, action)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(c.ttl)
	c.mu.Lock()
	for r, allowed := range fetched {
		verdicts[r] = allowed
		c.cache[cacheKey(user, r, action)] = cacheEntry{allowed: allowed, expiresAt: expiresAt}
	}
	c.mu.Unlock()

	return verdicts, nil
}

// ListAllowedResourceIDs is forwarded uncached: enumeration results are
// not per-resource verdicts and staleness would widen list responses.
func (c *CachedAuthorizer) ListAllowedResourceIDs(ctx context.Context, user apimodels.UserRef, rt ResourceType, action Action) (bool, []uuid.UUID, error) {
	return c.inner.ListAllowedResourceIDs(ctx, user, rt, action)
}

// cacheKey builds a deterministic cache key from a verdict lookup.
func cacheKey(user apimodels.UserRef, r Resource, action Action) string {
	return fmt.Sprintf("%s:%s:%s", user.ID, r, action)
}
