package ingest

import (
	"time"

	"github.com/maypok86/otter"
	"github.com/web3cache/web3cache/internal/model"
)

const subCacheCapacity = 4096

// SubscriptionSource is the store dependency of the cache.
type SubscriptionSource interface {
	FindActiveSubscriptionsByContract(contractID string) ([]model.Subscription, error)
}

// SubscriptionCache serves per-contract active-subscription lists with a
// short TTL. High-rate producers push many batches per second for the same
// contract; a bounded staleness window is acceptable here because
// deactivation already only stops new work items, it never drains existing
// ones. A zero TTL disables caching entirely.
type SubscriptionCache struct {
	source SubscriptionSource
	cache  otter.Cache[string, []model.Subscription]
	ttl    time.Duration
}

// NewSubscriptionCache creates a cache over the given source.
func NewSubscriptionCache(source SubscriptionSource, ttl time.Duration) *SubscriptionCache {
	c := &SubscriptionCache{source: source, ttl: ttl}
	if ttl <= 0 {
		return c
	}
	cache, err := otter.MustBuilder[string, []model.Subscription](subCacheCapacity).
		Cost(func(_ string, subs []model.Subscription) uint32 { return uint32(len(subs)) + 1 }).
		WithTTL(ttl).
		Build()
	if err != nil {
		panic("ingest: failed to create subscription cache: " + err.Error())
	}
	c.cache = cache
	return c
}

// ActiveSubscriptions returns the active subscriptions for a contract,
// served from cache within the TTL.
func (c *SubscriptionCache) ActiveSubscriptions(contractID string) ([]model.Subscription, error) {
	if c.ttl <= 0 {
		return c.source.FindActiveSubscriptionsByContract(contractID)
	}
	if subs, ok := c.cache.Get(contractID); ok {
		return subs, nil
	}
	subs, err := c.source.FindActiveSubscriptionsByContract(contractID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(contractID, subs)
	return subs, nil
}

// Invalidate drops the cached entry for a contract.
func (c *SubscriptionCache) Invalidate(contractID string) {
	if c.ttl > 0 {
		c.cache.Delete(contractID)
	}
}
