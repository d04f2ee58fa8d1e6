package provider

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/zanwyyy/contractsync/metrics"
	"github.com/zanwyyy/contractsync/model"
)

// Cached answers repeated queries for the same address from memory for ttl.
// Only successful results are cached. Every caller gets its own copy.
type Cached struct {
	next  Provider
	cache *ttlcache.Cache[string, []model.UTXO]
}

// NewCached wraps p. A ttl <= 0 returns p unchanged.
func NewCached(p Provider, ttl time.Duration) Provider {
	if ttl <= 0 {
		return p
	}
	return &Cached{
		next: p,
		cache: ttlcache.New[string, []model.UTXO](
			ttlcache.WithTTL[string, []model.UTXO](ttl),
			ttlcache.WithDisableTouchOnHit[string, []model.UTXO](),
		),
	}
}

func (c *Cached) Name() string {
	return c.next.Name()
}

func (c *Cached) Unwrap() Provider {
	return c.next
}

func (c *Cached) GetUtxos(ctx context.Context, address string) ([]model.UTXO, error) {
	if item := c.cache.Get(address); item != nil {
		metrics.ProviderCacheHits.Inc()
		return cloneNonNil(item.Value()), nil
	}

	utxos, err := c.next.GetUtxos(ctx, address)
	if err != nil {
		return nil, err
	}
	c.cache.Set(address, cloneNonNil(utxos), ttlcache.DefaultTTL)
	return cloneNonNil(utxos), nil
}

// Invalidate drops the cached result for address, e.g. after a transaction
// touching it was submitted.
func (c *Cached) Invalidate(address string) {
	c.cache.Delete(address)
}

func (c *Cached) Purge() {
	c.cache.DeleteAll()
}

func cloneNonNil(in []model.UTXO) []model.UTXO {
	if in == nil {
		return []model.UTXO{}
	}
	return model.CloneUTXOs(in)
}
