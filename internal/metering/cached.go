package metering

import (
	"context"
	"time"

	"github.com/smallbiznis/lexcredit/internal/cache"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/metering/domain"
	"github.com/smallbiznis/lexcredit/internal/period"
)

const cachedEntries = 2048

// CachedClient serves repeated display reads from a short-lived cache.
// Failures are never cached.
type CachedClient struct {
	next  domain.Client
	cache cache.Cache[string, domain.Usage]
}

func NewCachedClient(next domain.Client, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedClient{
		next:  next,
		cache: cache.NewTTLCache[string, domain.Usage](cachedEntries, ttl),
	}
}

func provideCachedClient(next domain.Client, credits *config.CreditConfigHolder) *CachedClient {
	return NewCachedClient(next, credits.Get().MeteringCacheTTL)
}

func (c *CachedClient) CreditsSpent(ctx context.Context, agentID string, p period.Period) (domain.Usage, error) {
	key := cache.Key(agentID, p.String())
	if usage, ok := c.cache.Get(key); ok {
		return usage, nil
	}
	usage, err := c.next.CreditsSpent(ctx, agentID, p)
	if err != nil {
		return domain.Usage{}, err
	}
	c.cache.Set(key, usage)
	return usage, nil
}

// Invalidate drops a cached reading so the next display read hits the provider.
func (c *CachedClient) Invalidate(agentID string, p period.Period) {
	c.cache.Delete(cache.Key(agentID, p.String()))
}

var _ domain.Client = (*CachedClient)(nil)
