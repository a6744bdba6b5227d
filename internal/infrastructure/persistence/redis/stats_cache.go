package redis

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache caches the aggregated dashboard payloads (KPI cards, chart
// data). Payload shapes belong to the query layer; this cache only moves
// JSON, keyed by widget.
type StatsCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewStatsCache creates a StatsCache with the given payload TTL.
func NewStatsCache(cache *Cache, ttl time.Duration) *StatsCache {
	return &StatsCache{cache: cache, ttl: ttl}
}

// GetKPI loads the cached KPI payload into dest. Returns ErrCacheMiss on miss.
func (c *StatsCache) GetKPI(ctx context.Context, dest interface{}) error {
	return c.cache.Get(ctx, KeyKPIStats, dest)
}

// SetKPI stores the KPI payload.
func (c *StatsCache) SetKPI(ctx context.Context, payload interface{}) error {
	return c.cache.Set(ctx, KeyKPIStats, payload, c.ttl)
}

// GetDashboard loads the cached chart payload into dest.
func (c *StatsCache) GetDashboard(ctx context.Context, dest interface{}) error {
	return c.cache.Get(ctx, KeyDashboardStats, dest)
}

// SetDashboard stores the chart payload.
func (c *StatsCache) SetDashboard(ctx context.Context, payload interface{}) error {
	return c.cache.Set(ctx, KeyDashboardStats, payload, c.ttl)
}

// Invalidate drops both widget payloads.
func (c *StatsCache) Invalidate(ctx context.Context) error {
	return c.cache.Delete(ctx, KeyKPIStats, KeyDashboardStats)
}
