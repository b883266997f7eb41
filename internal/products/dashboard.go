package products

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/redis"
)

// DashboardCache keeps computed KPIs in Redis for a short TTL. A nil cache
// disables caching.
type DashboardCache struct {
	store redis.Cache
	ttl   time.Duration
	logg  *logger.Logger
}

func NewDashboardCache(store redis.Cache, ttl time.Duration, logg *logger.Logger) *DashboardCache {
	if store == nil || ttl <= 0 {
		return nil
	}
	return &DashboardCache{store: store, ttl: ttl, logg: logg}
}

func (c *DashboardCache) key(orgID uuid.UUID) string {
	return c.store.CacheKey("dashboard", orgID.String())
}

func (c *DashboardCache) Get(ctx context.Context, orgID uuid.UUID) (*DashboardDTO, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.store.Get(ctx, c.key(orgID))
	if err != nil || raw == "" {
		return nil, false
	}
	var out DashboardDTO
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	return &out, true
}

func (c *DashboardCache) Set(ctx context.Context, orgID uuid.UUID, value DashboardDTO) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.key(orgID), string(raw), c.ttl); err != nil {
		c.warn(ctx, orgID, "dashboard cache write failed", err)
	}
}

// Invalidate drops the cached KPIs after a catalog or stock change.
func (c *DashboardCache) Invalidate(ctx context.Context, orgID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.store.Del(ctx, c.key(orgID)); err != nil {
		c.warn(ctx, orgID, "dashboard cache invalidation failed", err)
	}
}

func (c *DashboardCache) warn(ctx context.Context, orgID uuid.UUID, msg string, err error) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{"org_id": orgID.String(), "error": err.Error()})
	c.logg.Warn(ctx, msg)
}
