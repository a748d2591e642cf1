package querysheets

import (
	"context"
	"errors"
	"time"

	"insight-agents/internal/common/database"
	"insight-agents/internal/common/logger"
	"insight-agents/internal/models"
)

const cacheKeyPrefix = "insight:sheet:"

// CachedLoader serves tables from Redis and falls through to next on a miss
// or any cache error.
type CachedLoader struct {
	next   TableLoader
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedLoader(next TableLoader, redis *database.RedisClient, ttl time.Duration, log logger.Logger) *CachedLoader {
	return &CachedLoader{
		next:   next,
		redis:  redis,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "sheet-cache"}),
	}
}

func (c *CachedLoader) LoadTable(ctx context.Context, spreadsheetID string) ([]models.Row, error) {
	key := cacheKeyPrefix + spreadsheetID

	var rows []models.Row
	err := c.redis.GetJSON(ctx, key, &rows)
	switch {
	case err == nil:
		c.logger.Debug("sheet cache hit", map[string]interface{}{"spreadsheetId": spreadsheetID, "rows": len(rows)})
		return rows, nil
	case !errors.Is(err, database.ErrCacheMiss):
		c.logger.Warn("sheet cache read failed", map[string]interface{}{"error": err.Error()})
	}

	rows, err = c.next.LoadTable(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}

	if err := c.redis.SetJSON(ctx, key, rows, c.ttl); err != nil {
		c.logger.Warn("sheet cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return rows, nil
}

// Invalidate drops the cached copy of one spreadsheet.
func (c *CachedLoader) Invalidate(ctx context.Context, spreadsheetID string) error {
	return c.redis.Del(ctx, cacheKeyPrefix+spreadsheetID)
}
