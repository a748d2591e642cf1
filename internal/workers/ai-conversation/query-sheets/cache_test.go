package querysheets

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insight-agents/internal/common/database"
	"insight-agents/internal/common/logger"
	"insight-agents/internal/models"
)

type countingLoader struct {
	rows  []models.Row
	err   error
	calls atomic.Int32
}

func (l *countingLoader) LoadTable(ctx context.Context, spreadsheetID string) ([]models.Row, error) {
	l.calls.Add(1)
	return l.rows, l.err
}

func setupRedis(t *testing.T) (*database.RedisClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return database.NewRedisFromClient(client), mr
}

func TestCachedLoader_MissThenHit(t *testing.T) {
	rc, mr := setupRedis(t)
	next := &countingLoader{rows: crawlFixture()}
	loader := NewCachedLoader(next, rc, time.Minute, logger.NewTestLogger(t))

	first, err := loader.LoadTable(context.Background(), "sheet-1")
	require.NoError(t, err)
	second, err := loader.LoadTable(context.Background(), "sheet-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, crawlColumns, second[0].Columns())
	assert.True(t, mr.Exists("insight:sheet:sheet-1"))
	assert.Equal(t, time.Minute, mr.TTL("insight:sheet:sheet-1"))
}

func TestCachedLoader_ExpiryReloads(t *testing.T) {
	rc, mr := setupRedis(t)
	next := &countingLoader{rows: crawlFixture()}
	loader := NewCachedLoader(next, rc, time.Minute, logger.NewTestLogger(t))

	_, err := loader.LoadTable(context.Background(), "sheet-1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = loader.LoadTable(context.Background(), "sheet-1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedLoader_CorruptEntryFallsThrough(t *testing.T) {
	rc, mr := setupRedis(t)
	require.NoError(t, mr.Set("insight:sheet:sheet-1", "{not json"))
	next := &countingLoader{rows: crawlFixture()}
	loader := NewCachedLoader(next, rc, time.Minute, logger.NewTestLogger(t))

	rows, err := loader.LoadTable(context.Background(), "sheet-1")
	require.NoError(t, err)
	assert.Len(t, rows, 6)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedLoader_RedisDownStillLoads(t *testing.T) {
	rc, mr := setupRedis(t)
	mr.Close()
	next := &countingLoader{rows: crawlFixture()}
	loader := NewCachedLoader(next, rc, time.Minute, logger.NewTestLogger(t))

	rows, err := loader.LoadTable(context.Background(), "sheet-1")
	require.NoError(t, err)
	assert.Len(t, rows, 6)
}

func TestCachedLoader_LoadErrorNotCached(t *testing.T) {
	rc, mr := setupRedis(t)
	next := &countingLoader{err: errors.New("403 forbidden")}
	loader := NewCachedLoader(next, rc, time.Minute, logger.NewTestLogger(t))

	_, err := loader.LoadTable(context.Background(), "sheet-1")
	assert.EqualError(t, err, "403 forbidden")
	assert.False(t, mr.Exists("insight:sheet:sheet-1"))
}

func TestCachedLoader_Invalidate(t *testing.T) {
	rc, mr := setupRedis(t)
	next := &countingLoader{rows: crawlFixture()}
	loader := NewCachedLoader(next, rc, time.Minute, logger.NewTestLogger(t))

	_, err := loader.LoadTable(context.Background(), "sheet-1")
	require.NoError(t, err)
	require.NoError(t, loader.Invalidate(context.Background(), "sheet-1"))
	assert.False(t, mr.Exists("insight:sheet:sheet-1"))
}
