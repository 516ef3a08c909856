package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "delphi/internal/adapters/redis"
	"delphi/internal/testsupport"
)

func TestReportCache_KeyBucketing(t *testing.T) {
	rc := NewReportCache(DefaultCacheConfig(), nil)

	base := rc.key("TLKM", "1d", 300, 4150.0)

	// Within a tenth of a percent the key holds
	assert.Equal(t, base, rc.key("TLKM", "1d", 300, 4150.4))

	// A real move, another interval or another lookback all miss
	assert.NotEqual(t, base, rc.key("TLKM", "1d", 300, 4190.0))
	assert.NotEqual(t, base, rc.key("TLKM", "4h", 300, 4150.0))
	assert.NotEqual(t, base, rc.key("TLKM", "1d", 100, 4150.0))
	assert.NotEqual(t, base, rc.key("BBCA", "1d", 300, 4150.0))
}

func TestReportCache_BucketStable(t *testing.T) {
	rc := NewReportCache(DefaultCacheConfig(), nil)

	// Quantization must be idempotent and insensitive to tiny drift
	b := rc.bucket(104250.0)
	assert.Equal(t, b, rc.bucket(b))
	assert.Equal(t, rc.bucket(104250.0), rc.bucket(104251.0))
}

func TestReportCache_ValidRejectsDrift(t *testing.T) {
	rc := NewReportCache(DefaultCacheConfig(), nil)

	cached := &cachedReport{
		Report:   &Report{Symbol: "TLKM"},
		Price:    100.0,
		StoredAt: time.Now(),
	}

	assert.True(t, rc.valid(cached, 100.2))  // 0.2% drift, inside threshold
	assert.False(t, rc.valid(cached, 101.0)) // 1% drift
	assert.False(t, rc.valid(cached, 99.0))

	stale := &cachedReport{
		Report:   &Report{Symbol: "TLKM"},
		Price:    100.0,
		StoredAt: time.Now().Add(-time.Hour),
	}
	assert.False(t, rc.valid(stale, 100.0))

	assert.False(t, rc.valid(&cachedReport{Price: 100, StoredAt: time.Now()}, 100.0))
}

func TestReportCache_TTLTiers(t *testing.T) {
	cfg := DefaultCacheConfig()
	rc := NewReportCache(cfg, nil)

	assert.Equal(t, cfg.TTLVolatile, rc.ttlFor(4.2))
	assert.Equal(t, cfg.TTLNormal, rc.ttlFor(2.0))
	assert.Equal(t, cfg.TTLQuiet, rc.ttlFor(0.6))

	// Unknown volatility stays on the middle tier
	assert.Equal(t, cfg.TTLNormal, rc.ttlFor(0))
}

func TestReportCache_Disabled(t *testing.T) {
	cfg := DefaultCacheConfig()
	cfg.Enabled = false
	rc := NewReportCache(cfg, nil)

	report, err := rc.Get(context.Background(), "TLKM", "1d", 300, 100)
	require.NoError(t, err)
	assert.Nil(t, report)

	require.NoError(t, rc.Set(context.Background(), 300, &Report{Symbol: "TLKM"}))
	require.NoError(t, rc.InvalidateSymbol(context.Background(), "TLKM"))
}

func TestReportCache_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfgs := testsupport.LoadDatabaseConfigsFromEnv(t)
	testsupport.NewRedisClient(t, cfgs.Redis)

	client, err := redisadapter.NewClient(cfgs.Redis)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	rc := NewReportCache(DefaultCacheConfig(), client)
	ctx := context.Background()

	report := &Report{
		Symbol:   "TLKM",
		Interval: "1d",
		Price:    4150.0,
		BarCount: 300,
	}
	require.NoError(t, rc.Set(ctx, 300, report))

	got, err := rc.Get(ctx, "TLKM", "1d", 300, 4150.0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, report.Symbol, got.Symbol)
	assert.Equal(t, report.Price, got.Price)

	// Nearby price hits the same bucket
	got, err = rc.Get(ctx, "TLKM", "1d", 300, 4150.4)
	require.NoError(t, err)
	assert.NotNil(t, got)

	// Unknown symbol misses
	got, err = rc.Get(ctx, "GOTO", "1d", 300, 85.0)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Invalidation clears every entry for the symbol
	require.NoError(t, rc.InvalidateSymbol(ctx, "TLKM"))
	got, err = rc.Get(ctx, "TLKM", "1d", 300, 4150.0)
	require.NoError(t, err)
	assert.Nil(t, got)
}
