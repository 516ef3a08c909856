package analysis

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"delphi/internal/adapters/redis"
	"delphi/internal/metrics"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// CacheConfig tunes report caching
type CacheConfig struct {
	Enabled bool

	// TTL tiers selected by the report's ATR percent
	TTLVolatile time.Duration // ATR above 3% of price
	TTLNormal   time.Duration
	TTLQuiet    time.Duration // ATR below 1% of price

	// PriceBucketPct is the key bucket width as a fraction of price, so
	// small moves land on the same entry
	PriceBucketPct float64

	// InvalidationPriceMovePct drops an entry on read once price has
	// drifted this far from the cached value
	InvalidationPriceMovePct float64
}

// DefaultCacheConfig returns the 1m/3m/5m tiers with 0.1% buckets and
// 0.5% drift invalidation
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:                  true,
		TTLVolatile:              1 * time.Minute,
		TTLNormal:                3 * time.Minute,
		TTLQuiet:                 5 * time.Minute,
		PriceBucketPct:           0.001,
		InvalidationPriceMovePct: 0.005,
	}
}

// cachedReport wraps a report with the readings needed to judge staleness
type cachedReport struct {
	Report   *Report   `json:"report"`
	Price    float64   `json:"price"`
	ATRPct   float64   `json:"atr_pct"`
	StoredAt time.Time `json:"stored_at"`
}

// ReportCache memoizes full reports in Redis. Keys bucket the price, TTL
// scales with volatility and entries self-invalidate when price drifts
// past the configured threshold.
type ReportCache struct {
	config CacheConfig
	client *redis.Client
	log    *logger.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

// NewReportCache creates a report cache over the shared Redis client
func NewReportCache(config CacheConfig, client *redis.Client) *ReportCache {
	return &ReportCache{
		config: config,
		client: client,
		log:    logger.Get().With("component", "report_cache"),
	}
}

// Get returns the cached report for the bucketed price, or nil on a miss.
// Entries whose price has drifted past the invalidation threshold are
// deleted and reported as misses.
func (rc *ReportCache) Get(ctx context.Context, symbol, interval string, lookback int, currentPrice float64) (*Report, error) {
	if !rc.config.Enabled {
		return nil, nil
	}

	key := rc.key(symbol, interval, lookback, currentPrice)

	var cached cachedReport
	err := rc.client.Get(ctx, key, &cached)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			rc.misses.Add(1)
			metrics.RecordCacheLookup(false)
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get cached report for %s %s", symbol, interval)
	}

	if !rc.valid(&cached, currentPrice) {
		_ = rc.client.Delete(ctx, key)
		rc.evictions.Add(1)
		rc.misses.Add(1)
		metrics.RecordCacheLookup(false)
		return nil, nil
	}

	rc.hits.Add(1)
	metrics.RecordCacheLookup(true)
	rc.log.Debugw("Report cache hit",
		"symbol", symbol,
		"interval", interval,
		"age", time.Since(cached.StoredAt),
	)
	return cached.Report, nil
}

// Set stores a report under its bucketed price with a volatility-scaled TTL
func (rc *ReportCache) Set(ctx context.Context, lookback int, report *Report) error {
	if !rc.config.Enabled || report == nil {
		return nil
	}

	atrPct, _ := report.ATRPct()
	cached := cachedReport{
		Report:   report,
		Price:    report.Price,
		ATRPct:   atrPct,
		StoredAt: time.Now(),
	}

	key := rc.key(report.Symbol, report.Interval, lookback, report.Price)
	ttl := rc.ttlFor(atrPct)

	if err := rc.client.Set(ctx, key, cached, ttl); err != nil {
		return errors.Wrapf(err, "cache report for %s %s", report.Symbol, report.Interval)
	}

	rc.sets.Add(1)
	rc.log.Debugw("Report cached",
		"symbol", report.Symbol,
		"interval", report.Interval,
		"ttl", ttl,
	)
	return nil
}

// InvalidateSymbol drops every cached report for a symbol. Called when
// fresh bars land so the next scan recomputes.
func (rc *ReportCache) InvalidateSymbol(ctx context.Context, symbol string) error {
	if !rc.config.Enabled {
		return nil
	}

	pattern := fmt.Sprintf("analysis:%s:*", symbol)
	if err := rc.client.DeleteByPattern(ctx, pattern); err != nil {
		return errors.Wrapf(err, "invalidate cached reports for %s", symbol)
	}
	rc.evictions.Add(1)
	return nil
}

// key builds a deterministic cache key over the bucketed price
func (rc *ReportCache) key(symbol, interval string, lookback int, price float64) string {
	data := fmt.Sprintf("%s:%s:%d:%.8f", symbol, interval, lookback, rc.bucket(price))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("analysis:%s:%s:%x", symbol, interval, hash[:8])
}

// bucket quantizes price so nearby readings share a key. The width
// anchors on the price's order of magnitude, not the price itself, so
// two close prices always round to the same bucket.
func (rc *ReportCache) bucket(price float64) float64 {
	if price <= 0 || rc.config.PriceBucketPct <= 0 {
		return price
	}
	size := math.Pow(10, math.Floor(math.Log10(price))) * rc.config.PriceBucketPct
	return math.Round(price/size) * size
}

// valid rejects entries older than twice the longest TTL or whose price
// has drifted past the invalidation threshold
func (rc *ReportCache) valid(cached *cachedReport, currentPrice float64) bool {
	if cached.Report == nil {
		return false
	}
	if time.Since(cached.StoredAt) > rc.config.TTLQuiet*2 {
		return false
	}

	if cached.Price > 0 && currentPrice > 0 {
		drift := math.Abs(currentPrice-cached.Price) / cached.Price
		if drift > rc.config.InvalidationPriceMovePct {
			rc.log.Debugw("Cached report invalidated by price move",
				"symbol", cached.Report.Symbol,
				"cached_price", cached.Price,
				"current_price", currentPrice,
				"drift_pct", drift*100,
			)
			return false
		}
	}
	return true
}

// ttlFor maps the ATR percent reading to a TTL tier. Volatile symbols
// expire fast, quiet ones linger.
func (rc *ReportCache) ttlFor(atrPct float64) time.Duration {
	switch {
	case atrPct > 3:
		return rc.config.TTLVolatile
	case atrPct > 0 && atrPct < 1:
		return rc.config.TTLQuiet
	default:
		return rc.config.TTLNormal
	}
}

// Stats reports hit and miss counters for the ops surface
func (rc *ReportCache) Stats() map[string]interface{} {
	hits := rc.hits.Load()
	misses := rc.misses.Load()
	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return map[string]interface{}{
		"enabled":   rc.config.Enabled,
		"hits":      hits,
		"misses":    misses,
		"sets":      rc.sets.Load(),
		"evictions": rc.evictions.Load(),
		"hit_rate":  hitRate,
	}
}
