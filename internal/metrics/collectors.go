package metrics

import (
	"context"
	"time"

	"delphi/pkg/logger"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// CustomCollector collects gauge snapshots from the backing stores
type CustomCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn
	redis      *redis.Client

	// Descriptors
	watchlistSymbols *prometheus.Desc
	barsStored       *prometheus.Desc
	latestBarAge     *prometheus.Desc
	cacheKeys        *prometheus.Desc
}

// NewCustomCollector creates a collector over the watchlist, bar store and cache
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn, redis *redis.Client) *CustomCollector {
	return &CustomCollector{
		log:        log,
		postgres:   postgres,
		clickhouse: clickhouse,
		redis:      redis,

		watchlistSymbols: prometheus.NewDesc(
			"delphi_watchlist_symbols",
			"Number of watchlist symbols by active state",
			[]string{"active"}, nil,
		),
		barsStored: prometheus.NewDesc(
			"delphi_bars_stored",
			"Number of bars stored per interval",
			[]string{"interval"}, nil,
		),
		latestBarAge: prometheus.NewDesc(
			"delphi_latest_bar_age_seconds",
			"Seconds since the newest stored bar closed, per interval",
			[]string{"interval"}, nil,
		),
		cacheKeys: prometheus.NewDesc(
			"delphi_cache_keys",
			"Number of keys in the Redis cache database",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.watchlistSymbols
	ch <- c.barsStored
	ch <- c.latestBarAge
	ch <- c.cacheKeys
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectWatchlistStats(ctx, ch)
	c.collectBarStats(ctx, ch)
	c.collectCacheStats(ctx, ch)
}

func (c *CustomCollector) collectWatchlistStats(ctx context.Context, ch chan<- prometheus.Metric) {
	type WatchlistStat struct {
		IsActive bool `db:"is_active"`
		Count    int  `db:"count"`
	}

	var stats []WatchlistStat
	err := c.postgres.SelectContext(ctx, &stats, `
		SELECT is_active, COUNT(*) as count
		FROM watchlist
		GROUP BY is_active
	`)
	if err != nil {
		c.log.Error("Failed to collect watchlist stats", "error", err)
		return
	}

	for _, stat := range stats {
		label := "false"
		if stat.IsActive {
			label = "true"
		}
		ch <- prometheus.MustNewConstMetric(
			c.watchlistSymbols,
			prometheus.GaugeValue,
			float64(stat.Count),
			label,
		)
	}
}

func (c *CustomCollector) collectBarStats(ctx context.Context, ch chan<- prometheus.Metric) {
	rows, err := c.clickhouse.Query(ctx, `
		SELECT timeframe, count() AS bars, max(close_time) AS latest
		FROM bars
		GROUP BY timeframe
	`)
	if err != nil {
		c.log.Error("Failed to collect bar stats", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var (
			interval string
			bars     uint64
			latest   time.Time
		)
		if err := rows.Scan(&interval, &bars, &latest); err != nil {
			c.log.Error("Failed to scan bar stats row", "error", err)
			return
		}

		ch <- prometheus.MustNewConstMetric(
			c.barsStored,
			prometheus.GaugeValue,
			float64(bars),
			interval,
		)
		ch <- prometheus.MustNewConstMetric(
			c.latestBarAge,
			prometheus.GaugeValue,
			time.Since(latest).Seconds(),
			interval,
		)
	}
}

func (c *CustomCollector) collectCacheStats(ctx context.Context, ch chan<- prometheus.Metric) {
	size, err := c.redis.DBSize(ctx).Result()
	if err != nil {
		c.log.Error("Failed to collect cache stats", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.cacheKeys,
		prometheus.GaugeValue,
		float64(size),
	)
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
