package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"delphi/internal/adapters/clickhouse"
	"delphi/internal/adapters/config"
	"delphi/internal/domain/marketdata"
)

// ClickHouseTestHelper manages cleanup for ClickHouse integration tests.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewClickHouseTestHelper creates a ClickHouse client for tests.
func NewClickHouseTestHelper(t *testing.T, cfg config.ClickHouseConfig) *ClickHouseTestHelper {
	t.Helper()

	client, err := clickhouse.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}

	helper := &ClickHouseTestHelper{client: client}
	t.Cleanup(func() { _ = client.Close() })
	return helper
}

// CreateTempTable creates a temporary table and registers cleanup.
func (h *ClickHouseTestHelper) CreateTempTable(t *testing.T, schema string) string {
	t.Helper()

	table := fmt.Sprintf("tmp_test_%d", time.Now().UnixNano())
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY tuple()", table, schema)

	if err := h.client.Exec(context.Background(), query); err != nil {
		t.Fatalf("failed to create clickhouse table: %v", err)
	}

	t.Cleanup(func() {
		_ = h.client.Exec(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
	})

	return table
}

// CleanupTable drops the provided table immediately.
func (h *ClickHouseTestHelper) CleanupTable(ctx context.Context, table string) error {
	return h.client.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
}

// TruncateTable removes all data from the table but keeps the structure
func (h *ClickHouseTestHelper) TruncateTable(ctx context.Context, table string) error {
	return h.client.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", table))
}

// RegisterTableCleanup schedules cleanup of specific table data after test completes
// This is useful when working with shared tables that shouldn't be dropped
func (h *ClickHouseTestHelper) RegisterTableCleanup(t *testing.T, table, condition string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Use DELETE for immediate cleanup (ALTER TABLE DELETE is async)
		query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, condition)
		_ = h.client.Exec(ctx, query)
	})
}

// CreateBatch is a generic function to insert test data into ClickHouse tables
// Usage: testsupport.CreateBatch(t, helper, testsupport.InsertBars, bars)
func CreateBatch[T any](t *testing.T, helper *ClickHouseTestHelper, insertQuery string, items []T) {
	t.Helper()

	if len(items) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch, err := helper.client.Conn().PrepareBatch(ctx, insertQuery)
	if err != nil {
		t.Fatalf("failed to prepare batch: %v", err)
	}

	for _, item := range items {
		if err := batch.AppendStruct(&item); err != nil {
			t.Fatalf("failed to append item to batch: %v", err)
		}
	}

	if err := batch.Send(); err != nil {
		t.Fatalf("failed to send batch: %v", err)
	}
}

// Predefined insert queries for common tables
const (
	InsertBars = `
		INSERT INTO bars (
			symbol, timeframe, open_time, close_time,
			open, high, low, close, volume, quote_volume, trades,
			is_closed, event_time
		)
	`
)

// Client exposes the raw ClickHouse client for queries.
func (h *ClickHouseTestHelper) Client() *clickhouse.Client {
	return h.client
}

// ========================================
// Fixture Builders for ClickHouse Tests
// ========================================

// BarFixture provides builder pattern for creating test bars
type BarFixture struct {
	bar marketdata.Bar
}

// NewBarFixture creates a default closed hourly BTCUSDT bar
func NewBarFixture() *BarFixture {
	now := time.Now().Truncate(time.Hour)
	return &BarFixture{
		bar: marketdata.Bar{
			Symbol:      "BTCUSDT",
			Interval:    marketdata.Interval1h,
			OpenTime:    now,
			CloseTime:   now.Add(time.Hour - time.Millisecond),
			Open:        104250.0,
			High:        105100.0,
			Low:         104100.0,
			Close:       104890.0,
			Volume:      1523.8,
			QuoteVolume: 159482301.5,
			Trades:      48213,
			IsClosed:    true,
			EventTime:   now.Add(time.Hour - time.Millisecond),
		},
	}
}

// WithSymbol sets the bar symbol
func (f *BarFixture) WithSymbol(symbol string) *BarFixture {
	f.bar.Symbol = symbol
	return f
}

// WithInterval sets the kline interval
func (f *BarFixture) WithInterval(interval string) *BarFixture {
	f.bar.Interval = interval
	return f
}

// WithOpenTime sets the open time and shifts the close time to match
func (f *BarFixture) WithOpenTime(openTime time.Time) *BarFixture {
	d, ok := marketdata.IntervalDuration(f.bar.Interval)
	if !ok {
		d = time.Hour
	}
	f.bar.OpenTime = openTime
	f.bar.CloseTime = openTime.Add(d - time.Millisecond)
	f.bar.EventTime = f.bar.CloseTime
	return f
}

// WithPrices sets OHLC values
func (f *BarFixture) WithPrices(open, high, low, close float64) *BarFixture {
	f.bar.Open = open
	f.bar.High = high
	f.bar.Low = low
	f.bar.Close = close
	return f
}

// WithVolume sets base and quote volume
func (f *BarFixture) WithVolume(volume, quoteVolume float64) *BarFixture {
	f.bar.Volume = volume
	f.bar.QuoteVolume = quoteVolume
	return f
}

// WithTrades sets the trade count
func (f *BarFixture) WithTrades(trades uint64) *BarFixture {
	f.bar.Trades = trades
	return f
}

// Forming marks the bar as still open
func (f *BarFixture) Forming() *BarFixture {
	f.bar.IsClosed = false
	return f
}

// Build returns the bar
func (f *BarFixture) Build() marketdata.Bar {
	return f.bar
}

// BuildMany returns n sequential bars advancing one interval per bar
func (f *BarFixture) BuildMany(n int) []marketdata.Bar {
	d, ok := marketdata.IntervalDuration(f.bar.Interval)
	if !ok {
		d = time.Hour
	}

	bars := make([]marketdata.Bar, 0, n)
	for i := 0; i < n; i++ {
		bar := f.bar
		bar.OpenTime = f.bar.OpenTime.Add(time.Duration(i) * d)
		bar.CloseTime = bar.OpenTime.Add(d - time.Millisecond)
		bar.EventTime = bar.CloseTime
		bars = append(bars, bar)
	}
	return bars
}
