package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delphi/internal/domain/marketdata"
	"delphi/internal/testsupport"
)

func TestBarsRepository_InsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg := testsupport.LoadDatabaseConfigsFromEnv(t)
	helper := testsupport.NewClickHouseTestHelper(t, cfg.ClickHouse)

	repo := NewBarsRepository(helper.Client().Conn())
	ctx := context.Background()

	helper.RegisterTableCleanup(t, "bars", "symbol IN ('BTCUSDT', 'ETHUSDT', 'SOLUSDT', 'TESTUSDT')")

	t.Run("InsertBars_Success", func(t *testing.T) {
		btcBar := testsupport.NewBarFixture().
			WithSymbol("BTCUSDT").
			WithPrices(104250, 105100, 104100, 104890).
			WithVolume(1523.8, 159482301.5).
			WithTrades(48213).
			Build()

		ethBar := testsupport.NewBarFixture().
			WithSymbol("ETHUSDT").
			WithPrices(2510, 2544, 2498, 2531).
			WithVolume(18200, 45900000).
			WithTrades(21077).
			Build()

		err := repo.InsertBars(ctx, []marketdata.Bar{btcBar, ethBar})
		require.NoError(t, err)

		var count uint64
		err = helper.Client().Query(ctx, &count, "SELECT count() FROM bars WHERE symbol IN ('BTCUSDT', 'ETHUSDT')")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, uint64(2))
	})

	t.Run("InsertBars_EmptySlice", func(t *testing.T) {
		err := repo.InsertBars(ctx, []marketdata.Bar{})
		require.NoError(t, err)
	})

	t.Run("GetLatestBars_AscendingOrder", func(t *testing.T) {
		baseTime := time.Now().Truncate(time.Hour).Add(-48 * time.Hour)

		bars := testsupport.NewBarFixture().
			WithSymbol("SOLUSDT").
			WithInterval(marketdata.Interval4h).
			WithOpenTime(baseTime).
			WithPrices(148, 152, 147, 151).
			WithVolume(90000, 13500000).
			WithTrades(8100).
			BuildMany(5)

		testsupport.CreateBatch(t, helper, testsupport.InsertBars, bars)

		result, err := repo.GetLatestBars(ctx, "SOLUSDT", marketdata.Interval4h, 3)
		require.NoError(t, err)
		require.Len(t, result, 3)

		// Newest three bars, oldest first
		assert.Equal(t, bars[2].OpenTime.Unix(), result[0].OpenTime.Unix())
		assert.Equal(t, bars[4].OpenTime.Unix(), result[2].OpenTime.Unix())
		assert.True(t, result[0].OpenTime.Before(result[1].OpenTime))
		assert.True(t, result[1].OpenTime.Before(result[2].OpenTime))
	})

	t.Run("GetBars_WithTimeRange", func(t *testing.T) {
		baseTime := time.Now().Truncate(time.Hour).Add(-100 * time.Hour)

		bars := testsupport.NewBarFixture().
			WithSymbol("TESTUSDT").
			WithInterval(marketdata.Interval1h).
			WithOpenTime(baseTime).
			WithPrices(10, 11, 9.5, 10.5).
			WithVolume(1000, 10500).
			WithTrades(250).
			BuildMany(4)

		err := repo.InsertBars(ctx, bars)
		require.NoError(t, err)

		query := marketdata.Query{
			Symbol:    "TESTUSDT",
			Interval:  marketdata.Interval1h,
			StartTime: baseTime.Add(time.Hour),
			EndTime:   baseTime.Add(2 * time.Hour),
			Limit:     10,
		}

		result, err := repo.GetBars(ctx, query)
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, bars[1].OpenTime.Unix(), result[0].OpenTime.Unix())
		assert.Equal(t, bars[2].OpenTime.Unix(), result[1].OpenTime.Unix())
	})

	t.Run("GetLatestOpenTime", func(t *testing.T) {
		latest, err := repo.GetLatestOpenTime(ctx, "TESTUSDT", marketdata.Interval1h)
		require.NoError(t, err)
		assert.False(t, latest.IsZero())

		latest, err = repo.GetLatestOpenTime(ctx, "NOSUCHUSDT", marketdata.Interval1h)
		require.NoError(t, err)
		assert.True(t, latest.IsZero())
	})

	t.Run("Reinsert_NewerVersionWins", func(t *testing.T) {
		openTime := time.Now().Truncate(time.Hour).Add(-200 * time.Hour)

		forming := testsupport.NewBarFixture().
			WithSymbol("TESTUSDT").
			WithOpenTime(openTime).
			WithPrices(20, 21, 19.8, 20.4).
			Forming().
			Build()
		forming.EventTime = openTime.Add(30 * time.Minute)

		final := forming
		final.Close = 20.9
		final.IsClosed = true
		final.EventTime = openTime.Add(time.Hour)

		require.NoError(t, repo.InsertBars(ctx, []marketdata.Bar{forming}))
		require.NoError(t, repo.InsertBars(ctx, []marketdata.Bar{final}))

		result, err := repo.GetBars(ctx, marketdata.Query{
			Symbol:    "TESTUSDT",
			Interval:  marketdata.Interval1h,
			StartTime: openTime,
			EndTime:   openTime,
		})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, 20.9, result[0].Close)
		assert.True(t, result[0].IsClosed)
	})
}
