package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// Compile-time check
var _ marketdata.Repository = (*BarsRepository)(nil)

// BarsRepository implements marketdata.Repository using ClickHouse.
// The bars table is a ReplacingMergeTree versioned by event_time, so
// re-inserting a bar with a newer event time supersedes the old row.
type BarsRepository struct {
	conn driver.Conn
}

// NewBarsRepository creates a new bar repository
func NewBarsRepository(conn driver.Conn) *BarsRepository {
	return &BarsRepository{conn: conn}
}

// InsertBars inserts bars in batch
func (r *BarsRepository) InsertBars(ctx context.Context, bars []marketdata.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			symbol, timeframe, open_time, close_time,
			open, high, low, close, volume, quote_volume, trades,
			is_closed, event_time
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	for _, bar := range bars {
		err := batch.Append(
			bar.Symbol, bar.Interval, bar.OpenTime, bar.CloseTime,
			bar.Open, bar.High, bar.Low, bar.Close,
			bar.Volume, bar.QuoteVolume, bar.Trades,
			bar.IsClosed, bar.EventTime,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append bar")
		}
	}

	return batch.Send()
}

// GetBars retrieves bars with query parameters, oldest first
func (r *BarsRepository) GetBars(ctx context.Context, query marketdata.Query) ([]marketdata.Bar, error) {
	var bars []marketdata.Bar

	sql := `
		SELECT symbol, timeframe, open_time, close_time, open, high, low, close,
		       volume, quote_volume, trades, is_closed, event_time
		FROM bars FINAL
		WHERE symbol = $1 AND timeframe = $2`

	args := []interface{}{query.Symbol, query.Interval}

	if !query.StartTime.IsZero() {
		sql += fmt.Sprintf(` AND open_time >= $%d`, len(args)+1)
		args = append(args, query.StartTime)
	}

	if !query.EndTime.IsZero() {
		sql += fmt.Sprintf(` AND open_time <= $%d`, len(args)+1)
		args = append(args, query.EndTime)
	}

	sql += ` ORDER BY open_time ASC`

	if query.Limit > 0 {
		sql += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, query.Limit)
	}

	err := r.conn.Select(ctx, &bars, sql, args...)
	return bars, err
}

// GetLatestBars retrieves the newest N bars, reordered oldest first so the
// result feeds straight into a series
func (r *BarsRepository) GetLatestBars(ctx context.Context, symbol, interval string, limit int) ([]marketdata.Bar, error) {
	var bars []marketdata.Bar

	sql := `
		SELECT symbol, timeframe, open_time, close_time, open, high, low, close,
		       volume, quote_volume, trades, is_closed, event_time
		FROM (
			SELECT *
			FROM bars FINAL
			WHERE symbol = $1 AND timeframe = $2
			ORDER BY open_time DESC
			LIMIT $3
		)
		ORDER BY open_time ASC`

	err := r.conn.Select(ctx, &bars, sql, symbol, interval, limit)
	return bars, err
}

// GetLatestOpenTime returns the open time of the newest stored bar.
// Returns the zero time when no bars exist for the pair.
func (r *BarsRepository) GetLatestOpenTime(ctx context.Context, symbol, interval string) (time.Time, error) {
	var latest time.Time

	sql := `
		SELECT max(open_time)
		FROM bars
		WHERE symbol = $1 AND timeframe = $2`

	if err := r.conn.QueryRow(ctx, sql, symbol, interval).Scan(&latest); err != nil {
		return time.Time{}, err
	}

	// ClickHouse max() over an empty set yields the epoch, not a NULL
	if latest.Unix() <= 0 {
		return time.Time{}, nil
	}

	return latest, nil
}
