package marketdata

import (
	"context"
	"time"
)

// Repository defines the interface for bar storage (ClickHouse)
type Repository interface {
	// InsertBars writes a batch of bars, replacing earlier versions of the
	// same (symbol, interval, open_time)
	InsertBars(ctx context.Context, bars []Bar) error

	// GetBars returns bars matching the query ordered by open time ascending
	GetBars(ctx context.Context, query Query) ([]Bar, error)

	// GetLatestBars returns the most recent limit bars ordered ascending
	GetLatestBars(ctx context.Context, symbol, interval string, limit int) ([]Bar, error)

	// GetLatestOpenTime returns the open time of the newest stored bar,
	// or the zero time when no bars exist
	GetLatestOpenTime(ctx context.Context, symbol, interval string) (time.Time, error)
}

// Provider serves validated series to the analysis engine.
// Implementations read from the bar store and fall back to the exchange.
type Provider interface {
	// GetSeries returns the most recent limit bars as a validated series
	GetSeries(ctx context.Context, symbol, interval string, limit int) (*Series, error)
}
