package postgres

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// randomSymbol generates unique symbols so assertions survive rows left
// behind by other tests sharing the database
func randomSymbol(prefix string) string {
	return fmt.Sprintf("%s%06d", prefix, rand.Intn(999999))
}

// TestFixtures provides factory methods for creating test data. Writes
// go through the same DBTX as the repository under test, so they stay
// inside the test transaction.
type TestFixtures struct {
	db DBTX
	t  *testing.T
}

// NewTestFixtures creates a new test fixtures factory
func NewTestFixtures(t *testing.T, db DBTX) *TestFixtures {
	t.Helper()
	return &TestFixtures{
		db: db,
		t:  t,
	}
}

// CreateWatchlistEntry inserts a watchlist row and returns its ID
func (f *TestFixtures) CreateWatchlistEntry(opts ...func(*WatchlistFixture)) uuid.UUID {
	f.t.Helper()

	fixture := &WatchlistFixture{
		Symbol:   randomSymbol("FIX"),
		Interval: "4h",
		Category: "major",
		Tier:     1,
		IsActive: true,
	}

	for _, opt := range opts {
		opt(fixture)
	}

	id := uuid.New()
	query := `INSERT INTO watchlist (id, symbol, timeframe, category, tier, alert_above, alert_below,
			  is_active, is_paused, paused_reason, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`

	_, err := f.db.ExecContext(context.Background(), query, id, fixture.Symbol, fixture.Interval,
		fixture.Category, fixture.Tier, fixture.AlertAbove, fixture.AlertBelow,
		fixture.IsActive, fixture.IsPaused, fixture.PausedReason)
	require.NoError(f.t, err, "Failed to create watchlist entry")

	return id
}

// WatchlistFixture holds watchlist row configuration
type WatchlistFixture struct {
	Symbol       string
	Interval     string
	Category     string
	Tier         int
	AlertAbove   decimal.NullDecimal
	AlertBelow   decimal.NullDecimal
	IsActive     bool
	IsPaused     bool
	PausedReason *string
}

// Option builders for common customizations
func WithSymbol(symbol string) func(*WatchlistFixture) {
	return func(f *WatchlistFixture) {
		f.Symbol = symbol
	}
}

func WithInterval(interval string) func(*WatchlistFixture) {
	return func(f *WatchlistFixture) {
		f.Interval = interval
	}
}

func WithCategory(category string) func(*WatchlistFixture) {
	return func(f *WatchlistFixture) {
		f.Category = category
	}
}

func WithTier(tier int) func(*WatchlistFixture) {
	return func(f *WatchlistFixture) {
		f.Tier = tier
	}
}

func WithAlertAbove(price float64) func(*WatchlistFixture) {
	return func(f *WatchlistFixture) {
		f.AlertAbove = decimal.NullDecimal{Decimal: decimal.NewFromFloat(price), Valid: true}
	}
}

func WithAlertBelow(price float64) func(*WatchlistFixture) {
	return func(f *WatchlistFixture) {
		f.AlertBelow = decimal.NullDecimal{Decimal: decimal.NewFromFloat(price), Valid: true}
	}
}

func WithInactive() func(*WatchlistFixture) {
	return func(f *WatchlistFixture) {
		f.IsActive = false
	}
}

func WithPausedFor(reason string) func(*WatchlistFixture) {
	return func(f *WatchlistFixture) {
		f.IsPaused = true
		f.PausedReason = &reason
	}
}
