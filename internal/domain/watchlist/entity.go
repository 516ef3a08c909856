package watchlist

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry represents a monitored symbol on the shared scan watchlist
type Entry struct {
	ID       uuid.UUID `db:"id"`
	Symbol   string    `db:"symbol"`    // BTCUSDT
	Interval string    `db:"timeframe"` // kline interval scanned for this symbol

	// Metadata for categorization
	Category string `db:"category"` // major, defi, layer1, meme, etc
	Tier     int    `db:"tier"`     // 1=BTC/ETH, 2=top20, 3=top100

	// Price alert thresholds, exact values as entered by the operator
	AlertAbove decimal.NullDecimal `db:"alert_above"`
	AlertBelow decimal.NullDecimal `db:"alert_below"`

	// State
	IsActive     bool    `db:"is_active"`
	IsPaused     bool    `db:"is_paused"`
	PausedReason *string `db:"paused_reason"`

	// Scan bookkeeping
	LastScannedAt *time.Time `db:"last_scanned_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Monitored returns true if the symbol should be scanned
func (e *Entry) Monitored() bool {
	return e.IsActive && !e.IsPaused
}

// AlertTriggered reports whether price crosses a configured threshold and
// returns which side fired ("above" or "below")
func (e *Entry) AlertTriggered(price decimal.Decimal) (string, bool) {
	if e.AlertAbove.Valid && price.GreaterThanOrEqual(e.AlertAbove.Decimal) {
		return "above", true
	}
	if e.AlertBelow.Valid && price.LessThanOrEqual(e.AlertBelow.Decimal) {
		return "below", true
	}
	return "", false
}
