package marketdata

import (
	"time"
)

// Bar represents a single OHLCV candlestick
type Bar struct {
	Symbol      string    `ch:"symbol" json:"symbol"`
	Interval    string    `ch:"timeframe" json:"interval"` // 1m, 5m, 15m, 1h, 4h, 1d
	OpenTime    time.Time `ch:"open_time" json:"open_time"`
	CloseTime   time.Time `ch:"close_time" json:"close_time"`
	Open        float64   `ch:"open" json:"open"`
	High        float64   `ch:"high" json:"high"`
	Low         float64   `ch:"low" json:"low"`
	Close       float64   `ch:"close" json:"close"`
	Volume      float64   `ch:"volume" json:"volume"`
	QuoteVolume float64   `ch:"quote_volume" json:"quote_volume"`
	Trades      uint64    `ch:"trades" json:"trades"`
	IsClosed    bool      `ch:"is_closed" json:"is_closed"`               // Whether the kline is closed (final)
	EventTime   time.Time `ch:"event_time" json:"event_time,omitempty"`   // Exchange event timestamp (used for versioning)
}

// Bullish reports whether the bar closed above its open
func (b Bar) Bullish() bool {
	return b.Close > b.Open
}

// Bearish reports whether the bar closed below its open
func (b Bar) Bearish() bool {
	return b.Close < b.Open
}

// Body returns the absolute size of the candle body
func (b Bar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// Range returns the full high-low range of the bar
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// UpperShadow returns the wick above the body
func (b Bar) UpperShadow() float64 {
	if b.Close >= b.Open {
		return b.High - b.Close
	}
	return b.High - b.Open
}

// LowerShadow returns the wick below the body
func (b Bar) LowerShadow() float64 {
	if b.Close >= b.Open {
		return b.Open - b.Low
	}
	return b.Close - b.Low
}

// Supported kline intervals (Binance notation)
const (
	Interval1m  = "1m"
	Interval5m  = "5m"
	Interval15m = "15m"
	Interval1h  = "1h"
	Interval4h  = "4h"
	Interval1d  = "1d"
)

var intervalDurations = map[string]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
}

// IntervalDuration returns the duration of a kline interval, or false for
// an unknown interval string
func IntervalDuration(interval string) (time.Duration, bool) {
	d, ok := intervalDurations[interval]
	return d, ok
}

// ValidInterval reports whether the interval string is supported
func ValidInterval(interval string) bool {
	_, ok := intervalDurations[interval]
	return ok
}

// Query represents query parameters for bar retrieval
type Query struct {
	Symbol    string
	Interval  string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}
