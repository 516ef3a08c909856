package indicators

import (
	"encoding/json"
	"math"
)

// Value is a single indicator reading that may be unavailable when the
// series is shorter than the indicator warmup. The zero Value is unavailable.
type Value struct {
	Float64 float64
	Valid   bool
}

// Some wraps an available reading
func Some(v float64) Value {
	return Value{Float64: v, Valid: true}
}

// Or returns the reading or the fallback when unavailable
func (v Value) Or(fallback float64) float64 {
	if !v.Valid {
		return fallback
	}
	return v.Float64
}

// MarshalJSON encodes an unavailable reading as null
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float64)
}

// UnmarshalJSON decodes null as an unavailable reading
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	if err := json.Unmarshal(data, &v.Float64); err != nil {
		return err
	}
	v.Valid = true
	return nil
}

// Signal is a categorical interpretation of an indicator reading
type Signal string

const (
	SignalBullish       Signal = "bullish"
	SignalBearish       Signal = "bearish"
	SignalNeutral       Signal = "neutral"
	SignalStrongBullish Signal = "strong_bullish"
	SignalStrongBearish Signal = "strong_bearish"
	SignalOverbought    Signal = "overbought"
	SignalOversold      Signal = "oversold"
)

// Period bounds for window-type parameters. Out-of-range periods are
// clamped and the effective value is echoed in the result.
const (
	minPeriod = 2
	maxPeriod = 500
)

func clampPeriod(period, fallback int) int {
	if period <= 0 {
		period = fallback
	}
	if period < minPeriod {
		return minPeriod
	}
	if period > maxPeriod {
		return maxPeriod
	}
	return period
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func last(values []float64) float64 {
	return values[len(values)-1]
}
