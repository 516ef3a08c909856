package indicators

import (
	"github.com/markcheno/go-talib"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// MACDParams configures the MACD calculation
type MACDParams struct {
	FastPeriod   int `json:"fast_period"`
	SlowPeriod   int `json:"slow_period"`
	SignalPeriod int `json:"signal_period"`
}

// DefaultMACDParams returns the standard 12/26/9 configuration
func DefaultMACDParams() MACDParams {
	return MACDParams{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}
}

// MACDResult holds the latest MACD readings and their interpretation
type MACDResult struct {
	MACD      Value  `json:"macd"`
	Signal    Value  `json:"signal"`
	Histogram Value  `json:"histogram"`
	Trend     Signal `json:"trend,omitempty"` // bullish when MACD line is above the signal line
	CrossedUp bool   `json:"crossed_up"`      // signal-line cross on the latest bar
	CrossedDn bool   `json:"crossed_down"`
}

// MACD computes Moving Average Convergence Divergence on closing prices
func MACD(s *marketdata.Series, p MACDParams) (MACDResult, error) {
	if s == nil {
		return MACDResult{}, errors.Wrap(errors.ErrInvalidInput, "macd: nil series")
	}
	fast := clampPeriod(p.FastPeriod, DefaultMACDParams().FastPeriod)
	slow := clampPeriod(p.SlowPeriod, DefaultMACDParams().SlowPeriod)
	signal := clampPeriod(p.SignalPeriod, DefaultMACDParams().SignalPeriod)
	if fast >= slow {
		return MACDResult{}, errors.Wrapf(errors.ErrInvalidInput,
			"macd: fast period %d must be below slow period %d", fast, slow)
	}

	var res MACDResult
	if s.Len() < slow+signal {
		return res, nil
	}

	macdLine, signalLine, histogram := talib.Macd(s.Closes(), fast, slow, signal)

	m := last(macdLine)
	sig := last(signalLine)
	hist := last(histogram)

	res.MACD = Some(round2(m))
	res.Signal = Some(round2(sig))
	res.Histogram = Some(round2(hist))
	if m > sig {
		res.Trend = SignalBullish
	} else {
		res.Trend = SignalBearish
	}

	// Signal-line cross detection needs the previous histogram sign
	if len(histogram) >= 2 {
		prev := histogram[len(histogram)-2]
		res.CrossedUp = prev <= 0 && hist > 0
		res.CrossedDn = prev >= 0 && hist < 0
	}
	return res, nil
}

// MACDHistogramSeries returns the raw histogram aligned index-for-index with
// closes, or nil when the input is shorter than the warmup. Leading warmup
// entries are zero.
func MACDHistogramSeries(closes []float64, fast, slow, signal int) []float64 {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal {
		return nil
	}
	_, _, histogram := talib.Macd(closes, fast, slow, signal)
	return histogram
}
