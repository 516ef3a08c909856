package indicators

import (
	"github.com/markcheno/go-talib"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// RSIParams configures the Relative Strength Index calculation
type RSIParams struct {
	Period     int     `json:"period"`
	Overbought float64 `json:"overbought"`
	Oversold   float64 `json:"oversold"`
}

// DefaultRSIParams returns the standard 14-period configuration
func DefaultRSIParams() RSIParams {
	return RSIParams{Period: 14, Overbought: 70, Oversold: 30}
}

// RSIResult holds the latest RSI reading and its interpretation
type RSIResult struct {
	Value  Value  `json:"value"`
	Signal Signal `json:"signal,omitempty"`
	Period int    `json:"period"`
}

// RSI computes the Relative Strength Index on closing prices.
// A series shorter than period+1 bars yields an unavailable value.
func RSI(s *marketdata.Series, p RSIParams) (RSIResult, error) {
	if s == nil {
		return RSIResult{}, errors.Wrap(errors.ErrInvalidInput, "rsi: nil series")
	}
	if p.Overbought == 0 && p.Oversold == 0 {
		d := DefaultRSIParams()
		p.Overbought, p.Oversold = d.Overbought, d.Oversold
	}
	if p.Overbought <= p.Oversold {
		return RSIResult{}, errors.Wrapf(errors.ErrInvalidInput,
			"rsi: overbought %.1f must exceed oversold %.1f", p.Overbought, p.Oversold)
	}
	period := clampPeriod(p.Period, DefaultRSIParams().Period)

	res := RSIResult{Period: period}
	if s.Len() < period+1 {
		return res, nil
	}

	values := talib.Rsi(s.Closes(), period)
	v := last(values)

	res.Value = Some(round2(v))
	switch {
	case v > p.Overbought:
		res.Signal = SignalOverbought
	case v < p.Oversold:
		res.Signal = SignalOversold
	default:
		res.Signal = SignalNeutral
	}
	return res, nil
}

// RSISeries computes the full RSI array on raw closes for reuse by
// detectors that need per-bar values. The first period entries are warmup.
func RSISeries(closes []float64, period int) []float64 {
	if len(closes) < period+1 || period < minPeriod {
		return nil
	}
	return talib.Rsi(closes, period)
}
