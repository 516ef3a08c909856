package indicators

import (
	"github.com/markcheno/go-talib"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// ATRParams configures the Average True Range calculation
type ATRParams struct {
	Period int `json:"period"`
}

// DefaultATRParams returns the standard 14-period configuration
func DefaultATRParams() ATRParams {
	return ATRParams{Period: 14}
}

// ATRResult holds the latest ATR reading in absolute and relative terms
type ATRResult struct {
	ATR        Value `json:"atr"`
	ATRPercent Value `json:"atr_percent"` // ATR relative to the latest close
	Period     int   `json:"period"`
}

// ATR computes the Average True Range. True range uses the previous close,
// so the warmup is period+1 bars.
func ATR(s *marketdata.Series, p ATRParams) (ATRResult, error) {
	if s == nil {
		return ATRResult{}, errors.Wrap(errors.ErrInvalidInput, "atr: nil series")
	}
	period := clampPeriod(p.Period, DefaultATRParams().Period)

	res := ATRResult{Period: period}
	if s.Len() < period+1 {
		return res, nil
	}

	values := talib.Atr(s.Highs(), s.Lows(), s.Closes(), period)
	atr := last(values)
	res.ATR = Some(round2(atr))

	if price := s.Bars[s.Len()-1].Close; price > 0 {
		res.ATRPercent = Some(round2(atr / price * 100))
	}
	return res, nil
}

// ATRSeries computes the full ATR array on raw arrays for reuse by
// detectors. The first period entries are warmup.
func ATRSeries(highs, lows, closes []float64, period int) []float64 {
	if period < minPeriod || len(closes) < period+1 {
		return nil
	}
	return talib.Atr(highs, lows, closes, period)
}
