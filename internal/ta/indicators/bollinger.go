package indicators

import (
	"github.com/markcheno/go-talib"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// BollingerParams configures the Bollinger Bands calculation
type BollingerParams struct {
	Period int     `json:"period"`
	StdDev float64 `json:"std_dev"`
}

// DefaultBollingerParams returns the standard 20-period 2-sigma configuration
func DefaultBollingerParams() BollingerParams {
	return BollingerParams{Period: 20, StdDev: 2.0}
}

// BollingerResult holds the latest band values and position within them
type BollingerResult struct {
	Upper    Value  `json:"upper"`
	Middle   Value  `json:"middle"`
	Lower    Value  `json:"lower"`
	Width    Value  `json:"width"`
	PercentB Value  `json:"percent_b"` // 0 = lower band, 100 = upper band
	Signal   Signal `json:"signal,omitempty"`
	Period   int    `json:"period"`
}

// Bollinger computes Bollinger Bands on closing prices. Percent B above 80
// reads overbought, below 20 oversold.
func Bollinger(s *marketdata.Series, p BollingerParams) (BollingerResult, error) {
	if s == nil {
		return BollingerResult{}, errors.Wrap(errors.ErrInvalidInput, "bollinger: nil series")
	}
	if p.StdDev == 0 {
		p.StdDev = DefaultBollingerParams().StdDev
	}
	if p.StdDev < 0 {
		return BollingerResult{}, errors.Wrapf(errors.ErrInvalidInput,
			"bollinger: std dev multiplier %.2f must be positive", p.StdDev)
	}
	period := clampPeriod(p.Period, DefaultBollingerParams().Period)

	res := BollingerResult{Period: period}
	if s.Len() < period {
		return res, nil
	}

	upper, middle, lower := talib.BBands(s.Closes(), period, p.StdDev, p.StdDev, talib.SMA)

	u := last(upper)
	m := last(middle)
	l := last(lower)
	price := s.Bars[s.Len()-1].Close

	res.Upper = Some(round2(u))
	res.Middle = Some(round2(m))
	res.Lower = Some(round2(l))

	width := u - l
	res.Width = Some(round2(width))

	percentB := 50.0
	if width > 0 {
		percentB = (price - l) / width * 100
	}
	res.PercentB = Some(round2(percentB))

	switch {
	case percentB > 80:
		res.Signal = SignalOverbought
	case percentB < 20:
		res.Signal = SignalOversold
	default:
		res.Signal = SignalNeutral
	}
	return res, nil
}
