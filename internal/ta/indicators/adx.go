package indicators

import (
	"math"

	"github.com/markcheno/go-talib"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// TrendStrength grades directional movement by ADX value
type TrendStrength string

const (
	TrendStrong     TrendStrength = "strong"     // ADX above 25
	TrendDeveloping TrendStrength = "developing" // ADX 20 to 25
	TrendWeak       TrendStrength = "weak"       // ADX below 20
)

// ADXParams configures the Average Directional Index calculation
type ADXParams struct {
	Period int `json:"period"`
}

// DefaultADXParams returns the standard 14-period configuration
func DefaultADXParams() ADXParams {
	return ADXParams{Period: 14}
}

// ADXResult holds the latest directional movement readings
type ADXResult struct {
	ADX       Value         `json:"adx"`
	PlusDI    Value         `json:"plus_di"`
	MinusDI   Value         `json:"minus_di"`
	Strength  TrendStrength `json:"trend_strength,omitempty"`
	Direction Signal        `json:"trend_direction,omitempty"` // bullish when +DI leads -DI
	Period    int           `json:"period"`
}

// ADX computes the Average Directional Index with both directional lines.
// Readings are clamped into [0, 100] before interpretation.
func ADX(s *marketdata.Series, p ADXParams) (ADXResult, error) {
	if s == nil {
		return ADXResult{}, errors.Wrap(errors.ErrInvalidInput, "adx: nil series")
	}
	period := clampPeriod(p.Period, DefaultADXParams().Period)

	res := ADXResult{Period: period}
	// Wilder smoothing stacks two warmups of one period each
	if s.Len() < 2*period+1 {
		return res, nil
	}

	highs := s.Highs()
	lows := s.Lows()
	closes := s.Closes()

	adx := clamp01e2(last(talib.Adx(highs, lows, closes, period)))
	plusDI := clamp01e2(last(talib.PlusDI(highs, lows, closes, period)))
	minusDI := clamp01e2(last(talib.MinusDI(highs, lows, closes, period)))

	res.ADX = Some(round2(adx))
	res.PlusDI = Some(round2(plusDI))
	res.MinusDI = Some(round2(minusDI))

	switch {
	case adx > 25:
		res.Strength = TrendStrong
	case adx >= 20:
		res.Strength = TrendDeveloping
	default:
		res.Strength = TrendWeak
	}
	if plusDI > minusDI {
		res.Direction = SignalBullish
	} else {
		res.Direction = SignalBearish
	}
	return res, nil
}

func clamp01e2(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}
