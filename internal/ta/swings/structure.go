package swings

import (
	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// StructureResult classifies the swing progression of a series
type StructureResult struct {
	Trend       Trend     `json:"trend"`
	HigherHighs []float64 `json:"higher_highs"`
	HigherLows  []float64 `json:"higher_lows"`
	LowerHighs  []float64 `json:"lower_highs"`
	LowerLows   []float64 `json:"lower_lows"`
	CurrentHigh float64   `json:"current_high"`
	CurrentLow  float64   `json:"current_low"`
}

// Structure analyzes swing point progression. Two higher highs plus two
// higher lows read uptrend, the mirrored pattern downtrend, anything
// else sideways.
func Structure(s *marketdata.Series, p Params) (StructureResult, error) {
	if s == nil {
		return StructureResult{}, errors.Wrap(errors.ErrInvalidInput, "swings: nil series")
	}

	res := StructureResult{Trend: TrendUnknown}
	if s.Len() == 0 {
		return res, nil
	}
	lastBar := s.Bars[s.Len()-1]
	res.CurrentHigh = lastBar.High
	res.CurrentLow = lastBar.Low

	detected, err := Detect(s, p)
	if err != nil {
		return res, err
	}

	res.Trend = classifyProgression(detected, &res)
	return res, nil
}

func classifyProgression(r Result, res *StructureResult) Trend {
	highs := r.Highs()
	lows := r.Lows()

	for i := 1; i < len(highs); i++ {
		if highs[i].Price > highs[i-1].Price {
			res.HigherHighs = append(res.HigherHighs, highs[i].Price)
		} else {
			res.LowerHighs = append(res.LowerHighs, highs[i].Price)
		}
	}
	for i := 1; i < len(lows); i++ {
		if lows[i].Price > lows[i-1].Price {
			res.HigherLows = append(res.HigherLows, lows[i].Price)
		} else {
			res.LowerLows = append(res.LowerLows, lows[i].Price)
		}
	}

	switch {
	case len(res.HigherHighs) >= 2 && len(res.HigherLows) >= 2:
		return TrendUp
	case len(res.LowerHighs) >= 2 && len(res.LowerLows) >= 2:
		return TrendDown
	default:
		return TrendSideways
	}
}

// progressionTrend is the structure vote used by Context
func progressionTrend(r Result) Trend {
	var res StructureResult
	return classifyProgression(r, &res)
}
