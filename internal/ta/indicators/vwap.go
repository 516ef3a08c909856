package indicators

import (
	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// VWAPResult holds the volume weighted average price over the series
type VWAPResult struct {
	VWAP         Value  `json:"vwap"`
	DeviationPct Value  `json:"deviation_pct"`
	Position     string `json:"position,omitempty"` // above_vwap, below_vwap, or at_vwap
	Signal       Signal `json:"signal,omitempty"`
}

// VWAP computes the cumulative volume weighted average of typical prices
// over the whole series. A zero-volume series yields an unavailable value.
func VWAP(s *marketdata.Series) (VWAPResult, error) {
	if s == nil {
		return VWAPResult{}, errors.Wrap(errors.ErrInvalidInput, "vwap: nil series")
	}

	var res VWAPResult
	if s.Len() == 0 {
		return res, nil
	}

	cumulativePV := 0.0
	cumulativeV := 0.0
	for _, b := range s.Bars {
		typical := (b.High + b.Low + b.Close) / 3
		cumulativePV += typical * b.Volume
		cumulativeV += b.Volume
	}
	if cumulativeV == 0 {
		return res, nil
	}

	vwap := cumulativePV / cumulativeV
	price := s.Bars[s.Len()-1].Close
	deviation := (price - vwap) / vwap * 100

	res.VWAP = Some(round2(vwap))
	res.DeviationPct = Some(round2(deviation))

	switch {
	case deviation > 2:
		res.Position = "above_vwap"
	case deviation < -2:
		res.Position = "below_vwap"
	default:
		res.Position = "at_vwap"
	}

	switch {
	case price > vwap:
		res.Signal = SignalBullish
	case price < vwap:
		res.Signal = SignalBearish
	default:
		res.Signal = SignalNeutral
	}
	return res, nil
}
