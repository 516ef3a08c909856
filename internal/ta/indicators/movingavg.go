package indicators

import (
	"github.com/markcheno/go-talib"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// MAKind distinguishes simple from exponential averaging
type MAKind string

const (
	MASimple      MAKind = "sma"
	MAExponential MAKind = "ema"
)

// MAParams selects the moving average periods to compute
type MAParams struct {
	SMAPeriods []int `json:"sma_periods"`
	EMAPeriods []int `json:"ema_periods"`
}

// DefaultMAParams returns the standard watchlist set
func DefaultMAParams() MAParams {
	return MAParams{
		SMAPeriods: []int{20, 50, 200},
		EMAPeriods: []int{9, 21},
	}
}

// MAValue is one moving average reading with price position
type MAValue struct {
	Kind    MAKind `json:"kind"`
	Period  int    `json:"period"`
	Value   Value  `json:"value"`
	PriceVs string `json:"price_vs,omitempty"` // above or below
}

// MAResult holds all requested moving averages in request order
type MAResult struct {
	Values []MAValue `json:"values"`
}

// MovingAverages computes the requested SMAs and EMAs on closing prices.
// Periods beyond the series length yield unavailable entries.
func MovingAverages(s *marketdata.Series, p MAParams) (MAResult, error) {
	if s == nil {
		return MAResult{}, errors.Wrap(errors.ErrInvalidInput, "ma: nil series")
	}
	if len(p.SMAPeriods) == 0 && len(p.EMAPeriods) == 0 {
		p = DefaultMAParams()
	}

	closes := s.Closes()
	var price float64
	if b, ok := s.Last(); ok {
		price = b.Close
	}

	res := MAResult{Values: make([]MAValue, 0, len(p.SMAPeriods)+len(p.EMAPeriods))}
	for _, period := range p.SMAPeriods {
		res.Values = append(res.Values, maValue(MASimple, closes, price, period))
	}
	for _, period := range p.EMAPeriods {
		res.Values = append(res.Values, maValue(MAExponential, closes, price, period))
	}
	return res, nil
}

func maValue(kind MAKind, closes []float64, price float64, period int) MAValue {
	period = clampPeriod(period, 20)
	mv := MAValue{Kind: kind, Period: period}
	if len(closes) < period {
		return mv
	}

	var values []float64
	if kind == MASimple {
		values = talib.Sma(closes, period)
	} else {
		values = talib.Ema(closes, period)
	}
	v := last(values)
	mv.Value = Some(round2(v))
	if price > v {
		mv.PriceVs = "above"
	} else {
		mv.PriceVs = "below"
	}
	return mv
}

// SMASeries computes the full SMA array on raw values for reuse by
// detectors. The first period-1 entries are warmup.
func SMASeries(values []float64, period int) []float64 {
	if period < minPeriod || len(values) < period {
		return nil
	}
	return talib.Sma(values, period)
}

// EMASeries computes the full EMA array on raw values for reuse by detectors
func EMASeries(values []float64, period int) []float64 {
	if period < minPeriod || len(values) < period {
		return nil
	}
	return talib.Ema(values, period)
}
