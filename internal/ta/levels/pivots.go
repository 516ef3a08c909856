package levels

import (
	"fmt"

	"delphi/internal/domain/marketdata"
	"delphi/internal/ta/indicators"
	"delphi/pkg/errors"
)

// PivotKind selects the formula family for pivot point levels.
type PivotKind string

const (
	PivotClassic   PivotKind = "classic"
	PivotFibonacci PivotKind = "fibonacci"
	PivotWoodie    PivotKind = "woodie"
	PivotCamarilla PivotKind = "camarilla"
)

// PivotSet holds the central pivot plus resistance and support tiers.
// R and S are ordered by tier: R[0] is r1, S[0] is s1. Classic, Fibonacci
// and Woodie carry three tiers, Camarilla four.
type PivotSet struct {
	Kind PivotKind `json:"type"`
	PP   float64   `json:"pivot"`
	R    []Level   `json:"resistance_levels"`
	S    []Level   `json:"support_levels"`
}

// ComputePivots derives a pivot set from a single period's high, low and
// close. An unknown kind falls back to classic.
func ComputePivots(high, low, close float64, kind PivotKind) PivotSet {
	rng := high - low
	var pp float64
	var r, s []float64

	switch kind {
	case PivotFibonacci:
		pp = (high + low + close) / 3
		for _, ratio := range []float64{0.382, 0.618, 1} {
			r = append(r, pp+ratio*rng)
			s = append(s, pp-ratio*rng)
		}
	case PivotWoodie:
		pp = (high + low + 2*close) / 4
		r, s = classicTiers(pp, high, low)
	case PivotCamarilla:
		pp = (high + low + close) / 3
		for _, div := range []float64{12, 6, 4, 2} {
			r = append(r, close+rng*1.1/div)
			s = append(s, close-rng*1.1/div)
		}
	default:
		kind = PivotClassic
		pp = (high + low + close) / 3
		r, s = classicTiers(pp, high, low)
	}

	set := PivotSet{Kind: kind, PP: round2(pp)}
	for i := range r {
		set.R = append(set.R, Level{Label: fmt.Sprintf("r%d", i+1), Price: round2(r[i])})
		set.S = append(set.S, Level{Label: fmt.Sprintf("s%d", i+1), Price: round2(s[i])})
	}
	return set
}

func classicTiers(pp, high, low float64) (r, s []float64) {
	r = []float64{2*pp - low, pp + (high - low), high + 2*(pp-low)}
	s = []float64{2*pp - high, pp - (high - low), low - 2*(high-pp)}
	return r, s
}

// PivotParams selects the formula family; the zero value means classic.
type PivotParams struct {
	Kind PivotKind `json:"kind"`
}

// PivotPointsResult reports the levels for the current bar, derived from
// the previous bar's range, plus where the latest close sits among them.
type PivotPointsResult struct {
	Kind    PivotKind         `json:"type"`
	PP      float64           `json:"pivot"`
	R       []Level           `json:"resistance_levels"`
	S       []Level           `json:"support_levels"`
	Price   float64           `json:"current_price"`
	Ladder  string            `json:"current_level"`
	Signal  indicators.Signal `json:"signal"`
	Nearest Nearest           `json:"nearest"`
}

// PivotPoints computes pivot levels from the previous bar and locates the
// latest close among them. Price above the pivot but under r1 reads
// bullish, under the pivot but above s1 reads bearish, past either first
// tier the move is considered played out and the signal goes neutral.
func PivotPoints(s *marketdata.Series, p PivotParams) (*PivotPointsResult, error) {
	if s == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "levels: nil series")
	}
	n := s.Len()
	if n < 2 {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "levels: %d bars, need 2", n)
	}

	prev := s.Bars[n-2]
	price := s.Bars[n-1].Close
	set := ComputePivots(prev.High, prev.Low, prev.Close, p.Kind)

	all := make([]Level, 0, len(set.R)+len(set.S)+1)
	all = append(all, set.S...)
	all = append(all, Level{Label: "pp", Price: set.PP})
	all = append(all, set.R...)

	return &PivotPointsResult{
		Kind:    set.Kind,
		PP:      set.PP,
		R:       set.R,
		S:       set.S,
		Price:   price,
		Ladder:  pivotLadder(set, price),
		Signal:  pivotSignal(set, price),
		Nearest: NearestLevels(all, price),
	}, nil
}

func pivotLadder(set PivotSet, price float64) string {
	switch {
	case price >= set.R[2].Price:
		return "above_r3"
	case price >= set.R[1].Price:
		return "above_r2"
	case price >= set.R[0].Price:
		return "above_r1"
	case price <= set.S[2].Price:
		return "below_s3"
	case price <= set.S[1].Price:
		return "below_s2"
	case price <= set.S[0].Price:
		return "below_s1"
	case price > set.PP:
		return "above_pivot"
	default:
		return "below_pivot"
	}
}

func pivotSignal(set PivotSet, price float64) indicators.Signal {
	switch {
	case price > set.PP && price < set.R[0].Price:
		return indicators.SignalBullish
	case price < set.PP && price > set.S[0].Price:
		return indicators.SignalBearish
	default:
		return indicators.SignalNeutral
	}
}
