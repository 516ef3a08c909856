package levels

import (
	"fmt"

	"delphi/internal/domain/marketdata"
	"delphi/internal/ta/indicators"
	"delphi/internal/ta/swings"
	"delphi/pkg/errors"
)

var fibRatios = []struct {
	label string
	ratio float64
}{
	{"0.0%", 0},
	{"23.6%", 0.236},
	{"38.2%", 0.382},
	{"50.0%", 0.5},
	{"61.8%", 0.618},
	{"78.6%", 0.786},
	{"100.0%", 1},
}

var extRatios = []struct {
	label string
	ratio float64
}{
	{"127.2%", 1.272},
	{"161.8%", 1.618},
	{"200.0%", 2},
	{"261.8%", 2.618},
}

// FibonacciParams controls swing detection and trend orientation.
type FibonacciParams struct {
	// Window bounds the swing search; zero means the whole series.
	Window int `json:"window"`
	// Trend forces the orientation when set to up or down; anything else
	// triggers automatic detection.
	Trend swings.Trend `json:"trend,omitempty"`
}

// FibonacciResult carries the swing, its levels and where price sits.
type FibonacciResult struct {
	Trend        swings.Trend     `json:"trend"`
	SwingHigh    float64          `json:"swing_high"`
	SwingLow     float64          `json:"swing_low"`
	HighMethod   swings.Method    `json:"high_method"`
	LowMethod    swings.Method    `json:"low_method"`
	PriceRange   float64          `json:"price_range"`
	Retracements []Level          `json:"retracement_levels"`
	Extensions   []Level          `json:"extension_levels"`
	Nearest      Nearest          `json:"nearest"`
	Position     string           `json:"current_position"`
	RiskReward   indicators.Value `json:"risk_reward_ratio"`
	Price        float64          `json:"current_price"`
}

// Fibonacci computes retracement and extension levels over the swing found
// in the trailing window. In an uptrend retracements step down from the
// swing high and extensions project above it; a downtrend mirrors both.
// The nearest bracketing retracement levels and the risk/reward toward the
// nearest resistance are included.
func Fibonacci(s *marketdata.Series, p FibonacciParams) (*FibonacciResult, error) {
	if s == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "levels: nil series")
	}

	swing, err := swings.Range(s, p.Window)
	if err != nil {
		return nil, err
	}

	res := &FibonacciResult{
		SwingHigh:  round2(swing.High),
		SwingLow:   round2(swing.Low),
		HighMethod: swing.HighMethod,
		LowMethod:  swing.LowMethod,
		PriceRange: round2(swing.Height()),
		Trend:      orientTrend(s, p.Trend, swing),
	}

	diff := swing.High - swing.Low
	up := res.Trend == swings.TrendUp

	for _, fr := range fibRatios {
		price := swing.Low + diff*fr.ratio
		if up {
			price = swing.High - diff*fr.ratio
		}
		res.Retracements = append(res.Retracements, Level{Label: fr.label, Price: round2(price)})
	}
	for _, er := range extRatios {
		price := swing.Low - diff*(er.ratio-1)
		if up {
			price = swing.High + diff*(er.ratio-1)
		}
		res.Extensions = append(res.Extensions, Level{Label: er.label, Price: round2(price)})
	}

	last, _ := s.Last()
	res.Price = last.Close
	res.Nearest = NearestLevels(res.Retracements, res.Price)
	res.Position = positionLabel(res.Nearest)

	if res.Nearest.Support != nil && res.Nearest.Resistance != nil {
		risk := res.Price - res.Nearest.Support.Price
		if risk > 0 {
			res.RiskReward = indicators.Some(round2((res.Nearest.Resistance.Price - res.Price) / risk))
		}
	}
	return res, nil
}

// orientTrend picks the retracement direction. A forced up or down wins;
// otherwise the multi-factor context vote decides, and when that vote is
// sideways the more recent swing extreme breaks the tie: a fresher high
// means the last leg was up.
func orientTrend(s *marketdata.Series, forced swings.Trend, swing swings.SwingRange) swings.Trend {
	if forced == swings.TrendUp || forced == swings.TrendDown {
		return forced
	}
	if ctx, err := swings.Context(s, swings.DefaultContextParams()); err == nil {
		if ctx.Trend == swings.TrendUp || ctx.Trend == swings.TrendDown {
			return ctx.Trend
		}
	}
	if swing.HighIndex >= swing.LowIndex {
		return swings.TrendUp
	}
	return swings.TrendDown
}

func positionLabel(n Nearest) string {
	switch {
	case n.Support == nil && n.Resistance == nil:
		return "At level"
	case n.Support == nil:
		return fmt.Sprintf("Below %s", n.Resistance.Label)
	case n.Resistance == nil:
		return fmt.Sprintf("Above %s", n.Support.Label)
	default:
		return fmt.Sprintf("Between %s and %s", n.Support.Label, n.Resistance.Label)
	}
}
