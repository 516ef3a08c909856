package swings

import (
	"delphi/internal/domain/marketdata"
	"delphi/internal/ta/indicators"
	"delphi/pkg/errors"
)

// Trend labels the directional context of a series or window
type Trend string

const (
	TrendUp       Trend = "uptrend"
	TrendDown     Trend = "downtrend"
	TrendSideways Trend = "sideways"
	TrendUnknown  Trend = "unknown"
)

// TrendAt returns the short-term trend over the lookback closes strictly
// before index idx. It blends price change over the window with the slope
// of a short rolling mean, so one outlier close does not flip the call.
func TrendAt(closes []float64, idx, lookback int) Trend {
	if lookback <= 0 {
		lookback = 5
	}
	if idx < lookback || idx > len(closes) {
		return TrendUnknown
	}

	window := closes[idx-lookback : idx]
	if len(window) < 2 || window[0] == 0 {
		return TrendUnknown
	}

	changePct := (window[len(window)-1] - window[0]) / window[0] * 100

	maSlope := 0.0
	if len(window) >= 3 {
		m := 5
		if m > len(window) {
			m = len(window)
		}
		maLast := windowMean(window, len(window), m)
		maPrev := windowMean(window, len(window)-1, m)
		if maPrev != 0 {
			maSlope = (maLast - maPrev) / maPrev * 100
		}
	}

	switch {
	case changePct > 2 || maSlope > 0.5:
		return TrendUp
	case changePct < -2 || maSlope < -0.5:
		return TrendDown
	default:
		return TrendSideways
	}
}

// windowMean averages up to m values ending just before end, using at
// least two when fewer are available
func windowMean(values []float64, end, m int) float64 {
	start := end - m
	if start < 0 {
		start = 0
	}
	if end-start < 2 {
		start = end - 2
		if start < 0 {
			return 0
		}
	}
	sum := 0.0
	for _, v := range values[start:end] {
		sum += v
	}
	return sum / float64(end-start)
}

// ContextParams configures the vote-based overall trend call
type ContextParams struct {
	Order     int `json:"order"`      // pivot order for the structure vote
	FastSMA   int `json:"fast_sma"`   // price position and slope reference
	SlowSMA   int `json:"slow_sma"`   // longer price position reference
	SlopeBars int `json:"slope_bars"` // bars between slope samples
}

// DefaultContextParams returns the standard 3/20/50/5 configuration
func DefaultContextParams() ContextParams {
	return ContextParams{Order: 3, FastSMA: 20, SlowSMA: 50, SlopeBars: 5}
}

// Vote is one factor's directional opinion
type Vote struct {
	Name  string `json:"name"`
	Trend Trend  `json:"trend"`
}

// ContextResult is the aggregated trend call with its per-factor votes
type ContextResult struct {
	Trend     Trend  `json:"trend"`
	Votes     []Vote `json:"votes"`
	UpVotes   int    `json:"up_votes"`
	DownVotes int    `json:"down_votes"`
}

// Context determines the overall trend by majority vote across price
// position versus two moving averages, fast average slope, swing
// progression and the short-term window. Unavailable factors abstain;
// a tie reads sideways.
func Context(s *marketdata.Series, p ContextParams) (ContextResult, error) {
	if s == nil {
		return ContextResult{}, errors.Wrap(errors.ErrInvalidInput, "swings: nil series")
	}
	if p.FastSMA <= 0 {
		p.FastSMA = DefaultContextParams().FastSMA
	}
	if p.SlowSMA <= 0 {
		p.SlowSMA = DefaultContextParams().SlowSMA
	}
	if p.SlopeBars <= 0 {
		p.SlopeBars = DefaultContextParams().SlopeBars
	}

	var res ContextResult
	closes := s.Closes()
	n := len(closes)
	if n == 0 {
		res.Trend = TrendUnknown
		return res, nil
	}
	price := closes[n-1]

	fastMA := indicators.SMASeries(closes, p.FastSMA)
	slowMA := indicators.SMASeries(closes, p.SlowSMA)

	if fastMA != nil {
		res.Votes = append(res.Votes, Vote{"price_vs_fast_ma", aboveBelow(price, fastMA[len(fastMA)-1])})
	}
	if slowMA != nil {
		res.Votes = append(res.Votes, Vote{"price_vs_slow_ma", aboveBelow(price, slowMA[len(slowMA)-1])})
	}

	// Both slope samples must clear the warmup prefix
	if fastMA != nil && n >= p.FastSMA+p.SlopeBars {
		now := fastMA[len(fastMA)-1]
		then := fastMA[len(fastMA)-1-p.SlopeBars]
		slope := 0.0
		if then != 0 {
			slope = (now - then) / then * 100
		}
		switch {
		case slope > 0.5:
			res.Votes = append(res.Votes, Vote{"fast_ma_slope", TrendUp})
		case slope < -0.5:
			res.Votes = append(res.Votes, Vote{"fast_ma_slope", TrendDown})
		default:
			res.Votes = append(res.Votes, Vote{"fast_ma_slope", TrendSideways})
		}
	}

	if sr, err := Detect(s, Params{Order: p.Order}); err == nil {
		res.Votes = append(res.Votes, Vote{"swing_structure", progressionTrend(sr)})
	}

	res.Votes = append(res.Votes, Vote{"short_term", TrendAt(closes, n, 5)})

	for _, v := range res.Votes {
		switch v.Trend {
		case TrendUp:
			res.UpVotes++
		case TrendDown:
			res.DownVotes++
		}
	}
	switch {
	case res.UpVotes > res.DownVotes:
		res.Trend = TrendUp
	case res.DownVotes > res.UpVotes:
		res.Trend = TrendDown
	default:
		res.Trend = TrendSideways
	}
	return res, nil
}

func aboveBelow(price, ma float64) Trend {
	if price > ma {
		return TrendUp
	}
	if price < ma {
		return TrendDown
	}
	return TrendSideways
}
