// Package candles detects candlestick patterns over the tail of a bar
// series. Every shape match is reported with the short-term trend it fired
// in; reversal shapes found against the wrong trend are kept but flagged
// invalid so callers can weight them down instead of losing them.
package candles

import (
	"math"
	"time"

	"delphi/internal/domain/marketdata"
	"delphi/internal/ta/indicators"
	"delphi/internal/ta/swings"
	"delphi/pkg/errors"
)

// Pattern names.
const (
	Doji             = "doji"
	Marubozu         = "marubozu"
	Hammer           = "hammer"
	HangingMan       = "hanging_man"
	InvertedHammer   = "inverted_hammer"
	ShootingStar     = "shooting_star"
	BullishEngulfing = "bullish_engulfing"
	BearishEngulfing = "bearish_engulfing"
	MorningStar      = "morning_star"
	EveningStar      = "evening_star"
)

// Kind groups patterns by what they say about the market.
type Kind string

const (
	KindReversal   Kind = "reversal"
	KindMomentum   Kind = "momentum"
	KindIndecision Kind = "indecision"
)

// Strength grades how much weight a detection deserves.
type Strength string

const (
	StrengthWeak       Strength = "weak"
	StrengthMedium     Strength = "medium"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very_strong"
)

// PricePosition locates a close relative to its trailing 20-bar mean.
type PricePosition string

const (
	PriceAbove   PricePosition = "above"
	PriceBelow   PricePosition = "below"
	PriceAt      PricePosition = "at"
	PriceUnknown PricePosition = "unknown"
)

const (
	defaultLookback = 10
	maxLookback     = 500

	trendLookback   = 5
	priceMAPeriod   = 20
	volumeMAPeriod  = 20
	volumeMAMinBars = 5
	highVolumeRatio = 1.5

	// Single-bar close-to-close gain that marks a bullish marubozu as a
	// momentum extension candidate.
	extensionChangePct = 15.0
)

// Params controls the detection window.
type Params struct {
	Lookback int `json:"lookback"`
}

// DefaultParams scans the last 10 bars.
func DefaultParams() Params {
	return Params{Lookback: defaultLookback}
}

// Pattern is one detection together with the context at the bar it fired on.
type Pattern struct {
	Name            string            `json:"name"`
	Kind            Kind              `json:"kind"`
	BarIndex        int               `json:"bar_index"`
	Time            time.Time         `json:"time"`
	Signal          indicators.Signal `json:"signal"`
	Strength        Strength          `json:"strength"`
	TrendContext    swings.Trend      `json:"trend_context"`
	PriceVsMA       PricePosition     `json:"price_vs_ma"`
	Valid           bool              `json:"is_valid"`
	VolumeConfirmed bool              `json:"volume_confirmed"`
	Extension       bool              `json:"momentum_extension,omitempty"`
	Note            string            `json:"note"`
}

// Summary aggregates detections over the window. Valid counts feed the
// overall signal; weak detections are tallied but never vote.
type Summary struct {
	BullishValid     int     `json:"bullish_valid"`
	BearishValid     int     `json:"bearish_valid"`
	Neutral          int     `json:"neutral_count"`
	TotalValid       int     `json:"total_valid"`
	TotalWeak        int     `json:"total_weak"`
	VolumeConfirmed  int     `json:"volume_confirmed"`
	ConfirmationRate float64 `json:"confirmation_rate"`
}

// Result lists every detection in the window with an aggregate signal.
type Result struct {
	Patterns []Pattern         `json:"patterns"`
	Summary  Summary           `json:"summary"`
	Overall  indicators.Signal `json:"overall_signal"`
	Lookback int               `json:"lookback"`
}

// Detect scans the last Lookback bars for candlestick patterns. A bar can
// produce several detections. Series shorter than Lookback+5 bars yield an
// empty result rather than an error; there is not enough history to judge
// trend context, so nothing is reported at all.
func Detect(s *marketdata.Series, p Params) (*Result, error) {
	if s == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "candles: nil series")
	}
	p.Lookback = clampLookback(p.Lookback)

	res := &Result{
		Patterns: []Pattern{},
		Overall:  indicators.SignalNeutral,
		Lookback: p.Lookback,
	}

	n := s.Len()
	if n < p.Lookback+5 {
		return res, nil
	}

	closes := s.Closes()
	vols := s.Volumes()

	start := n - p.Lookback
	if start < 3 {
		start = 3
	}

	for i := start; i < n; i++ {
		curr := s.Bars[i]
		prev := s.Bars[i-1]
		prev2 := s.Bars[i-2]

		hasVolume, highVolume := volumeConfirm(vols, i)
		pos, _ := priceVsMA(closes, i)
		ctx := barContext{
			index:      i,
			time:       curr.OpenTime,
			trend:      swings.TrendAt(closes, i, trendLookback),
			pos:        pos,
			hasVolume:  hasVolume,
			highVolume: highVolume,
		}

		if IsDoji(curr) {
			res.Patterns = append(res.Patterns, ctx.pattern(Doji, KindIndecision,
				indicators.SignalNeutral, StrengthMedium, true,
				"indecision bar, possible pause or reversal"))
		}

		if ok, dir := IsMarubozu(curr); ok {
			strength := StrengthStrong
			if highVolume {
				strength = StrengthVeryStrong
			}
			pat := ctx.pattern(Marubozu, KindMomentum, dir, strength, true,
				string(dir)+" full-body momentum bar")
			if dir == indicators.SignalBullish && prev.Close > 0 {
				change := (curr.Close - prev.Close) / prev.Close * 100
				pat.Extension = change > extensionChangePct
			}
			res.Patterns = append(res.Patterns, pat)
		}

		if IsHammerShape(curr) {
			res.Patterns = append(res.Patterns, hammerPattern(ctx))
		}
		if IsStarShape(curr) {
			res.Patterns = append(res.Patterns, starPattern(ctx))
		}

		if IsBullishEngulfing(prev, curr) {
			valid := ctx.trend == swings.TrendDown || pos == PriceBelow || pos == PriceAt
			res.Patterns = append(res.Patterns, engulfingPattern(ctx, BullishEngulfing,
				indicators.SignalBullish, valid))
		}
		if IsBearishEngulfing(prev, curr) {
			valid := ctx.trend == swings.TrendUp || pos == PriceAbove || pos == PriceAt
			res.Patterns = append(res.Patterns, engulfingPattern(ctx, BearishEngulfing,
				indicators.SignalBearish, valid))
		}

		if IsMorningStar(prev2, prev, curr) {
			valid := ctx.trend == swings.TrendDown || pos == PriceBelow
			res.Patterns = append(res.Patterns, threeBarPattern(ctx, MorningStar,
				indicators.SignalBullish, valid))
		}
		if IsEveningStar(prev2, prev, curr) {
			valid := ctx.trend == swings.TrendUp || pos == PriceAbove
			res.Patterns = append(res.Patterns, threeBarPattern(ctx, EveningStar,
				indicators.SignalBearish, valid))
		}
	}

	summarize(res)
	return res, nil
}

type barContext struct {
	index      int
	time       time.Time
	trend      swings.Trend
	pos        PricePosition
	hasVolume  bool
	highVolume bool
}

func (c barContext) pattern(name string, kind Kind, sig indicators.Signal, strength Strength, valid bool, note string) Pattern {
	return Pattern{
		Name:            name,
		Kind:            kind,
		BarIndex:        c.index,
		Time:            c.time,
		Signal:          sig,
		Strength:        strength,
		TrendContext:    c.trend,
		PriceVsMA:       c.pos,
		Valid:           valid,
		VolumeConfirmed: c.hasVolume,
		Note:            note,
	}
}

// hammerPattern resolves a hammer shape by context: hammer after a
// decline, hanging man after an advance, neutral in between.
func hammerPattern(ctx barContext) Pattern {
	strength := StrengthMedium
	if ctx.hasVolume {
		strength = StrengthStrong
	}
	switch {
	case ctx.trend == swings.TrendDown || ctx.pos == PriceBelow:
		return ctx.pattern(Hammer, KindReversal, indicators.SignalBullish, strength, true,
			"bullish reversal after decline")
	case ctx.trend == swings.TrendUp || ctx.pos == PriceAbove:
		return ctx.pattern(HangingMan, KindReversal, indicators.SignalBearish, strength, true,
			"bearish warning after advance")
	default:
		return ctx.pattern(Hammer, KindIndecision, indicators.SignalNeutral, StrengthWeak, false,
			"hammer shape without trend context")
	}
}

// starPattern resolves an upper-shadow shape by context: shooting star
// after an advance, inverted hammer after a decline, neutral in between.
func starPattern(ctx barContext) Pattern {
	strength := StrengthMedium
	if ctx.hasVolume {
		strength = StrengthStrong
	}
	switch {
	case ctx.trend == swings.TrendUp || ctx.pos == PriceAbove:
		return ctx.pattern(ShootingStar, KindReversal, indicators.SignalBearish, strength, true,
			"bearish reversal after advance")
	case ctx.trend == swings.TrendDown || ctx.pos == PriceBelow:
		return ctx.pattern(InvertedHammer, KindReversal, indicators.SignalBullish, strength, true,
			"bullish reversal after decline")
	default:
		return ctx.pattern(ShootingStar, KindIndecision, indicators.SignalNeutral, StrengthWeak, false,
			"upper-shadow shape without trend context")
	}
}

func engulfingPattern(ctx barContext, name string, sig indicators.Signal, valid bool) Pattern {
	strength := StrengthMedium
	note := string(sig) + " engulfing against trend context"
	if valid {
		strength = StrengthStrong
		if ctx.highVolume {
			strength = StrengthVeryStrong
		}
		note = string(sig) + " engulfing, trend context confirms"
	}
	return ctx.pattern(name, KindReversal, sig, strength, valid, note)
}

func threeBarPattern(ctx barContext, name string, sig indicators.Signal, valid bool) Pattern {
	strength := StrengthStrong
	note := "three-bar " + string(sig) + " reversal against trend context"
	if valid {
		strength = StrengthVeryStrong
		note = "three-bar " + string(sig) + " reversal, trend change likely"
	}
	return ctx.pattern(name, KindReversal, sig, strength, valid, note)
}

// priceVsMA locates the close at idx against the mean of the prior
// priceMAPeriod closes. Bars without one full window behind them are
// unknown, and a band of one percent either side of the mean counts as at.
func priceVsMA(closes []float64, idx int) (PricePosition, float64) {
	if idx < priceMAPeriod {
		return PriceUnknown, 0
	}
	ma := mean(closes[idx-priceMAPeriod : idx])
	if ma == 0 {
		return PriceUnknown, 0
	}
	dist := (closes[idx] - ma) / ma * 100
	switch {
	case dist > 1:
		return PriceAbove, dist
	case dist < -1:
		return PriceBelow, dist
	default:
		return PriceAt, dist
	}
}

// volumeConfirm compares the bar's volume to a trailing mean over up to
// volumeMAPeriod bars. With fewer than volumeMAMinBars observations the
// bar is its own baseline. A non-positive baseline confirms by default.
func volumeConfirm(vols []float64, idx int) (hasVolume, highVolume bool) {
	lo := idx - volumeMAPeriod + 1
	if lo < 0 {
		lo = 0
	}
	window := vols[lo : idx+1]
	ma := vols[idx]
	if len(window) >= volumeMAMinBars {
		ma = mean(window)
	}
	if ma <= 0 {
		return true, false
	}
	return vols[idx] > ma, vols[idx] > ma*highVolumeRatio
}

func summarize(res *Result) {
	s := &res.Summary
	for _, p := range res.Patterns {
		if p.Signal == indicators.SignalNeutral {
			s.Neutral++
		}
		if !p.Valid {
			s.TotalWeak++
			continue
		}
		s.TotalValid++
		if p.VolumeConfirmed {
			s.VolumeConfirmed++
		}
		switch p.Signal {
		case indicators.SignalBullish:
			s.BullishValid++
		case indicators.SignalBearish:
			s.BearishValid++
		}
	}
	if s.TotalValid > 0 {
		s.ConfirmationRate = math.Round(float64(s.VolumeConfirmed)/float64(s.TotalValid)*1000) / 10
	}

	switch {
	case s.BullishValid > s.BearishValid:
		res.Overall = indicators.SignalBullish
	case s.BearishValid > s.BullishValid:
		res.Overall = indicators.SignalBearish
	default:
		res.Overall = indicators.SignalNeutral
	}
}

func clampLookback(lookback int) int {
	if lookback <= 0 {
		return defaultLookback
	}
	if lookback > maxLookback {
		return maxLookback
	}
	return lookback
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
