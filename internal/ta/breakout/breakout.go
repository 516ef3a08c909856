// Package breakout classifies where price stands relative to its recent
// consolidation range: broken out, broken down, testing an edge or still
// inside. Thresholds scale with ATR so the same rules fit quiet and
// volatile symbols, with fixed percentage fallbacks when ATR is not
// available.
package breakout

import (
	"math"

	"delphi/internal/domain/marketdata"
	"delphi/internal/ta/indicators"
	"delphi/internal/ta/levels"
	"delphi/internal/ta/swings"
	"delphi/pkg/errors"
)

const (
	defaultLookback            = 20
	minLookback                = 10
	maxLookback                = 60
	defaultVolumeThreshold     = 1.5
	defaultStrongATRMultiple   = 1.0
	defaultModerateATRMultiple = 0.5
	atrPeriod                  = 14
	rangePivotOrder            = 2
	volumeMAPeriod             = 20
	warningWindow              = 5
)

// Params configures range detection, volume confirmation and break
// grading.
type Params struct {
	// Lookback is the consolidation window in bars, clamped to [10, 60].
	Lookback int `json:"lookback"`
	// VolumeThreshold is the multiple of average volume that confirms a
	// breakout. Zero means 1.5.
	VolumeThreshold float64 `json:"volume_threshold"`
	// StrongATRMultiple is the ATR distance past the level that grades a
	// volume-confirmed break strong. Zero means 1.0.
	StrongATRMultiple float64 `json:"strong_atr_multiple"`
	// ModerateATRMultiple is the ATR distance past the level that grades
	// a break moderate. Zero means 0.5.
	ModerateATRMultiple float64 `json:"moderate_atr_multiple"`
}

func (p Params) withDefaults() Params {
	p.Lookback = clampLookback(p.Lookback)
	if p.VolumeThreshold <= 0 {
		p.VolumeThreshold = defaultVolumeThreshold
	}
	if p.StrongATRMultiple <= 0 {
		p.StrongATRMultiple = defaultStrongATRMultiple
	}
	if p.ModerateATRMultiple <= 0 {
		p.ModerateATRMultiple = defaultModerateATRMultiple
	}
	return p
}

// Type is the position of the latest close relative to the range.
type Type string

const (
	TypeResistanceBreakout Type = "resistance_breakout"
	TypeSupportBreakdown   Type = "support_breakdown"
	TypeTestingResistance  Type = "testing_resistance"
	TypeTestingSupport     Type = "testing_support"
	TypeInsideRange        Type = "inside_range"
)

// Strength grades a break by ATR distance and volume.
type Strength string

const (
	StrengthNone     Strength = "none"
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
	StrengthPending  Strength = "pending"
)

// Signal is the trading read of the classification.
type Signal string

const (
	SignalStrongBullish    Signal = "strong_bullish"
	SignalBullish          Signal = "bullish"
	SignalWeakBullish      Signal = "weak_bullish"
	SignalPotentialBullish Signal = "potential_bullish"
	SignalNeutral          Signal = "neutral"
	SignalPotentialBearish Signal = "potential_bearish"
	SignalWeakBearish      Signal = "weak_bearish"
	SignalBearish          Signal = "bearish"
	SignalStrongBearish    Signal = "strong_bearish"
)

// Action is the suggested follow-up for a signal.
type Action string

const (
	ActionBuy              Action = "buy"
	ActionBuyOnPullback    Action = "buy_on_pullback"
	ActionWaitConfirmation Action = "wait_confirmation"
	ActionPrepareBuy       Action = "prepare_buy"
	ActionWait             Action = "wait"
	ActionPrepareSell      Action = "prepare_sell"
	ActionReducePosition   Action = "reduce_position"
	ActionSell             Action = "sell"
)

const (
	ConfidenceHigh    = "high"
	ConfidenceMedium  = "medium"
	ConfidenceLow     = "low"
	ConfidencePending = "pending"
	ConfidenceNA      = "n/a"
)

// Range describes the consolidation box over the lookback bars before the
// latest one. Raw edges are the window extremes; refined edges average the
// order-2 pivot clusters inside the window when any exist.
type Range struct {
	Resistance        float64 `json:"resistance"`
	Support           float64 `json:"support"`
	RefinedResistance float64 `json:"refined_resistance"`
	RefinedSupport    float64 `json:"refined_support"`
	Size              float64 `json:"range_size"`
	SizePct           float64 `json:"range_pct"`
	AvgPrice          float64 `json:"avg_price"`
	Consolidating     bool    `json:"is_consolidating"`
	ThresholdPct      float64 `json:"consolidation_threshold_pct"`
	PivotHighs        int     `json:"pivot_highs"`
	PivotLows         int     `json:"pivot_lows"`
}

// Detection is the classification of the latest bar against the range.
type Detection struct {
	Type            Type             `json:"type"`
	Level           indicators.Value `json:"level"` // broken or tested edge
	Strength        Strength         `json:"strength"`
	ATRMultiple     indicators.Value `json:"atr_multiple"`
	VolumeRatio     float64          `json:"volume_ratio"`
	VolumeConfirmed bool             `json:"volume_confirmed"`
	AvgVolume       float64          `json:"avg_volume"`
	Volume          float64          `json:"current_volume"`
	Targets         []levels.Level   `json:"targets,omitempty"`
	StopLoss        indicators.Value `json:"stop_loss"`
	StopMethod      string           `json:"stop_method,omitempty"`
	RiskReward      indicators.Value `json:"risk_reward_ratio"`
}

// Result is the full breakout analysis for a series.
type Result struct {
	Symbol          string           `json:"symbol"`
	Price           float64          `json:"current_price"`
	Change          float64          `json:"price_change"`
	ChangePct       float64          `json:"price_change_pct"`
	ATR             indicators.Value `json:"atr"`
	ATRPct          indicators.Value `json:"atr_pct"`
	Range           Range            `json:"consolidation_range"`
	Detection       Detection        `json:"breakout"`
	Warnings        []string         `json:"warnings,omitempty"`
	Signal          Signal           `json:"signal"`
	Action          Action           `json:"action"`
	Confidence      string           `json:"confidence"`
	Lookback        int              `json:"lookback"`
	VolumeThreshold float64          `json:"volume_threshold"`
}

// Detect classifies the latest close against the trailing consolidation
// range. It needs lookback+5 bars so the window has context on both sides.
func Detect(s *marketdata.Series, p Params) (*Result, error) {
	if s == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "breakout: nil series")
	}

	p = p.withDefaults()

	n := s.Len()
	if n < p.Lookback+5 {
		return nil, errors.Wrapf(errors.ErrInsufficientData,
			"breakout: %d bars, need %d", n, p.Lookback+5)
	}

	atr := 0.0
	if series := indicators.ATRSeries(s.Highs(), s.Lows(), s.Closes(), atrPeriod); series != nil {
		atr = series[len(series)-1]
	}

	rng := consolidationRange(s, p.Lookback, atr)
	det := detect(s, rng, p, atr)
	warnings := falseBreakoutWarnings(s, rng)
	signal, action, confidence := classify(det, len(warnings) > 0)

	last := s.Bars[n-1]
	prevClose := s.Bars[n-2].Close
	change := last.Close - prevClose

	res := &Result{
		Symbol:          s.Symbol,
		Price:           round2(last.Close),
		Change:          round2(change),
		Range:           rng,
		Detection:       det,
		Warnings:        warnings,
		Signal:          signal,
		Action:          action,
		Confidence:      confidence,
		Lookback:        p.Lookback,
		VolumeThreshold: p.VolumeThreshold,
	}
	if prevClose > 0 {
		res.ChangePct = round2(change / prevClose * 100)
	}
	if atr > 0 {
		res.ATR = indicators.Some(round2(atr))
		if last.Close > 0 {
			res.ATRPct = indicators.Some(round2(atr / last.Close * 100))
		}
	}
	return res, nil
}

// consolidationRange measures the box over the lookback bars before the
// latest one. The latest bar is classified against the box, so it must not
// raise the edges itself. The range counts as consolidation when its height
// is under 3x the ATR percentage of the average price, so the bar moves
// inside it stay ordinary for the symbol.
func consolidationRange(s *marketdata.Series, lookback int, atr float64) Range {
	n := s.Len()
	window := s.Bars[n-1-lookback : n-1]

	highs := make([]float64, lookback)
	lows := make([]float64, lookback)
	resistance, support := window[0].High, window[0].Low
	sumClose := 0.0
	for i, b := range window {
		highs[i] = b.High
		lows[i] = b.Low
		if b.High > resistance {
			resistance = b.High
		}
		if b.Low < support {
			support = b.Low
		}
		sumClose += b.Close
	}
	avgPrice := sumClose / float64(lookback)

	size := resistance - support
	sizePct := 0.0
	if support > 0 {
		sizePct = size / support * 100
	}

	thresholdPct := 15.0
	if atr > 0 && avgPrice > 0 {
		thresholdPct = atr / avgPrice * 100 * 3
	}

	pivotHighs := swings.DetectHighs(highs, rangePivotOrder)
	pivotLows := swings.DetectLows(lows, rangePivotOrder)

	refinedResistance := resistance
	if len(pivotHighs) > 0 {
		refinedResistance = meanAt(highs, pivotHighs)
	}
	refinedSupport := support
	if len(pivotLows) > 0 {
		refinedSupport = meanAt(lows, pivotLows)
	}

	return Range{
		Resistance:        round2(resistance),
		Support:           round2(support),
		RefinedResistance: round2(refinedResistance),
		RefinedSupport:    round2(refinedSupport),
		Size:              round2(size),
		SizePct:           round2(sizePct),
		AvgPrice:          round2(avgPrice),
		Consolidating:     sizePct < thresholdPct,
		ThresholdPct:      round2(thresholdPct),
		PivotHighs:        len(pivotHighs),
		PivotLows:         len(pivotLows),
	}
}

func detect(s *marketdata.Series, rng Range, p Params, atr float64) Detection {
	n := s.Len()
	bar := s.Bars[n-1]

	volumes := s.Volumes()
	if len(volumes) > volumeMAPeriod {
		volumes = volumes[len(volumes)-volumeMAPeriod:]
	}
	avgVolume := mean(volumes)
	volumeRatio := 0.0
	if avgVolume > 0 {
		volumeRatio = bar.Volume / avgVolume
	}

	det := Detection{
		Type:            TypeInsideRange,
		Strength:        StrengthNone,
		VolumeRatio:     round2(volumeRatio),
		VolumeConfirmed: volumeRatio >= p.VolumeThreshold,
		AvgVolume:       math.Round(avgVolume),
		Volume:          math.Round(bar.Volume),
	}

	testingDistance := 0.5 * atr
	if atr <= 0 {
		testingDistance = rng.Resistance * 0.01
	}

	switch {
	case bar.Close > rng.Resistance:
		det.Type = TypeResistanceBreakout
		det.Level = indicators.Some(rng.Resistance)
		det.Strength, det.ATRMultiple = gradeBreak(bar.Close-rng.Resistance, rng.Resistance, atr, det.VolumeConfirmed, p)
	case bar.Close < rng.Support:
		det.Type = TypeSupportBreakdown
		det.Level = indicators.Some(rng.Support)
		det.Strength, det.ATRMultiple = gradeBreak(rng.Support-bar.Close, rng.Support, atr, det.VolumeConfirmed, p)
	case bar.High >= rng.Resistance-testingDistance:
		det.Type = TypeTestingResistance
		det.Level = indicators.Some(rng.Resistance)
		det.Strength = StrengthPending
	case bar.Low <= rng.Support+testingDistance:
		det.Type = TypeTestingSupport
		det.Level = indicators.Some(rng.Support)
		det.Strength = StrengthPending
	}

	fillTrade(&det, rng, bar.Close, atr)
	return det
}

// gradeBreak scores how far price closed past the level. With ATR the
// cutoffs are StrongATRMultiple ATRs (with volume) for strong and
// ModerateATRMultiple ATRs or volume for moderate; without it, 3% and 1%
// of the level.
func gradeBreak(distance, level, atr float64, volumeConfirmed bool, p Params) (Strength, indicators.Value) {
	if atr > 0 {
		multiple := distance / atr
		switch {
		case multiple >= p.StrongATRMultiple && volumeConfirmed:
			return StrengthStrong, indicators.Some(round2(multiple))
		case multiple >= p.ModerateATRMultiple || volumeConfirmed:
			return StrengthModerate, indicators.Some(round2(multiple))
		default:
			return StrengthWeak, indicators.Some(round2(multiple))
		}
	}

	pct := 0.0
	if level > 0 {
		pct = distance / level * 100
	}
	switch {
	case pct > 3 && volumeConfirmed:
		return StrengthStrong, indicators.Value{}
	case pct > 1 || volumeConfirmed:
		return StrengthModerate, indicators.Value{}
	default:
		return StrengthWeak, indicators.Value{}
	}
}

// fillTrade attaches targets, stop and risk/reward. Confirmed breaks
// project the range height past the level at the 61.8/100/161.8 percent
// marks with a 1.5 ATR stop; tests of an edge get the range projection as
// a single potential target with the far edge as the stop.
func fillTrade(det *Detection, rng Range, close, atr float64) {
	stopDistance := 1.5 * atr

	switch det.Type {
	case TypeResistanceBreakout:
		det.Targets = []levels.Level{
			{Label: "target_1", Price: round2(rng.Resistance + rng.Size*0.618)},
			{Label: "target_2", Price: round2(rng.Resistance + rng.Size)},
			{Label: "target_3", Price: round2(rng.Resistance + rng.Size*1.618)},
		}
		if atr > 0 {
			det.StopLoss = indicators.Some(round2(rng.Resistance - stopDistance))
			det.StopMethod = "atr"
		} else {
			det.StopLoss = indicators.Some(round2(rng.Resistance * 0.98))
			det.StopMethod = "percent"
		}
		if risk := close - det.StopLoss.Float64; risk > 0 {
			det.RiskReward = indicators.Some(round2((det.Targets[1].Price - close) / risk))
		}

	case TypeSupportBreakdown:
		det.Targets = []levels.Level{
			{Label: "target_1", Price: round2(rng.Support - rng.Size*0.618)},
			{Label: "target_2", Price: round2(rng.Support - rng.Size)},
			{Label: "target_3", Price: round2(rng.Support - rng.Size*1.618)},
		}
		if atr > 0 {
			det.StopLoss = indicators.Some(round2(rng.Support + stopDistance))
			det.StopMethod = "atr"
		} else {
			det.StopLoss = indicators.Some(round2(rng.Support * 1.02))
			det.StopMethod = "percent"
		}
		if risk := det.StopLoss.Float64 - close; risk > 0 {
			det.RiskReward = indicators.Some(round2((close - det.Targets[1].Price) / risk))
		}

	case TypeTestingResistance:
		det.Targets = []levels.Level{{Label: "potential_target", Price: round2(rng.Resistance + rng.Size)}}
		det.StopLoss = indicators.Some(rng.Support)

	case TypeTestingSupport:
		det.Targets = []levels.Level{{Label: "potential_target", Price: round2(rng.Support - rng.Size)}}
		det.StopLoss = indicators.Some(rng.Resistance)
	}
}

// falseBreakoutWarnings scans the last 5 bars for signs the move may not
// hold: a wick through an edge with the close back inside, volume fading
// three bars in a row, or a latest bar that is mostly wick.
func falseBreakoutWarnings(s *marketdata.Series, rng Range) []string {
	n := s.Len()
	if n < warningWindow {
		return nil
	}

	var warnings []string
	recent := s.Bars[n-warningWindow:]

	for _, b := range recent {
		if b.High > rng.Resistance && b.Close < rng.Resistance {
			warnings = append(warnings, "rejection at resistance (upper wick)")
			break
		}
	}
	for _, b := range recent {
		if b.Low < rng.Support && b.Close > rng.Support {
			warnings = append(warnings, "rejection at support (lower wick)")
			break
		}
	}

	v := recent[len(recent)-3:]
	if v[2].Volume < v[1].Volume && v[1].Volume < v[0].Volume {
		warnings = append(warnings, "decreasing volume on recent bars")
	}

	last := recent[len(recent)-1]
	body := math.Abs(last.Close - last.Open)
	if rangeSize := last.High - last.Low; rangeSize > 0 && body/rangeSize < 0.3 {
		warnings = append(warnings, "long wicks indicate indecision")
	}
	return warnings
}

func classify(det Detection, hasWarning bool) (Signal, Action, string) {
	switch det.Type {
	case TypeResistanceBreakout:
		switch {
		case det.Strength == StrengthStrong && det.VolumeConfirmed && !hasWarning:
			return SignalStrongBullish, ActionBuy, ConfidenceHigh
		case det.Strength == StrengthModerate && !hasWarning:
			return SignalBullish, ActionBuyOnPullback, ConfidenceMedium
		default:
			return SignalWeakBullish, ActionWaitConfirmation, ConfidenceLow
		}
	case TypeSupportBreakdown:
		switch {
		case det.Strength == StrengthStrong && det.VolumeConfirmed && !hasWarning:
			return SignalStrongBearish, ActionSell, ConfidenceHigh
		case det.Strength == StrengthModerate && !hasWarning:
			return SignalBearish, ActionReducePosition, ConfidenceMedium
		default:
			return SignalWeakBearish, ActionWaitConfirmation, ConfidenceLow
		}
	case TypeTestingResistance:
		return SignalPotentialBullish, ActionPrepareBuy, ConfidencePending
	case TypeTestingSupport:
		return SignalPotentialBearish, ActionPrepareSell, ConfidencePending
	default:
		return SignalNeutral, ActionWait, ConfidenceNA
	}
}

func clampLookback(lookback int) int {
	switch {
	case lookback <= 0:
		return defaultLookback
	case lookback < minLookback:
		return minLookback
	case lookback > maxLookback:
		return maxLookback
	default:
		return lookback
	}
}

func meanAt(values []float64, indices []int) float64 {
	sum := 0.0
	for _, i := range indices {
		sum += values[i]
	}
	return sum / float64(len(indices))
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

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
