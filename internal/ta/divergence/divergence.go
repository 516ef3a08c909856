// Package divergence finds disagreements between price and momentum. It
// pairs consecutive price pivots inside a lookback window and compares the
// indicator's readings at the same two positions: regular divergence argues
// for reversal, hidden divergence for continuation.
package divergence

import (
	"math"

	"delphi/internal/domain/marketdata"
	"delphi/internal/ta/indicators"
	"delphi/internal/ta/swings"
	"delphi/pkg/errors"
)

// Type identifies the divergence category and direction.
type Type string

const (
	BullishRegular Type = "bullish_regular"
	BearishRegular Type = "bearish_regular"
	BullishHidden  Type = "bullish_hidden"
	BearishHidden  Type = "bearish_hidden"
)

// Bullish reports whether the divergence argues for upside.
func (t Type) Bullish() bool {
	return t == BullishRegular || t == BullishHidden
}

// Regular reports whether the divergence is a reversal signal rather than
// a continuation signal.
func (t Type) Regular() bool {
	return t == BullishRegular || t == BearishRegular
}

// Strength buckets the average magnitude of the paired moves.
type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

// Indicator names a series to compare against price.
type Indicator string

const (
	IndicatorRSI  Indicator = "rsi"
	IndicatorMACD Indicator = "macd" // histogram
	IndicatorOBV  Indicator = "obv"
)

// Overall signal labels.
const (
	SignalNone          = "no_divergence"
	SignalBullish       = "bullish_divergence"
	SignalStrongBullish = "strong_bullish_divergence"
	SignalBearish       = "bearish_divergence"
	SignalStrongBearish = "strong_bearish_divergence"
	SignalMixed         = "mixed_divergence"
)

// Suggested actions attached to the overall signal.
const (
	ActionNone         = "no_action"
	ActionConsiderBuy  = "consider_buy"
	ActionConsiderSell = "consider_sell"
	ActionWatchUp      = "watch_for_reversal_up"
	ActionWatchDown    = "watch_for_reversal_down"
	ActionWait         = "wait_for_clarity"
)

// Confidence labels for the overall signal.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
	ConfidenceNone   = "none"
)

// Agreement labels for the set of active divergences.
const (
	AgreementAligned = "aligned"
	AgreementMixed   = "mixed"
)

const (
	defaultLookback = 30
	minLookback     = 15
	maxLookback     = 60

	// Pivot confirmation width on the price window.
	pivotOrder = 3

	// A divergence is active when its end pivot sits within this many
	// bars of the series end.
	activeWindow = 5
)

// Params controls the detection window and the indicators compared.
type Params struct {
	Lookback   int         `json:"lookback"`
	Indicators []Indicator `json:"indicators"`
}

// DefaultParams checks RSI, MACD histogram and OBV over the last 30 bars.
func DefaultParams() Params {
	return Params{
		Lookback:   defaultLookback,
		Indicators: []Indicator{IndicatorRSI, IndicatorMACD, IndicatorOBV},
	}
}

// Divergence is one detected price/indicator disagreement. Indices point
// into the source series.
type Divergence struct {
	Type             Type     `json:"type"`
	PricePattern     string   `json:"price_pattern"`
	IndicatorPattern string   `json:"indicator_pattern"`
	StartIndex       int      `json:"start_index"`
	EndIndex         int      `json:"end_index"`
	StartPrice       float64  `json:"start_price"`
	EndPrice         float64  `json:"end_price"`
	StartIndicator   float64  `json:"start_indicator"`
	EndIndicator     float64  `json:"end_indicator"`
	Strength         Strength `json:"strength"`
	BarsApart        int      `json:"bars_apart"`
}

// IndicatorAnalysis holds all divergences found for one indicator. Active
// is nil when the most recent divergence ended too long ago.
type IndicatorAnalysis struct {
	Indicator Indicator        `json:"indicator"`
	Current   indicators.Value `json:"current_value"`
	Regular   []Divergence     `json:"regular_divergences"`
	Hidden    []Divergence     `json:"hidden_divergences"`
	Total     int              `json:"total_divergences"`
	Active    *Divergence      `json:"active_divergence,omitempty"`
}

// ActiveDivergence is the per-indicator entry fed into the overall signal.
type ActiveDivergence struct {
	Indicator Indicator `json:"indicator"`
	Type      Type      `json:"type"`
	Strength  Strength  `json:"strength"`
}

// Overall aggregates active divergences across indicators. Strong hits
// score two points, the rest one; three points either way makes the signal
// strong with high confidence.
type Overall struct {
	Signal       string             `json:"signal"`
	Action       string             `json:"action"`
	Confidence   string             `json:"confidence"`
	BullishScore int                `json:"bullish_score"`
	BearishScore int                `json:"bearish_score"`
	Active       []ActiveDivergence `json:"active_divergences"`
	Agreement    string             `json:"indicator_agreement"`
}

// Result is the full multi-indicator divergence report for one series.
type Result struct {
	Symbol   string              `json:"symbol"`
	Analyses []IndicatorAnalysis `json:"indicator_analyses"`
	Overall  Overall             `json:"overall_signal"`
	Lookback int                 `json:"lookback"`
}

// Analyze runs divergence detection for every configured indicator over
// the series tail. The lookback clamps to [15, 60] and the series must
// carry max(lookback+20, 50) bars so the indicators have warmup room.
func Analyze(s *marketdata.Series, p Params) (*Result, error) {
	if s == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "divergence: nil series")
	}
	p.Lookback = clampLookback(p.Lookback)
	if len(p.Indicators) == 0 {
		p.Indicators = DefaultParams().Indicators
	}
	for _, name := range p.Indicators {
		switch name {
		case IndicatorRSI, IndicatorMACD, IndicatorOBV:
		default:
			return nil, errors.Wrapf(errors.ErrInvalidInput, "divergence: unknown indicator %q", name)
		}
	}

	minBars := p.Lookback + 20
	if minBars < 50 {
		minBars = 50
	}
	if s.Len() < minBars {
		return nil, errors.Wrapf(errors.ErrInsufficientData,
			"divergence: %s needs %d bars, got %d", s.Symbol, minBars, s.Len())
	}

	closes := s.Closes()
	volumes := s.Volumes()
	offset := len(closes) - p.Lookback
	priceWindow := closes[offset:]

	res := &Result{Symbol: s.Symbol, Lookback: p.Lookback}
	for _, name := range p.Indicators {
		analysis := IndicatorAnalysis{Indicator: name}
		series, current := indicatorSeries(name, closes, volumes)
		if series != nil {
			window := series[offset:]
			analysis.Current = current
			analysis.Regular = Regular(priceWindow, window, offset)
			analysis.Hidden = Hidden(priceWindow, window, offset)
			analysis.Total = len(analysis.Regular) + len(analysis.Hidden)
			analysis.Active = activeDivergence(analysis.Regular, analysis.Hidden, s.Len())
		}
		res.Analyses = append(res.Analyses, analysis)
	}
	res.Overall = overall(res.Analyses)
	return res, nil
}

// Regular detects reversal divergences over aligned price and indicator
// windows: price lower low against indicator higher low, and price higher
// high against indicator lower high. Returned indices are window indices
// shifted by offset.
func Regular(price, ind []float64, offset int) []Divergence {
	var out []Divergence
	lows := swings.DetectLows(price, pivotOrder)
	for i := 1; i < len(lows); i++ {
		prev, curr := lows[i-1], lows[i]
		if price[curr] < price[prev] && ind[curr] > ind[prev] {
			out = append(out, newDivergence(BullishRegular, price, ind, prev, curr, offset))
		}
	}
	highs := swings.DetectHighs(price, pivotOrder)
	for i := 1; i < len(highs); i++ {
		prev, curr := highs[i-1], highs[i]
		if price[curr] > price[prev] && ind[curr] < ind[prev] {
			out = append(out, newDivergence(BearishRegular, price, ind, prev, curr, offset))
		}
	}
	return out
}

// Hidden detects continuation divergences: price higher low against
// indicator lower low, and price lower high against indicator higher high.
func Hidden(price, ind []float64, offset int) []Divergence {
	var out []Divergence
	lows := swings.DetectLows(price, pivotOrder)
	for i := 1; i < len(lows); i++ {
		prev, curr := lows[i-1], lows[i]
		if price[curr] > price[prev] && ind[curr] < ind[prev] {
			out = append(out, newDivergence(BullishHidden, price, ind, prev, curr, offset))
		}
	}
	highs := swings.DetectHighs(price, pivotOrder)
	for i := 1; i < len(highs); i++ {
		prev, curr := highs[i-1], highs[i]
		if price[curr] < price[prev] && ind[curr] > ind[prev] {
			out = append(out, newDivergence(BearishHidden, price, ind, prev, curr, offset))
		}
	}
	return out
}

var typePatterns = map[Type][2]string{
	BullishRegular: {"lower_low", "higher_low"},
	BearishRegular: {"higher_high", "lower_high"},
	BullishHidden:  {"higher_low", "lower_low"},
	BearishHidden:  {"lower_high", "higher_high"},
}

func newDivergence(typ Type, price, ind []float64, prev, curr, offset int) Divergence {
	patterns := typePatterns[typ]
	return Divergence{
		Type:             typ,
		PricePattern:     patterns[0],
		IndicatorPattern: patterns[1],
		StartIndex:       offset + prev,
		EndIndex:         offset + curr,
		StartPrice:       round2(price[prev]),
		EndPrice:         round2(price[curr]),
		StartIndicator:   round2(ind[prev]),
		EndIndicator:     round2(ind[curr]),
		Strength:         strengthOf(price[prev], price[curr], ind[prev], ind[curr]),
		BarsApart:        curr - prev,
	}
}

// strengthOf averages the two absolute percentage moves. Zero start values
// contribute nothing rather than dividing by zero.
func strengthOf(price1, price2, ind1, ind2 float64) Strength {
	var priceChange, indChange float64
	if price1 != 0 {
		priceChange = math.Abs((price2-price1)/price1) * 100
	}
	if ind1 != 0 {
		indChange = math.Abs((ind2-ind1)/ind1) * 100
	}
	avg := (priceChange + indChange) / 2
	switch {
	case avg > 10:
		return StrengthStrong
	case avg > 5:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// indicatorSeries computes the aligned indicator array for one name, plus
// its latest value rounded the way that indicator is usually read. A nil
// array means the input was too short for the indicator's warmup.
func indicatorSeries(name Indicator, closes, volumes []float64) ([]float64, indicators.Value) {
	switch name {
	case IndicatorRSI:
		arr := indicators.RSISeries(closes, indicators.DefaultRSIParams().Period)
		if arr == nil {
			return nil, indicators.Value{}
		}
		return arr, indicators.Some(round2(arr[len(arr)-1]))
	case IndicatorMACD:
		p := indicators.DefaultMACDParams()
		arr := indicators.MACDHistogramSeries(closes, p.FastPeriod, p.SlowPeriod, p.SignalPeriod)
		if arr == nil {
			return nil, indicators.Value{}
		}
		return arr, indicators.Some(math.Round(arr[len(arr)-1]*10000) / 10000)
	case IndicatorOBV:
		arr := indicators.OBVSeries(closes, volumes)
		if arr == nil {
			return nil, indicators.Value{}
		}
		return arr, indicators.Some(math.Round(arr[len(arr)-1]))
	}
	return nil, indicators.Value{}
}

// activeDivergence picks the most recent divergence and keeps it only when
// its end pivot falls within the last activeWindow bars of the series.
func activeDivergence(regular, hidden []Divergence, seriesLen int) *Divergence {
	var recent *Divergence
	for i := range regular {
		if recent == nil || regular[i].EndIndex > recent.EndIndex {
			recent = &regular[i]
		}
	}
	for i := range hidden {
		if recent == nil || hidden[i].EndIndex > recent.EndIndex {
			recent = &hidden[i]
		}
	}
	if recent == nil || recent.EndIndex < seriesLen-activeWindow {
		return nil
	}
	out := *recent
	return &out
}

func overall(analyses []IndicatorAnalysis) Overall {
	var o Overall
	var bull, bear bool
	for _, a := range analyses {
		if a.Active == nil {
			continue
		}
		d := *a.Active
		o.Active = append(o.Active, ActiveDivergence{Indicator: a.Indicator, Type: d.Type, Strength: d.Strength})
		points := 1
		if d.Strength == StrengthStrong {
			points = 2
		}
		if d.Type.Bullish() {
			o.BullishScore += points
			bull = true
		} else {
			o.BearishScore += points
			bear = true
		}
	}

	switch {
	case len(o.Active) == 0:
		o.Signal, o.Action, o.Confidence = SignalNone, ActionNone, ConfidenceNone
	case o.BullishScore > o.BearishScore && o.BullishScore >= 3:
		o.Signal, o.Action, o.Confidence = SignalStrongBullish, ActionConsiderBuy, ConfidenceHigh
	case o.BullishScore > o.BearishScore:
		o.Signal, o.Action, o.Confidence = SignalBullish, ActionWatchUp, ConfidenceMedium
	case o.BearishScore > o.BullishScore && o.BearishScore >= 3:
		o.Signal, o.Action, o.Confidence = SignalStrongBearish, ActionConsiderSell, ConfidenceHigh
	case o.BearishScore > o.BullishScore:
		o.Signal, o.Action, o.Confidence = SignalBearish, ActionWatchDown, ConfidenceMedium
	default:
		o.Signal, o.Action, o.Confidence = SignalMixed, ActionWait, ConfidenceLow
	}

	o.Agreement = AgreementMixed
	if bull != bear {
		o.Agreement = AgreementAligned
	}
	return o
}

func clampLookback(lookback int) int {
	if lookback == 0 {
		return defaultLookback
	}
	if lookback < minLookback {
		return minLookback
	}
	if lookback > maxLookback {
		return maxLookback
	}
	return lookback
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
