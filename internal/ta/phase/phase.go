// Package phase classifies recent price/volume behavior into the classic
// market cycle states: accumulation, markup, distribution and markdown.
// Each bar feeds four independent rule-weighted scores and the winner is
// declared only when it clears a margin over the runner-up; otherwise the
// window reads as a transition. The scores are a heuristic proxy built
// from price and volume action, not a measurement of real order flow.
package phase

import (
	"math"

	"delphi/internal/domain/marketdata"
	"delphi/internal/ta/indicators"
	"delphi/pkg/errors"
)

const (
	minBars      = 20
	maxMAWindow  = 20
	minMAWindow  = 5
	recentWindow = 20
	slopeBars    = 5
	closePosEps  = 0.0001
)

// Phase is one market cycle state.
type Phase string

const (
	PhaseAccumulation Phase = "accumulation"
	PhaseMarkup       Phase = "markup"
	PhaseDistribution Phase = "distribution"
	PhaseMarkdown     Phase = "markdown"
	PhaseTransition   Phase = "transition"
)

const (
	ConfidenceHigh     = "high"
	ConfidenceModerate = "moderate"
	ConfidenceLow      = "low"
)

// Params holds the declaration gate and the volume regime cutoffs. The
// winner must score at least MinScore and beat the runner-up by
// MarginPoints absolute or MarginPct of the total; a bar's volume ratio
// above HighVolumeRatio or below LowVolumeRatio moves it out of the
// neutral regime. These are policy constants, not derived quantities.
type Params struct {
	MinScore        float64 `json:"min_score"`
	MarginPoints    float64 `json:"margin_points"`
	MarginPct       float64 `json:"margin_pct"`
	HighVolumeRatio float64 `json:"high_volume_ratio"`
	LowVolumeRatio  float64 `json:"low_volume_ratio"`
}

// DefaultParams returns the 2-point / 2-point / 25% gate with the
// 1.2x / 0.8x volume regime cutoffs.
func DefaultParams() Params {
	return Params{
		MinScore:        2,
		MarginPoints:    2,
		MarginPct:       25,
		HighVolumeRatio: 1.2,
		LowVolumeRatio:  0.8,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MinScore <= 0 {
		p.MinScore = d.MinScore
	}
	if p.MarginPoints <= 0 {
		p.MarginPoints = d.MarginPoints
	}
	if p.MarginPct <= 0 {
		p.MarginPct = d.MarginPct
	}
	if p.HighVolumeRatio <= 0 {
		p.HighVolumeRatio = d.HighVolumeRatio
	}
	if p.LowVolumeRatio <= 0 {
		p.LowVolumeRatio = d.LowVolumeRatio
	}
	return p
}

// Scores holds the four accumulated phase scores.
type Scores struct {
	Accumulation float64 `json:"accumulation"`
	Markup       float64 `json:"markup"`
	Distribution float64 `json:"distribution"`
	Markdown     float64 `json:"markdown"`
}

func (s Scores) total() float64 {
	return s.Accumulation + s.Markup + s.Distribution + s.Markdown
}

// PriceAction summarizes the window's price behavior.
type PriceAction struct {
	TrendPct  float64 `json:"trend_pct"`
	Direction string  `json:"trend_direction"` // up, down or sideways
	Price     float64 `json:"current_price"`
	MA        float64 `json:"ma"`
	MAWindow  int     `json:"ma_window"`
	MASlope   float64 `json:"ma_slope"`
	AboveMA   bool    `json:"above_ma"`
}

// VolumeAction summarizes the window's volume regimes.
type VolumeAction struct {
	HighDays    int     `json:"high_volume_days"`
	NeutralDays int     `json:"neutral_volume_days"`
	LowDays     int     `json:"low_volume_days"`
	TrendPct    float64 `json:"volume_trend_pct"`
	Status      string  `json:"volume_status"` // increasing, decreasing or stable
}

// AccumulationStrength expresses how much of the window scored as buying
// phases, as a percentage of the bars scored.
type AccumulationStrength struct {
	Score  float64 `json:"score"`
	Rating string  `json:"rating"` // strong, moderate or weak
	Active bool    `json:"active"`
}

// Result is the phase classification for a series.
type Result struct {
	Symbol               string               `json:"symbol"`
	Phase                Phase                `json:"phase"`
	Strength             float64              `json:"strength"` // winning score
	Margin               float64              `json:"margin_vs_second"`
	Confidence           string               `json:"confidence"`
	Scores               Scores               `json:"scores"`
	PriceAction          PriceAction          `json:"price_action"`
	VolumeAction         VolumeAction         `json:"volume_action"`
	AccumulationStrength AccumulationStrength `json:"accumulation_strength"`
	Window               int                  `json:"window"` // bars scored
	Action               string               `json:"action"`
	RiskLevel            string               `json:"risk_level"`
}

type regime int

const (
	regimeLow regime = iota
	regimeNeutral
	regimeHigh
)

const (
	weightHighVolume    = 1.0
	weightLowVolume     = 0.5
	weightNeutralVolume = 0.35
)

func (p Params) volumeRegime(ratio float64) (regime, float64) {
	switch {
	case ratio > p.HighVolumeRatio:
		return regimeHigh, weightHighVolume
	case ratio < p.LowVolumeRatio:
		return regimeLow, weightLowVolume
	default:
		return regimeNeutral, weightNeutralVolume
	}
}

// barFeatures is one bar reduced to the inputs the rules read.
type barFeatures struct {
	Return      float64 // close-to-close percent
	VolumeRatio float64 // volume vs its rolling MA
	ClosePos    float64 // close position within the bar range, 0 low 1 high
	Range       float64 // bar range percent of close
	AvgRange    float64 // rolling mean of Range
	AboveMA     bool    // close above the price MA
}

// scoreBar applies the per-bar rules for all four phases and returns the
// updated consecutive-down streak. maSlope is the window's final MA slope
// reading, applied to every bar. Within a phase the rules are exclusive;
// across phases they are independent, so one bar can feed several scores.
func scoreBar(p Params, f barFeatures, streak int, maSlope float64, s *Scores) int {
	reg, weight := p.volumeRegime(f.VolumeRatio)

	switch {
	case reg == regimeHigh && f.Return > -2 && f.Return < 2:
		s.Accumulation += 1.0
	case reg == regimeNeutral && f.Range < f.AvgRange && f.ClosePos > 0.6 && f.Return > -1:
		s.Accumulation += 0.5
	case reg != regimeLow && f.Return > -3 && f.Return < 0 && f.ClosePos > 0.7:
		s.Accumulation += weight * 0.7
	}

	switch {
	case reg == regimeHigh && f.Return > 2:
		s.Markup += 1.0
	case reg == regimeNeutral && f.Return > 1.5:
		s.Markup += 0.4
	case f.Return > 0.5 && f.ClosePos > 0.8:
		s.Markup += weight * 0.5
	}

	switch {
	case reg == regimeHigh && f.Return < -2 && f.AboveMA:
		s.Distribution += 1.0
	case reg == regimeHigh && f.ClosePos < 0.3:
		s.Distribution += 0.7
	case reg == regimeNeutral && f.ClosePos < 0.3 && f.AboveMA:
		s.Distribution += 0.3
	}

	if f.Return < -0.5 {
		streak++
	} else {
		streak = 0
	}

	switch {
	case reg == regimeLow && f.Return < -2 && !f.AboveMA:
		s.Markdown += 1.0
	case reg == regimeHigh && f.Return < -3 && !f.AboveMA:
		s.Markdown += 1.2
	case streak >= 2 && !f.AboveMA:
		s.Markdown += 0.6
	case streak >= 3:
		s.Markdown += 0.8
	case !f.AboveMA && maSlope < -0.5 && f.Return < -1:
		s.Markdown += 0.5
	}
	if f.ClosePos < 0.2 && f.Return < 0 {
		s.Markdown += 0.3
	}
	return streak
}

// Analyze scores the recent window and declares the dominant phase, or
// transition when no phase clears the margin gate.
func Analyze(s *marketdata.Series, p Params) (*Result, error) {
	if s == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "phase: nil series")
	}
	n := s.Len()
	if n < minBars {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "phase: %d bars, need %d", n, minBars)
	}
	p = p.withDefaults()

	closes := s.Closes()
	volumes := s.Volumes()

	maWindow := n / 2
	if maWindow > maxMAWindow {
		maWindow = maxMAWindow
	}
	if maWindow < minMAWindow {
		maWindow = minMAWindow
	}

	volumeMA := indicators.SMASeries(volumes, maWindow)
	priceMA := indicators.SMASeries(closes, maWindow)

	ranges := make([]float64, n)
	for i, b := range s.Bars {
		if b.Close > 0 {
			ranges[i] = (b.High - b.Low) / b.Close * 100
		}
	}
	avgRanges := indicators.SMASeries(ranges, maWindow)

	recentDays := n - maWindow
	if recentDays > recentWindow {
		recentDays = recentWindow
	}
	start := n - recentDays

	maSlope := 0.0
	if ago := priceMA[n-1-slopeBars]; ago != 0 {
		maSlope = (priceMA[n-1] - ago) / ago * 100
	}
	aboveMA := closes[n-1] > priceMA[n-1]

	var scores Scores
	var va VolumeAction
	streak := 0
	for i := start; i < n; i++ {
		f := barFeatures{
			ClosePos: closePosition(s.Bars[i]),
			Range:    ranges[i],
			AvgRange: avgRanges[i],
			AboveMA:  closes[i] > priceMA[i],
		}
		if prev := closes[i-1]; prev != 0 {
			f.Return = (closes[i] - prev) / prev * 100
		}
		f.VolumeRatio = 1.0
		if volumeMA[i] > 0 {
			f.VolumeRatio = volumes[i] / volumeMA[i]
		}

		switch reg, _ := p.volumeRegime(f.VolumeRatio); reg {
		case regimeHigh:
			va.HighDays++
		case regimeLow:
			va.LowDays++
		default:
			va.NeutralDays++
		}
		streak = scoreBar(p, f, streak, maSlope, &scores)
	}

	priceTrend := 0.0
	if first := closes[start]; first > 0 {
		priceTrend = (closes[n-1] - first) / first * 100
	}
	volumeTrend := 0.0
	if head := mean(volumes[start : start+5]); head > 0 {
		volumeTrend = (mean(volumes[n-5:]) - head) / head * 100
	}

	// Window confirmation bonuses
	if !aboveMA && priceTrend < -5 && maSlope < 0 {
		scores.Markdown += 2.0
	}
	if aboveMA && priceTrend > 5 && maSlope > 0 {
		scores.Markup += 1.5
	}

	scores = Scores{
		Accumulation: round1(scores.Accumulation),
		Markup:       round1(scores.Markup),
		Distribution: round1(scores.Distribution),
		Markdown:     round1(scores.Markdown),
	}

	ph, strength, margin := classify(scores, p)

	va.TrendPct = round2(volumeTrend)
	va.Status = trendLabel(volumeTrend, 20, "increasing", "decreasing", "stable")

	res := &Result{
		Symbol:     s.Symbol,
		Phase:      ph,
		Strength:   strength,
		Margin:     round1(margin),
		Confidence: confidenceOf(strength, margin),
		Scores:     scores,
		PriceAction: PriceAction{
			TrendPct:  round2(priceTrend),
			Direction: trendLabel(priceTrend, 5, "up", "down", "sideways"),
			Price:     round2(closes[n-1]),
			MA:        round2(priceMA[n-1]),
			MAWindow:  maWindow,
			MASlope:   round2(maSlope),
			AboveMA:   aboveMA,
		},
		VolumeAction:         va,
		AccumulationStrength: accumulationStrength(scores, recentDays),
		Window:               recentDays,
		Action:               ActionFor(ph),
		RiskLevel:            RiskFor(ph),
	}
	return res, nil
}

// classify picks the top score and gates it: below MinScore, or ahead of
// the runner-up by less than both margin thresholds, the window is a
// transition rather than a declared phase.
func classify(s Scores, p Params) (Phase, float64, float64) {
	type entry struct {
		phase Phase
		score float64
	}
	entries := []entry{
		{PhaseAccumulation, s.Accumulation},
		{PhaseMarkup, s.Markup},
		{PhaseDistribution, s.Distribution},
		{PhaseMarkdown, s.Markdown},
	}

	best := entries[0]
	second := 0.0
	for _, e := range entries[1:] {
		if e.score > best.score {
			second = best.score
			best = e
		} else if e.score > second {
			second = e.score
		}
	}

	margin := best.score - second
	marginPct := 0.0
	if total := s.total(); total > 0 {
		marginPct = margin / total * 100
	}

	if best.score < p.MinScore || (margin < p.MarginPoints && marginPct < p.MarginPct) {
		return PhaseTransition, best.score, margin
	}
	return best.phase, best.score, margin
}

func confidenceOf(strength, margin float64) string {
	switch {
	case strength >= 5 && margin >= 3:
		return ConfidenceHigh
	case strength >= 3 && margin >= 2:
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}

func accumulationStrength(s Scores, window int) AccumulationStrength {
	score := (s.Accumulation + s.Markup) / float64(window) * 100
	rating := "weak"
	switch {
	case score > 40:
		rating = "strong"
	case score > 20:
		rating = "moderate"
	}
	return AccumulationStrength{
		Score:  round2(score),
		Rating: rating,
		Active: score > 25 || s.Markup > 3 || s.Accumulation > 3,
	}
}

// ActionFor maps a phase to its suggested stance
func ActionFor(p Phase) string {
	switch p {
	case PhaseAccumulation:
		return "buy"
	case PhaseMarkup:
		return "hold"
	case PhaseDistribution:
		return "sell"
	case PhaseTransition:
		return "wait"
	default:
		return "avoid"
	}
}

// RiskFor maps a phase to its risk label
func RiskFor(p Phase) string {
	switch p {
	case PhaseAccumulation:
		return "low"
	case PhaseMarkup, PhaseTransition:
		return "moderate"
	default:
		return "high"
	}
}

func closePosition(b marketdata.Bar) float64 {
	return (b.Close - b.Low) / (b.High - b.Low + closePosEps)
}

func trendLabel(value, threshold float64, up, down, flat string) string {
	if value > threshold {
		return up
	}
	if value < -threshold {
		return down
	}
	return flat
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

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
