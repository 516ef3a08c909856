package indicators

import (
	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// Rating is the composite moving average recommendation
type Rating string

const (
	RatingStrongBuy  Rating = "strong_buy"  // score 70 and above
	RatingBuy        Rating = "buy"         // score 55 to 69
	RatingNeutral    Rating = "neutral"     // score 45 to 54
	RatingSell       Rating = "sell"        // score 30 to 44
	RatingStrongSell Rating = "strong_sell" // score below 30
)

// CrossoverParams configures moving average crossover detection
type CrossoverParams struct {
	// LookbackBars bounds how far back cross events are reported
	LookbackBars int `json:"lookback_bars"`
}

// DefaultCrossoverParams returns the standard 30-bar window
func DefaultCrossoverParams() CrossoverParams {
	return CrossoverParams{LookbackBars: 30}
}

// CrossEvent is one fast/slow moving average cross inside the lookback window
type CrossEvent struct {
	Pair      string  `json:"pair"` // sma_20_50, sma_50_200, ema_9_21, ema_12_26
	Type      string  `json:"type"` // golden_cross or death_cross
	Signal    Signal  `json:"signal"`
	BarsAgo   int     `json:"bars_ago"`
	FastValue float64 `json:"fast_value"`
	SlowValue float64 `json:"slow_value"`
}

// PairAlignment is the current fast versus slow ordering for one pair
type PairAlignment struct {
	Pair   string `json:"pair"`
	Signal Signal `json:"signal"` // bullish when fast is above slow
}

// MADistance grades how far price sits from one moving average
type MADistance struct {
	Name        string  `json:"name"`
	DistancePct float64 `json:"distance_pct"`
	Position    string  `json:"position"` // far_above, above, slightly_above, slightly_below, below, far_below
}

// CrossoverResult aggregates cross events, alignments and the composite score
type CrossoverResult struct {
	Events       []CrossEvent    `json:"events"`
	Alignments   []PairAlignment `json:"alignments"`
	Distances    []MADistance    `json:"distances"`
	Score        int             `json:"score"` // 0 to 100, 50 is neutral
	Rating       Rating          `json:"rating"`
	LookbackBars int             `json:"lookback_bars"`
}

// maPair names one fast/slow combination tracked by the detector
type maPair struct {
	name string
	fast string
	slow string
}

var trackedPairs = []maPair{
	{"sma_20_50", "sma_20", "sma_50"},
	{"sma_50_200", "sma_50", "sma_200"},
	{"ema_9_21", "ema_9", "ema_21"},
	{"ema_12_26", "ema_12", "ema_26"},
}

// Crossovers detects golden and death crosses across the tracked moving
// average pairs and scores the overall alignment. Pairs whose slow leg
// exceeds the series length are skipped.
func Crossovers(s *marketdata.Series, p CrossoverParams) (CrossoverResult, error) {
	if s == nil {
		return CrossoverResult{}, errors.Wrap(errors.ErrInvalidInput, "crossover: nil series")
	}
	lookback := p.LookbackBars
	if lookback <= 0 {
		lookback = DefaultCrossoverParams().LookbackBars
	}
	if lookback > maxPeriod {
		lookback = maxPeriod
	}

	res := CrossoverResult{LookbackBars: lookback}
	closes := s.Closes()
	if len(closes) == 0 {
		return res, nil
	}
	price := closes[len(closes)-1]

	// Compute each tracked average once, skipping those without enough bars
	series := map[string][]float64{
		"sma_20":  SMASeries(closes, 20),
		"sma_50":  SMASeries(closes, 50),
		"sma_200": SMASeries(closes, 200),
		"ema_9":   EMASeries(closes, 9),
		"ema_12":  EMASeries(closes, 12),
		"ema_21":  EMASeries(closes, 21),
		"ema_26":  EMASeries(closes, 26),
	}
	warmups := map[string]int{
		"sma_20": 19, "sma_50": 49, "sma_200": 199,
		"ema_9": 8, "ema_12": 11, "ema_21": 20, "ema_26": 25,
	}

	for _, pair := range trackedPairs {
		fast, slow := series[pair.fast], series[pair.slow]
		if fast == nil || slow == nil {
			continue
		}

		res.Alignments = append(res.Alignments, PairAlignment{
			Pair:   pair.name,
			Signal: alignmentSignal(last(fast), last(slow)),
		})

		res.Events = append(res.Events, detectCrosses(pair, fast, slow, warmups[pair.slow], lookback)...)
	}

	for _, name := range []string{"sma_20", "sma_50", "sma_200", "ema_9", "ema_12", "ema_21", "ema_26"} {
		if values := series[name]; values != nil {
			res.Distances = append(res.Distances, maDistance(name, price, last(values)))
		}
	}

	res.Score = crossoverScore(res.Alignments, res.Events, res.Distances)
	res.Rating = scoreRating(res.Score)
	return res, nil
}

func alignmentSignal(fast, slow float64) Signal {
	if fast > slow {
		return SignalBullish
	}
	return SignalBearish
}

// detectCrosses walks consecutive bars looking for sign changes of the
// fast-slow spread inside the lookback window
func detectCrosses(pair maPair, fast, slow []float64, slowWarmup, lookback int) []CrossEvent {
	var events []CrossEvent
	n := len(fast)
	start := n - lookback
	if start < slowWarmup+1 {
		start = slowWarmup + 1
	}
	for i := start; i < n; i++ {
		prevDelta := fast[i-1] - slow[i-1]
		delta := fast[i] - slow[i]
		switch {
		case prevDelta <= 0 && delta > 0:
			events = append(events, CrossEvent{
				Pair: pair.name, Type: "golden_cross", Signal: SignalBullish,
				BarsAgo: n - 1 - i, FastValue: round2(fast[i]), SlowValue: round2(slow[i]),
			})
		case prevDelta >= 0 && delta < 0:
			events = append(events, CrossEvent{
				Pair: pair.name, Type: "death_cross", Signal: SignalBearish,
				BarsAgo: n - 1 - i, FastValue: round2(fast[i]), SlowValue: round2(slow[i]),
			})
		}
	}
	return events
}

func maDistance(name string, price, ma float64) MADistance {
	d := MADistance{Name: name}
	if ma == 0 {
		d.Position = "unknown"
		return d
	}
	pct := (price - ma) / ma * 100
	d.DistancePct = round2(pct)
	switch {
	case pct > 10:
		d.Position = "far_above"
	case pct > 5:
		d.Position = "above"
	case pct > 0:
		d.Position = "slightly_above"
	case pct > -5:
		d.Position = "slightly_below"
	case pct > -10:
		d.Position = "below"
	default:
		d.Position = "far_below"
	}
	return d
}

// crossoverScore starts neutral at 50 and shifts by alignment (max 20),
// recent crosses (max 20) and distance from the SMA200 (max 10)
func crossoverScore(alignments []PairAlignment, events []CrossEvent, distances []MADistance) int {
	score := 50.0

	if len(alignments) > 0 {
		bullish, bearish := 0, 0
		for _, a := range alignments {
			if a.Signal == SignalBullish {
				bullish++
			} else {
				bearish++
			}
		}
		score += float64(bullish-bearish) / float64(len(alignments)) * 20
	}

	crossScore := 0.0
	for _, e := range events {
		if e.Signal == SignalBullish {
			crossScore += 10
		} else {
			crossScore -= 10
		}
	}
	if crossScore > 20 {
		crossScore = 20
	}
	if crossScore < -20 {
		crossScore = -20
	}
	score += crossScore

	for _, d := range distances {
		if d.Name != "sma_200" {
			continue
		}
		switch {
		case d.DistancePct > 0 && d.DistancePct < 10:
			score += 10
		case d.DistancePct >= 10:
			score += 5 // extended above the long average
		case d.DistancePct > -10 && d.DistancePct < 0:
			score -= 5
		case d.DistancePct <= -10:
			score -= 10
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score + 0.5)
}

func scoreRating(score int) Rating {
	switch {
	case score >= 70:
		return RatingStrongBuy
	case score >= 55:
		return RatingBuy
	case score >= 45:
		return RatingNeutral
	case score >= 30:
		return RatingSell
	default:
		return RatingStrongSell
	}
}
