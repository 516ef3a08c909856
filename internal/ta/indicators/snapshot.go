package indicators

import (
	"sort"
	"time"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// Composite verdicts where a momentum warning tempers the vote outcome
const (
	SignalBullishButOverbought Signal = "bullish_but_overbought"
	SignalBearishButOversold   Signal = "bearish_but_oversold"
)

// SnapshotParams bundles the per-indicator configurations
type SnapshotParams struct {
	RSI        RSIParams        `json:"rsi"`
	MACD       MACDParams       `json:"macd"`
	Bollinger  BollingerParams  `json:"bollinger"`
	ATR        ATRParams        `json:"atr"`
	ADX        ADXParams        `json:"adx"`
	Ichimoku   IchimokuParams   `json:"ichimoku"`
	Stochastic StochasticParams `json:"stochastic"`
	MAs        MAParams         `json:"mas"`
}

// DefaultSnapshotParams returns the standard configuration for every indicator
func DefaultSnapshotParams() SnapshotParams {
	return SnapshotParams{
		RSI:        DefaultRSIParams(),
		MACD:       DefaultMACDParams(),
		Bollinger:  DefaultBollingerParams(),
		ATR:        DefaultATRParams(),
		ADX:        DefaultADXParams(),
		Ichimoku:   DefaultIchimokuParams(),
		Stochastic: DefaultStochasticParams(),
		MAs:        DefaultMAParams(),
	}
}

// Snapshot is the full indicator state of a series at its latest bar
type Snapshot struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Price    float64   `json:"price"`
	AsOf     time.Time `json:"as_of"`
	BarCount int       `json:"bar_count"`

	RSI        RSIResult        `json:"rsi"`
	MACD       MACDResult       `json:"macd"`
	MAs        MAResult         `json:"moving_averages"`
	Bollinger  BollingerResult  `json:"bollinger"`
	ATR        ATRResult        `json:"atr"`
	ADX        ADXResult        `json:"adx"`
	Ichimoku   IchimokuResult   `json:"ichimoku"`
	OBV        OBVResult        `json:"obv"`
	VWAP       VWAPResult       `json:"vwap"`
	Stochastic StochasticResult `json:"stochastic"`

	Support    []float64 `json:"support_levels"`
	Resistance []float64 `json:"resistance_levels"`

	Overall      Signal   `json:"overall_signal"`
	BullishScore float64  `json:"bullish_score"`
	BearishScore float64  `json:"bearish_score"`
	Warnings     []string `json:"warnings,omitempty"`
}

// ComputeSnapshot evaluates the whole indicator set on one series and
// aggregates a weighted overall signal. Indicators without enough bars
// contribute unavailable readings and are excluded from the vote.
func ComputeSnapshot(s *marketdata.Series, p SnapshotParams) (*Snapshot, error) {
	if s == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "snapshot: nil series")
	}

	snap := &Snapshot{
		Symbol:   s.Symbol,
		Interval: s.Interval,
		BarCount: s.Len(),
	}
	if b, ok := s.Last(); ok {
		snap.Price = round2(b.Close)
		snap.AsOf = b.CloseTime
	}

	var err error
	if snap.RSI, err = RSI(s, p.RSI); err != nil {
		return nil, err
	}
	if snap.MACD, err = MACD(s, p.MACD); err != nil {
		return nil, err
	}
	if snap.MAs, err = MovingAverages(s, p.MAs); err != nil {
		return nil, err
	}
	if snap.Bollinger, err = Bollinger(s, p.Bollinger); err != nil {
		return nil, err
	}
	if snap.ATR, err = ATR(s, p.ATR); err != nil {
		return nil, err
	}
	if snap.ADX, err = ADX(s, p.ADX); err != nil {
		return nil, err
	}
	if snap.Ichimoku, err = Ichimoku(s, p.Ichimoku); err != nil {
		return nil, err
	}
	if snap.OBV, err = OBV(s); err != nil {
		return nil, err
	}
	if snap.VWAP, err = VWAP(s); err != nil {
		return nil, err
	}
	if snap.Stochastic, err = Stochastic(s, p.Stochastic); err != nil {
		return nil, err
	}

	snap.Support, snap.Resistance = recentLevels(s, 20, 3)
	snap.Overall, snap.BullishScore, snap.BearishScore, snap.Warnings = overallSignal(snap)
	return snap, nil
}

// overallSignal tallies weighted indicator votes. RSI acts as a warning
// filter rather than a direct vote: overbought momentum can extend, so it
// only tempers an otherwise bullish verdict.
func overallSignal(snap *Snapshot) (Signal, float64, float64, []string) {
	var bullish, bearish float64
	var warnings []string

	if snap.RSI.Value.Valid {
		switch {
		case snap.RSI.Value.Float64 < 30:
			warnings = append(warnings, "oversold")
		case snap.RSI.Value.Float64 > 80:
			warnings = append(warnings, "extreme_overbought")
		}
	}

	if snap.MACD.Trend == SignalBullish {
		bullish += 1.5
	} else if snap.MACD.Trend == SignalBearish {
		bearish += 1.5
	}

	if snap.ADX.ADX.Valid {
		switch snap.ADX.Strength {
		case TrendStrong:
			if snap.ADX.Direction == SignalBullish {
				bullish += 2
			} else {
				bearish += 2
			}
		case TrendDeveloping:
			if snap.ADX.Direction == SignalBullish {
				bullish += 1
			} else {
				bearish += 1
			}
		}
	}

	above, total := 0, 0
	for _, ma := range snap.MAs.Values {
		if !ma.Value.Valid {
			continue
		}
		total++
		if ma.PriceVs == "above" {
			above++
		}
	}
	if total > 0 {
		ratio := float64(above) / float64(total)
		switch {
		case ratio == 1:
			bullish += 2
		case ratio >= 0.67:
			bullish += 1
		case ratio == 0:
			bearish += 2
		case ratio <= 0.33:
			bearish += 1
		}
	}

	overall := SignalNeutral
	switch {
	case bullish > bearish+1:
		overall = SignalBullish
		if contains(warnings, "extreme_overbought") {
			overall = SignalBullishButOverbought
		}
	case bearish > bullish+1:
		overall = SignalBearish
		if contains(warnings, "oversold") {
			overall = SignalBearishButOversold
		}
	}
	return overall, bullish, bearish, warnings
}

// recentLevels picks the top distinct highs and bottom distinct lows of
// the trailing window as naive resistance and support
func recentLevels(s *marketdata.Series, window, count int) (support, resistance []float64) {
	bars := s.LastN(window)
	if len(bars) == 0 {
		return nil, nil
	}

	highSet := map[float64]struct{}{}
	lowSet := map[float64]struct{}{}
	for _, b := range bars {
		highSet[round2(b.High)] = struct{}{}
		lowSet[round2(b.Low)] = struct{}{}
	}

	highs := make([]float64, 0, len(highSet))
	for v := range highSet {
		highs = append(highs, v)
	}
	lows := make([]float64, 0, len(lowSet))
	for v := range lowSet {
		lows = append(lows, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(highs)))
	sort.Float64s(lows)

	if len(highs) > count {
		highs = highs[:count]
	}
	if len(lows) > count {
		lows = lows[:count]
	}
	return lows, highs
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
