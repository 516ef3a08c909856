package indicators

import (
	"github.com/markcheno/go-talib"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// StochasticParams configures the slow stochastic oscillator
type StochasticParams struct {
	KPeriod int `json:"k_period"`
	DPeriod int `json:"d_period"`
	SlowK   int `json:"slow_k"`
}

// DefaultStochasticParams returns the standard 14/3/3 configuration
func DefaultStochasticParams() StochasticParams {
	return StochasticParams{KPeriod: 14, DPeriod: 3, SlowK: 3}
}

// StochasticResult holds the latest slow %K and %D readings
type StochasticResult struct {
	K      Value  `json:"k"`
	D      Value  `json:"d"`
	Signal Signal `json:"signal,omitempty"`
}

// Stochastic computes the slow stochastic oscillator with SMA smoothing.
// Both lines below 20 read oversold, both above 80 overbought.
func Stochastic(s *marketdata.Series, p StochasticParams) (StochasticResult, error) {
	if s == nil {
		return StochasticResult{}, errors.Wrap(errors.ErrInvalidInput, "stochastic: nil series")
	}
	kPeriod := clampPeriod(p.KPeriod, 14)
	dPeriod := clampPeriod(p.DPeriod, 3)
	slowK := clampPeriod(p.SlowK, 3)

	var res StochasticResult
	if s.Len() < kPeriod+slowK+dPeriod {
		return res, nil
	}

	slowKLine, slowDLine := talib.Stoch(
		s.Highs(), s.Lows(), s.Closes(),
		kPeriod, slowK, talib.SMA, dPeriod, talib.SMA,
	)

	k := last(slowKLine)
	d := last(slowDLine)
	res.K = Some(round2(k))
	res.D = Some(round2(d))

	switch {
	case k < 20 && d < 20:
		res.Signal = SignalOversold
	case k > 80 && d > 80:
		res.Signal = SignalOverbought
	case k > d:
		res.Signal = SignalBullish
	default:
		res.Signal = SignalBearish
	}
	return res, nil
}
