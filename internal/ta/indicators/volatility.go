package indicators

import (
	"math"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// VolatilityParams configures the historical volatility windows
type VolatilityParams struct {
	Windows   []int `json:"windows"` // bars per window
	ATRPeriod int   `json:"atr_period"`
}

// DefaultVolatilityParams returns the standard 30/90/252 bar windows
func DefaultVolatilityParams() VolatilityParams {
	return VolatilityParams{Windows: []int{30, 90, 252}, ATRPeriod: 14}
}

// WindowVol is annualized volatility over one trailing window
type WindowVol struct {
	Window int   `json:"window"`
	Vol    Value `json:"vol"` // percent, annualized over 252 sessions
}

// VolatilityResult summarizes realized volatility and the derived risk grade
type VolatilityResult struct {
	Overall       Value       `json:"overall"` // annualized, full series
	Windows       []WindowVol `json:"windows"`
	ATR           Value       `json:"atr"`
	ATRAvg        Value       `json:"atr_avg"`
	ATRPercent    Value       `json:"atr_percent"`
	ATRAvgPercent Value       `json:"atr_avg_percent"`
	Beta          Value       `json:"beta"` // versus the benchmark, when given
	VolRisk       string      `json:"volatility_risk,omitempty"`
	BetaRisk      string      `json:"beta_risk,omitempty"`
	OverallRisk   string      `json:"overall_risk,omitempty"`
	RiskScore     Value       `json:"risk_score"`
}

// Volatility computes annualized return volatility, ATR context and a
// risk grade. benchmark is optional and enables the beta leg.
func Volatility(s *marketdata.Series, benchmark *marketdata.Series, p VolatilityParams) (VolatilityResult, error) {
	if s == nil {
		return VolatilityResult{}, errors.Wrap(errors.ErrInvalidInput, "volatility: nil series")
	}
	if len(p.Windows) == 0 {
		p.Windows = DefaultVolatilityParams().Windows
	}
	atrPeriod := clampPeriod(p.ATRPeriod, 14)

	var res VolatilityResult
	closes := s.Closes()
	returns := pctReturns(closes)
	if len(returns) < 2 {
		return res, nil
	}

	res.Overall = Some(round2(annualized(returns)))
	for _, window := range p.Windows {
		window = clampPeriod(window, 30)
		wv := WindowVol{Window: window}
		if len(returns) >= window {
			wv.Vol = Some(round2(annualized(returns[len(returns)-window:])))
		}
		res.Windows = append(res.Windows, wv)
	}

	if s.Len() >= atrPeriod+1 {
		atrValues := ATRSeries(s.Highs(), s.Lows(), closes, atrPeriod)
		atr := last(atrValues)
		avgATR := mean(atrValues[atrPeriod:]) // skip warmup zeros
		res.ATR = Some(round2(atr))
		res.ATRAvg = Some(round2(avgATR))
		if price := closes[len(closes)-1]; price > 0 {
			res.ATRPercent = Some(round2(atr / price * 100))
			res.ATRAvgPercent = Some(round2(avgATR / price * 100))
		}
	}

	if benchmark != nil && benchmark.Len() >= 2 {
		if beta, ok := betaAgainst(returns, pctReturns(benchmark.Closes())); ok {
			res.Beta = Some(math.Round(beta*100) / 100)
		}
	}

	res.VolRisk, res.BetaRisk, res.OverallRisk, res.RiskScore = riskGrade(res.Overall, res.Beta)
	return res, nil
}

func pctReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			out = append(out, (closes[i]-closes[i-1])/closes[i-1])
		}
	}
	return out
}

// annualized scales return volatility by the square root of 252 sessions
func annualized(returns []float64) float64 {
	return stddev(returns) * math.Sqrt(252) * 100
}

// betaAgainst regresses the trailing overlap of both return series
func betaAgainst(returns, benchReturns []float64) (float64, bool) {
	n := len(returns)
	if len(benchReturns) < n {
		n = len(benchReturns)
	}
	if n < 10 {
		return 0, false
	}
	r := returns[len(returns)-n:]
	b := benchReturns[len(benchReturns)-n:]

	meanB := mean(b)
	varB := 0.0
	cov := 0.0
	meanR := mean(r)
	for i := 0; i < n; i++ {
		db := b[i] - meanB
		varB += db * db
		cov += (r[i] - meanR) * db
	}
	if varB == 0 {
		return 0, false
	}
	return cov / varB, true
}

func riskGrade(vol, beta Value) (volRisk, betaRisk, overall string, score Value) {
	if !vol.Valid {
		return "", "", "", Value{}
	}

	switch {
	case vol.Float64 < 15:
		volRisk = "low"
	case vol.Float64 < 30:
		volRisk = "moderate"
	case vol.Float64 < 50:
		volRisk = "high"
	default:
		volRisk = "very_high"
	}

	points := map[string]float64{"low": 1, "moderate": 2, "high": 3, "very_high": 4}[volRisk]

	if beta.Valid {
		switch {
		case beta.Float64 < 0.7:
			betaRisk = "defensive"
		case beta.Float64 < 1.0:
			betaRisk = "low_volatility"
		case beta.Float64 <= 1.3:
			betaRisk = "market_like"
		case beta.Float64 <= 1.7:
			betaRisk = "aggressive"
		default:
			betaRisk = "very_aggressive"
		}
		switch betaRisk {
		case "defensive", "low_volatility":
			points += 0.5
		case "aggressive", "very_aggressive":
			points += 1
		}
	}

	switch {
	case points <= 1.5:
		overall = "low"
	case points <= 2.5:
		overall = "moderate"
	case points <= 3.5:
		overall = "high"
	default:
		overall = "very_high"
	}
	return volRisk, betaRisk, overall, Some(math.Round(points*10) / 10)
}
