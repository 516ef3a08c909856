package indicators

import (
	"math"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// VolumeParams configures the lookback windows for volume metrics
type VolumeParams struct {
	ShortWindow  int `json:"short_window"`
	MediumWindow int `json:"medium_window"`
	LongWindow   int `json:"long_window"`
}

// DefaultVolumeParams returns the standard 7/30/90 bar windows
func DefaultVolumeParams() VolumeParams {
	return VolumeParams{ShortWindow: 7, MediumWindow: 30, LongWindow: 90}
}

// VolumeRatio relates current volume to one trailing average
type VolumeRatio struct {
	Window  int   `json:"window"`
	Average Value `json:"average"`
	Ratio   Value `json:"ratio"`
	Spike   bool  `json:"spike"` // ratio at or above 2
}

// VolumeResult summarizes recent volume behavior
type VolumeResult struct {
	Current          Value         `json:"current"`
	ChangePct        Value         `json:"change_pct"` // versus the previous bar
	Ratios           []VolumeRatio `json:"ratios"`
	SpikeSeverity    string        `json:"spike_severity"` // none, moderate, high, or extreme
	ShortTrend       string        `json:"short_trend"`    // increasing, decreasing, stable, or unknown
	MediumTrend      string        `json:"medium_trend"`
	PriceCorrelation Value         `json:"price_correlation"` // Pearson over pct changes
	Correlation      string        `json:"correlation,omitempty"`
	ZScore           Value         `json:"z_score"` // versus the whole series
	Unusual          string        `json:"unusual"` // high, low, or normal
	Classification   string        `json:"classification"`
}

// Volume computes volume averages, spike detection, trend and the
// volume-price correlation over the series
func Volume(s *marketdata.Series, p VolumeParams) (VolumeResult, error) {
	if s == nil {
		return VolumeResult{}, errors.Wrap(errors.ErrInvalidInput, "volume: nil series")
	}
	short := clampPeriod(p.ShortWindow, 7)
	medium := clampPeriod(p.MediumWindow, 30)
	long := clampPeriod(p.LongWindow, 90)

	res := VolumeResult{SpikeSeverity: "none", ShortTrend: "unknown", MediumTrend: "unknown", Unusual: "normal", Classification: "normal"}
	volumes := s.Volumes()
	closes := s.Closes()
	n := len(volumes)
	if n == 0 {
		return res, nil
	}

	current := volumes[n-1]
	res.Current = Some(current)
	if n >= 2 && volumes[n-2] > 0 {
		res.ChangePct = Some(round2((current - volumes[n-2]) / volumes[n-2] * 100))
	}

	maxRatio := 0.0
	mediumRatio := 0.0
	for _, window := range []int{short, medium, long} {
		vr := VolumeRatio{Window: window}
		if n >= window {
			avg := mean(volumes[n-window:])
			vr.Average = Some(round2(avg))
			if avg > 0 {
				ratio := current / avg
				vr.Ratio = Some(round2(ratio))
				vr.Spike = ratio >= 2.0
				if ratio > maxRatio {
					maxRatio = ratio
				}
				if window == medium {
					mediumRatio = ratio
				}
			}
		}
		res.Ratios = append(res.Ratios, vr)
	}
	switch {
	case maxRatio >= 5.0:
		res.SpikeSeverity = "extreme"
	case maxRatio >= 3.0:
		res.SpikeSeverity = "high"
	case maxRatio >= 2.0:
		res.SpikeSeverity = "moderate"
	}

	res.ShortTrend = windowTrend(volumes, short)
	res.MediumTrend = windowTrend(volumes, medium)

	if n >= 10 {
		corr := changeCorrelation(closes, volumes)
		res.PriceCorrelation = Some(math.Round(corr*1000) / 1000)
		res.Correlation = correlationLabel(corr)
	}

	if std := stddev(volumes); std > 0 {
		z := (current - mean(volumes)) / std
		res.ZScore = Some(round2(z))
		switch {
		case z >= 2.0:
			res.Unusual = "high"
		case z <= -2.0:
			res.Unusual = "low"
		}
	}

	switch {
	case res.SpikeSeverity != "none":
		res.Classification = "spike"
	case mediumRatio > 1.2:
		res.Classification = "above_average"
	case mediumRatio > 0 && mediumRatio < 0.8:
		res.Classification = "below_average"
	}
	return res, nil
}

// windowTrend compares the trailing window average with the one before it,
// with a 10 percent stable band
func windowTrend(volumes []float64, window int) string {
	if len(volumes) < 2*window {
		return "unknown"
	}
	recent := mean(volumes[len(volumes)-window:])
	previous := mean(volumes[len(volumes)-2*window : len(volumes)-window])
	switch {
	case recent > previous*1.1:
		return "increasing"
	case recent < previous*0.9:
		return "decreasing"
	default:
		return "stable"
	}
}

// changeCorrelation computes the Pearson correlation between bar-to-bar
// price and volume percentage changes
func changeCorrelation(closes, volumes []float64) float64 {
	n := len(closes)
	priceChanges := make([]float64, 0, n-1)
	volumeChanges := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if closes[i-1] <= 0 || volumes[i-1] <= 0 {
			continue
		}
		priceChanges = append(priceChanges, (closes[i]-closes[i-1])/closes[i-1])
		volumeChanges = append(volumeChanges, (volumes[i]-volumes[i-1])/volumes[i-1])
	}
	if len(priceChanges) < 5 {
		return 0
	}
	return pearson(priceChanges, volumeChanges)
}

func correlationLabel(corr float64) string {
	switch {
	case corr >= 0.7:
		return "strong_positive"
	case corr >= 0.3:
		return "moderate_positive"
	case corr > 0:
		return "weak_positive"
	case corr >= -0.3:
		return "weak_negative"
	case corr >= -0.7:
		return "moderate_negative"
	default:
		return "strong_negative"
	}
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

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}

func pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	meanX := mean(x)
	meanY := mean(y)
	cov, stdX, stdY := 0.0, 0.0, 0.0
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		stdX += dx * dx
		stdY += dy * dy
	}
	if stdX == 0 || stdY == 0 {
		return 0
	}
	return cov / math.Sqrt(stdX*stdY)
}
