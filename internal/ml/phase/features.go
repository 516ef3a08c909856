// Package phase predicts the market cycle phase with an ONNX model over
// engine-derived features. The rule-based classifier remains the fallback
// when no model is configured or loading fails.
package phase

import (
	"math"

	"delphi/internal/domain/marketdata"
	"delphi/internal/ta/indicators"
	"delphi/pkg/errors"
)

const (
	// minFeatureBars covers the 14-period indicator warmup plus the
	// 20-bar behavior window
	minFeatureBars = 35
	statsWindow    = 20
	slopeBars      = 5
	closePosEps    = 0.0001
)

// Features is the engine-derived input for the phase model. The Vector
// field order is frozen; the training pipeline depends on it.
type Features struct {
	TrendPct        float64 `json:"trend_pct"`
	MASlope         float64 `json:"ma_slope"`
	AboveMA         float64 `json:"above_ma"` // 1 when the latest close sits above its MA
	ATRPct          float64 `json:"atr_pct"`
	RSI             float64 `json:"rsi"`
	ADX             float64 `json:"adx"`
	DIBalance       float64 `json:"di_balance"` // plus DI minus minus DI
	BBWidth         float64 `json:"bb_width"`
	VolumeTrendPct  float64 `json:"volume_trend_pct"`
	HighVolumeShare float64 `json:"high_volume_share"` // bars above 1.2x the rolling volume MA
	LowVolumeShare  float64 `json:"low_volume_share"`  // bars below 0.8x
	AvgClosePos     float64 `json:"avg_close_pos"`     // mean close position within the bar range
	UpBarShare      float64 `json:"up_bar_share"`
	ReturnStd       float64 `json:"return_std"` // per-bar return standard deviation, percent

	// Window is how many bars fed the behavioral features
	Window int `json:"window"`
}

// Vector flattens the features in training order
func (f *Features) Vector() []float64 {
	return []float64{
		f.TrendPct,
		f.MASlope,
		f.AboveMA,
		f.ATRPct,
		f.RSI,
		f.ADX,
		f.DIBalance,
		f.BBWidth,
		f.VolumeTrendPct,
		f.HighVolumeShare,
		f.LowVolumeShare,
		f.AvgClosePos,
		f.UpBarShare,
		f.ReturnStd,
	}
}

// ExtractFeatures reduces a series to the model's input vector. The
// behavioral features read the trailing stats window, the indicator
// features read their own standard periods.
func ExtractFeatures(s *marketdata.Series) (*Features, error) {
	if s == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "features: nil series")
	}
	n := s.Len()
	if n < minFeatureBars {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "features: %d bars, need %d", n, minFeatureBars)
	}

	closes := s.Closes()
	volumes := s.Volumes()
	f := &Features{Window: statsWindow}

	if rsi, err := indicators.RSI(s, indicators.DefaultRSIParams()); err == nil {
		f.RSI = rsi.Value.Or(50)
	}
	if adx, err := indicators.ADX(s, indicators.DefaultADXParams()); err == nil {
		f.ADX = adx.ADX.Or(0)
		f.DIBalance = adx.PlusDI.Or(0) - adx.MinusDI.Or(0)
	}
	if atr, err := indicators.ATR(s, indicators.DefaultATRParams()); err == nil {
		f.ATRPct = atr.ATRPercent.Or(0)
	}
	if bb, err := indicators.Bollinger(s, indicators.DefaultBollingerParams()); err == nil {
		f.BBWidth = bb.Width.Or(0)
	}

	priceMA := indicators.SMASeries(closes, statsWindow)
	volumeMA := indicators.SMASeries(volumes, statsWindow)

	if ago := priceMA[n-1-slopeBars]; ago != 0 {
		f.MASlope = (priceMA[n-1] - ago) / ago * 100
	}
	if closes[n-1] > priceMA[n-1] {
		f.AboveMA = 1
	}

	start := n - statsWindow
	if first := closes[start]; first > 0 {
		f.TrendPct = (closes[n-1] - first) / first * 100
	}
	if head := volumeMA[start]; head > 0 {
		f.VolumeTrendPct = (volumeMA[n-1] - head) / head * 100
	}

	var returns []float64
	var closePosSum float64
	upBars, highVol, lowVol := 0, 0, 0
	for i := start; i < n; i++ {
		b := s.Bars[i]
		closePosSum += (b.Close - b.Low) / (b.High - b.Low + closePosEps)
		if b.Close > b.Open {
			upBars++
		}
		if volumeMA[i] > 0 {
			switch ratio := volumes[i] / volumeMA[i]; {
			case ratio > 1.2:
				highVol++
			case ratio < 0.8:
				lowVol++
			}
		}
		if prev := closes[i-1]; prev != 0 {
			returns = append(returns, (closes[i]-prev)/prev*100)
		}
	}

	window := float64(statsWindow)
	f.AvgClosePos = closePosSum / window
	f.UpBarShare = float64(upBars) / window
	f.HighVolumeShare = float64(highVol) / window
	f.LowVolumeShare = float64(lowVol) / window
	f.ReturnStd = stddev(returns)

	return f, nil
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
