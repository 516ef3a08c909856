package indicators

import (
	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// IchimokuParams configures the Ichimoku Cloud calculation
type IchimokuParams struct {
	TenkanPeriod int `json:"tenkan_period"`
	KijunPeriod  int `json:"kijun_period"`
	SenkouPeriod int `json:"senkou_period"`
}

// DefaultIchimokuParams returns the standard 9/26/52 configuration
func DefaultIchimokuParams() IchimokuParams {
	return IchimokuParams{TenkanPeriod: 9, KijunPeriod: 26, SenkouPeriod: 52}
}

// IchimokuResult holds the cloud components computed without forward
// displacement, so spans compare against the current price directly
type IchimokuResult struct {
	Tenkan       Value  `json:"tenkan_sen"`
	Kijun        Value  `json:"kijun_sen"`
	SenkouA      Value  `json:"senkou_span_a"`
	SenkouB      Value  `json:"senkou_span_b"`
	Chikou       Value  `json:"chikou_span"`
	CloudColor   Signal `json:"cloud_color,omitempty"`    // bullish when span A leads span B
	PriceVsCloud string `json:"price_vs_cloud,omitempty"` // above, below, inside, or at
	TKCross      Signal `json:"tk_cross,omitempty"`
	Signal       Signal `json:"signal,omitempty"`
	DataComplete bool   `json:"data_complete"`
}

// Ichimoku computes the Ichimoku Cloud components. With fewer bars than the
// senkou period the cloud is partial: the TK cross still resolves and the
// kijun substitutes for the cloud in the signal.
func Ichimoku(s *marketdata.Series, p IchimokuParams) (IchimokuResult, error) {
	if s == nil {
		return IchimokuResult{}, errors.Wrap(errors.ErrInvalidInput, "ichimoku: nil series")
	}
	tenkanP := clampPeriod(p.TenkanPeriod, 9)
	kijunP := clampPeriod(p.KijunPeriod, 26)
	senkouP := clampPeriod(p.SenkouPeriod, 52)
	if tenkanP >= kijunP || kijunP >= senkouP {
		return IchimokuResult{}, errors.Wrapf(errors.ErrInvalidInput,
			"ichimoku: periods must ascend, got %d/%d/%d", tenkanP, kijunP, senkouP)
	}

	var res IchimokuResult
	n := s.Len()
	// The TK cross needs a full kijun window at minimum
	if n < kijunP {
		return res, nil
	}

	highs := s.Highs()
	lows := s.Lows()
	price := s.Bars[n-1].Close

	tenkan := midpoint(highs, lows, tenkanP)
	kijun := midpoint(highs, lows, kijunP)
	res.Tenkan = Some(round2(tenkan))
	res.Kijun = Some(round2(kijun))
	res.Chikou = Some(round2(price))

	if tenkan > kijun {
		res.TKCross = SignalBullish
	} else {
		res.TKCross = SignalBearish
	}

	if n < senkouP {
		// Partial cloud: grade against the kijun instead
		switch {
		case price > kijun:
			res.PriceVsCloud = "above"
		case price < kijun:
			res.PriceVsCloud = "below"
		default:
			res.PriceVsCloud = "at"
		}
		switch {
		case res.TKCross == SignalBullish && res.PriceVsCloud == "above":
			res.Signal = SignalBullish
		case res.TKCross == SignalBearish && res.PriceVsCloud == "below":
			res.Signal = SignalBearish
		default:
			res.Signal = SignalNeutral
		}
		return res, nil
	}

	senkouA := (tenkan + kijun) / 2
	senkouB := midpoint(highs, lows, senkouP)
	res.SenkouA = Some(round2(senkouA))
	res.SenkouB = Some(round2(senkouB))
	res.DataComplete = true

	if senkouA > senkouB {
		res.CloudColor = SignalBullish
	} else {
		res.CloudColor = SignalBearish
	}

	cloudTop := senkouA
	cloudBottom := senkouB
	if senkouB > senkouA {
		cloudTop, cloudBottom = senkouB, senkouA
	}
	switch {
	case price > cloudTop:
		res.PriceVsCloud = "above"
	case price < cloudBottom:
		res.PriceVsCloud = "below"
	default:
		res.PriceVsCloud = "inside"
	}

	switch {
	case res.TKCross == SignalBullish && res.PriceVsCloud == "above" && res.CloudColor == SignalBullish:
		res.Signal = SignalStrongBullish
	case res.TKCross == SignalBearish && res.PriceVsCloud == "below" && res.CloudColor == SignalBearish:
		res.Signal = SignalStrongBearish
	case res.PriceVsCloud == "above":
		res.Signal = SignalBullish
	case res.PriceVsCloud == "below":
		res.Signal = SignalBearish
	default:
		res.Signal = SignalNeutral
	}
	return res, nil
}

// midpoint returns (highest high + lowest low) / 2 over the trailing period
func midpoint(highs, lows []float64, period int) float64 {
	start := len(highs) - period
	highest := highs[start]
	lowest := lows[start]
	for i := start + 1; i < len(highs); i++ {
		if highs[i] > highest {
			highest = highs[i]
		}
		if lows[i] < lowest {
			lowest = lows[i]
		}
	}
	return (highest + lowest) / 2
}
