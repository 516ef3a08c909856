package candles

import (
	"delphi/internal/domain/marketdata"
	"delphi/internal/ta/indicators"
)

// Shadows larger than this fraction of the body disqualify a marubozu.
const marubozuShadowMax = 0.02

// A star bar's body must stay under this fraction of the first bar's body.
const starBodyMax = 0.3

// dojiThreshold widens the body-to-range cutoff as the price level drops.
// Low-priced symbols trade on coarser ticks, so even indecision bars carry
// proportionally larger bodies.
func dojiThreshold(price float64) float64 {
	switch {
	case price < 100:
		return 0.20
	case price < 200:
		return 0.15
	case price < 500:
		return 0.12
	default:
		return 0.10
	}
}

// IsDoji reports whether the bar's body is small relative to its range.
// Zero-range bars never qualify.
func IsDoji(b marketdata.Bar) bool {
	r := b.Range()
	if r == 0 {
		return false
	}
	return b.Body()/r < dojiThreshold(b.Close)
}

// IsHammerShape reports a small body with a lower shadow at least twice the
// body and an upper shadow smaller than the body. The shape alone carries
// no direction: after a decline it reads as a hammer, after an advance as a
// hanging man.
func IsHammerShape(b marketdata.Bar) bool {
	if b.Range() == 0 {
		return false
	}
	body := b.Body()
	if body == 0 {
		body = 0.01
	}
	return b.LowerShadow() >= 2*body && b.UpperShadow() < body
}

// IsStarShape mirrors IsHammerShape: a long upper shadow over a small body.
// After an advance it reads as a shooting star, after a decline as an
// inverted hammer.
func IsStarShape(b marketdata.Bar) bool {
	if b.Range() == 0 {
		return false
	}
	body := b.Body()
	if body == 0 {
		body = 0.01
	}
	return b.UpperShadow() >= 2*body && b.LowerShadow() < body
}

// IsMarubozu reports a full-body bar with negligible shadows on both sides,
// along with its direction.
func IsMarubozu(b marketdata.Bar) (bool, indicators.Signal) {
	body := b.Body()
	if body == 0 {
		return false, indicators.SignalNeutral
	}
	if b.UpperShadow() >= body*marubozuShadowMax || b.LowerShadow() >= body*marubozuShadowMax {
		return false, indicators.SignalNeutral
	}
	if b.Bullish() {
		return true, indicators.SignalBullish
	}
	return true, indicators.SignalBearish
}

// IsBullishEngulfing reports a bearish bar followed by a bullish bar whose
// body fully encloses the previous body.
func IsBullishEngulfing(prev, curr marketdata.Bar) bool {
	if !prev.Bearish() || !curr.Bullish() {
		return false
	}
	return curr.Open <= prev.Close && curr.Close >= prev.Open
}

// IsBearishEngulfing reports a bullish bar followed by a bearish bar whose
// body fully encloses the previous body.
func IsBearishEngulfing(prev, curr marketdata.Bar) bool {
	if !prev.Bullish() || !curr.Bearish() {
		return false
	}
	return curr.Open >= prev.Close && curr.Close <= prev.Open
}

// IsMorningStar reports a three-bar bullish reversal: a bearish first bar,
// a star whose body stays under 30% of the first body, and a bullish third
// bar closing above the first bar's midpoint. A zero-body first bar never
// qualifies.
func IsMorningStar(first, star, last marketdata.Bar) bool {
	firstBody := first.Body()
	if firstBody == 0 || !first.Bearish() {
		return false
	}
	if star.Body() >= firstBody*starBodyMax {
		return false
	}
	return last.Bullish() && last.Close > (first.Open+first.Close)/2
}

// IsEveningStar reports the bearish mirror of IsMorningStar: a bullish
// first bar, a small star, and a bearish third bar closing below the first
// bar's midpoint.
func IsEveningStar(first, star, last marketdata.Bar) bool {
	firstBody := first.Body()
	if firstBody == 0 || !first.Bullish() {
		return false
	}
	if star.Body() >= firstBody*starBodyMax {
		return false
	}
	return last.Bearish() && last.Close < (first.Open+first.Close)/2
}
