// Package levels derives support and resistance prices from a bar series:
// Fibonacci retracements and extensions over the detected swing, and the
// four floor-trader pivot formula families from the prior period's range.
package levels

import (
	"math"
	"sort"
)

// Level is one computed price level.
type Level struct {
	Label string  `json:"label"`
	Price float64 `json:"price"`
}

// Nearest holds the levels bracketing the current price. A nil side means
// no computed level sits on that side; it is never substituted with zero.
type Nearest struct {
	Support    *Level `json:"support,omitempty"`
	Resistance *Level `json:"resistance,omitempty"`
}

// NearestLevels finds the highest level strictly below price and the
// lowest level strictly above it. Levels exactly at the price bracket
// neither side.
func NearestLevels(levels []Level, price float64) Nearest {
	sorted := append([]Level(nil), levels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	var n Nearest
	for i := range sorted {
		switch {
		case sorted[i].Price < price:
			n.Support = &sorted[i]
		case sorted[i].Price > price:
			n.Resistance = &sorted[i]
			return n
		}
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
