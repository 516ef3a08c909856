package swings

import (
	"time"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// Kind distinguishes pivot highs from pivot lows
type Kind string

const (
	High Kind = "high"
	Low  Kind = "low"
)

// Pivot is a confirmed local extreme in a bar series
type Pivot struct {
	Index int       `json:"index"`
	Kind  Kind      `json:"kind"`
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
}

// Params configures pivot detection. Order is the number of bars on each
// side that must be strictly exceeded, so a pivot confirms Order bars late.
type Params struct {
	Order int `json:"order"`
}

// DefaultParams returns the standard 3-bar order
func DefaultParams() Params {
	return Params{Order: 3}
}

// Result holds all confirmed pivots ordered by bar index
type Result struct {
	Pivots []Pivot `json:"pivots"`
	Order  int     `json:"order"`
}

// Highs filters the pivot highs in index order
func (r Result) Highs() []Pivot {
	return r.filter(High)
}

// Lows filters the pivot lows in index order
func (r Result) Lows() []Pivot {
	return r.filter(Low)
}

func (r Result) filter(kind Kind) []Pivot {
	out := make([]Pivot, 0, len(r.Pivots))
	for _, p := range r.Pivots {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Detect finds N-bar pivots over the series. A pivot high strictly exceeds
// the highs of Order bars on each side; ties disqualify. Bars within Order
// of either edge can never confirm.
func Detect(s *marketdata.Series, p Params) (Result, error) {
	if s == nil {
		return Result{}, errors.Wrap(errors.ErrInvalidInput, "swings: nil series")
	}
	order := clampOrder(p.Order)

	res := Result{Order: order}
	if s.Len() < 2*order+1 {
		return res, nil
	}

	highs := s.Highs()
	lows := s.Lows()
	for _, idx := range DetectHighs(highs, order) {
		res.Pivots = append(res.Pivots, Pivot{
			Index: idx, Kind: High, Price: highs[idx], Time: s.Bars[idx].OpenTime,
		})
	}
	for _, idx := range DetectLows(lows, order) {
		res.Pivots = append(res.Pivots, Pivot{
			Index: idx, Kind: Low, Price: lows[idx], Time: s.Bars[idx].OpenTime,
		})
	}
	sortPivots(res.Pivots)
	return res, nil
}

// DetectHighs returns indices of strict local maxima over raw values,
// for reuse on indicator arrays as well as prices
func DetectHighs(values []float64, order int) []int {
	order = clampOrder(order)
	var out []int
	for i := order; i < len(values)-order; i++ {
		if isExtreme(values, i, order, func(candidate, neighbor float64) bool {
			return candidate > neighbor
		}) {
			out = append(out, i)
		}
	}
	return out
}

// DetectLows returns indices of strict local minima over raw values
func DetectLows(values []float64, order int) []int {
	order = clampOrder(order)
	var out []int
	for i := order; i < len(values)-order; i++ {
		if isExtreme(values, i, order, func(candidate, neighbor float64) bool {
			return candidate < neighbor
		}) {
			out = append(out, i)
		}
	}
	return out
}

func isExtreme(values []float64, i, order int, beats func(candidate, neighbor float64) bool) bool {
	for j := 1; j <= order; j++ {
		if !beats(values[i], values[i-j]) || !beats(values[i], values[i+j]) {
			return false
		}
	}
	return true
}

func clampOrder(order int) int {
	if order <= 0 {
		return DefaultParams().Order
	}
	if order > 50 {
		return 50
	}
	return order
}

func sortPivots(pivots []Pivot) {
	// Insertion sort keeps the merge of two already-sorted runs cheap
	for i := 1; i < len(pivots); i++ {
		for j := i; j > 0 && pivots[j].Index < pivots[j-1].Index; j-- {
			pivots[j], pivots[j-1] = pivots[j-1], pivots[j]
		}
	}
}

// Method records how a swing extreme was selected. Callers must be able
// to tell a confirmed pivot from a bare window extreme.
type Method string

const (
	MethodPivot       Method = "pivot"
	MethodFallbackMax Method = "fallback_max"
	MethodFallbackMin Method = "fallback_min"
)

// SwingRange is the swing span of a trailing window. Each side carries the
// method that produced it: a confirmed pivot when one exists, otherwise
// the window extreme.
type SwingRange struct {
	High       float64 `json:"high"`
	HighIndex  int     `json:"high_index"`
	HighMethod Method  `json:"high_method"`
	Low        float64 `json:"low"`
	LowIndex   int     `json:"low_index"`
	LowMethod  Method  `json:"low_method"`
	Window     int     `json:"window"`
}

// Height returns the high-low span
func (r SwingRange) Height() float64 {
	return r.High - r.Low
}

// Range finds the swing high and swing low over the trailing window,
// preferring confirmed pivots. The pivot order shrinks with the window so
// short series can still confirm; when even that finds nothing on a side,
// that side falls back to the window extreme and says so in its method.
// A window larger than the series clamps to the full series.
func Range(s *marketdata.Series, window int) (SwingRange, error) {
	if s == nil {
		return SwingRange{}, errors.Wrap(errors.ErrInvalidInput, "swings: nil series")
	}
	if s.Len() == 0 {
		return SwingRange{}, errors.Wrap(errors.ErrInsufficientData, "swings: empty series")
	}
	if window <= 0 || window > s.Len() {
		window = s.Len()
	}

	start := s.Len() - window
	highs := make([]float64, window)
	lows := make([]float64, window)
	for i := 0; i < window; i++ {
		highs[i] = s.Bars[start+i].High
		lows[i] = s.Bars[start+i].Low
	}

	order := DefaultParams().Order
	if max := (window - 1) / 2; order > max {
		order = max
	}
	if order < 1 {
		order = 1
	}

	r := SwingRange{Window: window}

	if pivotHighs := DetectHighs(highs, order); len(pivotHighs) > 0 {
		r.HighMethod = MethodPivot
		r.HighIndex = start + pivotHighs[0]
		for _, idx := range pivotHighs[1:] {
			if highs[idx] > highs[r.HighIndex-start] {
				r.HighIndex = start + idx
			}
		}
		r.High = s.Bars[r.HighIndex].High
	} else {
		r.HighMethod = MethodFallbackMax
		r.HighIndex = start
		r.High = highs[0]
		for i, h := range highs {
			if h > r.High {
				r.High = h
				r.HighIndex = start + i
			}
		}
	}

	if pivotLows := DetectLows(lows, order); len(pivotLows) > 0 {
		r.LowMethod = MethodPivot
		r.LowIndex = start + pivotLows[0]
		for _, idx := range pivotLows[1:] {
			if lows[idx] < lows[r.LowIndex-start] {
				r.LowIndex = start + idx
			}
		}
		r.Low = s.Bars[r.LowIndex].Low
	} else {
		r.LowMethod = MethodFallbackMin
		r.LowIndex = start
		r.Low = lows[0]
		for i, l := range lows {
			if l < r.Low {
				r.Low = l
				r.LowIndex = start + i
			}
		}
	}
	return r, nil
}
