package marketdata

import (
	"delphi/pkg/errors"
)

// Series is an ordered run of bars for one symbol and interval.
// Bars are strictly ascending by open time. Gaps are tolerated,
// duplicates and reordering are not.
type Series struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Bars     []Bar  `json:"bars"`
}

// NewSeries builds a validated series from bars already sorted by open time
func NewSeries(symbol, interval string, bars []Bar) (*Series, error) {
	s := &Series{Symbol: symbol, Interval: interval, Bars: bars}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks ordering and per-bar OHLC invariants
func (s *Series) Validate() error {
	if s.Symbol == "" {
		return errors.Wrap(errors.ErrInvalidSeries, "empty symbol")
	}
	if !ValidInterval(s.Interval) {
		return errors.Wrapf(errors.ErrInvalidSeries, "unknown interval %q", s.Interval)
	}
	for i, b := range s.Bars {
		if b.High < b.Low {
			return errors.Wrapf(errors.ErrInvalidSeries, "bar %d: high %.8f below low %.8f", i, b.High, b.Low)
		}
		if b.High < b.Open || b.High < b.Close {
			return errors.Wrapf(errors.ErrInvalidSeries, "bar %d: high %.8f below body", i, b.High)
		}
		if b.Low > b.Open || b.Low > b.Close {
			return errors.Wrapf(errors.ErrInvalidSeries, "bar %d: low %.8f above body", i, b.Low)
		}
		if b.Volume < 0 {
			return errors.Wrapf(errors.ErrInvalidSeries, "bar %d: negative volume %.8f", i, b.Volume)
		}
		if i > 0 && !s.Bars[i-1].OpenTime.Before(b.OpenTime) {
			return errors.Wrapf(errors.ErrInvalidSeries, "bar %d: open time not after previous bar", i)
		}
	}
	return nil
}

// Len returns the number of bars
func (s *Series) Len() int {
	return len(s.Bars)
}

// Last returns the most recent bar, or false for an empty series
func (s *Series) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// LastN returns a view over the most recent n bars (all bars when n exceeds length)
func (s *Series) LastN(n int) []Bar {
	if n <= 0 {
		return nil
	}
	if n >= len(s.Bars) {
		return s.Bars
	}
	return s.Bars[len(s.Bars)-n:]
}

// Slice returns a sub-series view over bars [from, to)
func (s *Series) Slice(from, to int) *Series {
	if from < 0 {
		from = 0
	}
	if to > len(s.Bars) {
		to = len(s.Bars)
	}
	if from >= to {
		return &Series{Symbol: s.Symbol, Interval: s.Interval}
	}
	return &Series{Symbol: s.Symbol, Interval: s.Interval, Bars: s.Bars[from:to]}
}

// Opens extracts the open prices in bar order
func (s *Series) Opens() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Open
	}
	return out
}

// Highs extracts the high prices in bar order
func (s *Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low prices in bar order
func (s *Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Closes extracts the close prices in bar order
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volumes in bar order
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}
