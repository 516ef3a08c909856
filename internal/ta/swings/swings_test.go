package swings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

func testBar(i int, open, high, low, close float64) marketdata.Bar {
	openTime := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 24 * time.Hour)
	return marketdata.Bar{
		Symbol:    "BBCA",
		Interval:  marketdata.Interval1d,
		OpenTime:  openTime,
		CloseTime: openTime.Add(24 * time.Hour),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
		IsClosed:  true,
	}
}

// shapeBars drives the series off a highs profile: each bar spans one unit
// below its high with the body tucked inside.
func shapeBars(highs []float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, 0, len(highs))
	for i, h := range highs {
		bars = append(bars, testBar(i, h-0.8, h, h-1, h-0.5))
	}
	return bars
}

// closeBars builds flat-bodied bars around a closes profile.
func closeBars(closes []float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, 0, len(closes))
	for i, c := range closes {
		bars = append(bars, testBar(i, c, c+0.5, c-0.5, c))
	}
	return bars
}

func mustSeries(t *testing.T, bars []marketdata.Bar) *marketdata.Series {
	t.Helper()
	s, err := marketdata.NewSeries("BBCA", marketdata.Interval1d, bars)
	require.NoError(t, err)
	return s
}

func TestDetectHighsAndLows(t *testing.T) {
	t.Run("strict maxima", func(t *testing.T) {
		values := []float64{10, 11, 12, 15, 12, 11, 10, 11, 12, 11, 10}
		assert.Equal(t, []int{3, 8}, DetectHighs(values, 2))
	})

	t.Run("v shape confirms the bottom", func(t *testing.T) {
		values := []float64{10, 9, 8, 7, 8, 9, 10}
		assert.Equal(t, []int{3}, DetectLows(values, 3))
		assert.Empty(t, DetectHighs(values, 3))
	})

	t.Run("plateau ties disqualify", func(t *testing.T) {
		values := []float64{1, 2, 3, 3, 2, 1}
		assert.Empty(t, DetectHighs(values, 1))
	})

	t.Run("edges can never confirm", func(t *testing.T) {
		values := []float64{9, 5, 6, 5, 9}
		assert.Empty(t, DetectHighs(values, 2))
		assert.Equal(t, []int{2}, DetectHighs(values, 1))
	})
}

func TestDetect(t *testing.T) {
	highs := []float64{10, 11, 12, 15, 12, 11, 10, 11, 12, 11, 10}
	s := mustSeries(t, shapeBars(highs))

	res, err := Detect(s, Params{Order: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Order)

	// Lows sit one unit under the highs, so the single strict minimum of
	// the profile confirms as the only pivot low.
	require.Len(t, res.Pivots, 3)
	assert.Equal(t, High, res.Pivots[0].Kind)
	assert.Equal(t, 3, res.Pivots[0].Index)
	assert.Equal(t, 15.0, res.Pivots[0].Price)
	assert.Equal(t, Low, res.Pivots[1].Kind)
	assert.Equal(t, 6, res.Pivots[1].Index)
	assert.Equal(t, 9.0, res.Pivots[1].Price)
	assert.Equal(t, High, res.Pivots[2].Kind)
	assert.Equal(t, 8, res.Pivots[2].Index)

	assert.Equal(t, s.Bars[3].OpenTime, res.Pivots[0].Time)
	assert.Len(t, res.Highs(), 2)
	assert.Len(t, res.Lows(), 1)
}

func TestDetect_Guards(t *testing.T) {
	t.Run("nil series", func(t *testing.T) {
		_, err := Detect(nil, DefaultParams())
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("short series yields no pivots", func(t *testing.T) {
		s := mustSeries(t, shapeBars([]float64{10, 12, 10}))
		res, err := Detect(s, Params{Order: 3})
		require.NoError(t, err)
		assert.Empty(t, res.Pivots)
		assert.Equal(t, 3, res.Order)
	})

	t.Run("order clamps and echoes", func(t *testing.T) {
		s := mustSeries(t, shapeBars([]float64{10, 11, 12, 11, 10, 11, 12}))
		res, err := Detect(s, Params{Order: 0})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Order)

		res, err = Detect(s, Params{Order: 99})
		require.NoError(t, err)
		assert.Equal(t, 50, res.Order)
	})
}

func TestRange_PivotPreferred(t *testing.T) {
	highs := []float64{10, 11, 12, 15, 12, 11, 10, 9, 8, 9, 10}
	s := mustSeries(t, shapeBars(highs))

	r, err := Range(s, 11)
	require.NoError(t, err)

	assert.Equal(t, 11, r.Window)
	assert.Equal(t, MethodPivot, r.HighMethod)
	assert.Equal(t, 15.0, r.High)
	assert.Equal(t, 3, r.HighIndex)

	// No pivot low confirms inside the window, so the low side falls back
	// to the window minimum near the right edge.
	assert.Equal(t, MethodFallbackMin, r.LowMethod)
	assert.Equal(t, 7.0, r.Low)
	assert.Equal(t, 8, r.LowIndex)

	assert.Equal(t, 8.0, r.Height())
}

func TestRange_HighestPivotWins(t *testing.T) {
	highs := []float64{10, 13, 10, 9, 8, 9, 12, 9, 8, 7, 8, 9, 8, 7, 6}
	s := mustSeries(t, shapeBars(highs))

	r, err := Range(s, 15)
	require.NoError(t, err)

	// Pivots confirm at 12 and 9; the range keeps the higher one. The 13
	// near the left edge never confirms and does not leak in.
	assert.Equal(t, MethodPivot, r.HighMethod)
	assert.Equal(t, 12.0, r.High)
	assert.Equal(t, 6, r.HighIndex)

	assert.Equal(t, MethodPivot, r.LowMethod)
	assert.Equal(t, 6.0, r.Low)
	assert.Equal(t, 9, r.LowIndex)
}

func TestRange_FallbackOnMonotone(t *testing.T) {
	highs := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	s := mustSeries(t, shapeBars(highs))

	r, err := Range(s, 11)
	require.NoError(t, err)

	assert.Equal(t, MethodFallbackMax, r.HighMethod)
	assert.Equal(t, 20.0, r.High)
	assert.Equal(t, 10, r.HighIndex)
	assert.Equal(t, MethodFallbackMin, r.LowMethod)
	assert.Equal(t, 9.0, r.Low)
	assert.Equal(t, 0, r.LowIndex)
}

func TestRange_TrailingWindowOnly(t *testing.T) {
	bars := make([]marketdata.Bar, 0, 30)
	for i := 0; i < 20; i++ {
		bars = append(bars, testBar(i, 150, 200, 140, 150))
	}
	tail := []float64{100, 101, 102, 104, 102, 101, 100, 99, 98, 99}
	for i, h := range tail {
		bars = append(bars, testBar(20+i, h-0.8, h, h-2, h-1))
	}
	s := mustSeries(t, bars)

	r, err := Range(s, 10)
	require.NoError(t, err)

	// The 200 highs before the window are invisible; indices are absolute.
	assert.Equal(t, MethodPivot, r.HighMethod)
	assert.Equal(t, 104.0, r.High)
	assert.Equal(t, 23, r.HighIndex)
	assert.Equal(t, MethodFallbackMin, r.LowMethod)
	assert.Equal(t, 96.0, r.Low)
	assert.Equal(t, 28, r.LowIndex)
}

func TestRange_WindowClamp(t *testing.T) {
	s := mustSeries(t, shapeBars([]float64{10, 11, 12, 11, 10}))

	r, err := Range(s, 50)
	require.NoError(t, err)
	assert.Equal(t, 5, r.Window)

	r, err = Range(s, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, r.Window)
	assert.Equal(t, MethodPivot, r.HighMethod)
	assert.Equal(t, 12.0, r.High)
}

func TestRange_Guards(t *testing.T) {
	_, err := Range(nil, 10)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	empty, err := marketdata.NewSeries("BBCA", marketdata.Interval1d, nil)
	require.NoError(t, err)
	_, err = Range(empty, 10)
	assert.ErrorIs(t, err, errors.ErrInsufficientData)
}

func TestTrendAt(t *testing.T) {
	t.Run("rising window", func(t *testing.T) {
		closes := []float64{100, 101, 102, 103, 104, 105}
		assert.Equal(t, TrendUp, TrendAt(closes, len(closes), 5))
	})

	t.Run("falling window", func(t *testing.T) {
		closes := []float64{105, 104, 103, 102, 101, 100}
		assert.Equal(t, TrendDown, TrendAt(closes, len(closes), 5))
	})

	t.Run("flat window", func(t *testing.T) {
		closes := []float64{100, 100, 100, 100, 100}
		assert.Equal(t, TrendSideways, TrendAt(closes, len(closes), 5))
	})

	t.Run("slope carries a sub-threshold change", func(t *testing.T) {
		// Change is 1.98%, under the 2% gate, but the last close lifts the
		// rolling mean by 0.55%.
		closes := []float64{101, 100, 100, 100, 103}
		assert.Equal(t, TrendUp, TrendAt(closes, len(closes), 5))
	})

	t.Run("not enough history", func(t *testing.T) {
		closes := []float64{100, 101, 102}
		assert.Equal(t, TrendUnknown, TrendAt(closes, len(closes), 5))
	})

	t.Run("index past the slice", func(t *testing.T) {
		closes := []float64{100, 101, 102, 103, 104, 105}
		assert.Equal(t, TrendUnknown, TrendAt(closes, len(closes)+1, 5))
	})
}

func TestContext_MajorityVote(t *testing.T) {
	t.Run("rising series", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = 100 + float64(i)
		}
		res, err := Context(mustSeries(t, closeBars(closes)), DefaultContextParams())
		require.NoError(t, err)

		// Monotone closes confirm no swing pivots, so the structure factor
		// votes sideways while the other four agree on up.
		assert.Equal(t, TrendUp, res.Trend)
		assert.Equal(t, 4, res.UpVotes)
		assert.Equal(t, 0, res.DownVotes)
		require.Len(t, res.Votes, 5)
		assert.Equal(t, Vote{Name: "price_vs_fast_ma", Trend: TrendUp}, res.Votes[0])
		assert.Equal(t, Vote{Name: "price_vs_slow_ma", Trend: TrendUp}, res.Votes[1])
		assert.Equal(t, Vote{Name: "fast_ma_slope", Trend: TrendUp}, res.Votes[2])
		assert.Equal(t, Vote{Name: "swing_structure", Trend: TrendSideways}, res.Votes[3])
		assert.Equal(t, Vote{Name: "short_term", Trend: TrendUp}, res.Votes[4])
	})

	t.Run("falling series", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = 160 - float64(i)
		}
		res, err := Context(mustSeries(t, closeBars(closes)), DefaultContextParams())
		require.NoError(t, err)
		assert.Equal(t, TrendDown, res.Trend)
		assert.Equal(t, 4, res.DownVotes)
		assert.Equal(t, 0, res.UpVotes)
	})

	t.Run("flat series ties to sideways", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = 100
		}
		res, err := Context(mustSeries(t, closeBars(closes)), DefaultContextParams())
		require.NoError(t, err)
		assert.Equal(t, TrendSideways, res.Trend)
		assert.Equal(t, 0, res.UpVotes)
		assert.Equal(t, 0, res.DownVotes)
		assert.Len(t, res.Votes, 5)
	})

	t.Run("short series drops the MA factors", func(t *testing.T) {
		closes := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100}
		res, err := Context(mustSeries(t, closeBars(closes)), DefaultContextParams())
		require.NoError(t, err)
		assert.Len(t, res.Votes, 2)
		assert.Equal(t, "swing_structure", res.Votes[0].Name)
		assert.Equal(t, "short_term", res.Votes[1].Name)
		assert.Equal(t, TrendSideways, res.Trend)
	})

	t.Run("nil series", func(t *testing.T) {
		_, err := Context(nil, DefaultContextParams())
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})
}

func TestStructure_Uptrend(t *testing.T) {
	highs := []float64{10, 12, 10.5, 13, 11, 14, 11.5, 15, 12, 16, 13}
	s := mustSeries(t, shapeBars(highs))

	res, err := Structure(s, Params{Order: 1})
	require.NoError(t, err)

	assert.Equal(t, TrendUp, res.Trend)
	assert.Equal(t, []float64{13, 14, 15, 16}, res.HigherHighs)
	assert.Equal(t, []float64{10, 10.5, 11}, res.HigherLows)
	assert.Empty(t, res.LowerHighs)
	assert.Empty(t, res.LowerLows)
	assert.Equal(t, 13.0, res.CurrentHigh)
	assert.Equal(t, 12.0, res.CurrentLow)
}

func TestStructure_Downtrend(t *testing.T) {
	highs := []float64{13, 16, 12, 15, 11.5, 14, 11, 13.5, 10.5, 12, 10}
	s := mustSeries(t, shapeBars(highs))

	res, err := Structure(s, Params{Order: 1})
	require.NoError(t, err)

	assert.Equal(t, TrendDown, res.Trend)
	assert.Equal(t, []float64{15, 14, 13.5, 12}, res.LowerHighs)
	assert.Equal(t, []float64{10.5, 10, 9.5}, res.LowerLows)
	assert.Empty(t, res.HigherHighs)
	assert.Empty(t, res.HigherLows)
}

func TestStructure_FlatIsSideways(t *testing.T) {
	highs := []float64{10, 10, 10, 10, 10, 10, 10}
	s := mustSeries(t, shapeBars(highs))

	res, err := Structure(s, Params{Order: 1})
	require.NoError(t, err)
	assert.Equal(t, TrendSideways, res.Trend)
	assert.Empty(t, res.HigherHighs)
	assert.Empty(t, res.LowerLows)
}

func TestStructure_Guards(t *testing.T) {
	_, err := Structure(nil, DefaultParams())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	empty, err := marketdata.NewSeries("BBCA", marketdata.Interval1d, nil)
	require.NoError(t, err)
	res, err := Structure(empty, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, TrendUnknown, res.Trend)
}
