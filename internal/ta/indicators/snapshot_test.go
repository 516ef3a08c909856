package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delphi/pkg/errors"
)

func TestComputeSnapshot_Uptrend(t *testing.T) {
	s := risingSeries(t, 60)
	snap, err := ComputeSnapshot(s, DefaultSnapshotParams())
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, "BBCA", snap.Symbol)
	assert.Equal(t, "1d", snap.Interval)
	assert.Equal(t, 159.0, snap.Price)
	assert.Equal(t, 60, snap.BarCount)
	assert.Equal(t, s.Bars[59].CloseTime, snap.AsOf)

	require.True(t, snap.RSI.Value.Valid)
	assert.Equal(t, 100.0, snap.RSI.Value.Float64)
	assert.Equal(t, SignalBullish, snap.MACD.Trend)
	assert.Equal(t, TrendStrong, snap.ADX.Strength)
	assert.Equal(t, SignalBullish, snap.ADX.Direction)
	assert.Equal(t, SignalStrongBullish, snap.Ichimoku.Signal)
	assert.Equal(t, SignalOverbought, snap.Stochastic.Signal)
	assert.Equal(t, SignalBullish, snap.VWAP.Signal)
	assert.Equal(t, "rising", snap.OBV.Trend)
	assert.Equal(t, 1.5, snap.ATR.ATR.Float64)

	// MACD 1.5 + strong ADX 2 + price above every average 2
	assert.Equal(t, 5.5, snap.BullishScore)
	assert.Equal(t, 0.0, snap.BearishScore)
	assert.Equal(t, []string{"extreme_overbought"}, snap.Warnings)
	assert.Equal(t, SignalBullishButOverbought, snap.Overall)

	assert.Equal(t, []float64{139.5, 140.5, 141.5}, snap.Support)
	assert.Equal(t, []float64{159.5, 158.5, 157.5}, snap.Resistance)

	t.Run("zero params take defaults", func(t *testing.T) {
		snap2, err := ComputeSnapshot(s, SnapshotParams{})
		require.NoError(t, err)
		assert.Equal(t, snap.Overall, snap2.Overall)
		assert.Equal(t, snap.BullishScore, snap2.BullishScore)
		assert.Equal(t, snap.RSI, snap2.RSI)
	})
}

func TestComputeSnapshot_FlatSeries(t *testing.T) {
	snap, err := ComputeSnapshot(flatSeries(t, 60), DefaultSnapshotParams())
	require.NoError(t, err)

	// A dead-flat tape reads as saturated RSI weakness plus price under
	// no average, so the bearish verdict carries the oversold caveat.
	require.True(t, snap.RSI.Value.Valid)
	assert.Equal(t, 0.0, snap.RSI.Value.Float64)
	assert.Equal(t, SignalOversold, snap.RSI.Signal)
	assert.Equal(t, 0.0, snap.BullishScore)
	assert.Equal(t, 3.5, snap.BearishScore)
	assert.Equal(t, []string{"oversold"}, snap.Warnings)
	assert.Equal(t, SignalBearishButOversold, snap.Overall)

	assert.Equal(t, TrendWeak, snap.ADX.Strength)
	assert.Equal(t, 50.0, snap.Bollinger.PercentB.Float64)
	assert.Equal(t, 0.0, snap.Bollinger.Width.Float64)
	assert.Equal(t, "at_vwap", snap.VWAP.Position)
	assert.Equal(t, "flat", snap.OBV.Trend)
	assert.Equal(t, []float64{99.5}, snap.Support)
	assert.Equal(t, []float64{100.5}, snap.Resistance)
}

func TestComputeSnapshot_ShortSeries(t *testing.T) {
	snap, err := ComputeSnapshot(risingSeries(t, 5), DefaultSnapshotParams())
	require.NoError(t, err)

	assert.False(t, snap.RSI.Value.Valid)
	assert.False(t, snap.MACD.MACD.Valid)
	assert.False(t, snap.ADX.ADX.Valid)
	assert.True(t, snap.VWAP.VWAP.Valid)
	assert.Equal(t, 5, snap.BarCount)
	// The only votes left are the moving averages, none of which resolve
	assert.Equal(t, SignalNeutral, snap.Overall)
}

func TestComputeSnapshot_NilSeries(t *testing.T) {
	_, err := ComputeSnapshot(nil, DefaultSnapshotParams())
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}
