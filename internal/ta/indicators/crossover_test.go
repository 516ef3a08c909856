package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delphi/pkg/errors"
)

// peakFallBars climbs one point per bar for 40 bars, then drops two points
// per bar, dragging every fast average through its slow partner.
func peakFallBars() []float64 {
	closes := make([]float64, 60)
	for i := range closes {
		if i <= 39 {
			closes[i] = 100 + float64(i)
		} else {
			closes[i] = 139 - 2*float64(i-39)
		}
	}
	return closes
}

func TestCrossovers_Uptrend(t *testing.T) {
	res, err := Crossovers(risingSeries(t, 60), CrossoverParams{})
	require.NoError(t, err)

	assert.Equal(t, 30, res.LookbackBars)
	assert.Empty(t, res.Events)

	// The 200-bar pair drops out on 60 bars
	require.Len(t, res.Alignments, 3)
	assert.Equal(t, "sma_20_50", res.Alignments[0].Pair)
	assert.Equal(t, "ema_9_21", res.Alignments[1].Pair)
	assert.Equal(t, "ema_12_26", res.Alignments[2].Pair)
	for _, a := range res.Alignments {
		assert.Equal(t, SignalBullish, a.Signal)
	}

	require.Len(t, res.Distances, 6)
	assert.Equal(t, "sma_20", res.Distances[0].Name)
	assert.Equal(t, 6.35, res.Distances[0].DistancePct)
	assert.Equal(t, "above", res.Distances[0].Position)
	assert.Equal(t, "sma_50", res.Distances[1].Name)
	assert.Equal(t, 18.22, res.Distances[1].DistancePct)
	assert.Equal(t, "far_above", res.Distances[1].Position)

	assert.Equal(t, 70, res.Score)
	assert.Equal(t, RatingStrongBuy, res.Rating)
}

func TestCrossovers_Downtrend(t *testing.T) {
	res, err := Crossovers(fallingSeries(t, 60), CrossoverParams{})
	require.NoError(t, err)

	require.Len(t, res.Alignments, 3)
	for _, a := range res.Alignments {
		assert.Equal(t, SignalBearish, a.Signal)
	}
	assert.Empty(t, res.Events)
	assert.Equal(t, 30, res.Score)
	assert.Equal(t, RatingSell, res.Rating)
}

func TestCrossovers_DeathCrosses(t *testing.T) {
	s := mustSeries(t, closeBars(peakFallBars()))
	res, err := Crossovers(s, CrossoverParams{})
	require.NoError(t, err)

	require.Len(t, res.Events, 3)
	for _, e := range res.Events {
		assert.Equal(t, "death_cross", e.Type)
		assert.Equal(t, SignalBearish, e.Signal)
		assert.GreaterOrEqual(t, e.BarsAgo, 0)
		assert.Less(t, e.BarsAgo, 30)
	}

	sma := res.Events[0]
	assert.Equal(t, "sma_20_50", sma.Pair)
	assert.Equal(t, 2, sma.BarsAgo)
	assert.Equal(t, 121.85, sma.FastValue)
	assert.Equal(t, 122.24, sma.SlowValue)
	assert.Equal(t, "ema_9_21", res.Events[1].Pair)
	assert.Equal(t, "ema_12_26", res.Events[2].Pair)

	// Bearish alignment -20 and capped cross penalty -20
	assert.Equal(t, 10, res.Score)
	assert.Equal(t, RatingStrongSell, res.Rating)
}

func TestCrossovers_ShortSeries(t *testing.T) {
	res, err := Crossovers(risingSeries(t, 10), CrossoverParams{})
	require.NoError(t, err)

	assert.Empty(t, res.Alignments)
	assert.Empty(t, res.Events)
	require.Len(t, res.Distances, 1)
	assert.Equal(t, "ema_9", res.Distances[0].Name)
	assert.Equal(t, 50, res.Score)
	assert.Equal(t, RatingNeutral, res.Rating)
}

func TestCrossovers_LookbackClamp(t *testing.T) {
	res, err := Crossovers(risingSeries(t, 10), CrossoverParams{LookbackBars: 1000})
	require.NoError(t, err)
	assert.Equal(t, 500, res.LookbackBars)

	res, err = Crossovers(risingSeries(t, 10), CrossoverParams{LookbackBars: -5})
	require.NoError(t, err)
	assert.Equal(t, 30, res.LookbackBars)
}

func TestCrossovers_NilSeries(t *testing.T) {
	_, err := Crossovers(nil, CrossoverParams{})
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}
