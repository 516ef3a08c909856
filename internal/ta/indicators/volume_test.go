package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// volumeSeries builds flat-priced bars carrying a volume profile.
func volumeSeries(t *testing.T, volumes []float64) *marketdata.Series {
	t.Helper()
	bars := make([]marketdata.Bar, 0, len(volumes))
	for i, v := range volumes {
		bars = append(bars, testBar(i, 100, 100.5, 99.5, 100, v))
	}
	return mustSeries(t, bars)
}

func TestVolume_Spike(t *testing.T) {
	volumes := make([]float64, 31)
	for i := range volumes {
		volumes[i] = 1000
	}
	volumes[30] = 5000
	s := volumeSeries(t, volumes)

	res, err := Volume(s, VolumeParams{})
	require.NoError(t, err)

	require.True(t, res.Current.Valid)
	assert.Equal(t, 5000.0, res.Current.Float64)
	assert.Equal(t, 400.0, res.ChangePct.Float64)

	require.Len(t, res.Ratios, 3)
	short := res.Ratios[0]
	assert.Equal(t, 7, short.Window)
	assert.Equal(t, 1571.43, short.Average.Float64)
	assert.Equal(t, 3.18, short.Ratio.Float64)
	assert.True(t, short.Spike)

	medium := res.Ratios[1]
	assert.Equal(t, 30, medium.Window)
	assert.Equal(t, 1133.33, medium.Average.Float64)
	assert.Equal(t, 4.41, medium.Ratio.Float64)
	assert.True(t, medium.Spike)

	long := res.Ratios[2]
	assert.Equal(t, 90, long.Window)
	assert.False(t, long.Ratio.Valid)

	assert.Equal(t, "high", res.SpikeSeverity)
	assert.Equal(t, "increasing", res.ShortTrend)
	assert.Equal(t, "unknown", res.MediumTrend)
	assert.Equal(t, 5.48, res.ZScore.Float64)
	assert.Equal(t, "high", res.Unusual)
	assert.Equal(t, "spike", res.Classification)
}

func TestVolume_Quiet(t *testing.T) {
	volumes := make([]float64, 60)
	for i := range volumes {
		volumes[i] = 1000
	}
	res, err := Volume(volumeSeries(t, volumes), VolumeParams{})
	require.NoError(t, err)

	assert.Equal(t, 1000.0, res.Current.Float64)
	assert.Equal(t, 0.0, res.ChangePct.Float64)
	assert.Equal(t, 1.0, res.Ratios[0].Ratio.Float64)
	assert.Equal(t, 1.0, res.Ratios[1].Ratio.Float64)
	assert.Equal(t, "none", res.SpikeSeverity)
	assert.Equal(t, "stable", res.ShortTrend)
	assert.Equal(t, "stable", res.MediumTrend)
	assert.False(t, res.ZScore.Valid)
	assert.Equal(t, "normal", res.Unusual)
	assert.Equal(t, "normal", res.Classification)
}

func TestVolume_BelowAverage(t *testing.T) {
	volumes := make([]float64, 40)
	for i := range volumes {
		if i < 30 {
			volumes[i] = 2000
		} else {
			volumes[i] = 500
		}
	}
	res, err := Volume(volumeSeries(t, volumes), VolumeParams{})
	require.NoError(t, err)

	assert.Equal(t, 500.0, res.Current.Float64)
	assert.Equal(t, 1.0, res.Ratios[0].Ratio.Float64)
	assert.Equal(t, 1500.0, res.Ratios[1].Average.Float64)
	assert.Equal(t, 0.33, res.Ratios[1].Ratio.Float64)
	assert.Equal(t, "none", res.SpikeSeverity)
	assert.Equal(t, "decreasing", res.ShortTrend)
	assert.Equal(t, -1.73, res.ZScore.Float64)
	assert.Equal(t, "normal", res.Unusual)
	assert.Equal(t, "below_average", res.Classification)
}

func TestVolume_FlatPriceCorrelation(t *testing.T) {
	volumes := make([]float64, 31)
	for i := range volumes {
		volumes[i] = 1000
	}
	volumes[30] = 5000
	res, err := Volume(volumeSeries(t, volumes), VolumeParams{})
	require.NoError(t, err)

	// Flat closes produce zero price variance, which degrades to the
	// weak negative bucket rather than claiming a positive link
	require.True(t, res.PriceCorrelation.Valid)
	assert.Equal(t, 0.0, res.PriceCorrelation.Float64)
	assert.Equal(t, "weak_negative", res.Correlation)
}

func TestVolume_EmptySeries(t *testing.T) {
	res, err := Volume(mustSeries(t, nil), VolumeParams{})
	require.NoError(t, err)
	assert.False(t, res.Current.Valid)
	assert.Equal(t, "none", res.SpikeSeverity)
	assert.Equal(t, "unknown", res.ShortTrend)
	assert.Equal(t, "normal", res.Classification)
}

func TestVolume_WindowClamp(t *testing.T) {
	volumes := make([]float64, 20)
	for i := range volumes {
		volumes[i] = 1000
	}
	res, err := Volume(volumeSeries(t, volumes), VolumeParams{ShortWindow: -1, MediumWindow: 0, LongWindow: 9999})
	require.NoError(t, err)
	require.Len(t, res.Ratios, 3)
	assert.Equal(t, 7, res.Ratios[0].Window)
	assert.Equal(t, 30, res.Ratios[1].Window)
	assert.Equal(t, 500, res.Ratios[2].Window)
}

func TestVolume_NilSeries(t *testing.T) {
	_, err := Volume(nil, VolumeParams{})
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}
