package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delphi/internal/domain/marketdata"
)

type stubBarRepo struct {
	bars []marketdata.Bar
	err  error
}

func (r *stubBarRepo) InsertBars(context.Context, []marketdata.Bar) error { return nil }

func (r *stubBarRepo) GetBars(context.Context, marketdata.Query) ([]marketdata.Bar, error) {
	return r.bars, r.err
}

func (r *stubBarRepo) GetLatestBars(_ context.Context, _, _ string, limit int) ([]marketdata.Bar, error) {
	if r.err != nil {
		return nil, r.err
	}
	if limit < len(r.bars) {
		return r.bars[len(r.bars)-limit:], nil
	}
	return r.bars, nil
}

func (r *stubBarRepo) GetLatestOpenTime(context.Context, string, string) (time.Time, error) {
	return time.Time{}, nil
}

// flatBars closes every bar at the same price with the same volume
func flatBars(n int, close, volume float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, fixtureBar(i, close, close+0.01, close-0.01, close, volume))
	}
	return bars
}

// movingBars trends up two percent per bar with healthy ranges
func movingBars(n int, start, volume float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, 0, n)
	price := start
	for i := 0; i < n; i++ {
		next := price * 1.02
		bars = append(bars, fixtureBar(i, price, next*1.01, price*0.99, next, volume))
		price = next
	}
	return bars
}

func TestPreScreener_AllowsActiveSymbol(t *testing.T) {
	repo := &stubBarRepo{bars: movingBars(24, 100, 1000)}
	ps := NewPreScreener(DefaultPreScreenConfig(), repo)

	result, err := ps.ShouldScan(context.Background(), "TLKM", "1d")
	require.NoError(t, err)
	assert.True(t, result.ShouldScan)
	assert.Empty(t, result.SkipReason)
	assert.Greater(t, result.Metrics.PriceChangePct, 0.0)
}

func TestPreScreener_SkipsFlatSymbol(t *testing.T) {
	repo := &stubBarRepo{bars: flatBars(24, 100, 1000)}
	ps := NewPreScreener(DefaultPreScreenConfig(), repo)

	result, err := ps.ShouldScan(context.Background(), "IDLE", "1d")
	require.NoError(t, err)
	assert.False(t, result.ShouldScan)
	assert.Contains(t, result.SkipReason, "price movement")
}

func TestPreScreener_SkipsLowVolume(t *testing.T) {
	bars := movingBars(24, 100, 1000)
	bars[len(bars)-1].Volume = 50
	repo := &stubBarRepo{bars: bars}
	ps := NewPreScreener(DefaultPreScreenConfig(), repo)

	result, err := ps.ShouldScan(context.Background(), "THIN", "1d")
	require.NoError(t, err)
	assert.False(t, result.ShouldScan)
	assert.Contains(t, result.SkipReason, "low volume")
}

func TestPreScreener_CooldownBlocksRescan(t *testing.T) {
	repo := &stubBarRepo{bars: movingBars(24, 100, 1000)}
	ps := NewPreScreener(DefaultPreScreenConfig(), repo)

	ps.RecordScan("TLKM", "1d")

	result, err := ps.ShouldScan(context.Background(), "TLKM", "1d")
	require.NoError(t, err)
	assert.False(t, result.ShouldScan)
	assert.Contains(t, result.SkipReason, "cooldown")

	// Another interval of the same symbol is unaffected
	result, err = ps.ShouldScan(context.Background(), "TLKM", "4h")
	require.NoError(t, err)
	assert.True(t, result.ShouldScan)
}

func TestPreScreener_EmptyStoreAllows(t *testing.T) {
	ps := NewPreScreener(DefaultPreScreenConfig(), &stubBarRepo{})

	result, err := ps.ShouldScan(context.Background(), "NEW", "1d")
	require.NoError(t, err)
	assert.True(t, result.ShouldScan)
}

func TestPreScreener_DisabledAllowsEverything(t *testing.T) {
	cfg := DefaultPreScreenConfig()
	cfg.Enabled = false
	ps := NewPreScreener(cfg, &stubBarRepo{bars: flatBars(24, 100, 1000)})

	result, err := ps.ShouldScan(context.Background(), "IDLE", "1d")
	require.NoError(t, err)
	assert.True(t, result.ShouldScan)
}
