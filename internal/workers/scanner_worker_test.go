package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delphi/internal/domain/watchlist"
)

func TestSeverityFor(t *testing.T) {
	cases := map[string]string{
		"strong":   "high",
		"high":     "high",
		"moderate": "medium",
		"medium":   "medium",
		"weak":     "low",
		"low":      "low",
		"":         "low",
	}

	for level, want := range cases {
		assert.Equal(t, want, severityFor(level), "level %q", level)
	}
}

func TestScannerPhaseTransition(t *testing.T) {
	w := NewScannerWorker(nil, nil, nil, nil, time.Minute, 4, true)

	// First observation is never a transition
	prev, changed := w.phaseTransition("BTCUSDT", "4h", "markup")
	assert.False(t, changed)
	assert.Empty(t, prev)

	// Unchanged phase
	_, changed = w.phaseTransition("BTCUSDT", "4h", "markup")
	assert.False(t, changed)

	// Phase moved
	prev, changed = w.phaseTransition("BTCUSDT", "4h", "distribution")
	assert.True(t, changed)
	assert.Equal(t, "markup", prev)

	// Each interval is tracked independently
	_, changed = w.phaseTransition("BTCUSDT", "1d", "distribution")
	assert.False(t, changed)

	// And each symbol
	_, changed = w.phaseTransition("ETHUSDT", "4h", "markdown")
	assert.False(t, changed)
}

func TestScannerRun_EmptyWatchlist(t *testing.T) {
	svc := watchlist.NewService(&fakeWatchlistRepo{})

	w := NewScannerWorker(svc, nil, nil, nil, time.Minute, 4, true)
	require.NoError(t, w.Run(context.Background()))
}
