package analysis

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// PreScreenConfig tunes the cheap checks run before a full report
type PreScreenConfig struct {
	Enabled bool

	// MinPriceChangePct skips symbols whose close moved less than this
	// fraction over the check window
	MinPriceChangePct float64
	// MinVolumeRatio skips symbols whose latest volume sits below this
	// fraction of the window average
	MinVolumeRatio float64
	// MinATRPct skips symbols whose true range averages below this
	// fraction of price
	MinATRPct float64
	// Cooldown is the minimum gap between full scans of one symbol
	Cooldown time.Duration
	// Window is how many recent bars the checks read
	Window int

	CheckPriceMovement bool
	CheckVolume        bool
	CheckVolatility    bool
	CheckCooldown      bool
}

// DefaultPreScreenConfig returns the 0.2% move, 50% volume, 1% ATR gate
// over 24 bars with a 30 minute cooldown
func DefaultPreScreenConfig() PreScreenConfig {
	return PreScreenConfig{
		Enabled:            true,
		MinPriceChangePct:  0.002,
		MinVolumeRatio:     0.50,
		MinATRPct:          0.01,
		Cooldown:           30 * time.Minute,
		Window:             24,
		CheckPriceMovement: true,
		CheckVolume:        true,
		CheckVolatility:    true,
		CheckCooldown:      true,
	}
}

// PreScreenMetrics carries the readings behind a screening decision
type PreScreenMetrics struct {
	PriceChangePct float64
	VolumeRatio    float64
	ATRPct         float64
	SinceLastScan  time.Duration
}

// PreScreenResult is the screening verdict for one symbol
type PreScreenResult struct {
	ShouldScan bool
	SkipReason string
	Metrics    PreScreenMetrics
}

// PreScreener runs lightweight checks against stored bars so the scanner
// skips dead symbols without loading a full series. Symbols with no
// stored bars always pass; the provider's exchange fallback handles them.
type PreScreener struct {
	config PreScreenConfig
	bars   marketdata.Repository
	log    *logger.Logger

	mu       sync.Mutex
	lastScan map[string]time.Time
}

// NewPreScreener creates a pre-screener over the bar store
func NewPreScreener(config PreScreenConfig, bars marketdata.Repository) *PreScreener {
	return &PreScreener{
		config:   config,
		bars:     bars,
		log:      logger.Get().With("component", "prescreener"),
		lastScan: make(map[string]time.Time),
	}
}

// ShouldScan decides whether a symbol deserves a full report this sweep
func (ps *PreScreener) ShouldScan(ctx context.Context, symbol, interval string) (*PreScreenResult, error) {
	result := &PreScreenResult{ShouldScan: true}
	if !ps.config.Enabled {
		return result, nil
	}

	if ps.config.CheckCooldown {
		if since, ok := ps.sinceLastScan(symbol, interval); ok {
			result.Metrics.SinceLastScan = since
			if since < ps.config.Cooldown {
				result.ShouldScan = false
				result.SkipReason = fmt.Sprintf("cooldown active (%s since last scan)", since.Round(time.Second))
				return result, nil
			}
		}
	}

	window := ps.config.Window
	if window < 2 {
		window = DefaultPreScreenConfig().Window
	}
	bars, err := ps.bars.GetLatestBars(ctx, symbol, interval, window)
	if err != nil {
		return nil, errors.Wrapf(err, "load bars for pre-screen of %s %s", symbol, interval)
	}
	if len(bars) < 2 {
		// Nothing stored yet, let the full pass fetch and judge
		return result, nil
	}

	last := bars[len(bars)-1]

	if ps.config.CheckPriceMovement {
		if first := bars[0].Close; first > 0 {
			change := math.Abs(last.Close-first) / first
			result.Metrics.PriceChangePct = change
			if change < ps.config.MinPriceChangePct {
				result.ShouldScan = false
				result.SkipReason = fmt.Sprintf("insufficient price movement (%.3f%% < %.3f%%)",
					change*100, ps.config.MinPriceChangePct*100)
				return result, nil
			}
		}
	}

	if ps.config.CheckVolume {
		if avg := averageVolume(bars); avg > 0 {
			ratio := last.Volume / avg
			result.Metrics.VolumeRatio = ratio
			if ratio < ps.config.MinVolumeRatio {
				result.ShouldScan = false
				result.SkipReason = fmt.Sprintf("low volume (%.0f%% of %d-bar average)",
					ratio*100, len(bars))
				return result, nil
			}
		}
	}

	if ps.config.CheckVolatility {
		if atrPct := trueRangePct(bars); atrPct > 0 {
			result.Metrics.ATRPct = atrPct
			if atrPct < ps.config.MinATRPct {
				result.ShouldScan = false
				result.SkipReason = fmt.Sprintf("flat volatility (ATR %.2f%% < %.2f%%)",
					atrPct*100, ps.config.MinATRPct*100)
				return result, nil
			}
		}
	}

	return result, nil
}

// RecordScan marks a completed full scan so the cooldown starts counting
func (ps *PreScreener) RecordScan(symbol, interval string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.lastScan[screenKey(symbol, interval)] = time.Now()
}

func (ps *PreScreener) sinceLastScan(symbol, interval string) (time.Duration, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	last, ok := ps.lastScan[screenKey(symbol, interval)]
	if !ok {
		return 0, false
	}
	return time.Since(last), true
}

func screenKey(symbol, interval string) string {
	return symbol + ":" + interval
}

func averageVolume(bars []marketdata.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}

// trueRangePct averages the true range over the bars and relates it to
// the latest close, as a fraction
func trueRangePct(bars []marketdata.Bar) float64 {
	last := bars[len(bars)-1].Close
	if len(bars) < 2 || last <= 0 {
		return 0
	}

	sum := 0.0
	for i := 1; i < len(bars); i++ {
		high := bars[i].High
		low := bars[i].Low
		prevClose := bars[i-1].Close
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		sum += tr
	}
	return sum / float64(len(bars)-1) / last
}
