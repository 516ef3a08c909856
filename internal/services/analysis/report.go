// Package analysis assembles the individual technical components into a
// single report per symbol and interval. The computation itself stays
// pure; this package adds the series loading, report caching and
// pre-screening around it.
package analysis

import (
	"time"

	"delphi/internal/ta/breakout"
	"delphi/internal/ta/candles"
	"delphi/internal/ta/divergence"
	"delphi/internal/ta/indicators"
	"delphi/internal/ta/levels"
	"delphi/internal/ta/phase"
	"delphi/internal/ta/swings"
)

// Phase classification sources reported alongside the result
const (
	PhaseSourceRules = "rules"
	PhaseSourceModel = "model"
)

// Params bundles the per-section configurations for a full report run
type Params struct {
	Lookback   int                         `json:"lookback"`
	Snapshot   indicators.SnapshotParams   `json:"snapshot"`
	Candles    candles.Params              `json:"candles"`
	Swings     swings.Params               `json:"swings"`
	Trend      swings.ContextParams        `json:"trend"`
	Divergence divergence.Params           `json:"divergence"`
	Fibonacci  levels.FibonacciParams      `json:"fibonacci"`
	Pivots     levels.PivotParams          `json:"pivots"`
	Breakout   breakout.Params             `json:"breakout"`
	Phase      phase.Params                `json:"phase"`
	Crossover  indicators.CrossoverParams  `json:"crossover"`
	Volume     indicators.VolumeParams     `json:"volume"`
	Volatility indicators.VolatilityParams `json:"volatility"`
}

// DefaultParams returns every section at its standard configuration with
// a 300 bar lookback
func DefaultParams() Params {
	return Params{
		Lookback:   300,
		Snapshot:   indicators.DefaultSnapshotParams(),
		Candles:    candles.DefaultParams(),
		Swings:     swings.DefaultParams(),
		Trend:      swings.DefaultContextParams(),
		Divergence: divergence.DefaultParams(),
		Breakout:   breakout.Params{},
		Phase:      phase.DefaultParams(),
		Crossover:  indicators.DefaultCrossoverParams(),
		Volume:     indicators.DefaultVolumeParams(),
		Volatility: indicators.DefaultVolatilityParams(),
	}
}

// Report is the full technical read of one symbol at one interval.
// Sections that could not run on the available history are nil and
// listed in Skipped; everything else reflects the same series.
type Report struct {
	Symbol      string    `json:"symbol"`
	Interval    string    `json:"interval"`
	Price       float64   `json:"price"`
	BarCount    int       `json:"bar_count"`
	GeneratedAt time.Time `json:"generated_at"`
	DurationMs  int64     `json:"duration_ms"`

	Snapshot    *indicators.Snapshot         `json:"snapshot,omitempty"`
	Candles     *candles.Result              `json:"candles,omitempty"`
	Swings      *swings.Result               `json:"swings,omitempty"`
	Structure   *swings.StructureResult      `json:"structure,omitempty"`
	Trend       *swings.ContextResult        `json:"trend,omitempty"`
	Divergence  *divergence.Result           `json:"divergence,omitempty"`
	Fibonacci   *levels.FibonacciResult      `json:"fibonacci,omitempty"`
	Pivots      *levels.PivotPointsResult    `json:"pivot_points,omitempty"`
	Breakout    *breakout.Result             `json:"breakout,omitempty"`
	Phase       *phase.Result                `json:"phase,omitempty"`
	PhaseSource string                       `json:"phase_source,omitempty"`
	Crossovers  *indicators.CrossoverResult  `json:"crossovers,omitempty"`
	Volume      *indicators.VolumeResult     `json:"volume,omitempty"`
	Volatility  *indicators.VolatilityResult `json:"volatility,omitempty"`

	Skipped []string `json:"skipped_sections,omitempty"`
}

// OverallSignal returns the snapshot's weighted verdict, or neutral when
// the snapshot section was skipped
func (r *Report) OverallSignal() indicators.Signal {
	if r.Snapshot == nil {
		return indicators.SignalNeutral
	}
	return r.Snapshot.Overall
}

// ATRPct returns the latest ATR as a percent of price, preferring the
// volatility section and falling back to the snapshot
func (r *Report) ATRPct() (float64, bool) {
	if r.Volatility != nil && r.Volatility.ATRPercent.Valid {
		return r.Volatility.ATRPercent.Float64, true
	}
	if r.Snapshot != nil && r.Snapshot.ATR.ATRPercent.Valid {
		return r.Snapshot.ATR.ATRPercent.Float64, true
	}
	return 0, false
}
