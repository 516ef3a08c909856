package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"delphi/internal/domain/watchlist"
	"delphi/internal/events"
	"delphi/internal/metrics"
	"delphi/internal/services/analysis"
	"delphi/internal/ta/breakout"
	"delphi/pkg/errors"
)

// ScannerWorker runs the full technical read over every active watchlist
// entry. Each pass loads the series, assembles the report and publishes
// signal events; the pre-screener keeps quiet symbols off the hot path.
type ScannerWorker struct {
	*BaseWorker
	watchlist   *watchlist.Service
	analyzer    *analysis.Service
	prescreener *analysis.PreScreener
	publisher   *events.Publisher

	maxConcurrency int

	// previous phase per symbol:interval, for transition events
	phaseMu    sync.Mutex
	lastPhases map[string]string
}

// NewScannerWorker creates the watchlist scan worker. The pre-screener
// and publisher are optional; without them every entry gets a full scan
// and results stay local.
func NewScannerWorker(
	watchlistSvc *watchlist.Service,
	analyzer *analysis.Service,
	prescreener *analysis.PreScreener,
	publisher *events.Publisher,
	interval time.Duration,
	maxConcurrency int,
	enabled bool,
) *ScannerWorker {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}

	return &ScannerWorker{
		BaseWorker:     NewBaseWorker("scanner", interval, enabled),
		watchlist:      watchlistSvc,
		analyzer:       analyzer,
		prescreener:    prescreener,
		publisher:      publisher,
		maxConcurrency: maxConcurrency,
		lastPhases:     make(map[string]string),
	}
}

// Run executes one scan pass over the active watchlist
func (w *ScannerWorker) Run(ctx context.Context) error {
	start := time.Now()

	entries, err := w.watchlist.GetActive(ctx)
	if err != nil {
		return errors.Wrap(err, "load active watchlist")
	}
	if len(entries) == 0 {
		w.Log().Debug("Watchlist is empty, nothing to scan")
		return nil
	}

	w.Log().Infow("Scan pass starting",
		"entries", len(entries),
		"max_concurrency", w.maxConcurrency,
	)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, w.maxConcurrency)
	errorsCh := make(chan error, len(entries))

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}

		wg.Add(1)
		go func(e *watchlist.Entry) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := w.scanEntry(ctx, e); err != nil {
				errorsCh <- errors.Wrapf(err, "scan %s %s", e.Symbol, e.Interval)
			}
		}(entry)
	}

	wg.Wait()
	close(errorsCh)

	failed := 0
	for err := range errorsCh {
		failed++
		w.Log().Errorw("Symbol scan failed", "error", err)
	}

	w.Log().Infow("Scan pass complete",
		"entries", len(entries),
		"failed", failed,
		"duration", time.Since(start),
	)

	return nil
}

// scanEntry analyzes one watchlist entry and publishes its signals
func (w *ScannerWorker) scanEntry(ctx context.Context, entry *watchlist.Entry) error {
	if w.prescreener != nil {
		screen, err := w.prescreener.ShouldScan(ctx, entry.Symbol, entry.Interval)
		if err != nil {
			w.Log().Warnw("Pre-screen failed, scanning anyway",
				"symbol", entry.Symbol,
				"error", err,
			)
		} else if !screen.ShouldScan {
			w.Log().Debugw("Symbol pre-screened out",
				"symbol", entry.Symbol,
				"interval", entry.Interval,
				"reason", screen.SkipReason,
			)
			return nil
		}
	}

	report, err := w.analyzer.Analyze(ctx, entry.Symbol, entry.Interval)
	if err != nil {
		return err
	}

	if w.prescreener != nil {
		w.prescreener.RecordScan(entry.Symbol, entry.Interval)
	}
	if err := w.watchlist.MarkScanned(ctx, entry.ID); err != nil {
		w.Log().Warnw("Failed to record scan timestamp",
			"symbol", entry.Symbol,
			"error", err,
		)
	}

	alerts := w.emitSignals(ctx, entry, report)

	if w.publisher != nil {
		ev := events.ScanCompleted{
			Symbol:     report.Symbol,
			Interval:   report.Interval,
			Overall:    string(report.OverallSignal()),
			AlertCount: alerts,
			DurationMs: report.DurationMs,
		}
		if report.Snapshot != nil {
			ev.BullishScore = report.Snapshot.BullishScore
			ev.BearishScore = report.Snapshot.BearishScore
		}
		if report.Phase != nil {
			ev.Phase = string(report.Phase.Phase)
		}
		if report.Trend != nil {
			ev.TrendScore = report.Trend.UpVotes - report.Trend.DownVotes
		}
		if err := w.publisher.PublishScanCompleted(ctx, ev); err != nil {
			w.Log().Warnw("Failed to publish scan event", "symbol", entry.Symbol, "error", err)
		}
	}

	return nil
}

// emitSignals publishes the notable findings of a report and returns how
// many alerts went out
func (w *ScannerWorker) emitSignals(ctx context.Context, entry *watchlist.Entry, report *analysis.Report) int {
	if w.publisher == nil {
		return 0
	}

	alerts := 0
	alerts += w.emitBreakout(ctx, report)
	alerts += w.emitDivergences(ctx, report)
	alerts += w.emitPhaseChange(ctx, report)
	alerts += w.emitCrossovers(ctx, report)
	alerts += w.emitPriceAlert(ctx, entry, report)
	return alerts
}

func (w *ScannerWorker) emitBreakout(ctx context.Context, report *analysis.Report) int {
	b := report.Breakout
	if b == nil {
		return 0
	}
	if b.Detection.Type != breakout.TypeResistanceBreakout && b.Detection.Type != breakout.TypeSupportBreakdown {
		return 0
	}

	ev := events.BreakoutDetected{
		Symbol:          report.Symbol,
		Interval:        report.Interval,
		BreakoutType:    string(b.Detection.Type),
		Strength:        string(b.Detection.Strength),
		Level:           b.Detection.Level.Or(0),
		Price:           b.Price,
		ATRMultiple:     b.Detection.ATRMultiple.Or(0),
		VolumeRatio:     b.Detection.VolumeRatio,
		VolumeConfirmed: b.Detection.VolumeConfirmed,
	}
	if err := w.publisher.PublishBreakoutDetected(ctx, ev); err != nil {
		w.Log().Warnw("Failed to publish breakout event", "symbol", report.Symbol, "error", err)
		return 0
	}
	metrics.RecordSignal("breakout")

	w.sendAlert(ctx, report, "breakout", severityFor(string(b.Detection.Strength)),
		fmt.Sprintf("%s %s at %.2f (%.1fx volume)",
			report.Symbol, b.Detection.Type, b.Detection.Level.Or(report.Price), b.Detection.VolumeRatio))
	return 1
}

func (w *ScannerWorker) emitDivergences(ctx context.Context, report *analysis.Report) int {
	d := report.Divergence
	if d == nil || len(d.Overall.Active) == 0 {
		return 0
	}

	alerts := 0
	for _, active := range d.Overall.Active {
		ev := events.DivergenceSpotted{
			Symbol:         report.Symbol,
			Interval:       report.Interval,
			Indicator:      string(active.Indicator),
			DivergenceType: string(active.Type),
			Strength:       string(active.Strength),
			Signal:         d.Overall.Signal,
		}
		if err := w.publisher.PublishDivergenceSpotted(ctx, ev); err != nil {
			w.Log().Warnw("Failed to publish divergence event", "symbol", report.Symbol, "error", err)
			continue
		}
		metrics.RecordSignal("divergence")
		alerts++
	}

	if alerts > 0 {
		w.sendAlert(ctx, report, "divergence", severityFor(string(d.Overall.Confidence)),
			fmt.Sprintf("%s %s divergence on %d indicator(s)",
				report.Symbol, d.Overall.Signal, alerts))
	}
	return alerts
}

func (w *ScannerWorker) emitPhaseChange(ctx context.Context, report *analysis.Report) int {
	p := report.Phase
	if p == nil {
		return 0
	}

	previous, changed := w.phaseTransition(report.Symbol, report.Interval, string(p.Phase))
	if !changed {
		return 0
	}

	ev := events.PhaseChanged{
		Symbol:     report.Symbol,
		Interval:   report.Interval,
		Previous:   previous,
		Current:    string(p.Phase),
		Strength:   p.Strength,
		Margin:     p.Margin,
		Confidence: p.Confidence,
	}
	if err := w.publisher.PublishPhaseChanged(ctx, ev); err != nil {
		w.Log().Warnw("Failed to publish phase event", "symbol", report.Symbol, "error", err)
		return 0
	}
	metrics.RecordSignal("phase_change")

	w.sendAlert(ctx, report, "phase_change", severityFor(p.Confidence),
		fmt.Sprintf("%s cycle phase moved %s -> %s (%s confidence)",
			report.Symbol, previous, string(p.Phase), p.Confidence))
	return 1
}

// phaseTransition records the latest observed phase for a symbol and
// reports whether it moved away from a previously observed one. The
// first observation never counts as a transition.
func (w *ScannerWorker) phaseTransition(symbol, interval, current string) (string, bool) {
	key := symbol + ":" + interval

	w.phaseMu.Lock()
	previous := w.lastPhases[key]
	w.lastPhases[key] = current
	w.phaseMu.Unlock()

	return previous, previous != "" && previous != current
}

func (w *ScannerWorker) emitCrossovers(ctx context.Context, report *analysis.Report) int {
	c := report.Crossovers
	if c == nil {
		return 0
	}

	alerts := 0
	for _, cross := range c.Events {
		// Only crosses on the freshest bars are worth announcing
		if cross.BarsAgo > 1 {
			continue
		}

		ev := events.CrossoverFired{
			Symbol:    report.Symbol,
			Interval:  report.Interval,
			Pair:      cross.Pair,
			CrossType: cross.Type,
			Direction: string(cross.Signal),
			FastValue: cross.FastValue,
			SlowValue: cross.SlowValue,
			BarsAgo:   cross.BarsAgo,
		}
		if err := w.publisher.PublishCrossoverFired(ctx, ev); err != nil {
			w.Log().Warnw("Failed to publish crossover event", "symbol", report.Symbol, "error", err)
			continue
		}
		metrics.RecordSignal("crossover")

		w.sendAlert(ctx, report, "crossover", "medium",
			fmt.Sprintf("%s %s on %s", report.Symbol, cross.Type, cross.Pair))
		alerts++
	}
	return alerts
}

func (w *ScannerWorker) emitPriceAlert(ctx context.Context, entry *watchlist.Entry, report *analysis.Report) int {
	if report.Price <= 0 {
		return 0
	}

	side, triggered := entry.AlertTriggered(decimal.NewFromFloat(report.Price))
	if !triggered {
		return 0
	}

	threshold := entry.AlertAbove
	if side == "below" {
		threshold = entry.AlertBelow
	}

	metrics.RecordSignal("price_" + side)
	w.sendAlert(ctx, report, "price_"+side, "high",
		fmt.Sprintf("%s crossed %s alert level %s at %.2f",
			report.Symbol, side, threshold.Decimal.String(), report.Price))
	return 1
}

// sendAlert routes a human-readable alert to the notification pipeline
func (w *ScannerWorker) sendAlert(ctx context.Context, report *analysis.Report, kind, severity, message string) {
	ev := events.SignalAlert{
		Symbol:   report.Symbol,
		Interval: report.Interval,
		Kind:     kind,
		Severity: severity,
		Message:  message,
		Price:    report.Price,
	}
	if err := w.publisher.PublishSignalAlert(ctx, ev); err != nil {
		w.Log().Warnw("Failed to publish signal alert",
			"symbol", report.Symbol,
			"kind", kind,
			"error", err,
		)
	}
}

// severityFor maps a strength or confidence label onto alert severity
func severityFor(level string) string {
	switch level {
	case "strong", "high":
		return "high"
	case "moderate", "medium":
		return "medium"
	default:
		return "low"
	}
}
