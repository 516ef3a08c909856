package workers

import (
	"context"
	"time"

	"delphi/internal/domain/marketdata"
	"delphi/internal/domain/watchlist"
	"delphi/internal/events"
	"delphi/internal/metrics"
	"delphi/internal/services/analysis"
)

// KlineSource fetches historical bars from the exchange REST API
type KlineSource interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]marketdata.Bar, error)
	KlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]marketdata.Bar, error)
}

// BarCollectorWorker keeps the bar store current for every watchlist
// entry. Each pass fetches the bars missing since the newest stored one;
// symbols never seen before get a historical backfill.
type BarCollectorWorker struct {
	*BaseWorker
	watchlist *watchlist.Service
	bars      marketdata.Repository
	exchange  KlineSource
	cache     *analysis.ReportCache
	publisher *events.Publisher
	backfill  int
}

// NewBarCollectorWorker creates the collector. Cache and publisher are
// optional; pass nil to skip invalidation and event publishing.
func NewBarCollectorWorker(
	watchlistSvc *watchlist.Service,
	bars marketdata.Repository,
	exchange KlineSource,
	cache *analysis.ReportCache,
	publisher *events.Publisher,
	interval time.Duration,
	backfill int,
	enabled bool,
) *BarCollectorWorker {
	if backfill <= 0 {
		backfill = 300
	}
	return &BarCollectorWorker{
		BaseWorker: NewBaseWorker("bar_collector", interval, enabled),
		watchlist:  watchlistSvc,
		bars:       bars,
		exchange:   exchange,
		cache:      cache,
		publisher:  publisher,
		backfill:   backfill,
	}
}

// Run executes one collection pass over the active watchlist
func (w *BarCollectorWorker) Run(ctx context.Context) error {
	entries, err := w.watchlist.GetActive(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		w.Log().Debug("Watchlist is empty, nothing to collect")
		return nil
	}

	var ingested, failed int
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		count, err := w.collectEntry(ctx, entry)
		if err != nil {
			failed++
			w.Log().Errorw("Bar collection failed",
				"symbol", entry.Symbol,
				"interval", entry.Interval,
				"error", err)
			continue
		}
		ingested += count
	}

	w.Log().Infow("Collection pass complete",
		"symbols", len(entries),
		"new_bars", ingested,
		"failed", failed)
	return nil
}

// collectEntry fetches and stores bars for one symbol, returning the
// number of newly closed bars
func (w *BarCollectorWorker) collectEntry(ctx context.Context, entry *watchlist.Entry) (int, error) {
	latest, err := w.bars.GetLatestOpenTime(ctx, entry.Symbol, entry.Interval)
	if err != nil {
		return 0, err
	}

	var fetched []marketdata.Bar
	if latest.IsZero() {
		// First sight of this symbol: backfill recent history
		fetched, err = w.exchange.Klines(ctx, entry.Symbol, entry.Interval, w.backfill)
	} else {
		// Refetch from the newest stored bar onward. Its stored row may
		// be a partial version; the store replaces it on re-insert.
		fetched, err = w.exchange.KlinesRange(ctx, entry.Symbol, entry.Interval, latest, time.Now())
	}
	if err != nil {
		return 0, err
	}
	if len(fetched) == 0 {
		return 0, nil
	}

	if err := w.bars.InsertBars(ctx, fetched); err != nil {
		return 0, err
	}
	metrics.RecordBarsIngested("rest", entry.Interval, len(fetched))

	newClosed := 0
	for _, b := range fetched {
		if b.IsClosed && b.OpenTime.After(latest) {
			newClosed++
		}
	}
	if newClosed == 0 {
		return 0, nil
	}

	// Fresh closed bars make cached reports stale
	if w.cache != nil {
		if err := w.cache.InvalidateSymbol(ctx, entry.Symbol); err != nil {
			w.Log().Warnw("Cache invalidation failed",
				"symbol", entry.Symbol,
				"error", err)
		}
	}

	if w.publisher != nil {
		err := w.publisher.PublishBarsIngested(ctx, events.BarsIngested{
			Symbol:   entry.Symbol,
			Interval: entry.Interval,
			Count:    newClosed,
			From:     fetched[0].OpenTime,
			To:       fetched[len(fetched)-1].OpenTime,
		})
		if err != nil {
			w.Log().Warnw("Failed to publish bars ingested event",
				"symbol", entry.Symbol,
				"error", err)
		}
	}

	return newClosed, nil
}
