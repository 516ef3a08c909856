package workers

import (
	"context"
	"sort"
	"sync"
	"time"

	"delphi/internal/adapters/binance"
	"delphi/internal/domain/marketdata"
	"delphi/internal/domain/watchlist"
	"delphi/internal/metrics"
	"delphi/pkg/clickhouse"
)

const streamStopTimeout = 5 * time.Second

// StreamWorker keeps a live kline subscription aligned with the
// watchlist. Each pass compares the subscribed (symbol, interval) pairs
// with the active entries and restarts the stream when they diverge or
// the stream goroutine has died. Streamed bars flow through a batch
// writer so forming-candle updates do not become single-row inserts.
type StreamWorker struct {
	*BaseWorker
	watchlist *watchlist.Service
	bars      marketdata.Repository
	writer    *clickhouse.BatchWriter

	// mu guards the stream fields against the readiness endpoint;
	// Run passes themselves never overlap
	mu            sync.Mutex
	writerStarted bool
	stream        *binance.KlineStream
	streamDone    chan struct{}
	subscribed    map[string]struct{}
}

// NewStreamWorker creates the stream reconciler. The interval controls
// how often the subscription set is compared against the watchlist.
func NewStreamWorker(
	watchlistSvc *watchlist.Service,
	bars marketdata.Repository,
	interval time.Duration,
	enabled bool,
) *StreamWorker {
	w := &StreamWorker{
		BaseWorker: NewBaseWorker("kline_stream", interval, enabled),
		watchlist:  watchlistSvc,
		bars:       bars,
	}
	w.writer = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig{
		FlushFunc: w.flushBars,
		TableName: "bars",
	})
	return w
}

// Run reconciles the stream subscription with the active watchlist
func (w *StreamWorker) Run(ctx context.Context) error {
	entries, err := w.watchlist.GetActive(ctx)
	if err != nil {
		return err
	}

	want := make(map[string]struct{}, len(entries))
	symbols := make(map[string]struct{})
	intervals := make(map[string]struct{})
	for _, e := range entries {
		want[streamKey(e.Symbol, e.Interval)] = struct{}{}
		symbols[e.Symbol] = struct{}{}
		intervals[e.Interval] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.writerStarted {
		w.writer.Start(ctx)
		w.writerStarted = true
	}

	if len(want) == 0 {
		if w.stream != nil {
			w.Log().Info("Watchlist is empty, stopping kline stream")
			w.stopStreamLocked()
		}
		return nil
	}

	if w.stream != nil {
		alive := true
		select {
		case <-w.streamDone:
			alive = false
		default:
		}

		if alive && setsEqual(w.subscribed, want) {
			return nil
		}

		reason := "subscriptions changed"
		if !alive {
			reason = "stream exited"
		}
		w.Log().Infow("Restarting kline stream", "reason", reason, "pairs", len(want))
		w.stopStreamLocked()
	}

	w.startStreamLocked(ctx, sortedKeys(symbols), sortedKeys(intervals), want)
	return nil
}

// StreamHealthy reports whether the live stream received messages
// recently. Used by the readiness endpoint.
func (w *StreamWorker) StreamHealthy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stream != nil && w.stream.Healthy()
}

// Close stops the stream and flushes buffered bars. Call after the
// scheduler has stopped so no Run pass can restart the stream.
func (w *StreamWorker) Close(ctx context.Context) error {
	w.mu.Lock()
	w.stopStreamLocked()
	w.mu.Unlock()
	return w.writer.Stop(ctx)
}

// startStreamLocked launches the stream goroutine for the given
// subscription. The stream retries dropped connections itself; the
// goroutine exits only on shutdown or a tripped circuit breaker, and
// the next Run pass picks the exit up through streamDone.
func (w *StreamWorker) startStreamLocked(ctx context.Context, symbols, intervals []string, want map[string]struct{}) {
	stream := binance.NewKlineStream(symbols, intervals, w.barHandler(want))
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
			w.Log().Errorw("Kline stream terminated", "error", err)
		}
	}()

	w.stream = stream
	w.streamDone = done
	w.subscribed = want
	w.Log().Infow("Kline stream started",
		"symbols", len(symbols),
		"intervals", len(intervals),
		"pairs", len(want))
}

func (w *StreamWorker) stopStreamLocked() {
	if w.stream == nil {
		return
	}
	w.stream.Stop()
	select {
	case <-w.streamDone:
	case <-time.After(streamStopTimeout):
		w.Log().Warn("Kline stream did not stop in time")
	}
	w.stream = nil
	w.streamDone = nil
	w.subscribed = nil
}

// barHandler buffers streamed bars for the subscription it was built
// with. The websocket carries the symbol-interval cross product, so
// pairs nobody asked for are dropped here.
func (w *StreamWorker) barHandler(want map[string]struct{}) binance.BarHandler {
	return func(bar marketdata.Bar) {
		if _, ok := want[streamKey(bar.Symbol, bar.Interval)]; !ok {
			return
		}
		if err := w.writer.Add(context.Background(), bar); err != nil {
			w.Log().Warnw("Failed to buffer streamed bar",
				"symbol", bar.Symbol,
				"error", err)
		}
	}
}

// flushBars writes a buffered batch to the bar store
func (w *StreamWorker) flushBars(ctx context.Context, batch []interface{}) error {
	bars := make([]marketdata.Bar, 0, len(batch))
	for _, item := range batch {
		if bar, ok := item.(marketdata.Bar); ok {
			bars = append(bars, bar)
		}
	}
	if len(bars) == 0 {
		return nil
	}

	if err := w.bars.InsertBars(ctx, bars); err != nil {
		metrics.BatchFlushes.WithLabelValues("error").Inc()
		return err
	}
	metrics.BatchFlushes.WithLabelValues("success").Inc()

	counts := make(map[string]int)
	for _, b := range bars {
		counts[b.Interval]++
	}
	for interval, n := range counts {
		metrics.RecordBarsIngested("stream", interval, n)
	}
	return nil
}

func streamKey(symbol, interval string) string {
	return symbol + "|" + interval
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
