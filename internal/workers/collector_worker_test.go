package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delphi/internal/domain/marketdata"
	"delphi/internal/domain/watchlist"
	"delphi/pkg/errors"
)

type fakeWatchlistRepo struct {
	entries []*watchlist.Entry
}

func (f *fakeWatchlistRepo) Create(ctx context.Context, entry *watchlist.Entry) error { return nil }

func (f *fakeWatchlistRepo) GetByID(ctx context.Context, id uuid.UUID) (*watchlist.Entry, error) {
	return nil, errors.ErrNotFound
}

func (f *fakeWatchlistRepo) GetBySymbol(ctx context.Context, symbol, interval string) (*watchlist.Entry, error) {
	return nil, errors.ErrNotFound
}

func (f *fakeWatchlistRepo) GetActive(ctx context.Context) ([]*watchlist.Entry, error) {
	return f.entries, nil
}

func (f *fakeWatchlistRepo) GetAll(ctx context.Context) ([]*watchlist.Entry, error) {
	return f.entries, nil
}

func (f *fakeWatchlistRepo) Update(ctx context.Context, entry *watchlist.Entry) error { return nil }
func (f *fakeWatchlistRepo) Delete(ctx context.Context, id uuid.UUID) error           { return nil }
func (f *fakeWatchlistRepo) MarkScanned(ctx context.Context, id uuid.UUID) error      { return nil }

type fakeBarStore struct {
	mu        sync.Mutex
	latest    time.Time
	insertErr error
	inserted  [][]marketdata.Bar
}

func (f *fakeBarStore) InsertBars(ctx context.Context, bars []marketdata.Bar) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	f.inserted = append(f.inserted, bars)
	f.mu.Unlock()
	return nil
}

func (f *fakeBarStore) GetBars(ctx context.Context, query marketdata.Query) ([]marketdata.Bar, error) {
	return nil, nil
}

func (f *fakeBarStore) GetLatestBars(ctx context.Context, symbol, interval string, limit int) ([]marketdata.Bar, error) {
	return nil, nil
}

func (f *fakeBarStore) GetLatestOpenTime(ctx context.Context, symbol, interval string) (time.Time, error) {
	return f.latest, nil
}

func (f *fakeBarStore) insertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

type fakeKlineSource struct {
	klineBars  []marketdata.Bar
	rangeBars  []marketdata.Bar
	failSymbol string

	klinesCalls int
	rangeCalls  int
	lastLimit   int
	lastStart   time.Time
}

func (f *fakeKlineSource) Klines(ctx context.Context, symbol, interval string, limit int) ([]marketdata.Bar, error) {
	if symbol == f.failSymbol {
		return nil, errors.ErrUnavailable
	}
	f.klinesCalls++
	f.lastLimit = limit
	return f.klineBars, nil
}

func (f *fakeKlineSource) KlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]marketdata.Bar, error) {
	if symbol == f.failSymbol {
		return nil, errors.ErrUnavailable
	}
	f.rangeCalls++
	f.lastStart = start
	return f.rangeBars, nil
}

func testBar(symbol, interval string, openTime time.Time, closed bool) marketdata.Bar {
	return marketdata.Bar{
		Symbol:    symbol,
		Interval:  interval,
		OpenTime:  openTime,
		CloseTime: openTime.Add(4 * time.Hour),
		Open:      100,
		High:      105,
		Low:       95,
		Close:     102,
		Volume:    1000,
		IsClosed:  closed,
		EventTime: openTime.Add(4 * time.Hour),
	}
}

func testEntry(symbol string) *watchlist.Entry {
	return &watchlist.Entry{
		ID:       uuid.New(),
		Symbol:   symbol,
		Interval: "4h",
		IsActive: true,
	}
}

func TestBarCollector_BackfillOnFirstSight(t *testing.T) {
	openTime := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeBarStore{}
	source := &fakeKlineSource{
		klineBars: []marketdata.Bar{
			testBar("BTCUSDT", "4h", openTime, true),
			testBar("BTCUSDT", "4h", openTime.Add(4*time.Hour), true),
			testBar("BTCUSDT", "4h", openTime.Add(8*time.Hour), false),
		},
	}
	svc := watchlist.NewService(&fakeWatchlistRepo{entries: []*watchlist.Entry{testEntry("BTCUSDT")}})

	w := NewBarCollectorWorker(svc, store, source, nil, nil, time.Minute, 250, true)
	require.NoError(t, w.Run(context.Background()))

	// Unknown symbol goes through the backfill path
	assert.Equal(t, 1, source.klinesCalls)
	assert.Equal(t, 250, source.lastLimit)
	assert.Zero(t, source.rangeCalls)

	require.Equal(t, 1, store.insertCount())
	assert.Len(t, store.inserted[0], 3)
}

func TestBarCollector_IncrementalFetch(t *testing.T) {
	latest := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	store := &fakeBarStore{latest: latest}
	source := &fakeKlineSource{
		rangeBars: []marketdata.Bar{
			testBar("BTCUSDT", "4h", latest, true),                   // refetched version of the stored bar
			testBar("BTCUSDT", "4h", latest.Add(4*time.Hour), true),  // new closed bar
			testBar("BTCUSDT", "4h", latest.Add(8*time.Hour), false), // forming candle
		},
	}
	svc := watchlist.NewService(&fakeWatchlistRepo{})

	w := NewBarCollectorWorker(svc, store, source, nil, nil, time.Minute, 250, true)
	count, err := w.collectEntry(context.Background(), testEntry("BTCUSDT"))
	require.NoError(t, err)

	assert.Equal(t, 1, source.rangeCalls)
	assert.Equal(t, latest, source.lastStart, "fetch must start at the newest stored bar")
	assert.Zero(t, source.klinesCalls)

	// All three fetched bars are stored, only the new closed one counts
	require.Equal(t, 1, store.insertCount())
	assert.Len(t, store.inserted[0], 3)
	assert.Equal(t, 1, count)
}

func TestBarCollector_NoNewBars(t *testing.T) {
	latest := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	store := &fakeBarStore{latest: latest}
	source := &fakeKlineSource{}
	svc := watchlist.NewService(&fakeWatchlistRepo{})

	w := NewBarCollectorWorker(svc, store, source, nil, nil, time.Minute, 250, true)
	count, err := w.collectEntry(context.Background(), testEntry("BTCUSDT"))
	require.NoError(t, err)

	assert.Zero(t, count)
	assert.Zero(t, store.insertCount())
}

func TestBarCollector_EmptyWatchlist(t *testing.T) {
	store := &fakeBarStore{}
	source := &fakeKlineSource{}
	svc := watchlist.NewService(&fakeWatchlistRepo{})

	w := NewBarCollectorWorker(svc, store, source, nil, nil, time.Minute, 250, true)
	require.NoError(t, w.Run(context.Background()))

	assert.Zero(t, source.klinesCalls)
	assert.Zero(t, source.rangeCalls)
}

func TestBarCollector_SymbolFailureDoesNotStopPass(t *testing.T) {
	openTime := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeBarStore{}
	source := &fakeKlineSource{
		failSymbol: "BADUSDT",
		klineBars:  []marketdata.Bar{testBar("ETHUSDT", "4h", openTime, true)},
	}
	svc := watchlist.NewService(&fakeWatchlistRepo{entries: []*watchlist.Entry{
		testEntry("BADUSDT"),
		testEntry("ETHUSDT"),
	}})

	w := NewBarCollectorWorker(svc, store, source, nil, nil, time.Minute, 250, true)
	require.NoError(t, w.Run(context.Background()))

	// The healthy symbol is still collected
	assert.Equal(t, 1, store.insertCount())
}
