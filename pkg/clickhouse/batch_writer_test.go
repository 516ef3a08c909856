package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type barRow struct {
	Symbol string
	Close  float64
}

func TestBatchWriter_FlushOnMaxSize(t *testing.T) {
	flushed := make([][]interface{}, 0)
	var mu sync.Mutex

	flushFunc := func(ctx context.Context, batch []interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, batch)
		return nil
	}

	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc:    flushFunc,
		TableName:    "bars",
		MaxBatchSize: 3,
		MaxAge:       10 * time.Second, // Long enough to not trigger
	})

	ctx := context.Background()

	// Add 3 bars - should trigger flush
	require.NoError(t, bw.Add(ctx, barRow{"BBCA", 9150}))
	require.NoError(t, bw.Add(ctx, barRow{"BBRI", 4420}))
	require.NoError(t, bw.Add(ctx, barRow{"TLKM", 2980}))

	// Verify flush happened
	mu.Lock()
	assert.Equal(t, 1, len(flushed), "Should have flushed once")
	assert.Equal(t, 3, len(flushed[0]), "Batch should contain 3 bars")
	mu.Unlock()

	// Buffer should be empty after flush
	assert.Equal(t, 0, bw.BufferSize())
}

func TestBatchWriter_FlushOnTimer(t *testing.T) {
	flushed := make([][]interface{}, 0)
	var mu sync.Mutex

	flushFunc := func(ctx context.Context, batch []interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, batch)
		return nil
	}

	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc:    flushFunc,
		TableName:    "bars",
		MaxBatchSize: 100,                    // High enough to not trigger by size
		MaxAge:       100 * time.Millisecond, // Short interval for testing
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background flush loop
	bw.Start(ctx)

	// Add bars (not enough to trigger size flush)
	require.NoError(t, bw.Add(ctx, barRow{"BBCA", 9150}))
	require.NoError(t, bw.Add(ctx, barRow{"BBRI", 4420}))

	// Wait for timer flush
	time.Sleep(200 * time.Millisecond)

	// Verify flush happened
	mu.Lock()
	assert.GreaterOrEqual(t, len(flushed), 1, "Should have flushed at least once")
	if len(flushed) > 0 {
		assert.Equal(t, 2, len(flushed[0]), "Batch should contain 2 bars")
	}
	mu.Unlock()

	// Stop gracefully
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))
}

func TestBatchWriter_GracefulStop(t *testing.T) {
	flushed := make([][]interface{}, 0)
	var mu sync.Mutex

	flushFunc := func(ctx context.Context, batch []interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, batch)
		return nil
	}

	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc:    flushFunc,
		TableName:    "bars",
		MaxBatchSize: 100,
		MaxAge:       10 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bw.Start(ctx)

	// Add bars
	require.NoError(t, bw.Add(ctx, barRow{"BBCA", 9150}))
	require.NoError(t, bw.Add(ctx, barRow{"BBRI", 4420}))
	require.NoError(t, bw.Add(ctx, barRow{"TLKM", 2980}))

	// Stop should flush remaining bars
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))

	// Verify final flush happened
	mu.Lock()
	assert.GreaterOrEqual(t, len(flushed), 1, "Should have flushed on stop")
	totalItems := 0
	for _, batch := range flushed {
		totalItems += len(batch)
	}
	assert.Equal(t, 3, totalItems, "All bars should be flushed")
	mu.Unlock()
}

func TestBatchWriter_ConcurrentAdds(t *testing.T) {
	flushed := make([][]interface{}, 0)
	var mu sync.Mutex

	flushFunc := func(ctx context.Context, batch []interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, batch)
		return nil
	}

	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc:    flushFunc,
		TableName:    "bars",
		MaxBatchSize: 10,
		MaxAge:       1 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bw.Start(ctx)

	// Add bars concurrently, as the stream worker does per symbol
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_ = bw.Add(ctx, barRow{Symbol: "BBCA", Close: float64(9000 + idx)})
		}(i)
	}

	wg.Wait()

	// Stop and verify all bars were flushed
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, bw.Stop(stopCtx))

	// Count total flushed bars
	mu.Lock()
	totalItems := 0
	for _, batch := range flushed {
		totalItems += len(batch)
	}
	mu.Unlock()

	assert.Equal(t, 50, totalItems, "All 50 bars should be flushed")
}

func TestBatchWriter_FlushErrorSurfaced(t *testing.T) {
	flushErr := assert.AnError

	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc: func(ctx context.Context, batch []interface{}) error {
			return flushErr
		},
		TableName:    "bars",
		MaxBatchSize: 1,
		MaxAge:       10 * time.Second,
	})

	err := bw.Add(context.Background(), barRow{"BBCA", 9150})
	require.ErrorIs(t, err, flushErr)

	// Failed batch is dropped, not retried
	assert.Equal(t, 0, bw.BufferSize())
}
