package binance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKlineEvent(t *testing.T) {
	t.Run("final kline frame", func(t *testing.T) {
		frame := []byte(`{
			"e": "kline",
			"E": 1748736001015,
			"s": "BTCUSDT",
			"k": {
				"t": 1748732400000,
				"T": 1748735999999,
				"s": "BTCUSDT",
				"i": "1h",
				"o": "104250.50000000",
				"c": "104890.00000000",
				"h": "105100.00000000",
				"l": "104100.25000000",
				"v": "1523.84100000",
				"n": 48213,
				"x": true,
				"q": "159482301.55000000"
			}
		}`)

		bar, ok := parseKlineEvent(frame)
		require.True(t, ok)

		assert.Equal(t, "BTCUSDT", bar.Symbol)
		assert.Equal(t, "1h", bar.Interval)
		assert.Equal(t, time.UnixMilli(1748732400000), bar.OpenTime)
		assert.Equal(t, time.UnixMilli(1748735999999), bar.CloseTime)
		assert.Equal(t, 104250.5, bar.Open)
		assert.Equal(t, 105100.0, bar.High)
		assert.Equal(t, 104100.25, bar.Low)
		assert.Equal(t, 104890.0, bar.Close)
		assert.Equal(t, 1523.841, bar.Volume)
		assert.Equal(t, 159482301.55, bar.QuoteVolume)
		assert.Equal(t, uint64(48213), bar.Trades)
		assert.True(t, bar.IsClosed)
		assert.Equal(t, time.UnixMilli(1748736001015), bar.EventTime)
	})

	t.Run("forming kline is not closed", func(t *testing.T) {
		frame := []byte(`{"e":"kline","E":1748736030000,"s":"ETHUSDT","k":{"t":1748736000000,"T":1748739599999,"i":"1h","o":"2601.00","c":"2603.10","h":"2604.00","l":"2600.50","v":"12.5","n":830,"x":false,"q":"32530.10"}}`)

		bar, ok := parseKlineEvent(frame)
		require.True(t, ok)
		assert.False(t, bar.IsClosed)
		assert.Equal(t, "ETHUSDT", bar.Symbol)
	})

	t.Run("subscription ack is skipped", func(t *testing.T) {
		_, ok := parseKlineEvent([]byte(`{"result":null,"id":1748736000}`))
		assert.False(t, ok)
	})

	t.Run("other event types are skipped", func(t *testing.T) {
		_, ok := parseKlineEvent([]byte(`{"e":"24hrTicker","s":"BTCUSDT"}`))
		assert.False(t, ok)
	})

	t.Run("malformed frame is skipped", func(t *testing.T) {
		_, ok := parseKlineEvent([]byte(`{"e":"kline",`))
		assert.False(t, ok)
	})
}
