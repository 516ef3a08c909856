package binance

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"delphi/internal/adapters/config"
	"delphi/internal/adapters/ratelimit"
	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// Binance caps klines at 1000 rows per request
const maxKlinesPerRequest = 1000

// Client fetches historical klines over the Binance REST API
type Client struct {
	api     *binance.Client
	limiter *ratelimit.Limiter
	log     *logger.Logger
}

// NewClient creates a rate-limited Binance REST client.
// Works without credentials for public kline endpoints.
func NewClient(cfg config.BinanceConfig) *Client {
	return &Client{
		api:     binance.NewClient(cfg.APIKey, cfg.Secret),
		limiter: ratelimit.NewLimiter("binance-rest", cfg.RequestsPerMinute),
		log:     logger.Get().With("component", "binance_client"),
	}
}

// Ping checks REST API connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.api.NewPingService().Do(ctx)
}

// Klines fetches the most recent bars for a symbol and interval
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]marketdata.Bar, error) {
	if !marketdata.ValidInterval(interval) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported interval %q", interval)
	}
	if limit <= 0 || limit > maxKlinesPerRequest {
		limit = maxKlinesPerRequest
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	klines, err := c.api.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, c.wrapAPIError(err, symbol)
	}

	return c.toBars(symbol, interval, klines), nil
}

// KlinesRange fetches all bars between start and end, paging through the
// exchange limit. Used by the backfill command.
func (c *Client) KlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]marketdata.Bar, error) {
	if !marketdata.ValidInterval(interval) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported interval %q", interval)
	}
	if !start.Before(end) {
		return nil, errors.Wrap(errors.ErrInvalidInput, "start must precede end")
	}

	var bars []marketdata.Bar
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()

	for cursor < endMs {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := c.api.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(cursor).
			EndTime(endMs).
			Limit(maxKlinesPerRequest).
			Do(ctx)
		if err != nil {
			return nil, c.wrapAPIError(err, symbol)
		}
		if len(klines) == 0 {
			break
		}

		bars = append(bars, c.toBars(symbol, interval, klines)...)

		if len(klines) < maxKlinesPerRequest {
			break
		}
		cursor = klines[len(klines)-1].CloseTime + 1
	}

	c.log.Debugf("Fetched %d %s bars for %s", len(bars), interval, symbol)
	return bars, nil
}

// toBars converts exchange klines into domain bars
func (c *Client) toBars(symbol, interval string, klines []*binance.Kline) []marketdata.Bar {
	now := time.Now()
	bars := make([]marketdata.Bar, 0, len(klines))
	for _, k := range klines {
		closeTime := time.UnixMilli(k.CloseTime)
		bars = append(bars, marketdata.Bar{
			Symbol:      symbol,
			Interval:    interval,
			OpenTime:    time.UnixMilli(k.OpenTime),
			CloseTime:   closeTime,
			Open:        parseFloat(k.Open),
			High:        parseFloat(k.High),
			Low:         parseFloat(k.Low),
			Close:       parseFloat(k.Close),
			Volume:      parseFloat(k.Volume),
			QuoteVolume: parseFloat(k.QuoteAssetVolume),
			Trades:      uint64(k.TradeNum),
			IsClosed:    closeTime.Before(now),
			EventTime:   closeTime,
		})
	}
	return bars
}

// wrapAPIError maps exchange error codes onto domain sentinels
func (c *Client) wrapAPIError(err error, symbol string) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1003, -1015:
			return errors.Wrapf(errors.ErrRateLimitExceeded, "binance: %s", apiErr.Message)
		case -1121:
			return errors.Wrapf(errors.ErrInvalidSymbol, "binance: %q", symbol)
		}
	}
	return errors.Wrapf(errors.ErrDataUnavailable, "binance klines for %s: %v", symbol, err)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
