package marketdata

import (
	"context"

	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// Exchange fetches bars straight from the venue REST API.
// Implemented by the Binance adapter.
type Exchange interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]Bar, error)
}

// Service implements Provider over the bar store, with an exchange
// fallback for symbols the collector has not reached yet. Fallback bars
// are written back to the store so the next read stays local.
type Service struct {
	repo     Repository
	exchange Exchange
	log      *logger.Logger
}

var _ Provider = (*Service)(nil)

// NewService constructs a market data service. exchange may be nil, in
// which case an empty store is reported as unavailable data.
func NewService(repo Repository, exchange Exchange) *Service {
	return &Service{
		repo:     repo,
		exchange: exchange,
		log:      logger.Get().With("component", "marketdata_service"),
	}
}

// GetSeries returns the most recent limit bars as a validated series.
// Forming bars at the tail are dropped; the stream writes partial bars
// and analysis only reads settled ones.
func (s *Service) GetSeries(ctx context.Context, symbol, interval string, limit int) (*Series, error) {
	if symbol == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty symbol")
	}
	if !ValidInterval(interval) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown interval %q", interval)
	}
	if limit <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "non-positive limit %d", limit)
	}

	bars, err := s.repo.GetLatestBars(ctx, symbol, interval, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "load bars for %s %s", symbol, interval)
	}

	if len(bars) == 0 && s.exchange != nil {
		s.log.Debugw("Bar store empty, falling back to exchange",
			"symbol", symbol,
			"interval", interval,
		)
		bars, err = s.exchange.Klines(ctx, symbol, interval, limit)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch bars from exchange for %s %s", symbol, interval)
		}
		if len(bars) > 0 {
			if err := s.repo.InsertBars(ctx, bars); err != nil {
				s.log.Warnw("Failed to persist fallback bars",
					"symbol", symbol,
					"interval", interval,
					"error", err,
				)
			}
		}
	}

	for len(bars) > 0 && !bars[len(bars)-1].IsClosed {
		bars = bars[:len(bars)-1]
	}
	if len(bars) == 0 {
		return nil, errors.Wrapf(errors.ErrDataUnavailable, "no closed bars for %s %s", symbol, interval)
	}

	return NewSeries(symbol, interval, bars)
}
