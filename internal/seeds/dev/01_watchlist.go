package dev

import (
	"context"

	"delphi/internal/domain/watchlist"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// SeedWatchlist loads a development watchlist covering every tier and
// a spread of intervals (idempotent)
func SeedWatchlist(ctx context.Context, svc *watchlist.Service) error {
	log := logger.Get().With("seed", "dev/watchlist")

	entries := []*watchlist.Entry{
		{Symbol: "BTCUSDT", Interval: "4h", Category: "major", Tier: 1, IsActive: true},
		{Symbol: "BTCUSDT", Interval: "1d", Category: "major", Tier: 1, IsActive: true},
		{Symbol: "ETHUSDT", Interval: "4h", Category: "major", Tier: 1, IsActive: true},
		{Symbol: "ETHUSDT", Interval: "1d", Category: "major", Tier: 1, IsActive: true},
		{Symbol: "SOLUSDT", Interval: "4h", Category: "layer1", Tier: 2, IsActive: true},
		{Symbol: "BNBUSDT", Interval: "4h", Category: "exchange", Tier: 2, IsActive: true},
		{Symbol: "AVAXUSDT", Interval: "4h", Category: "layer1", Tier: 2, IsActive: true},
		{Symbol: "LINKUSDT", Interval: "1d", Category: "defi", Tier: 2, IsActive: true},
		{Symbol: "DOGEUSDT", Interval: "1d", Category: "meme", Tier: 3, IsActive: true},
	}

	created := 0
	for _, entry := range entries {
		err := svc.Create(ctx, entry)
		if errors.Is(err, errors.ErrAlreadyExists) {
			log.Debugw("Watchlist entry already seeded", "symbol", entry.Symbol, "interval", entry.Interval)
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "seed %s %s", entry.Symbol, entry.Interval)
		}
		created++
	}

	log.Infow("Dev watchlist seeded", "created", created, "total", len(entries))
	return nil
}
