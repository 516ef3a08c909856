package test

import (
	"context"

	"delphi/internal/domain/watchlist"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// SeedWatchlist loads fixed entries that integration tests rely on
// (idempotent). Tests assume exactly these symbols exist, so keep the
// set stable.
func SeedWatchlist(ctx context.Context, svc *watchlist.Service) error {
	log := logger.Get().With("seed", "test/watchlist")

	entries := []*watchlist.Entry{
		{Symbol: "BTCUSDT", Interval: "4h", Category: "major", Tier: 1, IsActive: true},
		{Symbol: "ETHUSDT", Interval: "1h", Category: "major", Tier: 1, IsActive: true},
		{Symbol: "PAUSEDUSDT", Interval: "4h", Category: "test", Tier: 3, IsActive: true, IsPaused: true},
	}

	created := 0
	for _, entry := range entries {
		err := svc.Create(ctx, entry)
		if errors.Is(err, errors.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "seed %s %s", entry.Symbol, entry.Interval)
		}
		created++
	}

	log.Infow("Test watchlist seeded", "created", created, "total", len(entries))
	return nil
}
