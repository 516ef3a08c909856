package staging

import (
	"context"

	"delphi/internal/domain/watchlist"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// SeedWatchlist loads the minimal staging watchlist (idempotent).
// Staging mirrors production topology with a small symbol set.
func SeedWatchlist(ctx context.Context, svc *watchlist.Service) error {
	log := logger.Get().With("seed", "staging/watchlist")

	entries := []*watchlist.Entry{
		{Symbol: "BTCUSDT", Interval: "4h", Category: "major", Tier: 1, IsActive: true},
		{Symbol: "ETHUSDT", Interval: "4h", Category: "major", Tier: 1, IsActive: true},
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

	log.Infow("Staging watchlist seeded", "created", created, "total", len(entries))
	return nil
}
