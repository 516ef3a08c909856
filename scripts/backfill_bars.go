package main

// Backfills historical OHLCV bars from Binance into ClickHouse so the
// engine has enough depth for indicators and phase classification on
// freshly added symbols.
//
// Usage:
//   go run scripts/backfill_bars.go --symbols BTCUSDT,ETHUSDT --interval 4h --start 2024-01-01
//   go run scripts/backfill_bars.go --watchlist --start 2024-01-01
//
// With --watchlist the symbol/interval pairs come from the active
// watchlist in Postgres instead of the --symbols flag.

import (
	"context"
	"flag"
	"strings"
	"time"

	"delphi/internal/adapters/config"

	binanceclient "delphi/internal/adapters/binance"
	chclient "delphi/internal/adapters/clickhouse"
	pgclient "delphi/internal/adapters/postgres"
	"delphi/internal/domain/marketdata"
	chrepo "delphi/internal/repository/clickhouse"
	pgrepo "delphi/internal/repository/postgres"
	"delphi/pkg/logger"
)

type backfillTarget struct {
	Symbol   string
	Interval string
}

func main() {
	symbols := flag.String("symbols", "", "Comma-separated symbols to backfill (e.g. BTCUSDT,ETHUSDT)")
	interval := flag.String("interval", marketdata.Interval4h, "Bar interval (1m, 5m, 15m, 1h, 4h, 1d)")
	fromWatchlist := flag.Bool("watchlist", false, "Backfill every active watchlist entry instead of --symbols")
	startDate := flag.String("start", "", "Start date (YYYY-MM-DD), required")
	endDate := flag.String("end", "", "End date (YYYY-MM-DD), defaults to now")
	batchSize := flag.Int("batch", 1000, "Bars per ClickHouse insert")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	start, end, err := parseRange(*startDate, *endDate)
	if err != nil {
		log.Fatalf("Invalid date range: %v", err)
	}

	targets, err := resolveTargets(cfg, *symbols, *interval, *fromWatchlist)
	if err != nil {
		log.Fatalf("Failed to resolve symbols: %v", err)
	}
	if len(targets) == 0 {
		log.Warn("Nothing to backfill")
		return
	}

	ch, err := chclient.NewClient(cfg.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer ch.Close()

	exchange := binanceclient.NewClient(cfg.Binance)
	bars := chrepo.NewBarsRepository(ch.Conn())

	log.Infow("Starting backfill",
		"targets", len(targets),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)

	ctx := context.Background()
	var total int
	for _, t := range targets {
		n, err := backfillOne(ctx, exchange, bars, t, start, end, *batchSize)
		if err != nil {
			log.Errorw("Backfill failed",
				"symbol", t.Symbol,
				"interval", t.Interval,
				"error", err,
			)
			continue
		}
		total += n
		log.Infow("✅ Symbol backfilled",
			"symbol", t.Symbol,
			"interval", t.Interval,
			"bars", n,
		)
	}

	log.Infow("✅ Backfill complete", "targets", len(targets), "bars", total)
}

// backfillOne fetches the full range for one symbol and writes it in batches
// so a long range does not hold thousands of bars in a single insert.
func backfillOne(ctx context.Context, exchange *binanceclient.Client, repo *chrepo.BarsRepository, t backfillTarget, start, end time.Time, batchSize int) (int, error) {
	fetched, err := exchange.KlinesRange(ctx, t.Symbol, t.Interval, start, end)
	if err != nil {
		return 0, err
	}

	for i := 0; i < len(fetched); i += batchSize {
		j := i + batchSize
		if j > len(fetched) {
			j = len(fetched)
		}
		if err := repo.InsertBars(ctx, fetched[i:j]); err != nil {
			return i, err
		}
	}
	return len(fetched), nil
}

func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	if startDate == "" {
		return time.Time{}, time.Time{}, flagError("--start is required (YYYY-MM-DD)")
	}
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	end := time.Now().UTC()
	if endDate != "" {
		end, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, flagError("start must precede end")
	}
	return start, end, nil
}

// resolveTargets builds the symbol/interval list from flags or the watchlist
func resolveTargets(cfg *config.Config, symbols, interval string, fromWatchlist bool) ([]backfillTarget, error) {
	if fromWatchlist {
		pg, err := pgclient.NewClient(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		defer pg.Close()

		entries, err := pgrepo.NewWatchlistRepository(pg.DB()).GetActive(context.Background())
		if err != nil {
			return nil, err
		}

		targets := make([]backfillTarget, 0, len(entries))
		for _, e := range entries {
			targets = append(targets, backfillTarget{Symbol: e.Symbol, Interval: e.Interval})
		}
		return targets, nil
	}

	if !marketdata.ValidInterval(interval) {
		return nil, flagError("unsupported interval " + interval)
	}

	var targets []backfillTarget
	for _, s := range strings.Split(symbols, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		targets = append(targets, backfillTarget{Symbol: s, Interval: interval})
	}
	return targets, nil
}

type flagError string

func (e flagError) Error() string { return string(e) }
