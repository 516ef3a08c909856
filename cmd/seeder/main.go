package main

import (
	"context"
	"flag"

	"delphi/internal/adapters/config"
	pgclient "delphi/internal/adapters/postgres"
	"delphi/internal/domain/watchlist"
	pgrepo "delphi/internal/repository/postgres"
	devseeds "delphi/internal/seeds/dev"
	stagingseeds "delphi/internal/seeds/staging"
	testseeds "delphi/internal/seeds/test"
	"delphi/pkg/logger"
)

// seedFunc applies one batch of watchlist entries through the service so
// validation and interval defaults run the same way they do in the app.
type seedFunc func(context.Context, *watchlist.Service) error

func main() {
	// Parse flags
	env := flag.String("env", "dev", "Environment: dev, staging, test")
	dryRun := flag.Bool("dry-run", false, "List seed functions without executing")
	flag.Parse()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	log := logger.Get()

	log.Infow("Starting seeder",
		"environment", *env,
		"dry_run", *dryRun,
		"database", cfg.Postgres.Database,
	)

	// Get seed functions for environment
	seedFuncs := getSeedFunctions(*env)
	if len(seedFuncs) == 0 {
		log.Warnw("No seeds available for environment", "environment", *env)
		return
	}

	log.Infow("Found seed functions", "environment", *env, "count", len(seedFuncs))

	if *dryRun {
		log.Info("✅ Dry-run mode: seed functions validated")
		return
	}

	// Connect to database
	client, err := pgclient.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer client.Close()

	log.Info("Successfully connected to database")

	repo := pgrepo.NewWatchlistRepository(client.DB())
	svc := watchlist.NewService(repo)

	// Execute each seed function in order
	ctx := context.Background()
	for i, seed := range seedFuncs {
		log.Infow("Executing seed", "step", i+1, "total", len(seedFuncs))

		if err := seed(ctx, svc); err != nil {
			log.Errorw("Failed to execute seed",
				"step", i+1,
				"error", err,
			)
			return
		}

		log.Infow("✅ Seed completed", "step", i+1)
	}

	log.Info("✅ All seeds applied successfully")
}

// getSeedFunctions returns seed functions for the given environment
// Order matters - dependencies should be seeded first
func getSeedFunctions(env string) []seedFunc {
	switch env {
	case "dev":
		return []seedFunc{
			devseeds.SeedWatchlist,
		}
	case "staging":
		return []seedFunc{
			stagingseeds.SeedWatchlist,
		}
	case "test":
		return []seedFunc{
			testseeds.SeedWatchlist,
		}
	default:
		return nil
	}
}
