package bootstrap

import (
	"context"
	"sync"

	binanceclient "delphi/internal/adapters/binance"
	chclient "delphi/internal/adapters/clickhouse"
	"delphi/internal/adapters/config"
	"delphi/internal/adapters/kafka"
	pgclient "delphi/internal/adapters/postgres"
	redisclient "delphi/internal/adapters/redis"
	"delphi/internal/adapters/telegram"
	"delphi/internal/api"
	"delphi/internal/api/health"
	"delphi/internal/consumers"
	"delphi/internal/domain/marketdata"
	"delphi/internal/domain/watchlist"
	"delphi/internal/events"
	redisrepo "delphi/internal/repository/redis"
	"delphi/internal/services/analysis"
	"delphi/internal/workers"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores)
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	// Domain Layer - Repositories
	Repos *Repositories

	// Domain Layer - Services
	Services *Services

	// External Adapters
	Adapters *Adapters

	// Application Layer
	Application *Application

	// Background Processing
	Background *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	// Watchlist lives in Postgres, bars in ClickHouse, alert cooldown
	// state in Redis.
	Watchlist  watchlist.Repository
	Bars       marketdata.Repository
	AlertState *redisrepo.AlertStateRepository
}

// Services groups all domain services. Cache and PhaseModel stay nil
// when their features are disabled in config.
type Services struct {
	Watchlist   *watchlist.Service
	MarketData  *marketdata.Service
	Cache       *analysis.ReportCache
	PreScreener *analysis.PreScreener
	PhaseModel  analysis.PhaseClassifier
	Analysis    *analysis.Service
}

// Adapters groups all external adapters. NotificationsConsumer and
// Notifier stay nil when Telegram is not configured.
type Adapters struct {
	// Kafka
	KafkaProducer         *kafka.Producer
	AlertsConsumer        *kafka.Consumer
	NotificationsConsumer *kafka.Consumer

	// Exchange & notification channels
	Binance  *binanceclient.Client
	Notifier *telegram.Notifier

	// Event publishing
	Publisher *events.Publisher
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// Background groups all background processing components. Stream is
// kept out-of-band for Close and stream health; TelegramSvc stays nil
// when Telegram is not configured.
type Background struct {
	Registry  *workers.Registry
	Scheduler *workers.Scheduler
	Stream    *workers.StreamWorker

	// Event consumers
	AlertsSvc   *consumers.AlertsConsumer
	TelegramSvc *consumers.TelegramConsumer
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Services:    &Services{},
		Adapters:    &Adapters{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitBackground()
	c.MustInitApplication()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	// Start background workers (scanner, collector, stream reconciler)
	if err := c.Background.Scheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}
	c.Log.Infow("✓ Workers started",
		"registered", c.Background.Registry.Count(),
		"enabled", c.Background.Registry.CountEnabled(),
	)

	// Start background consumers
	if err := c.startConsumers(); err != nil {
		return err
	}

	// Start HTTP server
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.sendStartupNotification()

	c.Log.Info("✓ All systems operational")
	return nil
}

// startConsumers starts all Kafka consumers in background goroutines
func (c *Container) startConsumers() error {
	consumerSvcs := []struct {
		name string
		svc  interface{ Start(context.Context) error }
	}{
		{"alerts", c.Background.AlertsSvc},
	}

	if c.Background.TelegramSvc != nil {
		consumerSvcs = append(consumerSvcs, struct {
			name string
			svc  interface{ Start(context.Context) error }
		}{"telegram", c.Background.TelegramSvc})
	}

	names := make([]string, 0, len(consumerSvcs))
	c.WG.Add(len(consumerSvcs))
	for _, consumer := range consumerSvcs {
		svc := consumer.svc
		name := consumer.name
		names = append(names, name)
		go func() {
			defer c.WG.Done()
			if err := svc.Start(c.Context); err != nil && c.Context.Err() == nil {
				c.Log.Errorw("Consumer failed", "consumer", name, "error", err)
			}
		}()
	}

	c.Log.Infow("✓ Event consumers started", "consumers", names)
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all components to stop
	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Background.Scheduler,
		c.Background.Stream,
		map[string]*kafka.Consumer{
			"alerts":        c.Adapters.AlertsConsumer,
			"notifications": c.Adapters.NotificationsConsumer,
		},
		c.Adapters.KafkaProducer,
		c.PG,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
