package bootstrap

import (
	"context"
	"time"

	binanceclient "delphi/internal/adapters/binance"
	chclient "delphi/internal/adapters/clickhouse"
	"delphi/internal/adapters/config"
	errnoop "delphi/internal/adapters/errors/noop"
	"delphi/internal/adapters/errors/sentry"
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
	"delphi/internal/metrics"
	mlphase "delphi/internal/ml/phase"
	chrepo "delphi/internal/repository/clickhouse"
	pgrepo "delphi/internal/repository/postgres"
	redisrepo "delphi/internal/repository/redis"
	"delphi/internal/services/analysis"
	"delphi/internal/workers"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
	"delphi/pkg/templates"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure initializes data stores (Postgres, ClickHouse, Redis)
func (c *Container) MustInitInfrastructure() {
	var err error

	// PostgreSQL
	c.Log.Info("Connecting to PostgreSQL...")
	c.PG, err = pgclient.NewClient(c.Config.Postgres)
	if err != nil {
		c.Log.Fatalf("failed to connect postgres: %v", err)
	}
	c.Log.Info("✓ PostgreSQL connected")

	// ClickHouse
	c.Log.Info("Connecting to ClickHouse...")
	c.CH, err = chclient.NewClient(c.Config.ClickHouse)
	if err != nil {
		c.Log.Fatalf("failed to connect clickhouse: %v", err)
	}
	c.Log.Info("✓ ClickHouse connected")

	// Redis
	c.Log.Info("Connecting to Redis...")
	c.Redis, err = redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Log.Info("✓ Redis connected")
}

// ========================================
// Phase 3: Domain Layer - Repositories
// ========================================

// MustInitRepositories initializes all domain repositories
func (c *Container) MustInitRepositories() {
	c.Repos.Watchlist = pgrepo.NewWatchlistRepository(c.PG.DB())
	c.Repos.Bars = chrepo.NewBarsRepository(c.CH.Conn())
	c.Repos.AlertState = redisrepo.NewAlertStateRepository(c.Redis.Client())

	c.Log.Info("✓ Repositories initialized")
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes external adapters (Kafka, Binance, Telegram)
func (c *Container) MustInitAdapters() {
	// Kafka
	c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
	c.Adapters.AlertsConsumer = provideKafkaConsumer(c.Config, kafka.TopicSignalAlert, c.Log)

	// Binance REST client (public kline endpoints)
	c.Adapters.Binance = binanceclient.NewClient(c.Config.Binance)
	c.Log.Info("✓ Binance client initialized")

	// Event publisher
	c.Adapters.Publisher = events.NewPublisher(c.Adapters.KafkaProducer, c.Config.App.Name)

	// Telegram delivery channel
	if c.Config.Telegram.Enabled() {
		notifier, err := telegram.NewNotifier(c.Config.Telegram)
		if err != nil {
			c.Log.Fatalf("failed to initialize telegram notifier: %v", err)
		}
		c.Adapters.Notifier = notifier
		c.Adapters.NotificationsConsumer = provideKafkaConsumer(c.Config, kafka.TopicNotifications, c.Log)
		c.Log.Info("✓ Telegram notifier initialized")
	} else {
		c.Log.Info("Telegram not configured, alerts stay on Kafka only")
	}
}

// ========================================
// Phase 5: Domain Services
// ========================================

// MustInitServices initializes domain services
func (c *Container) MustInitServices() {
	c.Services.Watchlist = watchlist.NewService(c.Repos.Watchlist)

	// Series provider: bar store first, exchange fallback for cold symbols
	c.Services.MarketData = marketdata.NewService(c.Repos.Bars, c.Adapters.Binance)

	if c.Config.Engine.CacheEnabled {
		c.Services.Cache = analysis.NewReportCache(analysis.DefaultCacheConfig(), c.Redis)
		c.Log.Info("✓ Report cache enabled")
	}

	c.Services.PreScreener = analysis.NewPreScreener(analysis.DefaultPreScreenConfig(), c.Repos.Bars)

	if c.Config.Engine.MLPhaseEnabled {
		model, err := mlphase.NewClassifier(c.Config.Engine.MLPhaseModel)
		if err != nil {
			// The rule-based classifier covers phase detection on its own
			c.Log.Warnf("Phase model unavailable, falling back to rules: %v", err)
		} else {
			c.Services.PhaseModel = model
			c.Log.Infow("✓ Phase model loaded", "path", c.Config.Engine.MLPhaseModel)
		}
	}

	params := analysis.DefaultParams()
	if c.Config.Engine.DefaultLookback > 0 {
		params.Lookback = c.Config.Engine.DefaultLookback
	}
	c.Services.Analysis = analysis.NewService(
		c.Services.MarketData,
		c.Services.Cache,
		c.Services.PhaseModel,
		params,
	)

	c.Log.Info("✓ Services initialized")
}

// ========================================
// Phase 6: Background Processing
// ========================================

// MustInitBackground initializes background workers and consumers
func (c *Container) MustInitBackground() {
	c.Background.Registry = workers.NewRegistry()
	c.Background.Scheduler = workers.NewScheduler()

	scanner := workers.NewScannerWorker(
		c.Services.Watchlist,
		c.Services.Analysis,
		c.Services.PreScreener,
		c.Adapters.Publisher,
		c.Config.Workers.ScannerInterval,
		c.Config.Workers.ScannerMaxConcurrency,
		true,
	)

	collector := workers.NewBarCollectorWorker(
		c.Services.Watchlist,
		c.Repos.Bars,
		c.Adapters.Binance,
		c.Services.Cache,
		c.Adapters.Publisher,
		c.Config.Workers.BarCollectorInterval,
		c.Config.Workers.BarCollectorBackfill,
		true,
	)

	c.Background.Stream = workers.NewStreamWorker(
		c.Services.Watchlist,
		c.Repos.Bars,
		c.Config.Workers.StreamReconcileInterval,
		c.Config.Workers.StreamEnabled,
	)

	for _, w := range []workers.WorkerWithHealth{scanner, collector, c.Background.Stream} {
		if err := c.Background.Registry.Register(w); err != nil {
			c.Log.Fatalf("failed to register worker %s: %v", w.Name(), err)
		}
		c.Background.Scheduler.RegisterWorker(w)
	}

	// Alert pipeline: signal alerts in, throttled notifications out
	c.Background.AlertsSvc = consumers.NewAlertsConsumer(
		c.Adapters.AlertsConsumer,
		c.Repos.AlertState,
		c.Adapters.Publisher,
		templates.Get(),
		c.Config.Alerts.Cooldown,
	)

	if c.Adapters.Notifier != nil {
		c.Background.TelegramSvc = consumers.NewTelegramConsumer(
			c.Adapters.NotificationsConsumer,
			c.Adapters.Notifier,
		)
	}

	c.Log.Info("✓ Background processing initialized")
}

// ========================================
// Phase 7: Application Layer
// ========================================

// MustInitApplication initializes application layer (HTTP, metrics)
func (c *Container) MustInitApplication() {
	// The stream check only makes sense when the stream worker is on
	var stream health.StreamChecker
	if c.Config.Workers.StreamEnabled {
		stream = c.Background.Stream
	}

	c.Application.HealthHandler = health.New(
		c.Log,
		c.PG.DB(),
		c.CH.Conn(),
		c.Redis.Client(),
		c.Background.Registry,
		stream,
		c.Config.App.Name,
		c.Config.App.Version,
	)

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:        c.Config.Workers.HealthPort,
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
	}, c.Application.HealthHandler, c.Log)

	// Initialize metrics
	metrics.Init()
	customCollector := metrics.NewCustomCollector(c.Log, c.PG.DB(), c.CH.Conn(), c.Redis.Client())
	metrics.RegisterCustomCollector(customCollector)
	c.Log.Info("✓ Metrics initialized")

	c.Log.Info("✓ Application layer initialized")
}

// ========================================
// Helper Provider Functions
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	log.Info("Initializing Kafka producer...")
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("Kafka brokers not configured, using default localhost:9092")
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Async:   false,
	})
	log.Info("✓ Kafka producer initialized")
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	})
	log.Infow("✓ Kafka consumer initialized", "topic", topic)
	return consumer
}

// sendStartupNotification announces the service coming online. Failures
// are logged and ignored; alerting must not block startup.
func (c *Container) sendStartupNotification() {
	if c.Adapters.Notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	symbols := 0
	if entries, err := c.Services.Watchlist.GetActive(ctx); err == nil {
		symbols = len(entries)
	}

	text, err := templates.Get().Render("alerts/startup", map[string]interface{}{
		"App":          c.Config.App.Name,
		"Env":          c.Config.App.Env,
		"Symbols":      symbols,
		"ScanInterval": c.Config.Workers.ScannerInterval,
	})
	if err != nil {
		c.Log.Warnw("Startup notification render failed", "error", err)
		return
	}

	if err := c.Adapters.Notifier.Send(ctx, text); err != nil {
		c.Log.Warnw("Startup notification send failed", "error", err)
	}
}
