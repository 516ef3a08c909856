package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"delphi/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Binance       BinanceConfig
	Telegram      TelegramConfig
	Engine        EngineConfig
	Alerts        AlertsConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"delphi"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"marketdata"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"delphi"`
}

type BinanceConfig struct {
	// Public kline endpoints work without credentials, keys raise the rate limit
	APIKey            string `envconfig:"BINANCE_API_KEY"`
	Secret            string `envconfig:"BINANCE_SECRET"`
	RequestsPerMinute int    `envconfig:"BINANCE_REQUESTS_PER_MINUTE" default:"1200"`
}

type TelegramConfig struct {
	// Alerts are disabled when the token is empty
	BotToken    string `envconfig:"TELEGRAM_BOT_TOKEN"`
	AlertChatID int64  `envconfig:"TELEGRAM_ALERT_CHAT_ID"`
}

func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.AlertChatID != 0
}

// EngineConfig contains analysis engine defaults shared by the API and workers
type EngineConfig struct {
	DefaultInterval string `envconfig:"ENGINE_DEFAULT_INTERVAL" default:"4h"`
	DefaultLookback int    `envconfig:"ENGINE_DEFAULT_LOOKBACK" default:"300"`
	CacheEnabled    bool   `envconfig:"ENGINE_CACHE_ENABLED" default:"true"`
	MLPhaseEnabled  bool   `envconfig:"ENGINE_ML_PHASE_ENABLED" default:"false"`
	MLPhaseModel    string `envconfig:"ENGINE_ML_PHASE_MODEL" default:"models/phase_classifier.onnx"`
}

// AlertsConfig controls the notification pipeline. The cooldown caps
// how often an unchanged alert for the same symbol gets re-sent.
type AlertsConfig struct {
	Cooldown time.Duration `envconfig:"ALERTS_COOLDOWN" default:"30m"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for all background workers
type WorkerConfig struct {
	// Bar collection (medium frequency, bounded by exchange rate limits)
	BarCollectorInterval time.Duration `envconfig:"WORKER_BAR_COLLECTOR_INTERVAL" default:"1m"`
	BarCollectorBackfill int           `envconfig:"WORKER_BAR_COLLECTOR_BACKFILL" default:"300"`

	// Watchlist scanning (full analysis pass over tracked symbols)
	ScannerInterval       time.Duration `envconfig:"WORKER_SCANNER_INTERVAL" default:"5m"`
	ScannerMaxConcurrency int           `envconfig:"WORKER_SCANNER_MAX_CONCURRENCY" default:"4"`

	// Live kline stream keeps the bar store current between collector runs.
	// The reconcile interval is how often subscriptions are re-checked
	// against the watchlist.
	StreamEnabled           bool          `envconfig:"WORKER_STREAM_ENABLED" default:"true"`
	StreamReconcileInterval time.Duration `envconfig:"WORKER_STREAM_RECONCILE_INTERVAL" default:"30s"`

	HealthPort int `envconfig:"HEALTH_PORT" default:"8080"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
