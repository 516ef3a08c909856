package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delphi_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "delphi_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Scan metrics
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_scans_total",
			Help: "Total number of symbol scans",
		},
		[]string{"interval", "status"}, // status: success|error|skipped
	)

	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delphi_scan_duration_seconds",
			Help:    "Full analysis duration per symbol in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"interval"},
	)

	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_signals_emitted_total",
			Help: "Total number of signal events published",
		},
		[]string{"kind"}, // kind: breakout|divergence|phase_change|crossover|alert
	)

	// Exchange metrics
	ExchangeAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_exchange_api_calls_total",
			Help: "Total number of exchange API calls",
		},
		[]string{"endpoint", "status"}, // status: success|error|rate_limited
	)

	ExchangeAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delphi_exchange_api_latency_seconds",
			Help:    "Exchange API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Ingestion metrics
	BarsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_bars_ingested_total",
			Help: "Total number of bars written to ClickHouse",
		},
		[]string{"source", "interval"}, // source: rest|stream
	)

	BatchFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_batch_flushes_total",
			Help: "Total number of batch writer flushes",
		},
		[]string{"status"},
	)

	// Cache metrics
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_cache_requests_total",
			Help: "Total analysis cache lookups",
		},
		[]string{"status"}, // status: hit|miss
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delphi_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)

	StreamConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "delphi_stream_connected",
			Help: "Whether the kline WebSocket stream is connected (0/1)",
		},
	)

	StreamReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_stream_reconnects_total",
			Help: "Total number of WebSocket stream reconnect attempts",
		},
		[]string{"status"}, // status: success|failed
	)

	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delphi_notifications_sent_total",
			Help: "Total number of Telegram notifications sent",
		},
		[]string{"status"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	// Worker metrics
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	// Scan metrics
	prometheus.MustRegister(ScansTotal)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(SignalsEmitted)

	// Exchange metrics
	prometheus.MustRegister(ExchangeAPICalls)
	prometheus.MustRegister(ExchangeAPILatency)

	// Ingestion metrics
	prometheus.MustRegister(BarsIngested)
	prometheus.MustRegister(BatchFlushes)

	// Cache metrics
	prometheus.MustRegister(CacheRequests)

	// Database metrics
	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(DBQueryDuration)

	// System metrics
	prometheus.MustRegister(KafkaMessages)
	prometheus.MustRegister(StreamConnected)
	prometheus.MustRegister(StreamReconnects)
	prometheus.MustRegister(NotificationsSent)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordScan records a completed symbol scan
func RecordScan(interval string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ScansTotal.WithLabelValues(interval, status).Inc()
	ScanDuration.WithLabelValues(interval).Observe(duration.Seconds())
}

// RecordSignal records a published signal event
func RecordSignal(kind string) {
	SignalsEmitted.WithLabelValues(kind).Inc()
}

// RecordExchangeAPICall records an exchange API call
func RecordExchangeAPICall(endpoint string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ExchangeAPICalls.WithLabelValues(endpoint, status).Inc()
	ExchangeAPILatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordBarsIngested records bars written to storage
func RecordBarsIngested(source, interval string, count int) {
	BarsIngested.WithLabelValues(source, interval).Add(float64(count))
}

// RecordCacheLookup records an analysis cache hit or miss
func RecordCacheLookup(hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	CacheRequests.WithLabelValues(status).Inc()
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	DBQueries.WithLabelValues(database, operation, status).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordKafkaMessage records a produced or consumed Kafka message
func RecordKafkaMessage(topic, direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, direction, status).Inc()
}

// RecordNotification records a Telegram delivery attempt
func RecordNotification(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	NotificationsSent.WithLabelValues(status).Inc()
}
