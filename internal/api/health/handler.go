package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"delphi/internal/workers"
	"delphi/pkg/logger"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// workerStaleAfter is how long an enabled worker may go without a run
// before the health report flags it.
const workerStaleAfter = 30 * time.Minute

// StreamChecker reports whether the live kline stream is connected.
type StreamChecker interface {
	StreamHealthy() bool
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	postgres    *sqlx.DB
	clickhouse  driver.Conn
	redis       *redis.Client
	registry    *workers.Registry
	stream      StreamChecker
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler. The registry and stream are
// optional; nil disables their sections of the report.
func New(
	log *logger.Logger,
	postgres *sqlx.DB,
	clickhouse driver.Conn,
	redis *redis.Client,
	registry *workers.Registry,
	stream StreamChecker,
	serviceName string,
	version string,
) *Handler {
	return &Handler{
		log:         log,
		postgres:    postgres,
		clickhouse:  clickhouse,
		redis:       redis,
		registry:    registry,
		stream:      stream,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
	Workers   map[string]WorkerStatus    `json:"workers,omitempty"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// WorkerStatus summarizes one background worker for the health report
type WorkerStatus struct {
	Enabled     bool   `json:"enabled"`
	IsRunning   bool   `json:"is_running"`
	LastRun     string `json:"last_run,omitempty"`
	RunCount    int64  `json:"run_count"`
	ErrorCount  int64  `json:"error_count"`
	AvgDuration string `json:"avg_duration,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
// Used by Kubernetes liveness probe
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "alive",
	})
}

// HandleReadiness checks if service is ready to accept traffic.
// Used by Kubernetes readiness probe. Only the backing stores gate
// readiness; the kline stream reconnects on its own and background
// worker failures surface through /health and metrics instead.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]ComponentHealth)
	allHealthy := true

	for name, check := range h.storeChecks() {
		result := check(ctx)
		checks[name] = result
		if result.Status != "healthy" {
			allHealthy = false
		}
	}

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if !allHealthy {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", checks)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(status)
}

// HandleHealth returns detailed health status including worker state
// and stream connectivity
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := make(map[string]ComponentHealth)
	healthyStores := 0
	totalStores := 0

	for name, check := range h.storeChecks() {
		totalStores++
		result := check(ctx)
		checks[name] = result
		if result.Status == "healthy" {
			healthyStores++
		}
	}

	degraded := false

	if h.stream != nil {
		streamHealth := h.checkStream()
		checks["kline_stream"] = streamHealth
		if streamHealth.Status != "healthy" {
			degraded = true
		}
	}

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}

	if h.registry != nil {
		status.Workers = h.workerStatuses()
		if stale := h.registry.GetUnhealthyWorkers(workerStaleAfter); len(stale) > 0 {
			degraded = true
			h.log.Warnw("Workers look unhealthy", "workers", stale)
		}
	}

	statusCode := http.StatusOK

	if healthyStores == 0 && totalStores > 0 {
		status.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else if healthyStores < totalStores || degraded {
		status.Status = "degraded"
		statusCode = http.StatusOK // Still return 200 for degraded
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(status)
}

type checkFunc func(context.Context) ComponentHealth

// storeChecks returns the backing store checks for the dependencies
// that were actually wired in.
func (h *Handler) storeChecks() map[string]checkFunc {
	checks := make(map[string]checkFunc)
	if h.postgres != nil {
		checks["postgres"] = h.checkPostgres
	}
	if h.clickhouse != nil {
		checks["clickhouse"] = h.checkClickHouse
	}
	if h.redis != nil {
		checks["redis"] = h.checkRedis
	}
	return checks
}

// checkPostgres verifies PostgreSQL connectivity
func (h *Handler) checkPostgres(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := h.postgres.PingContext(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warnw("Postgres health check failed", "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}

// checkClickHouse verifies ClickHouse connectivity
func (h *Handler) checkClickHouse(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := h.clickhouse.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warnw("ClickHouse health check failed", "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}

// checkRedis verifies Redis connectivity
func (h *Handler) checkRedis(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := h.redis.Ping(ctx).Err()
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warnw("Redis health check failed", "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}

// checkStream reports websocket stream connectivity
func (h *Handler) checkStream() ComponentHealth {
	if h.stream.StreamHealthy() {
		return ComponentHealth{Status: "healthy"}
	}
	return ComponentHealth{
		Status: "unhealthy",
		Error:  "stream disconnected",
	}
}

// workerStatuses converts registry health records into the report shape
func (h *Handler) workerStatuses() map[string]WorkerStatus {
	all := h.registry.GetAllHealth()
	statuses := make(map[string]WorkerStatus, len(all))

	for name, wh := range all {
		ws := WorkerStatus{
			Enabled:    wh.Enabled,
			IsRunning:  wh.IsRunning,
			RunCount:   wh.RunCount,
			ErrorCount: wh.ErrorCount,
		}
		if !wh.LastRun.IsZero() {
			ws.LastRun = wh.LastRun.Format(time.RFC3339)
		}
		if wh.AvgDuration > 0 {
			ws.AvgDuration = wh.AvgDuration.String()
		}
		if wh.LastError != nil {
			ws.LastError = wh.LastError.Error()
		}
		statuses[name] = ws
	}

	return statuses
}
