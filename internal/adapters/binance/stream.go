package binance

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"delphi/internal/domain/marketdata"
	"delphi/internal/metrics"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
	"delphi/pkg/reconnect"
)

const (
	streamBaseURL = "wss://stream.binance.com:9443/ws"
	pingInterval  = 3 * time.Minute
	readTimeout   = 10 * time.Second
	writeTimeout  = 5 * time.Second
)

// BarHandler receives every kline update. Bars with IsClosed set are
// final; the rest are snapshots of the forming candle.
type BarHandler func(bar marketdata.Bar)

// KlineStream maintains a multiplexed kline subscription over a single
// websocket connection and converts events into domain bars. Dropped
// connections are re-established through the reconnect manager.
type KlineStream struct {
	symbols   []string
	intervals []string
	handler   BarHandler

	mu       sync.Mutex
	conn     *websocket.Conn
	stopping atomic.Bool

	manager *reconnect.Manager
	log     *logger.Logger
}

// NewKlineStream creates a stream for the given symbols and intervals
func NewKlineStream(symbols, intervals []string, handler BarHandler) *KlineStream {
	log := logger.Get().With("component", "binance_stream")
	return &KlineStream{
		symbols:   symbols,
		intervals: intervals,
		handler:   handler,
		manager:   reconnect.NewManager(reconnect.Config{}, log),
		log:       log,
	}
}

// Run connects and consumes kline events until the context is cancelled.
// Connection drops trigger exponential-backoff reconnects; the error
// returned is the context error or a tripped circuit breaker.
func (s *KlineStream) Run(ctx context.Context) error {
	if len(s.symbols) == 0 || len(s.intervals) == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "kline stream needs symbols and intervals")
	}

	// First connect without backoff delay
	if err := s.connect(ctx); err != nil {
		s.log.Errorf("Initial connect failed: %v", err)
		s.manager.RecordFailure()
		metrics.StreamReconnects.WithLabelValues("failed").Inc()
	} else {
		s.manager.RecordSuccess()
		s.readLoop(ctx)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.stopping.Load() {
			return nil
		}

		if err := s.manager.ReconnectWithBackoff(ctx, s.connect); err != nil {
			metrics.StreamReconnects.WithLabelValues("failed").Inc()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !s.manager.ShouldRetry() {
				s.log.Errorf("Giving up on kline stream: %v", err)
				return err
			}
			continue
		}
		metrics.StreamReconnects.WithLabelValues("success").Inc()

		s.readLoop(ctx)
	}
}

// Healthy reports whether the stream received messages recently
func (s *KlineStream) Healthy() bool {
	return s.manager.IsHealthy()
}

// Stats exposes reconnect statistics for the health endpoint
func (s *KlineStream) Stats() reconnect.Stats {
	return s.manager.GetStats()
}

// Stop closes the connection and prevents further reconnects
func (s *KlineStream) Stop() {
	s.stopping.Store(true)
	s.closeConn()
}

// connect dials the endpoint and subscribes to all kline streams
func (s *KlineStream) connect(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, streamBaseURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to dial kline stream")
	}

	params := make([]string, 0, len(s.symbols)*len(s.intervals))
	for _, sym := range s.symbols {
		for _, iv := range s.intervals {
			params = append(params, strings.ToLower(sym)+"@kline_"+iv)
		}
	}

	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     time.Now().Unix(),
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteJSON(msg); err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to subscribe to kline streams")
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.log.Infof("Subscribed to %d kline streams", len(params))
	return nil
}

// readLoop consumes messages until the connection dies or ctx is cancelled
func (s *KlineStream) readLoop(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	metrics.StreamConnected.Set(1)
	defer metrics.StreamConnected.Set(0)

	// Keepalive pings on a per-connection goroutine
	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.pingLoop(conn, pingDone)

	lastHealthCheck := time.Now()

	for {
		select {
		case <-ctx.Done():
			s.closeConn()
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			s.log.Errorf("Failed to set read deadline: %v", err)
			s.closeConn()
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("Kline stream closed normally")
				s.closeConn()
				return
			}

			// Read deadline expired: use the idle window for health checks
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				if time.Since(lastHealthCheck) >= s.manager.HealthCheckInterval() {
					lastHealthCheck = time.Now()
					if !s.manager.IsHealthy() {
						s.log.Warn("Heartbeat timeout, forcing reconnect")
						s.closeConn()
						return
					}
				}
				continue
			}

			if !s.stopping.Load() {
				s.log.Errorf("Kline stream read error: %v", err)
			}
			s.closeConn()
			return
		}

		s.manager.RecordMessageReceived()

		bar, ok := parseKlineEvent(message)
		if !ok {
			continue
		}
		if s.stopping.Load() {
			return
		}
		if s.handler != nil {
			s.handler(bar)
		}
	}
}

// pingLoop keeps the connection alive until the read loop exits
func (s *KlineStream) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.log.Warnf("Ping failed: %v", err)
				return
			}
		}
	}
}

func (s *KlineStream) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return
	}

	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.conn.Close()
	s.conn = nil
}

// wsKlineEvent mirrors the exchange kline payload
type wsKlineEvent struct {
	Event  string `json:"e"`
	Time   int64  `json:"E"`
	Symbol string `json:"s"`
	Kline  struct {
		StartTime   int64  `json:"t"`
		EndTime     int64  `json:"T"`
		Interval    string `json:"i"`
		Open        string `json:"o"`
		Close       string `json:"c"`
		High        string `json:"h"`
		Low         string `json:"l"`
		Volume      string `json:"v"`
		TradeNum    int64  `json:"n"`
		IsFinal     bool   `json:"x"`
		QuoteVolume string `json:"q"`
	} `json:"k"`
}

// parseKlineEvent converts a raw stream message into a domain bar.
// Returns false for non-kline frames such as subscription acks.
func parseKlineEvent(data []byte) (marketdata.Bar, bool) {
	var event wsKlineEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return marketdata.Bar{}, false
	}
	if event.Event != "kline" {
		return marketdata.Bar{}, false
	}

	k := event.Kline
	return marketdata.Bar{
		Symbol:      event.Symbol,
		Interval:    k.Interval,
		OpenTime:    time.UnixMilli(k.StartTime),
		CloseTime:   time.UnixMilli(k.EndTime),
		Open:        parseFloat(k.Open),
		High:        parseFloat(k.High),
		Low:         parseFloat(k.Low),
		Close:       parseFloat(k.Close),
		Volume:      parseFloat(k.Volume),
		QuoteVolume: parseFloat(k.QuoteVolume),
		Trades:      uint64(k.TradeNum),
		IsClosed:    k.IsFinal,
		EventTime:   time.UnixMilli(event.Time),
	}, true
}
