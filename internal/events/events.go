package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type identifiers carried in the envelope
const (
	TypeScanCompleted     = "scan.completed"
	TypeSignalAlert       = "signal.alert"
	TypeBreakoutDetected  = "signal.breakout_detected"
	TypeDivergenceSpotted = "signal.divergence_spotted"
	TypePhaseChanged      = "signal.phase_changed"
	TypeCrossoverFired    = "signal.crossover_fired"
	TypeBarsIngested      = "marketdata.bars_ingested"
	TypeNotification      = "notification.telegram"
)

// BaseEvent is the envelope shared by every published event
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates an envelope with a fresh event id
func NewBaseEvent(eventType, source string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Version:   "1.0",
	}
}

// ScanCompleted summarizes one full analysis pass over a symbol
type ScanCompleted struct {
	Base         BaseEvent `json:"base"`
	Symbol       string    `json:"symbol"`
	Interval     string    `json:"interval"`
	Overall      string    `json:"overall_signal"`
	Phase        string    `json:"phase"`
	TrendScore   int       `json:"trend_score"`
	BullishScore float64   `json:"bullish_score"`
	BearishScore float64   `json:"bearish_score"`
	AlertCount   int       `json:"alert_count"`
	DurationMs   int64     `json:"duration_ms"`
}

// SignalAlert is a human-readable alert routed to notification channels
type SignalAlert struct {
	Base     BaseEvent `json:"base"`
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Kind     string    `json:"kind"` // breakout, divergence, phase_change, crossover
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Price    float64   `json:"price"`
}

// BreakoutDetected fires when a close escapes its consolidation range
type BreakoutDetected struct {
	Base            BaseEvent `json:"base"`
	Symbol          string    `json:"symbol"`
	Interval        string    `json:"interval"`
	BreakoutType    string    `json:"breakout_type"`
	Strength        string    `json:"strength"`
	Level           float64   `json:"level"`
	Price           float64   `json:"price"`
	ATRMultiple     float64   `json:"atr_multiple"`
	VolumeRatio     float64   `json:"volume_ratio"`
	VolumeConfirmed bool      `json:"volume_confirmed"`
}

// DivergenceSpotted fires for an active price/indicator divergence
type DivergenceSpotted struct {
	Base           BaseEvent `json:"base"`
	Symbol         string    `json:"symbol"`
	Interval       string    `json:"interval"`
	Indicator      string    `json:"indicator"`
	DivergenceType string    `json:"divergence_type"`
	Strength       string    `json:"strength"`
	Signal         string    `json:"overall_signal"`
}

// PhaseChanged fires when the market cycle classification flips
type PhaseChanged struct {
	Base       BaseEvent `json:"base"`
	Symbol     string    `json:"symbol"`
	Interval   string    `json:"interval"`
	Previous   string    `json:"previous_phase"`
	Current    string    `json:"current_phase"`
	Strength   float64   `json:"strength"`
	Margin     float64   `json:"margin"`
	Confidence string    `json:"confidence"`
}

// CrossoverFired fires for a fresh moving average cross
type CrossoverFired struct {
	Base      BaseEvent `json:"base"`
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	Pair      string    `json:"pair"`
	CrossType string    `json:"cross_type"`
	Direction string    `json:"direction"`
	FastValue float64   `json:"fast_value"`
	SlowValue float64   `json:"slow_value"`
	BarsAgo   int       `json:"bars_ago"`
}

// BarsIngested reports a batch of bars written to the store
type BarsIngested struct {
	Base     BaseEvent `json:"base"`
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Count    int       `json:"count"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}

// Notification is a formatted message ready for delivery to Telegram
type Notification struct {
	Base     BaseEvent `json:"base"`
	Symbol   string    `json:"symbol"`
	Severity string    `json:"severity"`
	Text     string    `json:"text"`
}
