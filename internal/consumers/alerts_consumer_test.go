package consumers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"delphi/internal/events"
	"delphi/pkg/templates"
)

func TestRenderAlert(t *testing.T) {
	ac := NewAlertsConsumer(nil, nil, nil, templates.Get(), time.Minute)

	alert := events.SignalAlert{
		Base:     events.NewBaseEvent(events.TypeSignalAlert, "test"),
		Symbol:   "BTCUSDT",
		Interval: "4h",
		Kind:     "phase_change",
		Severity: "medium",
		Message:  "BTCUSDT cycle phase moved markup -> distribution (high confidence)",
		Price:    43250.5,
	}

	text := ac.renderAlert(alert)

	assert.Contains(t, text, "⚠️")
	assert.Contains(t, text, "*BTCUSDT*")
	assert.Contains(t, text, "[4h]")
	assert.Contains(t, text, "phase change", "underscores become spaces in the kind label")
	assert.Contains(t, text, "43,250.5")
	assert.NotContains(t, text, "Spotted", "fresh alerts carry no age line")
}

func TestRenderAlert_StaleEvent(t *testing.T) {
	ac := NewAlertsConsumer(nil, nil, nil, templates.Get(), time.Minute)

	alert := events.SignalAlert{
		Symbol:   "ETHUSDT",
		Interval: "1h",
		Kind:     "breakout",
		Severity: "high",
		Message:  "ETHUSDT resistance_breakout at 2300.00 (1.8x volume)",
	}
	alert.Base.Timestamp = time.Now().Add(-10 * time.Minute)

	text := ac.renderAlert(alert)

	assert.Contains(t, text, "🚨")
	assert.Contains(t, text, "Spotted 10 minutes ago")
	assert.NotContains(t, text, "Price:", "zero price is omitted")
}

func TestSeverityIcon(t *testing.T) {
	assert.Equal(t, "🚨", severityIcon("high"))
	assert.Equal(t, "⚠️", severityIcon("medium"))
	assert.Equal(t, "ℹ️", severityIcon("low"))
	assert.Equal(t, "ℹ️", severityIcon(""))
}
