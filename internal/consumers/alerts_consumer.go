package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	kafkago "github.com/segmentio/kafka-go"

	"delphi/internal/adapters/kafka"
	"delphi/internal/events"
	redisrepo "delphi/internal/repository/redis"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
	"delphi/pkg/templates"
)

// AlertsConsumer turns raw signal alerts into notification messages.
// Repeats of an unchanged alert are dropped for the cooldown window;
// the survivors get rendered and handed to the delivery consumer.
type AlertsConsumer struct {
	consumer   *kafka.Consumer
	alertState *redisrepo.AlertStateRepository
	publisher  *events.Publisher
	templates  *templates.Registry
	cooldown   time.Duration
	log        *logger.Logger
}

// NewAlertsConsumer creates the alert throttling and formatting stage
func NewAlertsConsumer(
	consumer *kafka.Consumer,
	alertState *redisrepo.AlertStateRepository,
	publisher *events.Publisher,
	tmpl *templates.Registry,
	cooldown time.Duration,
) *AlertsConsumer {
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	return &AlertsConsumer{
		consumer:   consumer,
		alertState: alertState,
		publisher:  publisher,
		templates:  tmpl,
		cooldown:   cooldown,
		log:        logger.Get().With("component", "alerts_consumer"),
	}
}

// Start consumes signal alerts until the context is cancelled
func (ac *AlertsConsumer) Start(ctx context.Context) error {
	defer func() {
		if err := ac.consumer.Close(); err != nil {
			ac.log.Errorw("Failed to close alerts consumer", "error", err)
		}
	}()
	return ac.consumer.Consume(ctx, ac.handleMessage)
}

func (ac *AlertsConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var alert events.SignalAlert
	if err := json.Unmarshal(msg.Value, &alert); err != nil {
		return errors.Wrap(err, "unmarshal signal alert")
	}
	if alert.Symbol == "" || alert.Kind == "" {
		return errors.Wrap(errors.ErrInvalidInput, "signal alert missing symbol or kind")
	}

	send, err := ac.alertState.ShouldSend(ctx, alert.Symbol, alert.Kind, alert.Message)
	if err != nil {
		// Redis trouble must not silence alerts
		ac.log.Warnw("Alert state lookup failed, sending anyway",
			"symbol", alert.Symbol,
			"kind", alert.Kind,
			"error", err)
		send = true
	}
	if !send {
		ac.log.Debugw("Alert suppressed by cooldown",
			"symbol", alert.Symbol,
			"kind", alert.Kind)
		return nil
	}

	notification := events.Notification{
		Symbol:   alert.Symbol,
		Severity: alert.Severity,
		Text:     ac.renderAlert(alert),
	}
	if err := ac.publisher.PublishNotification(ctx, notification); err != nil {
		return errors.Wrapf(err, "publish notification for %s", alert.Symbol)
	}

	state := &redisrepo.AlertState{
		Symbol: alert.Symbol,
		Kind:   alert.Kind,
		Value:  alert.Message,
	}
	if err := ac.alertState.MarkSent(ctx, state, ac.cooldown); err != nil {
		ac.log.Warnw("Failed to record alert state",
			"symbol", alert.Symbol,
			"kind", alert.Kind,
			"error", err)
	}

	ac.log.Infow("Alert forwarded for delivery",
		"symbol", alert.Symbol,
		"kind", alert.Kind,
		"severity", alert.Severity)
	return nil
}

// signalAlertData feeds the alerts/signal template
type signalAlertData struct {
	Icon     string
	Symbol   string
	Interval string
	Kind     string
	Message  string
	Price    string
	Age      string
}

// renderAlert produces the Telegram-ready text for a signal alert
func (ac *AlertsConsumer) renderAlert(alert events.SignalAlert) string {
	data := signalAlertData{
		Icon:     severityIcon(alert.Severity),
		Symbol:   alert.Symbol,
		Interval: alert.Interval,
		Kind:     strings.ReplaceAll(alert.Kind, "_", " "),
		Message:  alert.Message,
	}
	if alert.Price > 0 {
		data.Price = humanize.CommafWithDigits(alert.Price, 2)
	}
	// Flag stale alerts so a recovering pipeline does not look live
	if !alert.Base.Timestamp.IsZero() && time.Since(alert.Base.Timestamp) > time.Minute {
		data.Age = humanize.Time(alert.Base.Timestamp)
	}

	text, err := ac.templates.Render("alerts/signal", data)
	if err != nil {
		ac.log.Warnw("Template render failed, using plain message", "error", err)
		return fmt.Sprintf("%s %s [%s] %s", data.Icon, alert.Symbol, alert.Interval, alert.Message)
	}
	return strings.TrimSpace(text)
}

func severityIcon(severity string) string {
	switch severity {
	case "high":
		return "🚨"
	case "medium":
		return "⚠️"
	default:
		return "ℹ️"
	}
}
