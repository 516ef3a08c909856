package events

import (
	"context"

	"delphi/internal/adapters/kafka"
	"delphi/pkg/errors"
	"delphi/pkg/logger"
)

// Publisher stamps envelopes onto analysis events and routes them to Kafka
type Publisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

// NewPublisher creates an event publisher. Source identifies the
// producing component in the event envelope (e.g. "scanner-worker").
func NewPublisher(producer *kafka.Producer, source string) *Publisher {
	return &Publisher{
		producer: producer,
		source:   source,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

// PublishScanCompleted publishes a scan summary event
func (p *Publisher) PublishScanCompleted(ctx context.Context, ev ScanCompleted) error {
	ev.Base = NewBaseEvent(TypeScanCompleted, p.source)
	return p.publish(ctx, kafka.TopicScanCompleted, ev.Symbol, ev)
}

// PublishSignalAlert publishes a generic signal alert
func (p *Publisher) PublishSignalAlert(ctx context.Context, ev SignalAlert) error {
	ev.Base = NewBaseEvent(TypeSignalAlert, p.source)
	return p.publish(ctx, kafka.TopicSignalAlert, ev.Symbol, ev)
}

// PublishBreakoutDetected publishes a breakout detection event
func (p *Publisher) PublishBreakoutDetected(ctx context.Context, ev BreakoutDetected) error {
	ev.Base = NewBaseEvent(TypeBreakoutDetected, p.source)
	return p.publish(ctx, kafka.TopicBreakoutDetected, ev.Symbol, ev)
}

// PublishDivergenceSpotted publishes a divergence detection event
func (p *Publisher) PublishDivergenceSpotted(ctx context.Context, ev DivergenceSpotted) error {
	ev.Base = NewBaseEvent(TypeDivergenceSpotted, p.source)
	return p.publish(ctx, kafka.TopicDivergenceSpotted, ev.Symbol, ev)
}

// PublishPhaseChanged publishes a market phase transition event
func (p *Publisher) PublishPhaseChanged(ctx context.Context, ev PhaseChanged) error {
	ev.Base = NewBaseEvent(TypePhaseChanged, p.source)
	return p.publish(ctx, kafka.TopicPhaseChanged, ev.Symbol, ev)
}

// PublishCrossoverFired publishes a moving average crossover event
func (p *Publisher) PublishCrossoverFired(ctx context.Context, ev CrossoverFired) error {
	ev.Base = NewBaseEvent(TypeCrossoverFired, p.source)
	return p.publish(ctx, kafka.TopicCrossoverFired, ev.Symbol, ev)
}

// PublishBarsIngested publishes an ingestion progress event
func (p *Publisher) PublishBarsIngested(ctx context.Context, ev BarsIngested) error {
	ev.Base = NewBaseEvent(TypeBarsIngested, p.source)
	return p.publish(ctx, kafka.TopicBarsIngested, ev.Symbol, ev)
}

// PublishNotification publishes a formatted message for the Telegram consumer
func (p *Publisher) PublishNotification(ctx context.Context, ev Notification) error {
	ev.Base = NewBaseEvent(TypeNotification, p.source)
	return p.publish(ctx, kafka.TopicNotifications, ev.Symbol, ev)
}

// publish keys every event by symbol so per-ticker ordering is preserved
func (p *Publisher) publish(ctx context.Context, topic, symbol string, event interface{}) error {
	if err := p.producer.Publish(ctx, topic, symbol, event); err != nil {
		return errors.Wrapf(err, "publish to %s", topic)
	}

	p.log.Debugw("Event published",
		"topic", topic,
		"symbol", symbol,
	)
	return nil
}
