package kafka

import (
	"context"
	"log/slog"

	"github.com/bibbank/microfinance/pkg/events"
	pkgkafka "github.com/bibbank/microfinance/pkg/kafka"
)

// Producer is the slice of pkg/kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
}

// EventPublisher forwards committed outbox entries to a Kafka topic. It is
// registered on the events.Dispatcher; messages are keyed by aggregate ID so
// a loan's events stay ordered within a partition.
type EventPublisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// NewEventPublisher creates a publisher targeting topic.
func NewEventPublisher(producer Producer, topic string, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Handle implements events.Handler.
func (p *EventPublisher) Handle(ctx context.Context, entry events.OutboxEntry) error {
	p.logger.DebugContext(ctx, "publishing domain event",
		"event_type", entry.EventType,
		"event_id", entry.ID,
		"aggregate_id", entry.AggregateID,
		"tenant_id", entry.TenantID,
		"topic", p.topic,
		"payload_size", len(entry.Payload),
	)

	return p.producer.Publish(ctx, p.topic, pkgkafka.Message{
		Key:   []byte(entry.AggregateID),
		Value: entry.Payload,
		Headers: map[string]string{
			"event_type":     entry.EventType,
			"event_id":       entry.ID,
			"aggregate_type": entry.AggregateType,
			"tenant_id":      entry.TenantID,
		},
	})
}
