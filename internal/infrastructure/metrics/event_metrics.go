package metrics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bibbank/microfinance/internal/domain/event"
	"github.com/bibbank/microfinance/pkg/events"
)

// EventMetrics turns the committed event stream into business counters. It is
// subscribed to the dispatcher under events.Wildcard.
type EventMetrics struct {
	events    metric.Int64Counter
	repaid    metric.Float64Histogram
	disbursed metric.Float64Counter
}

// NewEventMetrics registers the instruments on meter.
func NewEventMetrics(meter metric.Meter) (*EventMetrics, error) {
	evts, err := meter.Int64Counter("microfinance.loan.events",
		metric.WithDescription("Committed loan domain events by type."),
	)
	if err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}
	repaid, err := meter.Float64Histogram("microfinance.repayment.amount",
		metric.WithDescription("Applied repayment amounts in loan currency."),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 5000),
	)
	if err != nil {
		return nil, fmt.Errorf("create repayment histogram: %w", err)
	}
	disbursed, err := meter.Float64Counter("microfinance.disbursed.amount",
		metric.WithDescription("Disbursed principal in loan currency."),
	)
	if err != nil {
		return nil, fmt.Errorf("create disbursement counter: %w", err)
	}
	return &EventMetrics{events: evts, repaid: repaid, disbursed: disbursed}, nil
}

type amountPayload struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Handle implements events.Handler. Undecodable payloads are counted and
// otherwise ignored; metrics never block the relay.
func (m *EventMetrics) Handle(ctx context.Context, entry events.OutboxEntry) error {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", entry.EventType)))

	switch entry.EventType {
	case event.TypeLoanRepaymentCreated, event.TypeLoanWriteOffRecovery, event.TypeLoanDisbursed:
	default:
		return nil
	}
	var p amountPayload
	if err := json.Unmarshal(entry.Payload, &p); err != nil {
		return nil
	}
	amount := p.Amount.InexactFloat64()
	if entry.EventType == event.TypeLoanDisbursed {
		m.disbursed.Add(ctx, amount, metric.WithAttributes(attribute.String("currency", p.Currency)))
		return nil
	}
	m.repaid.Record(ctx, amount, metric.WithAttributes(
		attribute.String("currency", p.Currency),
		attribute.String("event_type", entry.EventType),
	))
	return nil
}
