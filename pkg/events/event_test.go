package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type loanTouched struct {
	BaseEvent
	Amount string `json:"amount"`
}

func TestNewBaseEvent(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	event := NewBaseEvent("lending.loan.created", "loan-123", "Loan", "tenant-456", at)

	if event.EventID() == "" {
		t.Error("expected non-empty event ID")
	}
	if event.EventType() != "lending.loan.created" {
		t.Errorf("expected event type %q, got %q", "lending.loan.created", event.EventType())
	}
	if event.AggregateID() != "loan-123" {
		t.Errorf("expected aggregate ID %q, got %q", "loan-123", event.AggregateID())
	}
	if event.AggregateType() != "Loan" {
		t.Errorf("expected aggregate type %q, got %q", "Loan", event.AggregateType())
	}
	if event.TenantID() != "tenant-456" {
		t.Errorf("expected tenant ID %q, got %q", "tenant-456", event.TenantID())
	}
	if !event.OccurredAt().Equal(at) {
		t.Errorf("expected occurredAt %v, got %v", at, event.OccurredAt())
	}
}

func TestBaseEventImplementsDomainEvent(t *testing.T) {
	var _ DomainEvent = BaseEvent{}
}

func TestNewOutboxEntry(t *testing.T) {
	event := loanTouched{
		BaseEvent: NewBaseEvent("lending.loan.touched", "loan-789", "Loan", "tenant-012", time.Now()),
		Amount:    "100.00",
	}

	entry, err := NewOutboxEntry(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID != event.EventID() {
		t.Errorf("expected outbox ID %v, got %v", event.EventID(), entry.ID)
	}
	if entry.AggregateID != "loan-789" || entry.TenantID != "tenant-012" {
		t.Errorf("unexpected envelope: %+v", entry)
	}
	if entry.PublishedAt != nil {
		t.Error("expected published at to be nil")
	}

	var parsed map[string]any
	if err := json.Unmarshal(entry.Payload, &parsed); err != nil {
		t.Fatalf("expected valid JSON payload, got error: %v", err)
	}
	if parsed["event_type"] != "lending.loan.touched" {
		t.Errorf("expected envelope in payload, got %v", parsed)
	}
	if parsed["amount"] != "100.00" {
		t.Errorf("expected amount in payload, got %v", parsed["amount"])
	}
}

func TestEventCollectorCloneIsolation(t *testing.T) {
	var c EventCollector
	c.Record(NewBaseEvent("Event1", "agg", "Aggregate", "", time.Now()))

	clone := c.Clone()
	clone.Record(NewBaseEvent("Event2", "agg", "Aggregate", "", time.Now()))

	if len(c.Events()) != 1 {
		t.Errorf("expected original to keep 1 event, got %d", len(c.Events()))
	}
	if len(clone.Events()) != 2 {
		t.Errorf("expected clone to hold 2 events, got %d", len(clone.Events()))
	}
}

func TestEventCollectorClearEvents(t *testing.T) {
	c := &EventCollector{}
	c.Record(NewBaseEvent("Event1", "agg", "Aggregate", "", time.Now()))
	c.Record(NewBaseEvent("Event2", "agg", "Aggregate", "", time.Now()))

	cleared := c.ClearEvents()
	if len(cleared) != 2 {
		t.Fatalf("expected ClearEvents to return 2 events, got %d", len(cleared))
	}
	if len(c.Events()) != 0 {
		t.Errorf("expected empty collector after ClearEvents, got %d", len(c.Events()))
	}
	if c.ClearEvents() != nil {
		t.Error("expected nil from ClearEvents on empty collector")
	}
}

func TestDispatcherRoutesByTypeAndWildcard(t *testing.T) {
	d := NewDispatcher()
	var typed, all int
	d.Subscribe("a", "typed", func(context.Context, OutboxEntry) error { typed++; return nil })
	d.Subscribe(Wildcard, "all", func(context.Context, OutboxEntry) error { all++; return nil })

	_ = d.Dispatch(context.Background(), OutboxEntry{EventType: "a"})
	_ = d.Dispatch(context.Background(), OutboxEntry{EventType: "b"})

	if typed != 1 {
		t.Errorf("expected typed handler once, got %d", typed)
	}
	if all != 2 {
		t.Errorf("expected wildcard handler twice, got %d", all)
	}
}

func TestDispatcherAggregatesErrors(t *testing.T) {
	d := NewDispatcher()
	calls := 0
	d.Subscribe(Wildcard, "broken", func(context.Context, OutboxEntry) error { calls++; return errors.New("boom") })
	d.Subscribe(Wildcard, "ok", func(context.Context, OutboxEntry) error { calls++; return nil })

	err := d.Dispatch(context.Background(), OutboxEntry{EventType: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected every subscriber to be attempted, got %d calls", calls)
	}
}

type memOutbox struct {
	entries   []OutboxEntry
	published []string
	failed    []string
}

func (m *memOutbox) FetchUnpublished(_ context.Context, n int) ([]OutboxEntry, error) {
	if len(m.entries) < n {
		n = len(m.entries)
	}
	return m.entries[:n], nil
}

func (m *memOutbox) MarkPublished(_ context.Context, ids []string, _ time.Time) error {
	m.published = append(m.published, ids...)
	return nil
}

func (m *memOutbox) MarkFailed(_ context.Context, id string) error {
	m.failed = append(m.failed, id)
	return nil
}

func TestRelayOncePreservesPerAggregateOrder(t *testing.T) {
	repo := &memOutbox{entries: []OutboxEntry{
		{ID: "1", AggregateID: "loan-a", EventType: "fail"},
		{ID: "2", AggregateID: "loan-a", EventType: "ok"},
		{ID: "3", AggregateID: "loan-b", EventType: "ok"},
	}}
	d := NewDispatcher()
	d.Subscribe("fail", "broken", func(context.Context, OutboxEntry) error { return errors.New("down") })

	r := NewRelay(repo, d, RelayConfig{BatchSize: 10}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := r.RelayOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 fetched, got %d", n)
	}
	if len(repo.published) != 1 || repo.published[0] != "3" {
		t.Errorf("expected only entry 3 published, got %v", repo.published)
	}
	if len(repo.failed) != 1 || repo.failed[0] != "1" {
		t.Errorf("expected entry 1 marked failed, got %v", repo.failed)
	}
}
