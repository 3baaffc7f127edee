package events

// EventCollector accumulates domain events raised during state transitions.
// Aggregates that are copied on every mutation must call Clone before
// recording so that earlier copies keep their own event list.
type EventCollector struct {
	events []DomainEvent
}

// Record appends a domain event to the collector.
func (c *EventCollector) Record(event DomainEvent) {
	c.events = append(c.events, event)
}

// Events returns the collected domain events without clearing them.
func (c *EventCollector) Events() []DomainEvent {
	return c.events
}

// Clone returns a collector holding a private copy of the events.
func (c EventCollector) Clone() EventCollector {
	if len(c.events) == 0 {
		return EventCollector{}
	}
	out := make([]DomainEvent, len(c.events))
	copy(out, c.events)
	return EventCollector{events: out}
}

// ClearEvents returns the collected domain events and clears the internal slice.
func (c *EventCollector) ClearEvents() []DomainEvent {
	collected := c.events
	c.events = nil
	return collected
}
