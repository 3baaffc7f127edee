package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Handler receives a committed event exactly as it was stored in the outbox.
type Handler func(ctx context.Context, entry OutboxEntry) error

// Dispatcher fans committed events out to in-process subscribers. It never
// touches aggregates; subscribers are read-only consumers of the event stream.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
}

type namedHandler struct {
	name string
	fn   Handler
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]namedHandler)}
}

// Subscribe registers fn for eventType (or Wildcard).
func (d *Dispatcher) Subscribe(eventType, name string, fn Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], namedHandler{name: name, fn: fn})
}

// Dispatch delivers entry to every matching subscriber. All subscribers are
// attempted; the returned error aggregates every failure.
func (d *Dispatcher) Dispatch(ctx context.Context, entry OutboxEntry) error {
	d.mu.RLock()
	targets := make([]namedHandler, 0, len(d.handlers[entry.EventType])+len(d.handlers[Wildcard]))
	targets = append(targets, d.handlers[entry.EventType]...)
	targets = append(targets, d.handlers[Wildcard]...)
	d.mu.RUnlock()

	var result *multierror.Error
	for _, h := range targets {
		if err := h.fn(ctx, entry); err != nil {
			result = multierror.Append(result, fmt.Errorf("subscriber %s: %w", h.name, err))
		}
	}
	return result.ErrorOrNil()
}
