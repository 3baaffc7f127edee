package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RelayConfig tunes the outbox polling loop.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Relay moves committed outbox entries to the dispatcher. An entry is marked
// published only after every subscriber accepted it, so delivery is
// at-least-once: subscribers must tolerate redelivery (events carry a stable ID).
type Relay struct {
	repo       OutboxRepository
	dispatcher *Dispatcher
	cfg        RelayConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewRelay wires a relay.
func NewRelay(repo OutboxRepository, dispatcher *Dispatcher, cfg RelayConfig, logger *slog.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		repo:       repo,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled. Fetch failures back off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.PollInterval
	bo.MaxInterval = 30 * r.cfg.PollInterval
	bo.MaxElapsedTime = 0

	wait := r.cfg.PollInterval
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return nil
		case <-time.After(wait):
		}

		n, err := r.RelayOnce(ctx)
		if err != nil {
			wait = bo.NextBackOff()
			r.logger.ErrorContext(ctx, "outbox relay failed", "error", err, "retry_in", wait)
			continue
		}
		bo.Reset()
		wait = r.cfg.PollInterval
		if n == r.cfg.BatchSize {
			// Backlog: poll again immediately.
			wait = 0
		}
	}
}

// RelayOnce processes a single batch and returns how many entries were fetched.
// A failed entry blocks later entries of the same aggregate within the batch so
// per-loan ordering is preserved.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.repo.FetchUnpublished(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	blocked := make(map[string]bool)
	published := make([]string, 0, len(entries))
	for _, entry := range entries {
		if blocked[entry.AggregateID] {
			continue
		}
		if err := r.dispatcher.Dispatch(ctx, entry); err != nil {
			blocked[entry.AggregateID] = true
			r.logger.WarnContext(ctx, "event delivery failed",
				"event_id", entry.ID,
				"event_type", entry.EventType,
				"aggregate_id", entry.AggregateID,
				"attempts", entry.Attempts+1,
				"error", err,
			)
			if markErr := r.repo.MarkFailed(ctx, entry.ID); markErr != nil {
				return len(entries), markErr
			}
			continue
		}
		published = append(published, entry.ID)
	}

	if len(published) > 0 {
		if err := r.repo.MarkPublished(ctx, published, r.now()); err != nil {
			return len(entries), err
		}
	}
	return len(entries), nil
}
