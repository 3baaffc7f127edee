package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/microfinance/pkg/events"
	pgutil "github.com/bibbank/microfinance/pkg/postgres"
)

// insertOutbox appends events to the outbox inside the caller's transaction.
func insertOutbox(ctx context.Context, q pgutil.Querier, entries []events.OutboxEntry) error {
	const insertOutboxSQL = `
		INSERT INTO outbox (id, aggregate_id, aggregate_type, event_type, tenant_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, e := range entries {
		_, err := q.Exec(ctx, insertOutboxSQL,
			e.ID, e.AggregateID, e.AggregateType, e.EventType, e.TenantID, e.Payload, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert outbox event %s: %w", e.EventType, err)
		}
	}
	return nil
}

// OutboxRepo implements events.OutboxRepository for the relay.
type OutboxRepo struct {
	pool  *pgxpool.Pool
	lease time.Duration
}

// NewOutboxRepo creates a new PostgreSQL-backed outbox repository. Fetched
// entries are leased for lease so concurrent relays do not pick them up.
func NewOutboxRepo(pool *pgxpool.Pool, lease time.Duration) *OutboxRepo {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	return &OutboxRepo{pool: pool, lease: lease}
}

// FetchUnpublished leases up to batchSize pending entries and returns them in
// insertion order.
func (r *OutboxRepo) FetchUnpublished(ctx context.Context, batchSize int) (entries []events.OutboxEntry, err error) {
	ctx, span := startSpan(ctx, "OutboxRepo.FetchUnpublished", attribute.Int("outbox.batch_size", batchSize))
	defer func() { endSpan(span, err) }()

	const query = `
		WITH leased AS (
			UPDATE outbox SET locked_until = now() + make_interval(secs => $2)
			WHERE id IN (
				SELECT id FROM outbox
				WHERE published_at IS NULL AND (locked_until IS NULL OR locked_until < now())
				ORDER BY seq
				LIMIT $1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING seq, id, aggregate_id, aggregate_type, event_type, tenant_id, payload, attempts, created_at
		)
		SELECT id, aggregate_id, aggregate_type, event_type, tenant_id, payload, attempts, created_at
		FROM leased
		ORDER BY seq
	`
	rows, err := r.pool.Query(ctx, query, batchSize, r.lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("lease outbox: %w", err)
	}
	entries, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.OutboxEntry, error) {
		var e events.OutboxEntry
		err := row.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.TenantID, &e.Payload, &e.Attempts, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given entries as delivered.
func (r *OutboxRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) (err error) {
	if len(ids) == 0 {
		return nil
	}
	ctx, span := startSpan(ctx, "OutboxRepo.MarkPublished", attribute.Int("outbox.count", len(ids)))
	defer func() { endSpan(span, err) }()

	const stmt = `UPDATE outbox SET published_at = $2 WHERE id = ANY($1)`
	if _, err := r.pool.Exec(ctx, stmt, ids, at); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// MarkFailed counts a failed delivery attempt. The entry stays pending.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id string) error {
	const stmt = `UPDATE outbox SET attempts = attempts + 1, locked_until = NULL WHERE id = $1`
	if _, err := r.pool.Exec(ctx, stmt, id); err != nil {
		return fmt.Errorf("mark outbox %s failed: %w", id, err)
	}
	return nil
}
