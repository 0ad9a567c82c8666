package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
)

type PGOutboxRepository struct {
	tx *TxManager
}

func NewOutboxRepository(tx *TxManager) OutboxRepository {
	return &PGOutboxRepository{tx: tx}
}

func (r *PGOutboxRepository) Create(ctx context.Context, e *domain.OutboxEvent) error {
	_, err := r.tx.executor(ctx).Exec(ctx, `INSERT INTO outbox (id, event_type, aggregate_id, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		e.ID, e.Type, e.AggregateID, e.Payload, e.Status, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchBatch claims up to limit new events, plus events whose claim is older than
// lease and was never settled. SKIP LOCKED lets several relays run side by side.
func (r *PGOutboxRepository) FetchBatch(ctx context.Context, limit int, lease time.Duration) ([]domain.OutboxEvent, error) {
	rows, err := r.tx.executor(ctx).Query(ctx, `
		WITH claimed AS (
			SELECT id FROM outbox
			WHERE status = $2
			   OR (status = $3 AND updated_at < now() - make_interval(secs => $4))
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox SET status = $3, attempts = attempts + 1, updated_at = now()
		WHERE id IN (SELECT id FROM claimed)
		RETURNING id, event_type, aggregate_id, payload, status, attempts, created_at`,
		limit, domain.OutboxStatusNew, domain.OutboxStatusProcessing, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var e domain.OutboxEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.AggregateID, &e.Payload, &e.Status, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *PGOutboxRepository) MarkProcessed(ctx context.Context, ids []string) error {
	if _, err := r.tx.executor(ctx).Exec(ctx, `UPDATE outbox SET status=$2, updated_at=now() WHERE id = ANY($1)`, ids, domain.OutboxStatusProcessed); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (r *PGOutboxRepository) MarkFailed(ctx context.Context, ids []string) error {
	if _, err := r.tx.executor(ctx).Exec(ctx, `UPDATE outbox SET status=$2, updated_at=now() WHERE id = ANY($1)`, ids, domain.OutboxStatusNew); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

var _ OutboxRepository = (*PGOutboxRepository)(nil)
