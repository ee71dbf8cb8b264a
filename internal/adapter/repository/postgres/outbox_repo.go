package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sbms/trading/internal/domain"
	"github.com/sbms/trading/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository. Events are
// written in the same database transaction as the mutation they belong
// to and drained by the dispatcher.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Create inserts a new outbox event within a transaction.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx,
		`INSERT INTO outbox_events (id, transaction_id, effect_type, idempotency_key, payload, attempts, published, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.TransactionID, string(event.EffectType),
		event.IdempotencyKey, event.Payload, event.Attempts, event.Published, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return nil
}

// GetUnpublished retrieves undelivered events in creation order.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, transaction_id, effect_type, idempotency_key, payload, attempts, published, created_at, published_at
		 FROM outbox_events
		 WHERE published = false
		 ORDER BY created_at, id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("get unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var (
			e          domain.OutboxEvent
			effectType string
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &effectType, &e.IdempotencyKey,
			&e.Payload, &e.Attempts, &e.Published, &e.CreatedAt, &e.PublishedAt); err != nil {
			return nil, err
		}
		e.EffectType = domain.EffectType(effectType)
		events = append(events, &e)
	}

	return events, rows.Err()
}

// MarkPublished marks an event as delivered.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_events SET published = true, published_at = $2 WHERE id = $1`,
		id, publishedAt)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}

	return nil
}

// IncrementAttempts bumps the delivery attempt counter of an event.
func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE outbox_events SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment event attempts: %w", err)
	}

	return nil
}

// DeletePublished deletes delivered events older than the given time.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM outbox_events WHERE published = true AND published_at < $1`, before)
	if err != nil {
		return fmt.Errorf("delete published events: %w", err)
	}

	return nil
}
