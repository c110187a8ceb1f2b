package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gavelhq/gavel/go/internal/auction/events"
)

// Repository stores outbox events. Inserts raise a pg_notify on the outbox
// channel so the listener picks them up without waiting for the fallback
// poll.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NotifyChannel is the Postgres channel outbox inserts signal on.
const NotifyChannel = "auction_outbox_events"

func (r *Repository) insert(ctx context.Context, auctionID uuid.UUID, eventType string, payload []byte) error {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
		WITH ins AS (
			INSERT INTO auction_outbox (id, auction_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, now())
			RETURNING id
		)
		SELECT pg_notify($5, (SELECT id::text FROM ins))`,
		id, auctionID, eventType, payload, NotifyChannel,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
	}
	return nil
}

func (r *Repository) InsertAuctionState(ctx context.Context, auctionID uuid.UUID, payload []byte) error {
	return r.insert(ctx, auctionID, events.KindAuctionState, payload)
}

func (r *Repository) InsertBidUpdate(ctx context.Context, auctionID uuid.UUID, payload []byte) error {
	return r.insert(ctx, auctionID, events.KindBidUpdate, payload)
}

func (r *Repository) FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, auction_id, event_type, payload, created_at
		FROM auction_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AuctionID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Repository) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, auction_id, event_type, payload, created_at
		FROM auction_outbox
		WHERE id = $1 AND sent_at IS NULL`, id)

	var ev OutboxEvent
	if err := row.Scan(&ev.ID, &ev.AuctionID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
		return nil, fmt.Errorf("outbox event not found or already sent: %w", err)
	}
	return &ev, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE auction_outbox SET sent_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}
