package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gavelhq/gavel/go/internal/models"
)

// Store defines what the engine needs from persistence. The production
// implementation is the pgx-backed auction repository; tests use an
// in-memory fake.
type Store interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	ListTeams(ctx context.Context, auctionID uuid.UUID) ([]models.Team, error)
	ListPlayers(ctx context.Context, auctionID uuid.UUID) ([]models.Player, error)
	GetOpenRound(ctx context.Context, auctionID uuid.UUID) (*models.Round, error)
	ListBidsByRound(ctx context.Context, roundID uuid.UUID) ([]models.Bid, error)
	ListSoldEntries(ctx context.Context, auctionID uuid.UUID) ([]models.SoldEntry, error)

	CreateRound(ctx context.Context, round *models.Round) error
	UpdateRoundOpen(ctx context.Context, roundID uuid.UUID, openedAt time.Time, closesAt *time.Time) error
	UpdateRoundClosed(ctx context.Context, roundID uuid.UUID, reason models.CloseReason, closedAt time.Time) error
	InsertBid(ctx context.Context, bid *models.Bid) error

	// CommitResolution writes the round's terminal state, the item status and
	// the winning team's spend atomically, together with the advanced queue
	// cursor. It must fail without side effects if the round is no longer
	// CLOSED, which is the persistence-level guard behind exactly-once
	// resolution.
	CommitResolution(ctx context.Context, res Resolution) error

	UpdateAuctionStatus(ctx context.Context, id uuid.UUID, status models.AuctionStatus, at time.Time) error
	UpdateQueue(ctx context.Context, auctionID uuid.UUID, queue []uuid.UUID, cursor int) error
}

// Resolution is the atomic write unit for a resolved round.
type Resolution struct {
	AuctionID   uuid.UUID
	RoundID     uuid.UUID
	PlayerID    uuid.UUID
	Outcome     models.RoundStatus // SOLD or UNSOLD
	WinningBid  *models.Bid        // nil for UNSOLD
	ResolvedAt  time.Time
	QueueCursor int // cursor position after this item
}

// EventSink receives invalidation events for publication to clients. The
// production implementation inserts into the transactional outbox; failures
// are logged by the engine, not fatal to the operation that raised them.
type EventSink interface {
	InsertAuctionState(ctx context.Context, auctionID uuid.UUID, payload []byte) error
	InsertBidUpdate(ctx context.Context, auctionID uuid.UUID, payload []byte) error
}
