package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gavelhq/gavel/go/internal/auction/engine"
	"github.com/gavelhq/gavel/go/internal/models"
	"github.com/gavelhq/gavel/go/internal/sqlutil"
)

var ErrNotFound = errors.New("not found")

// Repository handles all auction-related database operations. It implements
// engine.Store for the live engine and adds the CRUD surface the HTTP API
// needs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new auction repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ---- auctions ----

func (r *Repository) CreateAuction(ctx context.Context, a *models.Auction) error {
	settings, err := json.Marshal(a.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	queue, err := json.Marshal(a.Queue)
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO auctions (id, name, status, currency, settings, queue, queue_cursor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		a.ID, a.Name, a.Status, a.Currency, settings, queue, a.QueueCursor,
	)
	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *Repository) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, status, currency, settings, queue, queue_cursor,
		       started_at, completed_at, created_at, updated_at
		FROM auctions WHERE id = $1`, id)

	var (
		a        models.Auction
		settings []byte
		queue    []byte
	)
	err := row.Scan(&a.ID, &a.Name, &a.Status, &a.Currency, &settings, &queue, &a.QueueCursor,
		&a.StartedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("auction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if err := json.Unmarshal(settings, &a.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := json.Unmarshal(queue, &a.Queue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue: %w", err)
	}
	return &a, nil
}

func (r *Repository) UpdateAuctionStatus(ctx context.Context, id uuid.UUID, status models.AuctionStatus, at time.Time) error {
	var tag string
	switch status {
	case models.AuctionStatusLive:
		tag = "started_at"
	case models.AuctionStatusCompleted:
		tag = "completed_at"
	default:
		_, err := r.pool.Exec(ctx, `UPDATE auctions SET status = $2, updated_at = now() WHERE id = $1`, id, status)
		if err != nil {
			return fmt.Errorf("failed to update auction status: %w", err)
		}
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE auctions SET status = $2, `+tag+` = $3, updated_at = now() WHERE id = $1`,
		id, status, at)
	if err != nil {
		return fmt.Errorf("failed to update auction status: %w", err)
	}
	return nil
}

func (r *Repository) UpdateQueue(ctx context.Context, auctionID uuid.UUID, queue []uuid.UUID, cursor int) error {
	data, err := json.Marshal(queue)
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE auctions SET queue = $2, queue_cursor = $3, updated_at = now() WHERE id = $1`,
		auctionID, data, cursor)
	if err != nil {
		return fmt.Errorf("failed to update queue: %w", err)
	}
	return nil
}

// ---- teams ----

func (r *Repository) CreateTeam(ctx context.Context, t *models.Team) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO teams (id, auction_id, name, captain_id, budget, spent, slots_filled, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, now())`,
		t.ID, t.AuctionID, t.Name, t.CaptainID, t.Budget,
	)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *Repository) ListTeams(ctx context.Context, auctionID uuid.UUID) ([]models.Team, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, auction_id, name, captain_id, budget, spent, slots_filled, created_at
		FROM teams WHERE auction_id = $1 ORDER BY created_at`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.AuctionID, &t.Name, &t.CaptainID, &t.Budget, &t.Spent, &t.SlotsFilled, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// GetTeamByCaptain resolves the team a captain bids for.
func (r *Repository) GetTeamByCaptain(ctx context.Context, auctionID, captainID uuid.UUID) (*models.Team, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, auction_id, name, captain_id, budget, spent, slots_filled, created_at
		FROM teams WHERE auction_id = $1 AND captain_id = $2`, auctionID, captainID)

	var t models.Team
	err := row.Scan(&t.ID, &t.AuctionID, &t.Name, &t.CaptainID, &t.Budget, &t.Spent, &t.SlotsFilled, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("team for captain %s: %w", captainID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get team by captain: %w", err)
	}
	return &t, nil
}

// ---- players ----

func (r *Repository) CreatePlayer(ctx context.Context, p *models.Player) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO players (id, auction_id, full_name, tier, base_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		p.ID, p.AuctionID, p.FullName, p.Tier, p.BasePrice, p.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func (r *Repository) ListPlayers(ctx context.Context, auctionID uuid.UUID) ([]models.Player, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, auction_id, full_name, tier, base_price, status, sold_to, sold_for, created_at
		FROM players WHERE auction_id = $1 ORDER BY created_at`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.AuctionID, &p.FullName, &p.Tier, &p.BasePrice, &p.Status, &p.SoldTo, &p.SoldFor, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// ---- rounds ----

func (r *Repository) CreateRound(ctx context.Context, round *models.Round) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rounds (id, auction_id, player_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		round.ID, round.AuctionID, round.PlayerID, round.Status, round.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

func (r *Repository) GetOpenRound(ctx context.Context, auctionID uuid.UUID) (*models.Round, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, auction_id, player_id, status, opened_at, closes_at, closed_at, close_reason, winning_bid_id, created_at
		FROM rounds WHERE auction_id = $1 AND status = 'OPEN'`, auctionID)

	var round models.Round
	err := row.Scan(&round.ID, &round.AuctionID, &round.PlayerID, &round.Status,
		&round.OpenedAt, &round.ClosesAt, &round.ClosedAt, &round.CloseReason, &round.WinningBidID, &round.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open round: %w", err)
	}
	return &round, nil
}

func (r *Repository) UpdateRoundOpen(ctx context.Context, roundID uuid.UUID, openedAt time.Time, closesAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE rounds SET status = 'OPEN', opened_at = $2, closes_at = $3
		WHERE id = $1 AND status = 'PENDING'`,
		roundID, openedAt, closesAt)
	if err != nil {
		return fmt.Errorf("failed to open round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("round %s is not pending", roundID)
	}
	return nil
}

func (r *Repository) UpdateRoundClosed(ctx context.Context, roundID uuid.UUID, reason models.CloseReason, closedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE rounds SET status = 'CLOSED', close_reason = $2, closed_at = $3
		WHERE id = $1 AND status = 'OPEN'`,
		roundID, reason, closedAt)
	if err != nil {
		return fmt.Errorf("failed to close round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("round %s is not open", roundID)
	}
	return nil
}

// ---- bids ----

func (r *Repository) InsertBid(ctx context.Context, bid *models.Bid) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bids (id, round_id, team_id, amount, received_at, sequence, accepted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		bid.ID, bid.RoundID, bid.TeamID, bid.Amount, bid.ReceivedAt, bid.Sequence, bid.Accepted,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func (r *Repository) ListBidsByRound(ctx context.Context, roundID uuid.UUID) ([]models.Bid, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, round_id, team_id, amount, received_at, sequence, accepted
		FROM bids WHERE round_id = $1 ORDER BY sequence`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.ID, &b.RoundID, &b.TeamID, &b.Amount, &b.ReceivedAt, &b.Sequence, &b.Accepted); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// ---- sale history ----

func (r *Repository) ListSoldEntries(ctx context.Context, auctionID uuid.UUID) ([]models.SoldEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.full_name, t.id, t.name, p.sold_for, r.closed_at
		FROM players p
		JOIN teams t ON t.id = p.sold_to
		JOIN rounds r ON r.player_id = p.id AND r.status = 'SOLD'
		WHERE p.auction_id = $1 AND p.status = 'SOLD'
		ORDER BY r.closed_at`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sold entries: %w", err)
	}
	defer rows.Close()

	var entries []models.SoldEntry
	for rows.Next() {
		var e models.SoldEntry
		if err := rows.Scan(&e.PlayerID, &e.PlayerName, &e.TeamID, &e.TeamName, &e.Amount, &e.SoldAt); err != nil {
			return nil, fmt.Errorf("failed to scan sold entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---- resolution ----

// CommitResolution writes the round's terminal state, the item status, the
// winner's spend and the advanced queue cursor in one transaction. The guard
// on rounds.status = 'CLOSED' makes a duplicate commit fail with no effects.
func (r *Repository) CommitResolution(ctx context.Context, res engine.Resolution) error {
	return sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		var winningBidID *uuid.UUID
		if res.WinningBid != nil {
			winningBidID = &res.WinningBid.ID
		}
		tag, err := tx.Exec(ctx, `
			UPDATE rounds SET status = $2, winning_bid_id = $3
			WHERE id = $1 AND status = 'CLOSED'`,
			res.RoundID, res.Outcome, winningBidID)
		if err != nil {
			return fmt.Errorf("failed to finalize round: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("round %s is not closed; refusing to resolve", res.RoundID)
		}

		if res.WinningBid != nil {
			if _, err := tx.Exec(ctx, `UPDATE bids SET accepted = true WHERE id = $1`, res.WinningBid.ID); err != nil {
				return fmt.Errorf("failed to mark winning bid: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				UPDATE players SET status = 'SOLD', sold_to = $2, sold_for = $3 WHERE id = $1`,
				res.PlayerID, res.WinningBid.TeamID, res.WinningBid.Amount); err != nil {
				return fmt.Errorf("failed to mark player sold: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				UPDATE teams SET spent = spent + $2, slots_filled = slots_filled + 1 WHERE id = $1`,
				res.WinningBid.TeamID, res.WinningBid.Amount); err != nil {
				return fmt.Errorf("failed to charge winning team: %w", err)
			}
		} else {
			if _, err := tx.Exec(ctx, `UPDATE players SET status = 'UNSOLD' WHERE id = $1`, res.PlayerID); err != nil {
				return fmt.Errorf("failed to mark player unsold: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE auctions SET queue_cursor = $2, updated_at = now() WHERE id = $1`,
			res.AuctionID, res.QueueCursor); err != nil {
			return fmt.Errorf("failed to advance queue cursor: %w", err)
		}
		return nil
	})
}
