package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/gavelhq/gavel/go/internal/models"
)

// Engine hosts one room per live auction. The registry is the only shared
// state; everything per-auction happens on the room's own goroutine.
type Engine struct {
	store Store
	sink  EventSink
	clock clockwork.Clock

	mu    sync.Mutex
	rooms map[uuid.UUID]*room
}

func NewEngine(store Store, sink EventSink, clock clockwork.Clock) *Engine {
	return &Engine{
		store: store,
		sink:  sink,
		clock: clock,
		rooms: make(map[uuid.UUID]*room),
	}
}

// room returns the live room for auctionID, loading it from the store on
// first use. Loading recovers any open round and re-arms its deadline.
func (e *Engine) room(ctx context.Context, auctionID uuid.UUID) (*room, error) {
	e.mu.Lock()
	if r, ok := e.rooms[auctionID]; ok {
		e.mu.Unlock()
		return r, nil
	}
	e.mu.Unlock()

	r, err := e.loadRoom(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.rooms[auctionID]; ok {
		// Lost the load race; discard ours.
		close(r.stopCh)
		return existing, nil
	}
	e.rooms[auctionID] = r
	go r.run()
	r.recoverDeadline()
	return r, nil
}

func (e *Engine) loadRoom(ctx context.Context, auctionID uuid.UUID) (*room, error) {
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load auction %s: %w", auctionID, err)
	}
	teams, err := e.store.ListTeams(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	players, err := e.store.ListPlayers(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	sold, err := e.store.ListSoldEntries(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale history: %w", err)
	}

	r := &room{
		auctionID: auctionID,
		store:     e.store,
		sink:      e.sink,
		clock:     e.clock,
		cmdCh:     make(chan func()),
		stopCh:    make(chan struct{}),
		auction:   auction,
		teams:     make(map[uuid.UUID]*models.Team, len(teams)),
		players:   make(map[uuid.UUID]*models.Player, len(players)),
		passed:    make(map[uuid.UUID]bool),
		sold:      sold,
	}
	for i := range teams {
		r.teams[teams[i].ID] = &teams[i]
	}
	for i := range players {
		r.players[players[i].ID] = &players[i]
	}

	round, err := e.store.GetOpenRound(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open round: %w", err)
	}
	if round != nil {
		r.round = round
		bids, err := e.store.ListBidsByRound(ctx, round.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load bids for round %s: %w", round.ID, err)
		}
		r.bids = bids
		for i := range r.bids {
			b := &r.bids[i]
			if r.highest == nil || b.Amount > r.highest.Amount ||
				(b.Amount == r.highest.Amount && b.Sequence < r.highest.Sequence) {
				r.highest = b
			}
			if b.Sequence >= r.seq {
				r.seq = b.Sequence + 1
			}
		}
		log.Info().
			Str("auction_id", auctionID.String()).
			Str("round_id", round.ID.String()).
			Int("bids", len(bids)).
			Msg("recovered open round")
	}
	return r, nil
}

// recoverDeadline re-arms the deadline of a recovered open round, or closes
// it straight away when the deadline already passed while the engine was
// down. Bids already recorded before the close are still honored.
func (r *room) recoverDeadline() {
	r.enqueue(func() {
		if r.round == nil || r.round.Status != models.RoundStatusOpen || r.round.ClosesAt == nil {
			return
		}
		remaining := r.round.ClosesAt.Sub(r.clock.Now())
		if remaining <= 0 {
			if _, err := r.close(context.Background(), r.round.ID, models.CloseReasonTimerExpired); err != nil {
				log.Error().Err(err).Str("round_id", r.round.ID.String()).Msg("failed to close expired round on recovery")
			}
			return
		}
		r.armTimer(r.round.ID, remaining)
	})
}

// ---- public API ----

// StartAuction moves the auction to LIVE and queues up the first item.
func (e *Engine) StartAuction(ctx context.Context, auctionID uuid.UUID) error {
	r, err := e.room(ctx, auctionID)
	if err != nil {
		return err
	}
	var opErr error
	if err := r.do(ctx, func() { opErr = r.startAuction(ctx) }); err != nil {
		return err
	}
	return opErr
}

// OpenRound opens bidding for the given item, which must be the next
// available item in the queue.
func (e *Engine) OpenRound(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Round, error) {
	r, err := e.room(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	var (
		round *models.Round
		opErr error
	)
	if err := r.do(ctx, func() { round, opErr = r.openRound(ctx, playerID) }); err != nil {
		return nil, err
	}
	return round, opErr
}

// OpenNextRound opens bidding for whatever the queue produces next.
func (e *Engine) OpenNextRound(ctx context.Context, auctionID uuid.UUID) (*models.Round, error) {
	r, err := e.room(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	var (
		round *models.Round
		opErr error
	)
	if err := r.do(ctx, func() { round, opErr = r.openNext(ctx) }); err != nil {
		return nil, err
	}
	return round, opErr
}

// SubmitBid runs one bid through the arbiter. A rejection is a normal result
// with a reason code, not an error.
func (e *Engine) SubmitBid(ctx context.Context, auctionID uuid.UUID, req SubmitBidRequest) (SubmitBidResult, error) {
	r, err := e.room(ctx, auctionID)
	if err != nil {
		return SubmitBidResult{}, err
	}
	var (
		res   SubmitBidResult
		opErr error
	)
	if err := r.do(ctx, func() { res, opErr = r.submit(ctx, req) }); err != nil {
		return SubmitBidResult{}, err
	}
	return res, opErr
}

// CloseRound closes and resolves the round. Safe to call more than once.
func (e *Engine) CloseRound(ctx context.Context, auctionID, roundID uuid.UUID) (*Outcome, error) {
	r, err := e.room(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	var (
		out   *Outcome
		opErr error
	)
	if err := r.do(ctx, func() { out, opErr = r.close(ctx, roundID, models.CloseReasonManualClose) }); err != nil {
		return nil, err
	}
	return out, opErr
}

// Pass records a team declining the current item.
func (e *Engine) Pass(ctx context.Context, auctionID, roundID, teamID uuid.UUID) error {
	r, err := e.room(ctx, auctionID)
	if err != nil {
		return err
	}
	var opErr error
	if err := r.do(ctx, func() { opErr = r.pass(ctx, roundID, teamID) }); err != nil {
		return err
	}
	return opErr
}

// DeferItem moves an item not currently under the hammer to the back of the
// queue.
func (e *Engine) DeferItem(ctx context.Context, auctionID, playerID uuid.UUID) error {
	r, err := e.room(ctx, auctionID)
	if err != nil {
		return err
	}
	var opErr error
	if err := r.do(ctx, func() { opErr = r.deferCurrent(ctx, playerID) }); err != nil {
		return err
	}
	return opErr
}

// Snapshot returns the full client-facing view of the auction.
func (e *Engine) Snapshot(ctx context.Context, auctionID uuid.UUID) (*models.Snapshot, error) {
	r, err := e.room(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	var snap *models.Snapshot
	if err := r.do(ctx, func() { snap = r.snapshot() }); err != nil {
		return nil, err
	}
	return snap, nil
}

// Shutdown stops all room loops. In-flight commands complete; nothing new is
// accepted afterwards.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, r := range e.rooms {
		close(r.stopCh)
		delete(e.rooms, id)
	}
	log.Info().Msg("auction engine stopped")
}
