package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/gavelhq/gavel/go/internal/auction/events"
	"github.com/gavelhq/gavel/go/internal/auction/ledger"
	"github.com/gavelhq/gavel/go/internal/models"
)

// room is the serialization point for one auction. Every bid submission and
// round transition runs on its loop goroutine, so all state below is owned by
// that goroutine and never locked.
type room struct {
	auctionID uuid.UUID
	store     Store
	sink      EventSink
	clock     clockwork.Clock

	cmdCh  chan func()
	stopCh chan struct{}

	auction *models.Auction
	teams   map[uuid.UUID]*models.Team
	players map[uuid.UUID]*models.Player

	round   *models.Round
	bids    []models.Bid
	highest *models.Bid
	passed  map[uuid.UUID]bool
	seq     int

	sold        []models.SoldEntry
	lastOutcome *Outcome

	timerGen int // invalidates deadline timers superseded by a newer round
}

func (r *room) run() {
	for {
		select {
		case fn := <-r.cmdCh:
			fn()
		case <-r.stopCh:
			return
		}
	}
}

// do posts fn to the room loop and waits for it to complete.
func (r *room) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case r.cmdCh <- wrapped:
	case <-r.stopCh:
		return fmt.Errorf("auction room stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue posts fn without waiting; used by timer goroutines.
func (r *room) enqueue(fn func()) {
	select {
	case r.cmdCh <- fn:
	case <-r.stopCh:
	}
}

// ---- lifecycle ----

func (r *room) startAuction(ctx context.Context) error {
	if !r.auction.Status.CanTransitionTo(models.AuctionStatusLive) {
		return fmt.Errorf("%w: cannot start auction in status %s", ErrAuctionNotLive, r.auction.Status)
	}
	now := r.clock.Now()
	if err := r.store.UpdateAuctionStatus(ctx, r.auctionID, models.AuctionStatusLive, now); err != nil {
		return fmt.Errorf("failed to mark auction live: %w", err)
	}
	r.auction.Status = models.AuctionStatusLive
	r.auction.StartedAt = &now

	log.Info().Str("auction_id", r.auctionID.String()).Msg("auction live")
	r.emitAuctionState(ctx, uuid.Nil)

	return r.advance(ctx)
}

// advance pulls the next AVAILABLE item from the queue into a PENDING round,
// opening it immediately when the auto-open policy is configured. With the
// queue exhausted it completes the auction.
func (r *room) advance(ctx context.Context) error {
	if r.round != nil && !r.round.Status.Terminal() {
		return ErrConcurrentRound
	}

	i, ok := nextAvailable(r.auction.Queue, r.auction.QueueCursor, r.players)
	if !ok {
		return r.complete(ctx)
	}
	if i != r.auction.QueueCursor {
		// Items between cursor and i are already terminal; skip past them.
		r.auction.QueueCursor = i
		if err := r.store.UpdateQueue(ctx, r.auctionID, r.auction.Queue, i); err != nil {
			return fmt.Errorf("failed to persist queue cursor: %w", err)
		}
	}

	playerID := r.auction.Queue[i]
	round := &models.Round{
		ID:        uuid.New(),
		AuctionID: r.auctionID,
		PlayerID:  playerID,
		Status:    models.RoundStatusPending,
		CreatedAt: r.clock.Now(),
	}
	if err := r.store.CreateRound(ctx, round); err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}
	r.setRound(round)

	log.Info().
		Str("auction_id", r.auctionID.String()).
		Str("round_id", round.ID.String()).
		Str("player_id", playerID.String()).
		Msg("round pending")

	if r.auction.Settings.AutoOpenNextRound {
		return r.openCurrent(ctx)
	}
	r.emitAuctionState(ctx, round.ID)
	return nil
}

func (r *room) setRound(round *models.Round) {
	r.round = round
	r.bids = nil
	r.highest = nil
	r.passed = make(map[uuid.UUID]bool)
	r.seq = 0
}

func (r *room) complete(ctx context.Context) error {
	now := r.clock.Now()
	if err := r.store.UpdateAuctionStatus(ctx, r.auctionID, models.AuctionStatusCompleted, now); err != nil {
		return fmt.Errorf("failed to complete auction: %w", err)
	}
	r.auction.Status = models.AuctionStatusCompleted
	r.auction.CompletedAt = &now
	r.round = nil

	log.Info().Str("auction_id", r.auctionID.String()).Int("sold", len(r.sold)).Msg("auction completed")
	r.emitAuctionState(ctx, uuid.Nil)
	return nil
}

// openRound opens bidding for playerID. Only the queue head may be opened;
// use defer to reorder the queue first.
func (r *room) openRound(ctx context.Context, playerID uuid.UUID) (*models.Round, error) {
	if r.auction.Status != models.AuctionStatusLive {
		return nil, ErrAuctionNotLive
	}
	if r.round != nil && r.round.Status == models.RoundStatusOpen {
		log.Error().
			Str("auction_id", r.auctionID.String()).
			Str("open_round_id", r.round.ID.String()).
			Msg("open rejected: another round is already open")
		return nil, ErrConcurrentRound
	}

	if r.round == nil || r.round.Status.Terminal() {
		if err := r.advance(ctx); err != nil {
			return nil, err
		}
	}
	if r.round == nil || r.round.PlayerID != playerID {
		return nil, ErrItemNotAvailable
	}
	if r.round.Status == models.RoundStatusOpen {
		return r.round, nil
	}
	if err := r.openCurrent(ctx); err != nil {
		return nil, err
	}
	return r.round, nil
}

// openNext opens the pending round, advancing the queue first if needed. It
// is the explicit "start next" trigger for auctions without auto-open.
func (r *room) openNext(ctx context.Context) (*models.Round, error) {
	if r.auction.Status != models.AuctionStatusLive {
		return nil, ErrAuctionNotLive
	}
	if r.round != nil && r.round.Status == models.RoundStatusOpen {
		return nil, ErrConcurrentRound
	}
	if r.round == nil || r.round.Status.Terminal() {
		if err := r.advance(ctx); err != nil {
			return nil, err
		}
	}
	if r.round == nil {
		return nil, ErrQueueExhausted
	}
	if r.round.Status == models.RoundStatusPending {
		if err := r.openCurrent(ctx); err != nil {
			return nil, err
		}
	}
	return r.round, nil
}

func (r *room) openCurrent(ctx context.Context) error {
	if r.round == nil || r.round.Status != models.RoundStatusPending {
		return fmt.Errorf("no pending round to open")
	}
	now := r.clock.Now()
	var closesAt *time.Time
	if secs := r.auction.Settings.RoundSeconds; secs > 0 {
		t := now.Add(time.Duration(secs) * time.Second)
		closesAt = &t
	}
	if err := r.store.UpdateRoundOpen(ctx, r.round.ID, now, closesAt); err != nil {
		return fmt.Errorf("failed to open round: %w", err)
	}
	r.round.Status = models.RoundStatusOpen
	r.round.OpenedAt = &now
	r.round.ClosesAt = closesAt

	if closesAt != nil {
		r.armTimer(r.round.ID, closesAt.Sub(now))
	}

	log.Info().
		Str("auction_id", r.auctionID.String()).
		Str("round_id", r.round.ID.String()).
		Str("player_id", r.round.PlayerID.String()).
		Msg("round open")
	r.emitAuctionState(ctx, r.round.ID)
	return nil
}

// armTimer schedules the advisory deadline close for the given round. The
// fire is re-validated on the loop: a stale generation or an already closed
// round makes it a no-op.
func (r *room) armTimer(roundID uuid.UUID, d time.Duration) {
	r.timerGen++
	gen := r.timerGen
	timer := r.clock.NewTimer(d)
	go func() {
		select {
		case <-timer.Chan():
			r.enqueue(func() {
				if r.timerGen != gen {
					return
				}
				if r.round == nil || r.round.ID != roundID || r.round.Status != models.RoundStatusOpen {
					return
				}
				log.Info().Str("round_id", roundID.String()).Msg("round timer fired, closing")
				if _, err := r.close(context.Background(), roundID, models.CloseReasonTimerExpired); err != nil {
					log.Error().Err(err).Str("round_id", roundID.String()).Msg("timer close failed")
				}
			})
		case <-r.stopCh:
			if !timer.Stop() {
				select {
				case <-timer.Chan():
				default:
				}
			}
		}
	}()
}

// ---- bidding ----

func (r *room) submit(ctx context.Context, req SubmitBidRequest) (SubmitBidResult, error) {
	team, ok := r.teams[req.TeamID]
	if !ok {
		return SubmitBidResult{}, ErrUnknownTeam
	}

	if r.round == nil || r.round.ID != req.RoundID || r.round.Status != models.RoundStatusOpen {
		return SubmitBidResult{Reason: ReasonRoundNotOpen, CurrentHighest: r.highestView()}, nil
	}

	player := r.players[r.round.PlayerID]
	reason, accepted := arbitrate(bidContext{
		Round:     r.round,
		Highest:   r.highest,
		Player:    player,
		Team:      team,
		Settings:  r.auction.Settings,
		TierCount: r.tierCount(team.ID, player),
	}, req.Amount)
	if !accepted {
		return SubmitBidResult{Reason: reason, CurrentHighest: r.highestView()}, nil
	}

	bid := models.Bid{
		ID:         uuid.New(),
		RoundID:    r.round.ID,
		TeamID:     req.TeamID,
		Amount:     req.Amount,
		ReceivedAt: r.clock.Now(),
		Sequence:   r.seq,
	}
	if err := r.store.InsertBid(ctx, &bid); err != nil {
		return SubmitBidResult{}, fmt.Errorf("failed to record bid: %w", err)
	}
	r.seq++
	r.bids = append(r.bids, bid)
	r.highest = &r.bids[len(r.bids)-1]
	// A fresh bid reopens the question for teams that had passed.
	delete(r.passed, req.TeamID)

	log.Info().
		Str("round_id", r.round.ID.String()).
		Str("team_id", req.TeamID.String()).
		Float64("amount", req.Amount).
		Msg("bid accepted")
	r.emitBidUpdate(ctx, r.round.ID)

	return SubmitBidResult{Accepted: true, CurrentHighest: r.highestView()}, nil
}

// pass records that a team declines the current item. When every team has
// passed and no bid stands, the round closes with ALL_TEAMS_PASSED.
func (r *room) pass(ctx context.Context, roundID, teamID uuid.UUID) error {
	if _, ok := r.teams[teamID]; !ok {
		return ErrUnknownTeam
	}
	if r.round == nil || r.round.ID != roundID || r.round.Status != models.RoundStatusOpen {
		return ErrRoundNotFound
	}
	if r.passed[teamID] {
		return nil
	}
	r.passed[teamID] = true
	r.emitBidUpdate(ctx, roundID)

	if r.highest == nil && len(r.passed) >= len(r.teams) {
		_, err := r.close(ctx, roundID, models.CloseReasonAllTeamsPassed)
		return err
	}
	return nil
}

func (r *room) tierCount(teamID uuid.UUID, player *models.Player) int {
	if player == nil || player.Tier == "" {
		return 0
	}
	n := 0
	for _, p := range r.players {
		if p.Status == models.PlayerStatusSold && p.SoldTo != nil && *p.SoldTo == teamID && p.Tier == player.Tier {
			n++
		}
	}
	return n
}

func (r *room) highestView() *models.BidView {
	if r.highest == nil {
		return nil
	}
	name := ""
	if t, ok := r.teams[r.highest.TeamID]; ok {
		name = t.Name
	}
	return &models.BidView{
		BidID:      r.highest.ID,
		TeamID:     r.highest.TeamID,
		TeamName:   name,
		Amount:     r.highest.Amount,
		ReceivedAt: r.highest.ReceivedAt,
	}
}

// ---- close and resolution ----

// close stops bidding and resolves the round. Closing an already-CLOSED or
// terminal round is a no-op that re-attempts or returns the resolution, so
// duplicate close signals from a degraded timer or a retried manual action
// are tolerated.
func (r *room) close(ctx context.Context, roundID uuid.UUID, reason models.CloseReason) (*Outcome, error) {
	if r.round == nil || r.round.ID != roundID {
		if r.lastOutcome != nil && r.lastOutcome.RoundID == roundID {
			return r.lastOutcome, nil
		}
		return nil, ErrRoundNotFound
	}
	switch r.round.Status {
	case models.RoundStatusOpen:
		now := r.clock.Now()
		if err := r.store.UpdateRoundClosed(ctx, roundID, reason, now); err != nil {
			return nil, fmt.Errorf("failed to close round: %w", err)
		}
		r.timerGen++ // disarm any pending deadline fire
		r.round.Status = models.RoundStatusClosed
		r.round.ClosedAt = &now
		r.round.CloseReason = &reason
		log.Info().
			Str("round_id", roundID.String()).
			Str("reason", string(reason)).
			Msg("round closed")
	case models.RoundStatusClosed:
		// Duplicate close: fall through and re-attempt resolution.
	default:
		return nil, ErrRoundNotClosed
	}

	return r.resolve(ctx, roundID)
}

// resolve commits the round outcome exactly once. Re-resolving a terminal
// round returns the previously recorded outcome without touching any ledger.
func (r *room) resolve(ctx context.Context, roundID uuid.UUID) (*Outcome, error) {
	if r.round == nil || r.round.ID != roundID {
		if r.lastOutcome != nil && r.lastOutcome.RoundID == roundID {
			return r.lastOutcome, nil
		}
		return nil, ErrRoundNotFound
	}
	if r.round.Status.Terminal() {
		return r.lastOutcome, nil
	}
	if r.round.Status != models.RoundStatusClosed {
		log.Error().
			Str("round_id", roundID.String()).
			Str("status", string(r.round.Status)).
			Msg("resolve rejected: round not closed")
		return nil, ErrRoundNotClosed
	}

	player := r.players[r.round.PlayerID]
	winner := r.winningBid(player)
	now := r.clock.Now()

	outcome := &Outcome{RoundID: roundID, PlayerID: r.round.PlayerID}
	res := Resolution{
		AuctionID:   r.auctionID,
		RoundID:     roundID,
		PlayerID:    r.round.PlayerID,
		ResolvedAt:  now,
		QueueCursor: r.auction.QueueCursor + 1,
	}
	if winner != nil {
		outcome.Status = models.RoundStatusSold
		outcome.WinningBid = winner
		res.Outcome = models.RoundStatusSold
		res.WinningBid = winner
	} else {
		outcome.Status = models.RoundStatusUnsold
		res.Outcome = models.RoundStatusUnsold
	}

	// A resolution failure is fatal to this round's progression: the queue
	// must not advance past an item that is neither SOLD nor UNSOLD.
	if err := r.store.CommitResolution(ctx, res); err != nil {
		return nil, fmt.Errorf("failed to commit resolution for round %s: %w", roundID, err)
	}

	r.round.Status = outcome.Status
	r.auction.QueueCursor = res.QueueCursor
	if winner != nil {
		winner.Accepted = true
		r.round.WinningBidID = &winner.ID
		team := r.teams[winner.TeamID]
		team.Spent += winner.Amount
		team.SlotsFilled++
		player.Status = models.PlayerStatusSold
		player.SoldTo = &winner.TeamID
		amount := winner.Amount
		player.SoldFor = &amount
		r.sold = append(r.sold, models.SoldEntry{
			PlayerID:   player.ID,
			PlayerName: player.FullName,
			TeamID:     team.ID,
			TeamName:   team.Name,
			Amount:     winner.Amount,
			SoldAt:     now,
		})
		log.Info().
			Str("round_id", roundID.String()).
			Str("player_id", player.ID.String()).
			Str("team_id", team.ID.String()).
			Float64("amount", winner.Amount).
			Msg("item sold")
	} else {
		player.Status = models.PlayerStatusUnsold
		log.Info().
			Str("round_id", roundID.String()).
			Str("player_id", player.ID.String()).
			Msg("item unsold")
	}
	r.lastOutcome = outcome
	r.emitAuctionState(ctx, roundID)

	if err := r.advance(ctx); err != nil {
		log.Error().Err(err).Str("auction_id", r.auctionID.String()).Msg("failed to advance queue after resolution")
		return outcome, err
	}
	return outcome, nil
}

// winningBid selects the accepted bid: highest amount, earliest server
// receipt on equal amounts, re-checked against the ledger at resolution time.
func (r *room) winningBid(player *models.Player) *models.Bid {
	var best *models.Bid
	for i := range r.bids {
		b := &r.bids[i]
		if best != nil && (b.Amount < best.Amount ||
			(b.Amount == best.Amount && b.Sequence > best.Sequence)) {
			continue
		}
		fin := teamFinance(bidContext{
			Team:      r.teams[b.TeamID],
			Settings:  r.auction.Settings,
			TierCount: r.tierCount(b.TeamID, player),
		})
		if ledger.CanAccept(fin, b.Amount).OK {
			best = b
		}
	}
	return best
}

// ---- defer ----

func (r *room) deferCurrent(ctx context.Context, playerID uuid.UUID) error {
	if r.round != nil && !r.round.Status.Terminal() && r.round.PlayerID == playerID {
		if r.round.Status == models.RoundStatusOpen {
			return ErrItemInOpenRound
		}
		// Pending round for the deferred item is abandoned; the queue will
		// produce a fresh round for whatever comes next.
		r.round = nil
	}
	p, ok := r.players[playerID]
	if !ok || p.Status != models.PlayerStatusAvailable {
		return ErrItemNotAvailable
	}
	queue, moved := deferItem(r.auction.Queue, r.auction.QueueCursor, playerID)
	if !moved {
		return ErrItemNotAvailable
	}
	if err := r.store.UpdateQueue(ctx, r.auctionID, queue, r.auction.QueueCursor); err != nil {
		return fmt.Errorf("failed to persist deferred queue: %w", err)
	}
	r.auction.Queue = queue
	log.Info().Str("auction_id", r.auctionID.String()).Str("player_id", playerID.String()).Msg("item deferred")
	r.emitAuctionState(ctx, uuid.Nil)
	return nil
}

// ---- snapshot ----

func (r *room) snapshot() *models.Snapshot {
	snap := &models.Snapshot{
		AuctionID:   r.auctionID,
		Status:      r.auction.Status,
		Currency:    r.auction.Currency,
		ServerTime:  r.clock.Now(),
		SoldCount:   len(r.sold),
		Sold:        append([]models.SoldEntry(nil), r.sold...),
		QueueIndex:  r.auction.QueueCursor,
		QueueLength: len(r.auction.Queue),
	}
	for _, t := range r.teams {
		snap.Teams = append(snap.Teams, models.TeamSummary{
			TeamID:      t.ID,
			Name:        t.Name,
			Budget:      t.Budget,
			Spent:       t.Spent,
			Remaining:   t.Remaining(),
			SlotsFilled: t.SlotsFilled,
			SquadSize:   r.auction.Settings.SquadSize,
		})
	}
	if r.round != nil && !r.round.Status.Terminal() {
		name := ""
		if p, ok := r.players[r.round.PlayerID]; ok {
			name = p.FullName
		}
		view := &models.RoundView{
			RoundID:    r.round.ID,
			PlayerID:   r.round.PlayerID,
			PlayerName: name,
			Status:     r.round.Status,
			HighestBid: r.highestView(),
			ClosesAt:   r.round.ClosesAt,
			PassCount:  len(r.passed),
		}
		if r.round.Status == models.RoundStatusOpen && r.round.ClosesAt != nil {
			remaining := int(r.round.ClosesAt.Sub(r.clock.Now()).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			view.TimeRemainingSec = &remaining
		}
		snap.Round = view
	}
	return snap
}

// ---- event emission ----

func (r *room) emitAuctionState(ctx context.Context, roundID uuid.UUID) {
	payload := events.AuctionStatePayload{
		AuctionID: r.auctionID.String(),
		Status:    string(r.auction.Status),
		ChangedAt: r.clock.Now(),
	}
	if roundID != uuid.Nil {
		payload.RoundID = roundID.String()
	}
	data, err := json.Marshal(payload)
	if err == nil {
		err = r.sink.InsertAuctionState(ctx, r.auctionID, data)
	}
	if err != nil {
		log.Error().Err(err).Str("auction_id", r.auctionID.String()).Msg("failed to emit auction-state event")
	}
}

func (r *room) emitBidUpdate(ctx context.Context, roundID uuid.UUID) {
	payload := events.BidUpdatePayload{
		AuctionID: r.auctionID.String(),
		RoundID:   roundID.String(),
		ChangedAt: r.clock.Now(),
	}
	data, err := json.Marshal(payload)
	if err == nil {
		err = r.sink.InsertBidUpdate(ctx, r.auctionID, data)
	}
	if err != nil {
		log.Error().Err(err).Str("auction_id", r.auctionID.String()).Msg("failed to emit bid-update event")
	}
}
