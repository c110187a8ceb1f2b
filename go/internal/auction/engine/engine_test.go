package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/gavelhq/gavel/go/internal/models"
)

// fakeStore is an in-memory Store. CommitResolution enforces the same guard
// as the production repository: it fails when the round is not CLOSED.
type fakeStore struct {
	mu      sync.Mutex
	auction *models.Auction
	teams   []models.Team
	players []models.Player
	rounds  map[uuid.UUID]*models.Round
	bids    map[uuid.UUID][]models.Bid
	sold    []models.SoldEntry

	resolutions    int
	failResolution bool
}

func (f *fakeStore) GetAuction(_ context.Context, id uuid.UUID) (*models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auction == nil || f.auction.ID != id {
		return nil, errors.New("auction not found")
	}
	a := *f.auction
	a.Queue = append([]uuid.UUID(nil), f.auction.Queue...)
	return &a, nil
}

func (f *fakeStore) ListTeams(_ context.Context, _ uuid.UUID) ([]models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Team(nil), f.teams...), nil
}

func (f *fakeStore) ListPlayers(_ context.Context, _ uuid.UUID) ([]models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Player(nil), f.players...), nil
}

func (f *fakeStore) GetOpenRound(_ context.Context, _ uuid.UUID) (*models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rounds {
		if r.Status == models.RoundStatusOpen {
			rc := *r
			return &rc, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListBidsByRound(_ context.Context, roundID uuid.UUID) ([]models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Bid(nil), f.bids[roundID]...), nil
}

func (f *fakeStore) ListSoldEntries(_ context.Context, _ uuid.UUID) ([]models.SoldEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SoldEntry(nil), f.sold...), nil
}

func (f *fakeStore) CreateRound(_ context.Context, round *models.Round) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rc := *round
	f.rounds[round.ID] = &rc
	return nil
}

func (f *fakeStore) UpdateRoundOpen(_ context.Context, roundID uuid.UUID, openedAt time.Time, closesAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rounds[roundID]
	if !ok {
		return errors.New("round not found")
	}
	r.Status = models.RoundStatusOpen
	r.OpenedAt = &openedAt
	r.ClosesAt = closesAt
	return nil
}

func (f *fakeStore) UpdateRoundClosed(_ context.Context, roundID uuid.UUID, reason models.CloseReason, closedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rounds[roundID]
	if !ok {
		return errors.New("round not found")
	}
	r.Status = models.RoundStatusClosed
	r.ClosedAt = &closedAt
	r.CloseReason = &reason
	return nil
}

func (f *fakeStore) InsertBid(_ context.Context, bid *models.Bid) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bids[bid.RoundID] = append(f.bids[bid.RoundID], *bid)
	return nil
}

func (f *fakeStore) CommitResolution(_ context.Context, res Resolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failResolution {
		return errors.New("injected resolution failure")
	}
	r, ok := f.rounds[res.RoundID]
	if !ok {
		return errors.New("round not found")
	}
	if r.Status != models.RoundStatusClosed {
		return errors.New("round is not closed")
	}
	r.Status = res.Outcome
	f.auction.QueueCursor = res.QueueCursor
	for i := range f.players {
		if f.players[i].ID != res.PlayerID {
			continue
		}
		if res.Outcome == models.RoundStatusSold {
			f.players[i].Status = models.PlayerStatusSold
		} else {
			f.players[i].Status = models.PlayerStatusUnsold
		}
	}
	if res.WinningBid != nil {
		for i := range f.teams {
			if f.teams[i].ID == res.WinningBid.TeamID {
				f.teams[i].Spent += res.WinningBid.Amount
				f.teams[i].SlotsFilled++
			}
		}
	}
	f.resolutions++
	return nil
}

func (f *fakeStore) UpdateAuctionStatus(_ context.Context, _ uuid.UUID, status models.AuctionStatus, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auction.Status = status
	return nil
}

func (f *fakeStore) UpdateQueue(_ context.Context, _ uuid.UUID, queue []uuid.UUID, cursor int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auction.Queue = append([]uuid.UUID(nil), queue...)
	f.auction.QueueCursor = cursor
	return nil
}

func (f *fakeStore) setFailResolution(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failResolution = fail
}

func (f *fakeStore) resolutionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolutions
}

type fakeSink struct {
	mu     sync.Mutex
	states int
	bids   int
}

func (s *fakeSink) InsertAuctionState(_ context.Context, _ uuid.UUID, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states++
	return nil
}

func (s *fakeSink) InsertBidUpdate(_ context.Context, _ uuid.UUID, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids++
	return nil
}

type testRig struct {
	engine  *Engine
	store   *fakeStore
	clock   *clockwork.FakeClock
	auction uuid.UUID
	teamA   uuid.UUID
	teamB   uuid.UUID
	items   []uuid.UUID
}

func newTestRig(t *testing.T, settings models.AuctionSettings) *testRig {
	t.Helper()

	auctionID := uuid.New()
	teamA := uuid.New()
	teamB := uuid.New()
	items := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	store := &fakeStore{
		auction: &models.Auction{
			ID:       auctionID,
			Name:     "test auction",
			Status:   models.AuctionStatusLobby,
			Currency: "USD",
			Settings: settings,
			Queue:    append([]uuid.UUID(nil), items...),
		},
		teams: []models.Team{
			{ID: teamA, AuctionID: auctionID, Name: "Alpha", Budget: settings.BudgetPerTeam},
			{ID: teamB, AuctionID: auctionID, Name: "Bravo", Budget: settings.BudgetPerTeam},
		},
		players: []models.Player{
			{ID: items[0], AuctionID: auctionID, FullName: "Item One", Status: models.PlayerStatusAvailable},
			{ID: items[1], AuctionID: auctionID, FullName: "Item Two", Status: models.PlayerStatusAvailable},
			{ID: items[2], AuctionID: auctionID, FullName: "Item Three", Status: models.PlayerStatusAvailable},
		},
		rounds: make(map[uuid.UUID]*models.Round),
		bids:   make(map[uuid.UUID][]models.Bid),
	}

	clock := clockwork.NewFakeClock()
	eng := NewEngine(store, &fakeSink{}, clock)
	t.Cleanup(eng.Shutdown)

	return &testRig{
		engine:  eng,
		store:   store,
		clock:   clock,
		auction: auctionID,
		teamA:   teamA,
		teamB:   teamB,
		items:   items,
	}
}

func defaultSettings() models.AuctionSettings {
	return models.AuctionSettings{
		SquadSize:         2,
		BudgetPerTeam:     100,
		MinViableBid:      5,
		MinBidIncrement:   5,
		RoundSeconds:      30,
		AutoOpenNextRound: true,
	}
}

func (rig *testRig) start(t *testing.T) *models.Snapshot {
	t.Helper()
	if err := rig.engine.StartAuction(context.Background(), rig.auction); err != nil {
		t.Fatalf("StartAuction: %v", err)
	}
	return rig.snapshot(t)
}

func (rig *testRig) snapshot(t *testing.T) *models.Snapshot {
	t.Helper()
	snap, err := rig.engine.Snapshot(context.Background(), rig.auction)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

func (rig *testRig) bid(t *testing.T, roundID, teamID uuid.UUID, amount float64) SubmitBidResult {
	t.Helper()
	res, err := rig.engine.SubmitBid(context.Background(), rig.auction, SubmitBidRequest{
		RoundID: roundID,
		TeamID:  teamID,
		Amount:  amount,
	})
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	return res
}

func TestStartAuction_OpensFirstRound(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)

	if snap.Status != models.AuctionStatusLive {
		t.Fatalf("status = %s, want LIVE", snap.Status)
	}
	if snap.Round == nil {
		t.Fatal("expected an open round after start")
	}
	if snap.Round.PlayerID != rig.items[0] {
		t.Errorf("round item = %s, want first queue item", snap.Round.PlayerID)
	}
	if snap.Round.Status != models.RoundStatusOpen {
		t.Errorf("round status = %s, want OPEN", snap.Round.Status)
	}
	if snap.Round.TimeRemainingSec == nil || *snap.Round.TimeRemainingSec != 30 {
		t.Errorf("time remaining = %v, want 30", snap.Round.TimeRemainingSec)
	}
}

func TestSubmitBid_EqualAmountLosesToEarlierReceipt(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)
	roundID := snap.Round.RoundID

	first := rig.bid(t, roundID, rig.teamA, 60)
	if !first.Accepted {
		t.Fatalf("first bid rejected: %s", first.Reason)
	}

	second := rig.bid(t, roundID, rig.teamB, 60)
	if second.Accepted {
		t.Fatal("equal bid should be rejected")
	}
	if second.Reason != ReasonBidTooLow {
		t.Errorf("reason = %s, want %s", second.Reason, ReasonBidTooLow)
	}
	if second.CurrentHighest == nil || second.CurrentHighest.TeamID != rig.teamA {
		t.Error("highest bid should remain with the earlier bidder")
	}
}

func TestSubmitBid_BelowMinimumRejected(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)
	roundID := snap.Round.RoundID

	res := rig.bid(t, roundID, rig.teamA, 4)
	if res.Accepted || res.Reason != ReasonBidTooLow {
		t.Fatalf("got accepted=%v reason=%s, want BID_TOO_LOW", res.Accepted, res.Reason)
	}

	res = rig.bid(t, roundID, rig.teamA, 5)
	if !res.Accepted {
		t.Fatalf("opening bid at floor rejected: %s", res.Reason)
	}

	res = rig.bid(t, roundID, rig.teamB, 9)
	if res.Accepted || res.Reason != ReasonBidTooLow {
		t.Fatalf("sub-increment raise: accepted=%v reason=%s", res.Accepted, res.Reason)
	}
}

func TestSubmitBid_AfterCloseRejected(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)
	roundID := snap.Round.RoundID

	rig.bid(t, roundID, rig.teamA, 10)
	if _, err := rig.engine.CloseRound(context.Background(), rig.auction, roundID); err != nil {
		t.Fatalf("CloseRound: %v", err)
	}

	res := rig.bid(t, roundID, rig.teamB, 50)
	if res.Accepted {
		t.Fatal("bid after close must be rejected")
	}
	if res.Reason != ReasonRoundNotOpen {
		t.Errorf("reason = %s, want %s", res.Reason, ReasonRoundNotOpen)
	}
}

func TestCloseRound_SoldUpdatesLedgerAndAdvances(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)
	roundID := snap.Round.RoundID

	rig.bid(t, roundID, rig.teamA, 10)
	rig.bid(t, roundID, rig.teamB, 20)

	out, err := rig.engine.CloseRound(context.Background(), rig.auction, roundID)
	if err != nil {
		t.Fatalf("CloseRound: %v", err)
	}
	if out.Status != models.RoundStatusSold {
		t.Fatalf("outcome = %s, want SOLD", out.Status)
	}
	if out.WinningBid == nil || out.WinningBid.TeamID != rig.teamB || out.WinningBid.Amount != 20 {
		t.Fatalf("winning bid = %+v, want Bravo at 20", out.WinningBid)
	}

	snap = rig.snapshot(t)
	if snap.SoldCount != 1 {
		t.Errorf("sold count = %d, want 1", snap.SoldCount)
	}
	if snap.QueueIndex != 1 {
		t.Errorf("queue index = %d, want 1", snap.QueueIndex)
	}
	for _, team := range snap.Teams {
		if team.TeamID == rig.teamB {
			if team.Spent != 20 || team.Remaining != 80 || team.SlotsFilled != 1 {
				t.Errorf("winner ledger = spent %.0f remaining %.0f slots %d", team.Spent, team.Remaining, team.SlotsFilled)
			}
		}
		if team.TeamID == rig.teamA && team.Spent != 0 {
			t.Errorf("loser spent = %.0f, want 0", team.Spent)
		}
	}
	if snap.Round == nil || snap.Round.PlayerID != rig.items[1] {
		t.Error("next round should auto-open for the second item")
	}
}

func TestCloseRound_Idempotent(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)
	roundID := snap.Round.RoundID

	rig.bid(t, roundID, rig.teamA, 15)

	first, err := rig.engine.CloseRound(context.Background(), rig.auction, roundID)
	if err != nil {
		t.Fatalf("first close: %v", err)
	}
	second, err := rig.engine.CloseRound(context.Background(), rig.auction, roundID)
	if err != nil {
		t.Fatalf("second close: %v", err)
	}

	if first.Status != second.Status || first.RoundID != second.RoundID {
		t.Error("duplicate close returned a different outcome")
	}
	if n := rig.store.resolutionCount(); n != 1 {
		t.Errorf("resolutions = %d, want exactly 1", n)
	}
	snap = rig.snapshot(t)
	for _, team := range snap.Teams {
		if team.TeamID == rig.teamA && team.Spent != 15 {
			t.Errorf("winner spent = %.0f, want 15 (charged once)", team.Spent)
		}
	}
}

func TestResolve_FailureBlocksAdvancement(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)
	roundID := snap.Round.RoundID

	rig.bid(t, roundID, rig.teamA, 10)

	rig.store.setFailResolution(true)
	if _, err := rig.engine.CloseRound(context.Background(), rig.auction, roundID); err == nil {
		t.Fatal("expected close to fail when resolution cannot commit")
	}

	snap = rig.snapshot(t)
	if snap.QueueIndex != 0 {
		t.Errorf("queue index = %d, must not advance past an unresolved item", snap.QueueIndex)
	}
	if snap.Round == nil || snap.Round.Status != models.RoundStatusClosed {
		t.Error("round should stay CLOSED awaiting resolution")
	}

	rig.store.setFailResolution(false)
	out, err := rig.engine.CloseRound(context.Background(), rig.auction, roundID)
	if err != nil {
		t.Fatalf("retried close: %v", err)
	}
	if out.Status != models.RoundStatusSold {
		t.Fatalf("outcome = %s, want SOLD after retry", out.Status)
	}
	if n := rig.store.resolutionCount(); n != 1 {
		t.Errorf("resolutions = %d, want 1", n)
	}
}

func TestOpenRound_SecondOpenRejected(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	rig.start(t)

	if _, err := rig.engine.OpenRound(context.Background(), rig.auction, rig.items[1]); !errors.Is(err, ErrConcurrentRound) {
		t.Fatalf("err = %v, want ErrConcurrentRound", err)
	}
	if _, err := rig.engine.OpenNextRound(context.Background(), rig.auction); !errors.Is(err, ErrConcurrentRound) {
		t.Fatalf("OpenNextRound err = %v, want ErrConcurrentRound", err)
	}
}

func TestPass_AllTeamsNoBidsResolvesUnsold(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)
	roundID := snap.Round.RoundID

	if err := rig.engine.Pass(context.Background(), rig.auction, roundID, rig.teamA); err != nil {
		t.Fatalf("pass A: %v", err)
	}
	if err := rig.engine.Pass(context.Background(), rig.auction, roundID, rig.teamB); err != nil {
		t.Fatalf("pass B: %v", err)
	}

	snap = rig.snapshot(t)
	if snap.SoldCount != 0 {
		t.Errorf("sold count = %d, want 0", snap.SoldCount)
	}
	if snap.QueueIndex != 1 {
		t.Errorf("queue index = %d, want 1 after unsold item", snap.QueueIndex)
	}
	if snap.Round == nil || snap.Round.PlayerID != rig.items[1] {
		t.Error("next round should open after the unsold item")
	}
}

func TestTimerExpiry_ClosesRound(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)
	roundID := snap.Round.RoundID

	rig.bid(t, roundID, rig.teamA, 25)

	rig.clock.BlockUntil(1)
	rig.clock.Advance(31 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap = rig.snapshot(t)
		if snap.SoldCount == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timer expiry did not resolve the round")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap.Round == nil || snap.Round.PlayerID != rig.items[1] {
		t.Error("next round should open after timer close")
	}
}

func TestDeferItem(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)

	if err := rig.engine.DeferItem(context.Background(), rig.auction, rig.items[0]); !errors.Is(err, ErrItemInOpenRound) {
		t.Fatalf("defer of item under the hammer: err = %v, want ErrItemInOpenRound", err)
	}

	if err := rig.engine.DeferItem(context.Background(), rig.auction, rig.items[1]); err != nil {
		t.Fatalf("defer item two: %v", err)
	}

	rig.bid(t, snap.Round.RoundID, rig.teamA, 10)
	if _, err := rig.engine.CloseRound(context.Background(), rig.auction, snap.Round.RoundID); err != nil {
		t.Fatalf("close: %v", err)
	}

	snap = rig.snapshot(t)
	if snap.Round == nil || snap.Round.PlayerID != rig.items[2] {
		t.Error("deferred item should be skipped in favor of the next in queue")
	}
}

func TestQueueExhaustion_CompletesAuction(t *testing.T) {
	settings := defaultSettings()
	settings.SquadSize = 3
	rig := newTestRig(t, settings)
	snap := rig.start(t)

	for i := 0; i < 3; i++ {
		roundID := snap.Round.RoundID
		rig.bid(t, roundID, rig.teamA, float64(10+i*10))
		if _, err := rig.engine.CloseRound(context.Background(), rig.auction, roundID); err != nil {
			t.Fatalf("close round %d: %v", i, err)
		}
		snap = rig.snapshot(t)
	}

	if snap.Status != models.AuctionStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", snap.Status)
	}
	if snap.Round != nil {
		t.Error("no round should remain after completion")
	}
	if snap.SoldCount != 3 {
		t.Errorf("sold count = %d, want 3", snap.SoldCount)
	}
}

func TestManualOpen_WithoutAutoOpen(t *testing.T) {
	settings := defaultSettings()
	settings.AutoOpenNextRound = false
	rig := newTestRig(t, settings)
	snap := rig.start(t)

	if snap.Round == nil || snap.Round.Status != models.RoundStatusPending {
		t.Fatal("round should be PENDING until explicitly opened")
	}

	res := rig.bid(t, snap.Round.RoundID, rig.teamA, 10)
	if res.Accepted || res.Reason != ReasonRoundNotOpen {
		t.Fatalf("bid against pending round: accepted=%v reason=%s", res.Accepted, res.Reason)
	}

	round, err := rig.engine.OpenRound(context.Background(), rig.auction, rig.items[0])
	if err != nil {
		t.Fatalf("OpenRound: %v", err)
	}
	if round.Status != models.RoundStatusOpen {
		t.Fatalf("round status = %s, want OPEN", round.Status)
	}

	res = rig.bid(t, round.ID, rig.teamA, 10)
	if !res.Accepted {
		t.Fatalf("bid against open round rejected: %s", res.Reason)
	}
}

func TestUntimedRound_NoDeadline(t *testing.T) {
	settings := defaultSettings()
	settings.RoundSeconds = 0
	rig := newTestRig(t, settings)
	snap := rig.start(t)

	if snap.Round.ClosesAt != nil || snap.Round.TimeRemainingSec != nil {
		t.Fatal("untimed round must carry no deadline")
	}
}

func TestSubmitBid_UnknownTeam(t *testing.T) {
	rig := newTestRig(t, defaultSettings())
	snap := rig.start(t)

	_, err := rig.engine.SubmitBid(context.Background(), rig.auction, SubmitBidRequest{
		RoundID: snap.Round.RoundID,
		TeamID:  uuid.New(),
		Amount:  10,
	})
	if !errors.Is(err, ErrUnknownTeam) {
		t.Fatalf("err = %v, want ErrUnknownTeam", err)
	}
}
