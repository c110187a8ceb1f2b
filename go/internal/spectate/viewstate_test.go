package spectate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/gavelhq/gavel/go/internal/models"
)

func liveSnap(soldCount, queueIndex int, withRound bool) *models.Snapshot {
	snap := &models.Snapshot{
		AuctionID:   uuid.New(),
		Status:      models.AuctionStatusLive,
		SoldCount:   soldCount,
		QueueIndex:  queueIndex,
		QueueLength: 10,
	}
	for i := 0; i < soldCount; i++ {
		snap.Sold = append(snap.Sold, models.SoldEntry{
			PlayerID:   uuid.New(),
			PlayerName: "Player",
			Amount:     float64(10 * (i + 1)),
		})
	}
	if withRound {
		snap.Round = &models.RoundView{
			RoundID: uuid.New(),
			Status:  models.RoundStatusOpen,
		}
	}
	return snap
}

func TestViewState_StartsConnecting(t *testing.T) {
	v := NewViewState(clockwork.NewFakeClock(), 0)
	if v.State() != StateConnecting {
		t.Fatalf("initial state = %s, want connecting", v.State())
	}
}

func TestViewState_WaitingBeforeLive(t *testing.T) {
	v := NewViewState(clockwork.NewFakeClock(), 0)

	snap := liveSnap(0, 0, false)
	snap.Status = models.AuctionStatusLobby
	if got := v.Apply(snap); got != StateWaiting {
		t.Fatalf("state = %s, want waiting", got)
	}
}

func TestViewState_PlayerUpWhenRoundShown(t *testing.T) {
	v := NewViewState(clockwork.NewFakeClock(), 0)

	if got := v.Apply(liveSnap(0, 0, true)); got != StatePlayerUp {
		t.Fatalf("state = %s, want player_up", got)
	}
}

func TestViewState_NewSaleCelebrates(t *testing.T) {
	clock := clockwork.NewFakeClock()
	v := NewViewState(clock, 5*time.Second)

	v.Apply(liveSnap(0, 0, true))
	after := liveSnap(1, 1, true)
	if got := v.Apply(after); got != StateSoldCelebration {
		t.Fatalf("state = %s, want sold_celebration", got)
	}
	celeb := v.Celebration()
	if celeb == nil || celeb.Amount != after.Sold[len(after.Sold)-1].Amount {
		t.Error("celebration should show the newest sale")
	}

	// Identical follow-up snapshots hold the celebration on screen.
	if got := v.Apply(liveSnap(1, 1, true)); got != StateSoldCelebration {
		t.Fatalf("state = %s, celebration should hold", got)
	}

	// Celebration falls back to the live round once its timer lapses.
	clock.Advance(6 * time.Second)
	if got := v.Tick(); got != StatePlayerUp {
		t.Fatalf("state after celebration = %s, want player_up", got)
	}
	if v.Celebration() != nil {
		t.Error("celebration entry should clear after fallback")
	}
}

func TestViewState_UnsoldAdvanceSkipsCelebration(t *testing.T) {
	v := NewViewState(clockwork.NewFakeClock(), 0)

	v.Apply(liveSnap(1, 1, true))
	// Queue moved from 1 to 2 with no new sale: the item went unsold.
	if got := v.Apply(liveSnap(1, 2, false)); got != StateBetweenBids {
		t.Fatalf("state = %s, want between_bids", got)
	}
}

func TestViewState_CompletionWinsOverSale(t *testing.T) {
	v := NewViewState(clockwork.NewFakeClock(), 0)

	v.Apply(liveSnap(2, 2, true))
	// Final item sold and the auction completed in the same snapshot.
	final := liveSnap(3, 3, false)
	final.Status = models.AuctionStatusCompleted
	if got := v.Apply(final); got != StateAuctionComplete {
		t.Fatalf("state = %s, want auction_complete", got)
	}
}

func TestViewState_DuplicateSnapshotIsNoop(t *testing.T) {
	v := NewViewState(clockwork.NewFakeClock(), 0)

	v.Apply(liveSnap(1, 1, true))
	before := v.State()
	if got := v.Apply(liveSnap(1, 1, true)); got != before {
		t.Fatalf("duplicate snapshot changed state: %s -> %s", before, got)
	}
}

func TestViewState_BetweenBidsWithoutRound(t *testing.T) {
	v := NewViewState(clockwork.NewFakeClock(), 0)

	if got := v.Apply(liveSnap(0, 0, false)); got != StateBetweenBids {
		t.Fatalf("state = %s, want between_bids", got)
	}
}

func TestViewState_LateJoinerDoesNotCelebrateOldSales(t *testing.T) {
	v := NewViewState(clockwork.NewFakeClock(), 0)

	// First snapshot already carries sales; nothing new happened on our
	// watch.
	if got := v.Apply(liveSnap(4, 4, true)); got != StatePlayerUp {
		t.Fatalf("state = %s, want player_up", got)
	}
}
