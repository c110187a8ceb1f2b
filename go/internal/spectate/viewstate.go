package spectate

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/gavelhq/gavel/go/internal/models"
)

// State is what the spectator display is showing.
type State string

const (
	StateConnecting      State = "connecting"
	StateWaiting         State = "waiting"
	StatePlayerUp        State = "player_up"
	StateSoldCelebration State = "sold_celebration"
	StateBetweenBids     State = "between_bids"
	StateAuctionComplete State = "auction_complete"
)

// DefaultCelebrationDuration is how long a sale stays on screen when the
// auction settings don't say otherwise.
const DefaultCelebrationDuration = 8 * time.Second

// ViewState drives the spectator display from successive snapshots. It only
// compares snapshots; it never infers round outcomes on its own, so a
// display transition can never disagree with the server's resolution.
type ViewState struct {
	clock clockwork.Clock

	mu               sync.Mutex
	state            State
	last             *models.Snapshot
	celebration      *models.SoldEntry
	celebrationUntil time.Time
	celebrationFor   time.Duration
}

func NewViewState(clock clockwork.Clock, celebrationFor time.Duration) *ViewState {
	if celebrationFor <= 0 {
		celebrationFor = DefaultCelebrationDuration
	}
	return &ViewState{
		clock:          clock,
		state:          StateConnecting,
		celebrationFor: celebrationFor,
	}
}

// State returns the current display state.
func (v *ViewState) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Celebration returns the sale being celebrated, or nil outside a
// celebration.
func (v *ViewState) Celebration() *models.SoldEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != StateSoldCelebration {
		return nil
	}
	return v.celebration
}

// Apply feeds the next snapshot into the machine and returns the resulting
// state. An unchanged snapshot is a no-op. When several things changed at
// once between two snapshots, completion wins over everything, then
// not-yet-started, then a new sale, then a queue advance without a sale.
func (v *ViewState) Apply(snap *models.Snapshot) State {
	v.mu.Lock()
	defer v.mu.Unlock()

	if snap == nil {
		return v.state
	}
	prev := v.last
	v.last = snap

	switch {
	case snap.Status == models.AuctionStatusCompleted || snap.Status == models.AuctionStatusArchived:
		v.setState(StateAuctionComplete)

	case snap.Status != models.AuctionStatusLive:
		v.setState(StateWaiting)

	case prev != nil && snap.SoldCount > prev.SoldCount:
		// A new sale celebrates even if the queue also moved on.
		if n := len(snap.Sold); n > 0 {
			v.celebration = &snap.Sold[n-1]
		}
		v.celebrationUntil = v.clock.Now().Add(v.celebrationFor)
		v.setState(StateSoldCelebration)

	case prev != nil && snap.QueueIndex > prev.QueueIndex:
		// The queue moved without a sale: the item went unsold or was
		// skipped.
		v.setState(StateBetweenBids)

	case v.state == StateSoldCelebration && v.clock.Now().Before(v.celebrationUntil):
		// Hold the celebration until its timer runs out.

	case snap.Round != nil:
		v.setState(StatePlayerUp)

	default:
		v.setState(StateBetweenBids)
	}
	return v.state
}

// Tick advances time-driven transitions. A celebration that outlived its
// duration falls back to whatever the last snapshot shows; this is the
// fallback for a quiet wire, not a second source of truth.
func (v *ViewState) Tick() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == StateSoldCelebration && !v.clock.Now().Before(v.celebrationUntil) {
		v.celebration = nil
		if v.last != nil && v.last.Round != nil {
			v.setState(StatePlayerUp)
		} else {
			v.setState(StateBetweenBids)
		}
	}
	return v.state
}

func (v *ViewState) setState(next State) {
	if v.state == next {
		return
	}
	log.Debug().
		Str("from", string(v.state)).
		Str("to", string(next)).
		Msg("spectator view transition")
	v.state = next
}
