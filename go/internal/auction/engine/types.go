package engine

import (
	"errors"

	"github.com/google/uuid"
	"github.com/gavelhq/gavel/go/internal/models"
)

// Rejection reasons surfaced to the submitting client. Ledger reasons
// (INSUFFICIENT_BUDGET, NO_SLOTS_REMAINING, TIER_LIMIT_REACHED) pass through
// unchanged.
const (
	ReasonRoundNotOpen = "ROUND_NOT_OPEN"
	ReasonBidTooLow    = "BID_TOO_LOW"
)

// Contract violations. These indicate a caller driving the engine out of
// order; they surface as errors rather than being silently ignored.
var (
	ErrConcurrentRound  = errors.New("another round is already open for this auction")
	ErrRoundNotFound    = errors.New("round not found")
	ErrItemNotAvailable = errors.New("item is not available for a round")
	ErrAuctionNotLive   = errors.New("auction is not live")
	ErrUnknownTeam      = errors.New("team does not belong to this auction")
	ErrQueueExhausted   = errors.New("no items left in the queue")
	ErrRoundNotClosed   = errors.New("round is not closed; resolution runs strictly after close")
	ErrItemInOpenRound  = errors.New("item is in the current round and cannot be deferred")
)

// SubmitBidRequest is a bid submission against an open round. TeamID must be
// server-validated identity; the engine never trusts client-supplied ordering.
type SubmitBidRequest struct {
	RoundID uuid.UUID
	TeamID  uuid.UUID
	Amount  float64
}

// SubmitBidResult reports the arbiter's decision plus the current highest bid
// so late-joining or reconnecting clients can converge without replaying
// every intermediate bid.
type SubmitBidResult struct {
	Accepted       bool
	Reason         string
	CurrentHighest *models.BidView
}

// Outcome is the recorded resolution of a round. Resolving an already
// terminal round returns the previously recorded outcome.
type Outcome struct {
	RoundID    uuid.UUID
	PlayerID   uuid.UUID
	Status     models.RoundStatus // SOLD or UNSOLD
	WinningBid *models.Bid
}
