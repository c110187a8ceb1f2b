package events

import "time"

// Event kinds pushed to clients. These are invalidation hints: receivers must
// re-fetch the full auction state rather than trust any payload field.

const (
	KindAuctionState = "auction-state"
	KindBidUpdate    = "bid-update"
)

// AuctionStatePayload signals that auction-level state changed (status
// transition, round opened/closed/resolved, queue advanced).
type AuctionStatePayload struct {
	AuctionID string    `json:"auction_id"`
	Status    string    `json:"status"`
	RoundID   string    `json:"round_id,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// BidUpdatePayload signals that the bid ladder of an open round changed.
type BidUpdatePayload struct {
	AuctionID string    `json:"auction_id"`
	RoundID   string    `json:"round_id"`
	ChangedAt time.Time `json:"changed_at"`
}
