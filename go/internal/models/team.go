package models

import (
	"time"

	"github.com/google/uuid"
)

// Team represents a bidding team within a single auction.
// Spent and SlotsFilled are derived from accepted round resolutions and are
// never mutated by any other code path.
type Team struct {
	ID          uuid.UUID `json:"id"`
	AuctionID   uuid.UUID `json:"auction_id"`
	Name        string    `json:"name"`
	CaptainID   uuid.UUID `json:"captain_id"`
	Budget      float64   `json:"budget"`
	Spent       float64   `json:"spent"`
	SlotsFilled int       `json:"slots_filled"`
	CreatedAt   time.Time `json:"created_at"`
}

// Remaining returns the team's uncommitted budget.
func (t Team) Remaining() float64 {
	return t.Budget - t.Spent
}
