package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerStatus defines the auction status of a player (the item up for bid).
// SOLD and UNSOLD are terminal for the current pass through the queue.
type PlayerStatus string

const (
	PlayerStatusAvailable PlayerStatus = "AVAILABLE"
	PlayerStatusSold      PlayerStatus = "SOLD"
	PlayerStatusUnsold    PlayerStatus = "UNSOLD"
)

// Player represents an item in the auction pool.
type Player struct {
	ID        uuid.UUID    `json:"id"`
	AuctionID uuid.UUID    `json:"auction_id"`
	FullName  string       `json:"full_name"`
	Tier      string       `json:"tier,omitempty"`
	BasePrice float64      `json:"base_price"`
	Status    PlayerStatus `json:"status"`
	SoldTo    *uuid.UUID   `json:"sold_to,omitempty"`
	SoldFor   *float64     `json:"sold_for,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
