package models

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is a full, self-consistent read of auction/round/team state at one
// instant. It is the payload of the pull endpoint and the only thing clients
// trust; push events merely hint that a new snapshot should be fetched.
type Snapshot struct {
	AuctionID   uuid.UUID     `json:"auction_id"`
	Status      AuctionStatus `json:"status"`
	Currency    string        `json:"currency"`
	ServerTime  time.Time     `json:"server_time"`
	Round       *RoundView    `json:"round,omitempty"`
	Teams       []TeamSummary `json:"teams"`
	Sold        []SoldEntry   `json:"sold"` // newest last
	SoldCount   int           `json:"sold_count"`
	QueueIndex  int           `json:"queue_index"`
	QueueLength int           `json:"queue_length"`
}

// RoundView is the client-facing projection of the current round.
type RoundView struct {
	RoundID    uuid.UUID   `json:"round_id"`
	PlayerID   uuid.UUID   `json:"player_id"`
	PlayerName string      `json:"player_name"`
	Status     RoundStatus `json:"status"`
	HighestBid *BidView    `json:"highest_bid,omitempty"`
	ClosesAt   *time.Time  `json:"closes_at,omitempty"`
	// TimeRemainingSec is nil for untimed rounds; countdown logic must treat
	// that as inert.
	TimeRemainingSec *int `json:"time_remaining_sec,omitempty"`
	PassCount        int  `json:"pass_count"`
}

// BidView is the client-facing projection of the current highest bid.
type BidView struct {
	BidID      uuid.UUID `json:"bid_id"`
	TeamID     uuid.UUID `json:"team_id"`
	TeamName   string    `json:"team_name"`
	Amount     float64   `json:"amount"`
	ReceivedAt time.Time `json:"received_at"`
}

// TeamSummary is the budget/roster summary shown to clients. Reads may be
// momentarily stale; only round resolution writes these numbers.
type TeamSummary struct {
	TeamID      uuid.UUID `json:"team_id"`
	Name        string    `json:"name"`
	Budget      float64   `json:"budget"`
	Spent       float64   `json:"spent"`
	Remaining   float64   `json:"remaining"`
	SlotsFilled int       `json:"slots_filled"`
	SquadSize   int       `json:"squad_size"`
}

// SoldEntry records one resolved sale for history and celebration display.
type SoldEntry struct {
	PlayerID   uuid.UUID `json:"player_id"`
	PlayerName string    `json:"player_name"`
	TeamID     uuid.UUID `json:"team_id"`
	TeamName   string    `json:"team_name"`
	Amount     float64   `json:"amount"`
	SoldAt     time.Time `json:"sold_at"`
}
