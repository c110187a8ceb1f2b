package models

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus defines the lifecycle status of an auction.
// Transitions are monotonic: an auction never moves backwards.
type AuctionStatus string

const (
	AuctionStatusDraft     AuctionStatus = "DRAFT"
	AuctionStatusLobby     AuctionStatus = "LOBBY"
	AuctionStatusLive      AuctionStatus = "LIVE"
	AuctionStatusCompleted AuctionStatus = "COMPLETED"
	AuctionStatusArchived  AuctionStatus = "ARCHIVED"
)

// statusRank orders auction statuses for the monotonic-transition check.
var statusRank = map[AuctionStatus]int{
	AuctionStatusDraft:     0,
	AuctionStatusLobby:     1,
	AuctionStatusLive:      2,
	AuctionStatusCompleted: 3,
	AuctionStatusArchived:  4,
}

// CanTransitionTo reports whether moving to next is a forward transition.
func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// AuctionSettings holds JSONB configuration for an auction.
type AuctionSettings struct {
	SquadSize          int      `json:"squad_size"`
	BudgetPerTeam      float64  `json:"budget_per_team"`
	MinViableBid       float64  `json:"min_viable_bid"`
	MinBidIncrement    float64  `json:"min_bid_increment"`
	RoundSeconds       int      `json:"round_seconds,omitempty"` // 0 means untimed rounds
	AutoOpenNextRound  bool     `json:"auto_open_next_round"`
	CelebrationSeconds int      `json:"celebration_seconds,omitempty"`
	TierMaxPerTeam     *int     `json:"tier_max_per_team,omitempty"`
	ReservePerSlot     *float64 `json:"reserve_per_slot,omitempty"` // overrides MinViableBid for reserve math
}

// Auction represents a live auction instance.
type Auction struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Status      AuctionStatus   `json:"status"`
	Currency    string          `json:"currency"`
	Settings    AuctionSettings `json:"settings"`
	Queue       []uuid.UUID     `json:"queue"`        // ordered player IDs awaiting a round
	QueueCursor int             `json:"queue_cursor"` // index of next item; advances forward only
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
