package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundStatus defines the lifecycle status of a bidding round.
type RoundStatus string

const (
	RoundStatusPending RoundStatus = "PENDING"
	RoundStatusOpen    RoundStatus = "OPEN"
	RoundStatusClosed  RoundStatus = "CLOSED"
	RoundStatusSold    RoundStatus = "SOLD"
	RoundStatusUnsold  RoundStatus = "UNSOLD"
)

// Terminal reports whether the round has been resolved.
func (s RoundStatus) Terminal() bool {
	return s == RoundStatusSold || s == RoundStatusUnsold
}

// CloseReason records why a round stopped accepting bids.
type CloseReason string

const (
	CloseReasonTimerExpired   CloseReason = "TIMER_EXPIRED"
	CloseReasonManualClose    CloseReason = "MANUAL_CLOSE"
	CloseReasonAllTeamsPassed CloseReason = "ALL_TEAMS_PASSED"
)

// Round is the bidding window for exactly one player. At most one round is
// OPEN per auction at any instant.
type Round struct {
	ID           uuid.UUID    `json:"id"`
	AuctionID    uuid.UUID    `json:"auction_id"`
	PlayerID     uuid.UUID    `json:"player_id"`
	Status       RoundStatus  `json:"status"`
	OpenedAt     *time.Time   `json:"opened_at,omitempty"`
	ClosesAt     *time.Time   `json:"closes_at,omitempty"` // nil for untimed rounds
	ClosedAt     *time.Time   `json:"closed_at,omitempty"` // server-recorded close timestamp
	CloseReason  *CloseReason `json:"close_reason,omitempty"`
	WinningBidID *uuid.UUID   `json:"winning_bid_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
