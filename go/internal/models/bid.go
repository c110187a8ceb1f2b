package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid represents a single bid submission within a round. Immutable once
// recorded; at most one bid per round is marked accepted.
type Bid struct {
	ID         uuid.UUID `json:"id"`
	RoundID    uuid.UUID `json:"round_id"`
	TeamID     uuid.UUID `json:"team_id"`
	Amount     float64   `json:"amount"`
	ReceivedAt time.Time `json:"received_at"` // server receipt time, not client-reported
	Sequence   int       `json:"sequence"`    // receipt order within the round
	Accepted   bool      `json:"accepted"`
}
