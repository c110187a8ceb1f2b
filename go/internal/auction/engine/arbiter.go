package engine

import (
	"github.com/gavelhq/gavel/go/internal/auction/ledger"
	"github.com/gavelhq/gavel/go/internal/models"
)

// The arbiter is the single sequence point for bid decisions. Submissions are
// already serialized by the room loop when they reach arbitrate, so "earliest
// server receipt wins" falls out naturally: the first of two equal bids is
// recorded as highest and the second fails the increment rule.

// bidContext carries everything arbitrate needs to judge one submission.
type bidContext struct {
	Round     *models.Round
	Highest   *models.Bid // nil when no bid has been accepted yet
	Player    *models.Player
	Team      *models.Team
	Settings  models.AuctionSettings
	TierCount int // players of this item's tier the team already owns
}

// arbitrate applies the acceptance rules in order: round open, amount rule,
// ledger check. It returns ok plus a reason code when rejected.
func arbitrate(c bidContext, amount float64) (string, bool) {
	if c.Round == nil || c.Round.Status != models.RoundStatusOpen {
		return ReasonRoundNotOpen, false
	}

	if amount < minimumAcceptable(c.Highest, c.Player, c.Settings) {
		return ReasonBidTooLow, false
	}
	// With no configured increment a new bid must still strictly beat the
	// standing one; equal amounts lose the tie to the earlier receipt.
	if c.Highest != nil && amount <= c.Highest.Amount {
		return ReasonBidTooLow, false
	}

	dec := ledger.CanAccept(teamFinance(c), amount)
	if !dec.OK {
		return string(dec.Reason), false
	}

	return "", true
}

// minimumAcceptable computes the floor for the next bid: the opening price
// when no bid stands, otherwise the highest bid plus the minimum increment.
func minimumAcceptable(highest *models.Bid, player *models.Player, s models.AuctionSettings) float64 {
	if highest == nil {
		open := s.MinViableBid
		if player != nil && player.BasePrice > open {
			open = player.BasePrice
		}
		return open
	}
	return highest.Amount + s.MinBidIncrement
}

func teamFinance(c bidContext) ledger.TeamFinance {
	f := ledger.TeamFinance{
		Budget:       c.Team.Budget,
		Spent:        c.Team.Spent,
		SlotsFilled:  c.Team.SlotsFilled,
		SquadSize:    c.Settings.SquadSize,
		MinViableBid: c.Settings.MinViableBid,
		TierCount:    c.TierCount,
	}
	if c.Settings.ReservePerSlot != nil {
		f.MinViableBid = *c.Settings.ReservePerSlot
	}
	if c.Settings.TierMaxPerTeam != nil {
		f.TierMax = *c.Settings.TierMaxPerTeam
	}
	return f
}
