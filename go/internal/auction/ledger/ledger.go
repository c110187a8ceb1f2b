package ledger

import "fmt"

// Reason explains why a bid cannot be accepted.
type Reason string

const (
	ReasonInsufficientBudget Reason = "INSUFFICIENT_BUDGET"
	ReasonNoSlotsRemaining   Reason = "NO_SLOTS_REMAINING"
	ReasonTierLimitReached   Reason = "TIER_LIMIT_REACHED"
)

// TeamFinance is the snapshot of a team's budget and roster position used to
// evaluate a bid. Callers assemble it from authoritative state; the ledger
// itself holds nothing.
type TeamFinance struct {
	Budget       float64
	Spent        float64
	SlotsFilled  int
	SquadSize    int
	MinViableBid float64 // domain floor bid; 0 disables the reserve

	// Optional per-tier constraint: how many players of the candidate item's
	// tier the team already owns, and the max allowed. TierMax <= 0 disables
	// the check.
	TierCount int
	TierMax   int
}

// Decision is the outcome of a CanAccept check.
type Decision struct {
	OK     bool
	Reason Reason
}

// Err renders the decision as an error, nil when OK.
func (d Decision) Err() error {
	if d.OK {
		return nil
	}
	return fmt.Errorf("bid rejected: %s", d.Reason)
}

// CanAccept reports whether a team could commit amount for one roster slot.
// Pure computation, safe to call speculatively before committing a bid.
//
// Beyond the plain remaining-budget check, it reserves one minimum viable bid
// for every other unfilled mandatory slot so a team cannot zero out its
// budget and strand the rest of its roster.
func CanAccept(f TeamFinance, amount float64) Decision {
	slotsLeft := f.SquadSize - f.SlotsFilled
	if slotsLeft <= 0 {
		return Decision{Reason: ReasonNoSlotsRemaining}
	}

	if f.TierMax > 0 && f.TierCount >= f.TierMax {
		return Decision{Reason: ReasonTierLimitReached}
	}

	remaining := f.Budget - f.Spent
	if amount > remaining {
		return Decision{Reason: ReasonInsufficientBudget}
	}

	reserve := float64(slotsLeft-1) * f.MinViableBid
	if remaining-amount < reserve {
		// Accepting would leave the team unable to fill its remaining
		// mandatory slots at the floor bid.
		return Decision{Reason: ReasonNoSlotsRemaining}
	}

	return Decision{OK: true}
}
