package ledger

import "testing"

func TestCanAccept(t *testing.T) {
	base := TeamFinance{
		Budget:       1000,
		Spent:        0,
		SlotsFilled:  0,
		SquadSize:    11,
		MinViableBid: 10,
	}

	tests := []struct {
		name    string
		finance TeamFinance
		amount  float64
		wantOK  bool
		reason  Reason
	}{
		{
			name:    "plain accept",
			finance: base,
			amount:  500,
			wantOK:  true,
		},
		{
			name:    "spends everything but the reserve",
			finance: base,
			amount:  900, // leaves 100 = 10 slots * 10 floor
			wantOK:  true,
		},
		{
			name:    "reserve headroom breach",
			finance: base,
			amount:  991, // leaves 9 < 100 reserved for 10 remaining slots
			wantOK:  false,
			reason:  ReasonNoSlotsRemaining,
		},
		{
			name:    "over remaining budget",
			finance: TeamFinance{Budget: 1000, Spent: 800, SlotsFilled: 10, SquadSize: 11, MinViableBid: 10},
			amount:  300,
			wantOK:  false,
			reason:  ReasonInsufficientBudget,
		},
		{
			name:    "squad already full",
			finance: TeamFinance{Budget: 1000, Spent: 100, SlotsFilled: 11, SquadSize: 11, MinViableBid: 10},
			amount:  10,
			wantOK:  false,
			reason:  ReasonNoSlotsRemaining,
		},
		{
			name: "tier limit reached",
			finance: TeamFinance{
				Budget: 1000, SlotsFilled: 3, SquadSize: 11, MinViableBid: 10,
				TierCount: 2, TierMax: 2,
			},
			amount: 50,
			wantOK: false,
			reason: ReasonTierLimitReached,
		},
		{
			name: "tier check disabled when max is zero",
			finance: TeamFinance{
				Budget: 1000, SlotsFilled: 3, SquadSize: 11, MinViableBid: 10,
				TierCount: 5, TierMax: 0,
			},
			amount: 50,
			wantOK: true,
		},
		{
			name:    "no reserve when floor bid is zero",
			finance: TeamFinance{Budget: 1000, SquadSize: 11},
			amount:  1000,
			wantOK:  true,
		},
		{
			name:    "last slot may take the whole remaining budget",
			finance: TeamFinance{Budget: 1000, Spent: 900, SlotsFilled: 10, SquadSize: 11, MinViableBid: 10},
			amount:  100,
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanAccept(tt.finance, tt.amount)
			if got.OK != tt.wantOK {
				t.Fatalf("CanAccept(%+v, %v) ok = %v, want %v", tt.finance, tt.amount, got.OK, tt.wantOK)
			}
			if !tt.wantOK && got.Reason != tt.reason {
				t.Fatalf("CanAccept(%+v, %v) reason = %s, want %s", tt.finance, tt.amount, got.Reason, tt.reason)
			}
			if tt.wantOK && got.Err() != nil {
				t.Fatalf("Err() = %v on accepted decision", got.Err())
			}
		})
	}
}

func TestCanAcceptIsPure(t *testing.T) {
	f := TeamFinance{Budget: 500, Spent: 100, SlotsFilled: 2, SquadSize: 5, MinViableBid: 10}
	before := f
	for i := 0; i < 3; i++ {
		CanAccept(f, 250)
	}
	if f != before {
		t.Fatalf("TeamFinance mutated: %+v != %+v", f, before)
	}
}
