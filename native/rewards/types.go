package rewards

import (
	"math/big"

	"nhbenergy/core/types"
)

// WeeklyTotal is the frozen reward pool and energy weight of one week.
type WeeklyTotal struct {
	Week              uint64
	Rewards           []types.TokenAmount
	TotalEnergy       *big.Int
	TotalParticipants uint64
}

// Clone returns a deep copy.
func (w *WeeklyTotal) Clone() *WeeklyTotal {
	if w == nil {
		return nil
	}
	out := &WeeklyTotal{
		Week:              w.Week,
		Rewards:           types.CloneTokenAmounts(w.Rewards),
		TotalEnergy:       big.NewInt(0),
		TotalParticipants: w.TotalParticipants,
	}
	if w.TotalEnergy != nil {
		out.TotalEnergy.Set(w.TotalEnergy)
	}
	return out
}

// ClaimProgress is a user's claim cursor. Weeks at or below Week are settled.
type ClaimProgress struct {
	Week   uint64
	Energy *big.Int
}

// ClaimResult summarises a claim.
type ClaimResult struct {
	FromWeek   uint64
	ToWeek     uint64
	Payouts    []types.TokenAmount
	NextEnergy *big.Int
}

// NextWeekWeight is the user's recorded energy for the upcoming week.
type NextWeekWeight struct {
	Week              uint64
	UserEnergy        *big.Int
	TotalEnergy       *big.Int
	TotalParticipants uint64
}
