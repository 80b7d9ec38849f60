package events

import (
	"math/big"
	"strconv"
	"strings"

	"nhbenergy/core/types"
	"nhbenergy/crypto"
)

const (
	TypeRewardsWeekComputed = "rewards.week.computed"
	TypeRewardsClaimed      = "rewards.claimed"
	TypeFeesDeposited       = "fees.deposited"
)

// RewardsWeekComputed is emitted once per week when its totals are frozen.
type RewardsWeekComputed struct {
	Week              uint64
	Rewards           []types.TokenAmount
	TotalEnergy       *big.Int
	TotalParticipants uint64
}

func (RewardsWeekComputed) EventType() string { return TypeRewardsWeekComputed }

func (e RewardsWeekComputed) Event() *types.Event {
	return &types.Event{Type: TypeRewardsWeekComputed, Attributes: map[string]string{
		"week":         strconv.FormatUint(e.Week, 10),
		"rewards":      formatTokenAmounts(e.Rewards),
		"totalEnergy":  bigString(e.TotalEnergy),
		"participants": strconv.FormatUint(e.TotalParticipants, 10),
	}}
}

// RewardsClaimed is emitted after a claim, even when nothing was paid.
type RewardsClaimed struct {
	User       [20]byte
	FromWeek   uint64
	ToWeek     uint64
	Payouts    []types.TokenAmount
	NextEnergy *big.Int
}

func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeRewardsClaimed, Attributes: map[string]string{
		"user":       crypto.Address(e.User).String(),
		"fromWeek":   strconv.FormatUint(e.FromWeek, 10),
		"toWeek":     strconv.FormatUint(e.ToWeek, 10),
		"payouts":    formatTokenAmounts(e.Payouts),
		"nextEnergy": bigString(e.NextEnergy),
	}}
}

// FeesDeposited is emitted when the collector credits a deposit to a week.
type FeesDeposited struct {
	From   [20]byte
	Week   uint64
	Token  string
	Amount *big.Int
}

func (FeesDeposited) EventType() string { return TypeFeesDeposited }

func (e FeesDeposited) Event() *types.Event {
	return &types.Event{Type: TypeFeesDeposited, Attributes: map[string]string{
		"from":   crypto.Address(e.From).String(),
		"week":   strconv.FormatUint(e.Week, 10),
		"token":  e.Token,
		"amount": bigString(e.Amount),
	}}
}

func formatTokenAmounts(list []types.TokenAmount) string {
	parts := make([]string, 0, len(list))
	for _, entry := range list {
		parts = append(parts, entry.Token+":"+bigString(entry.Amount))
	}
	return strings.Join(parts, ",")
}
