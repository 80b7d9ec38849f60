package server

import (
	"math/big"

	"nhbenergy/core/types"
	"nhbenergy/crypto"
	"nhbenergy/native/energy"
	"nhbenergy/native/lock"
	"nhbenergy/native/rewards"
)

type paymentView struct {
	Token  string `json:"token"`
	Nonce  uint64 `json:"nonce"`
	Amount string `json:"amount"`
}

type tokenAmountView struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type bucketView struct {
	UnlockEpoch uint64 `json:"unlock_epoch"`
	Amount      string `json:"amount"`
}

type energyView struct {
	Amount            string       `json:"amount"`
	LastUpdateEpoch   uint64       `json:"last_update_epoch"`
	TotalLockedTokens string       `json:"total_locked_tokens"`
	Schedule          []bucketView `json:"schedule"`
}

type receiptView struct {
	Output  paymentView `json:"output"`
	Penalty string      `json:"penalty"`
	Energy  *energyView `json:"energy,omitempty"`
}

type pendingFeesView struct {
	Nonce  uint64 `json:"nonce"`
	Amount string `json:"amount"`
}

type lotView struct {
	Nonce        uint64 `json:"nonce"`
	Owner        string `json:"owner"`
	UnlockEpoch  uint64 `json:"unlock_epoch"`
	CreatedEpoch uint64 `json:"created_epoch"`
}

type claimView struct {
	FromWeek   uint64            `json:"from_week"`
	ToWeek     uint64            `json:"to_week"`
	Payouts    []tokenAmountView `json:"payouts"`
	NextEnergy string            `json:"next_energy"`
}

type weekView struct {
	Week              uint64            `json:"week"`
	Computed          bool              `json:"computed"`
	Rewards           []tokenAmountView `json:"rewards"`
	TotalEnergy       string            `json:"total_energy,omitempty"`
	TotalParticipants uint64            `json:"total_participants"`
	Pending           []tokenAmountView `json:"pending_deposits,omitempty"`
}

type paramsView struct {
	Epoch                uint64           `json:"epoch"`
	Week                 uint64           `json:"week"`
	BaseToken            string           `json:"base_token"`
	LockedToken          string           `json:"locked_token"`
	LockOptions          []uint64         `json:"lock_options"`
	ReductionGranularity uint64           `json:"reduction_granularity"`
	FeeForwardInterval   uint64           `json:"fee_forward_interval"`
	PenaltyMinBps        uint64           `json:"penalty_min_bps"`
	PenaltyMaxBps        uint64           `json:"penalty_max_bps"`
	FeesBurnBps          uint64           `json:"fees_burn_bps"`
	FeesCollector        string           `json:"fees_collector"`
	LastForwardEpoch     uint64           `json:"last_forward_epoch"`
	PendingFees          *pendingFeesView `json:"pending_fees,omitempty"`
}

func addressString(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.Address(addr).String()
}

func newPaymentView(p types.Payment) paymentView {
	return paymentView{Token: p.Token, Nonce: p.Nonce, Amount: formatAmount(p.Amount)}
}

func newTokenAmountViews(list []types.TokenAmount) []tokenAmountView {
	out := make([]tokenAmountView, 0, len(list))
	for _, entry := range list {
		out = append(out, tokenAmountView{Token: entry.Token, Amount: formatAmount(entry.Amount)})
	}
	return out
}

func newEnergyView(e *energy.Entry) *energyView {
	if e == nil {
		return nil
	}
	view := &energyView{
		Amount:            formatAmount(e.Amount),
		LastUpdateEpoch:   e.LastUpdateEpoch,
		TotalLockedTokens: formatAmount(e.TotalLockedTokens),
		Schedule:          make([]bucketView, 0, len(e.Schedule)),
	}
	for _, b := range e.Schedule {
		view.Schedule = append(view.Schedule, bucketView{UnlockEpoch: b.UnlockEpoch, Amount: formatAmount(b.Amount)})
	}
	return view
}

func newReceiptView(r *lock.Receipt) receiptView {
	penalty := r.Penalty
	if penalty == nil {
		penalty = big.NewInt(0)
	}
	return receiptView{Output: newPaymentView(r.Output), Penalty: penalty.String(), Energy: newEnergyView(r.Energy)}
}

func newPendingFeesView(p *lock.PendingFees) *pendingFeesView {
	if p == nil {
		return nil
	}
	return &pendingFeesView{Nonce: p.Nonce, Amount: formatAmount(p.Amount)}
}

func newClaimView(r *rewards.ClaimResult) claimView {
	return claimView{
		FromWeek:   r.FromWeek,
		ToWeek:     r.ToWeek,
		Payouts:    newTokenAmountViews(r.Payouts),
		NextEnergy: formatAmount(r.NextEnergy),
	}
}

func newWeekView(week uint64, snapshot rewards.Snapshot, pending []types.TokenAmount) weekView {
	view := weekView{Week: week, Rewards: []tokenAmountView{}}
	if computed, ok := snapshot.(rewards.Computed); ok {
		view.Computed = true
		view.Rewards = newTokenAmountViews(computed.Total.Rewards)
		view.TotalEnergy = formatAmount(computed.Total.TotalEnergy)
		view.TotalParticipants = computed.Total.TotalParticipants
		return view
	}
	view.Pending = newTokenAmountViews(pending)
	return view
}
