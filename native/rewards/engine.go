package rewards

import (
	"fmt"
	"math/big"

	"nhbenergy/core/epoch"
	coreerrors "nhbenergy/core/errors"
	"nhbenergy/core/events"
	"nhbenergy/core/types"
	"nhbenergy/native/common"
	"nhbenergy/observability/metrics"
)

// ModuleName is the pause key guarding claims.
const ModuleName = "rewards"

// DefaultMaxClaimWeeks leaves a single claim unbounded. A positive limit caps
// how many weeks one claim walks; the rest stay claimable.
const DefaultMaxClaimWeeks uint64 = 0

var (
	errNilState            = coreerrors.Invariant("rewards engine: state not configured")
	errMissingCollaborator = coreerrors.Invariant("rewards engine: collaborator not configured")
	errUnknownSnapshot     = coreerrors.Invariant("rewards engine: unknown snapshot variant")
	errAccumulatorNegative = coreerrors.Invariant("rewards engine: week energy accumulator underflow")
	errInvalidWeek         = coreerrors.Validation("rewards engine: invalid week")
)

type engineState interface {
	RewardsWeeklyTotal(week uint64) (*WeeklyTotal, bool, error)
	RewardsPutWeeklyTotal(total *WeeklyTotal) error
	RewardsUserEnergy(user [20]byte, week uint64) (*big.Int, error)
	RewardsPutUserEnergy(user [20]byte, week uint64, amount *big.Int) error
	RewardsTotalEnergy(week uint64) (*big.Int, error)
	RewardsPutTotalEnergy(week uint64, amount *big.Int) error
	RewardsTotalParticipants(week uint64) (uint64, error)
	RewardsPutTotalParticipants(week uint64, count uint64) error
	RewardsClaimProgress(user [20]byte) (*ClaimProgress, bool, error)
	RewardsPutClaimProgress(user [20]byte, progress *ClaimProgress) error
}

// EnergySource reports a user's non-negative energy at an epoch.
type EnergySource interface {
	NonNegative(user [20]byte, current uint64) (*big.Int, error)
}

// Payer delivers claimed rewards to a user.
type Payer interface {
	PayRewards(to [20]byte, rewards []types.TokenAmount) error
}

// Engine splits weekly reward pools by recorded energy.
type Engine struct {
	state         engineState
	emitter       events.Emitter
	energy        EnergySource
	payer         Payer
	collect       CollectPolicy
	clock         epoch.Clock
	weeks         epoch.Timekeeper
	pauses        common.PauseView
	maxClaimWeeks uint64
	telemetry     *metrics.EnergyMetrics
}

// NewEngine constructs a rewards engine using the supplied week mapping.
func NewEngine(weeks epoch.Timekeeper) *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		weeks:         weeks,
		maxClaimWeeks: DefaultMaxClaimWeeks,
		telemetry:     metrics.Energy(),
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetEnergySource(source EnergySource) { e.energy = source }
func (e *Engine) SetPayer(payer Payer)                { e.payer = payer }
func (e *Engine) SetCollectPolicy(policy CollectPolicy) {
	e.collect = policy
}
func (e *Engine) SetClock(clock epoch.Clock)   { e.clock = clock }
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetMaxClaimWeeks caps how many weeks a single claim walks. Zero removes the
// cap.
func (e *Engine) SetMaxClaimWeeks(n uint64) { e.maxClaimWeeks = n }

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.energy == nil || e.clock == nil {
		return errMissingCollaborator
	}
	return nil
}

// CurrentWeek returns the week containing the current epoch.
func (e *Engine) CurrentWeek() uint64 {
	if e == nil || e.clock == nil {
		return 0
	}
	return e.weeks.WeekForEpoch(e.clock.CurrentEpoch())
}

// Progress returns the user's claim cursor.
func (e *Engine) Progress(user [20]byte) (*ClaimProgress, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	progress, ok, err := e.state.RewardsClaimProgress(user)
	if err != nil {
		return nil, err
	}
	if !ok || progress == nil {
		return &ClaimProgress{Energy: big.NewInt(0)}, nil
	}
	return progress, nil
}

// Claim settles unclaimed weeks up to targetWeek and pays the merged shares.
// With a claim cap the walk stops after that many weeks and the cursor only
// moves past the weeks actually settled.
func (e *Engine) Claim(user [20]byte, targetWeek uint64) (*ClaimResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	current := e.clock.CurrentEpoch()
	currentWeek := e.weeks.WeekForEpoch(current)
	if targetWeek == 0 || targetWeek > currentWeek {
		return nil, fmt.Errorf("%w: %d (current week %d)", errInvalidWeek, targetWeek, currentWeek)
	}
	progress, err := e.Progress(user)
	if err != nil {
		return nil, err
	}

	// The target week's pool is fixed by the claim even when the caller has
	// no energy in it.
	if _, err := e.WeekTotal(targetWeek); err != nil {
		return nil, err
	}

	start := progress.Week + 1
	end := targetWeek
	if e.maxClaimWeeks > 0 && start <= end && end-start+1 > e.maxClaimWeeks {
		end = start + e.maxClaimWeeks - 1
	}
	var shares []types.TokenAmount
	for week := start; week <= end; week++ {
		weekShares, err := e.sharesForWeek(user, week)
		if err != nil {
			return nil, err
		}
		shares = append(shares, weekShares...)
	}
	payouts := types.MergeTokenAmounts(shares)
	if len(payouts) > 0 {
		if e.payer == nil {
			return nil, errMissingCollaborator
		}
		if err := e.payer.PayRewards(user, payouts); err != nil {
			return nil, err
		}
		for _, payout := range payouts {
			e.telemetry.RecordClaimPayout(payout.Token, payout.Amount)
		}
	}

	if end > progress.Week {
		progress.Week = end
	}
	next, err := e.refresh(user, current)
	if err != nil {
		return nil, err
	}
	progress.Energy = new(big.Int).Set(next.UserEnergy)
	if err := e.state.RewardsPutClaimProgress(user, progress); err != nil {
		return nil, err
	}

	result := &ClaimResult{FromWeek: start, ToWeek: end, Payouts: payouts, NextEnergy: next.UserEnergy}
	e.emit(events.RewardsClaimed{
		User:       user,
		FromWeek:   start,
		ToWeek:     end,
		Payouts:    types.CloneTokenAmounts(payouts),
		NextEnergy: new(big.Int).Set(next.UserEnergy),
	})
	return result, nil
}

func (e *Engine) sharesForWeek(user [20]byte, week uint64) ([]types.TokenAmount, error) {
	userEnergy, err := e.state.RewardsUserEnergy(user, week)
	if err != nil {
		return nil, err
	}
	if userEnergy.Sign() <= 0 {
		return nil, nil
	}
	total, err := e.WeekTotal(week)
	if err != nil {
		return nil, err
	}
	if total.TotalEnergy == nil || total.TotalEnergy.Sign() <= 0 {
		return nil, nil
	}
	shares := make([]types.TokenAmount, 0, len(total.Rewards))
	for _, reward := range total.Rewards {
		share := new(big.Int).Mul(reward.Amount, userEnergy)
		share.Quo(share, total.TotalEnergy)
		if share.Sign() == 0 {
			continue
		}
		shares = append(shares, types.TokenAmount{Token: reward.Token, Amount: share})
	}
	return shares, nil
}

// RefreshNextWeek replaces the user's contribution to next week's energy
// weight with their current energy.
func (e *Engine) RefreshNextWeek(user [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	_, err := e.refresh(user, e.clock.CurrentEpoch())
	return err
}

func (e *Engine) refresh(user [20]byte, current uint64) (*NextWeekWeight, error) {
	next := e.weeks.WeekForEpoch(current) + 1
	previous, err := e.state.RewardsUserEnergy(user, next)
	if err != nil {
		return nil, err
	}
	energy, err := e.energy.NonNegative(user, current)
	if err != nil {
		return nil, err
	}
	total, err := e.state.RewardsTotalEnergy(next)
	if err != nil {
		return nil, err
	}
	total = new(big.Int).Sub(total, previous)
	if total.Sign() < 0 {
		return nil, fmt.Errorf("%w: week %d", errAccumulatorNegative, next)
	}
	total.Add(total, energy)

	participants, err := e.state.RewardsTotalParticipants(next)
	if err != nil {
		return nil, err
	}
	switch {
	case previous.Sign() == 0 && energy.Sign() > 0:
		participants++
	case previous.Sign() > 0 && energy.Sign() == 0:
		if participants == 0 {
			return nil, fmt.Errorf("%w: participants for week %d", errAccumulatorNegative, next)
		}
		participants--
	}

	if err := e.state.RewardsPutUserEnergy(user, next, energy); err != nil {
		return nil, err
	}
	if err := e.state.RewardsPutTotalEnergy(next, total); err != nil {
		return nil, err
	}
	if err := e.state.RewardsPutTotalParticipants(next, participants); err != nil {
		return nil, err
	}
	return &NextWeekWeight{Week: next, UserEnergy: energy, TotalEnergy: total, TotalParticipants: participants}, nil
}

// WeekWeight returns the accumulated energy weights recorded for week.
func (e *Engine) WeekWeight(user [20]byte, week uint64) (*NextWeekWeight, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	userEnergy, err := e.state.RewardsUserEnergy(user, week)
	if err != nil {
		return nil, err
	}
	total, err := e.state.RewardsTotalEnergy(week)
	if err != nil {
		return nil, err
	}
	participants, err := e.state.RewardsTotalParticipants(week)
	if err != nil {
		return nil, err
	}
	return &NextWeekWeight{Week: week, UserEnergy: userEnergy, TotalEnergy: total, TotalParticipants: participants}, nil
}

func eventWeekComputed(total *WeeklyTotal) events.Event {
	return events.RewardsWeekComputed{
		Week:              total.Week,
		Rewards:           types.CloneTokenAmounts(total.Rewards),
		TotalEnergy:       new(big.Int).Set(total.TotalEnergy),
		TotalParticipants: total.TotalParticipants,
	}
}
