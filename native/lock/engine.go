package lock

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"nhbenergy/core/epoch"
	coreerrors "nhbenergy/core/errors"
	"nhbenergy/core/events"
	"nhbenergy/core/types"
	"nhbenergy/native/common"
	"nhbenergy/native/energy"
	"nhbenergy/observability/metrics"
)

// ModuleName is the pause key guarding every mutating lock operation.
const ModuleName = "lock"

// DepositFeesEndpoint is the collector entry point receiving forwarded fees.
const DepositFeesEndpoint = "depositSwapFees"

var (
	errNilState              = coreerrors.Invariant("lock engine: state not configured")
	errMissingCollaborator   = coreerrors.Invariant("lock engine: collaborator not configured")
	errInvalidAmount         = coreerrors.Validation("lock engine: amount must be positive")
	errWrongToken            = coreerrors.Validation("lock engine: unexpected payment token")
	errInvalidLockOption     = coreerrors.Validation("lock engine: invalid lock option")
	errInvalidEpochsToReduce = coreerrors.Validation("lock engine: invalid epochs to reduce")
	errUnknownLot            = coreerrors.Validation("lock engine: unknown locked token nonce")
	errCollectorNotContract  = coreerrors.Validation("lock engine: collector must be a contract")
	errAlreadyUnlockable     = coreerrors.Precondition("lock engine: position already unlockable")
	errStillLocked           = coreerrors.Precondition("lock engine: position still locked")
	errNothingRemaining      = coreerrors.Precondition("lock engine: no tokens remaining after penalty")
	errNoPendingFees         = coreerrors.Precondition("lock engine: no pending penalty fees")
	errCollectorNotSet       = coreerrors.Precondition("lock engine: fees collector not configured")
	errInvalidLotSchedule    = coreerrors.Invariant("lock engine: lot unlock epoch precedes creation")
)

type engineState interface {
	LockLot(nonce uint64) (*Lot, bool, error)
	LockPutLot(lot *Lot) error
	LockNextNonce() (uint64, error)
	LockPenaltyPercentage() (*PenaltyPercentage, bool, error)
	LockPutPenaltyPercentage(p PenaltyPercentage) error
	LockFeesBurnBps() (uint64, bool, error)
	LockPutFeesBurnBps(bps uint64) error
	LockFeesCollector() ([20]byte, bool, error)
	LockPutFeesCollector(addr [20]byte) error
	LockPendingFees() (*PendingFees, bool, error)
	LockPutPendingFees(fees *PendingFees) error
	LockClearPendingFees() error
	LockLastForwardEpoch() (uint64, error)
	LockPutLastForwardEpoch(epoch uint64) error
}

// Bank moves token lots between accounts.
type Bank interface {
	Mint(to [20]byte, token string, nonce uint64, amount *big.Int) error
	Burn(from [20]byte, token string, nonce uint64, amount *big.Int) error
	Transfer(from, to [20]byte, token string, nonce uint64, amount *big.Int) error
}

// EnergyLedger is the slice of the energy ledger used by the lock engine.
type EnergyLedger interface {
	ApplyLock(user [20]byte, amount *big.Int, unlockEpoch, current uint64) (*energy.Entry, error)
	ApplyUnlock(user [20]byte, amount *big.Int, unlockEpoch, current uint64) (*energy.Entry, error)
}

// EnergyObserver is told whenever a user's energy changed so next week's
// reward weights stay current.
type EnergyObserver interface {
	RefreshNextWeek(user [20]byte) error
}

// ContractRouter forwards payments to registered contracts.
type ContractRouter interface {
	IsContract(addr [20]byte) bool
	Forward(from, to [20]byte, endpoint string, payment types.Payment) error
}

// Engine implements locking, early exit and penalty fee handling.
type Engine struct {
	state       engineState
	emitter     events.Emitter
	bank        Bank
	energy      EnergyLedger
	observer    EnergyObserver
	router      ContractRouter
	pauses      common.PauseView
	permissions common.Permissions
	clock       epoch.Clock
	merge       MergePolicy
	params      Params
	account     [20]byte
	telemetry   *metrics.EnergyMetrics
}

// NewEngine constructs a lock engine for the module account. Collaborators
// are configured through the setters before use.
func NewEngine(account [20]byte, params Params) *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		merge:     KeepEarliestAcquired,
		params:    params.Clone(),
		account:   account,
		telemetry: metrics.Energy(),
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

func (e *Engine) SetBank(bank Bank)                         { e.bank = bank }
func (e *Engine) SetEnergyLedger(ledger EnergyLedger)       { e.energy = ledger }
func (e *Engine) SetEnergyObserver(observer EnergyObserver) { e.observer = observer }
func (e *Engine) SetContractRouter(router ContractRouter)   { e.router = router }
func (e *Engine) SetPauses(p common.PauseView)              { e.pauses = p }
func (e *Engine) SetPermissions(p common.Permissions)       { e.permissions = p }
func (e *Engine) SetClock(clock epoch.Clock)                { e.clock = clock }

// SetMergePolicy overrides how pending penalty lots are merged.
func (e *Engine) SetMergePolicy(policy MergePolicy) {
	if policy == nil {
		policy = KeepEarliestAcquired
	}
	e.merge = policy
}

// Account returns the module account holding custody and pending fees.
func (e *Engine) Account() [20]byte { return e.account }

// Params returns a copy of the static configuration.
func (e *Engine) Params() Params { return e.params.Clone() }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.bank == nil || e.energy == nil || e.clock == nil {
		return errMissingCollaborator
	}
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) requireOwner(caller [20]byte) error {
	if e.permissions == nil {
		return common.ErrNotOwner
	}
	return e.permissions.RequireOwner(caller)
}

// --- admin ---

// SetPenaltyPercentage updates the penalty bounds. Owner only.
func (e *Engine) SetPenaltyPercentage(caller [20]byte, min, max uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	pct := PenaltyPercentage{Min: min, Max: max}
	if err := pct.Validate(); err != nil {
		return err
	}
	if err := e.state.LockPutPenaltyPercentage(pct); err != nil {
		return err
	}
	e.emit(events.LockParamsUpdated{Field: "penaltyPercentage", Value: fmt.Sprintf("%d-%d", min, max)})
	return nil
}

// SetFeesBurnPercentage updates the burned share of penalties. Owner only.
func (e *Engine) SetFeesBurnPercentage(caller [20]byte, bps uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if bps > MaxPercentage {
		return fmt.Errorf("%w: burn %d", errInvalidPercentage, bps)
	}
	if err := e.state.LockPutFeesBurnBps(bps); err != nil {
		return err
	}
	e.emit(events.LockParamsUpdated{Field: "feesBurnPercentage", Value: strconv.FormatUint(bps, 10)})
	return nil
}

// SetFeesCollectorAddress points fee forwarding at a registered contract.
// Owner only.
func (e *Engine) SetFeesCollectorAddress(caller [20]byte, collector [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.router == nil || !e.router.IsContract(collector) {
		return errCollectorNotContract
	}
	if err := e.state.LockPutFeesCollector(collector); err != nil {
		return err
	}
	e.emit(events.LockParamsUpdated{Field: "feesCollector", Value: fmt.Sprintf("%x", collector)})
	return nil
}

// --- views ---

func (e *Engine) penaltyPercentage() (PenaltyPercentage, error) {
	stored, ok, err := e.state.LockPenaltyPercentage()
	if err != nil {
		return PenaltyPercentage{}, err
	}
	if !ok || stored == nil {
		return e.params.Penalty, nil
	}
	return *stored, nil
}

func (e *Engine) feesBurnBps() (uint64, error) {
	stored, ok, err := e.state.LockFeesBurnBps()
	if err != nil {
		return 0, err
	}
	if !ok {
		return e.params.FeesBurnBps, nil
	}
	return stored, nil
}

func (e *Engine) feesCollector() ([20]byte, error) {
	stored, ok, err := e.state.LockFeesCollector()
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return e.params.FeesCollector, nil
	}
	return stored, nil
}

// Settings returns the currently effective runtime configuration.
func (e *Engine) Settings() (*Settings, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pct, err := e.penaltyPercentage()
	if err != nil {
		return nil, err
	}
	burn, err := e.feesBurnBps()
	if err != nil {
		return nil, err
	}
	collector, err := e.feesCollector()
	if err != nil {
		return nil, err
	}
	last, err := e.state.LockLastForwardEpoch()
	if err != nil {
		return nil, err
	}
	pending, _, err := e.state.LockPendingFees()
	if err != nil {
		return nil, err
	}
	return &Settings{Penalty: pct, FeesBurnBps: burn, FeesCollector: collector, LastForwardEpoch: last, Pending: pending}, nil
}

// Calculator returns the penalty calculator for the current settings.
func (e *Engine) Calculator() (PenaltyCalculator, error) {
	if e == nil || e.state == nil {
		return PenaltyCalculator{}, errNilState
	}
	pct, err := e.penaltyPercentage()
	if err != nil {
		return PenaltyCalculator{}, err
	}
	return PenaltyCalculator{Percentage: pct, MaxLockOption: e.params.MaxLockOption()}, nil
}

// PenaltyAmount previews the penalty for reducing amount by epochsToReduce.
func (e *Engine) PenaltyAmount(amount *big.Int, epochsToReduce uint64) (*big.Int, error) {
	calc, err := e.Calculator()
	if err != nil {
		return nil, err
	}
	return calc.Penalty(amount, epochsToReduce), nil
}

// Lot returns the attributes of a locked token nonce.
func (e *Engine) Lot(nonce uint64) (*Lot, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	lot, ok, err := e.state.LockLot(nonce)
	if err != nil {
		return nil, err
	}
	if !ok || lot == nil {
		return nil, errUnknownLot
	}
	return lot, nil
}

// --- operations ---

// LockTokens turns base tokens into a freshly minted locked lot maturing
// lockEpochs from now.
func (e *Engine) LockTokens(caller [20]byte, payment types.Payment, lockEpochs uint64) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := e.checkPayment(payment, e.params.BaseToken); err != nil {
		return nil, err
	}
	if payment.Nonce != 0 {
		return nil, errWrongToken
	}
	if !e.params.hasLockOption(lockEpochs) {
		return nil, fmt.Errorf("%w: %d", errInvalidLockOption, lockEpochs)
	}
	current := e.clock.CurrentEpoch()
	if err := e.bank.Transfer(caller, e.account, e.params.BaseToken, 0, payment.Amount); err != nil {
		return nil, err
	}
	unlock := current + lockEpochs
	nonce, err := e.newLot(caller, unlock, current)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Mint(caller, e.params.LockedToken, nonce, payment.Amount); err != nil {
		return nil, err
	}
	entry, err := e.energy.ApplyLock(caller, payment.Amount, unlock, current)
	if err != nil {
		return nil, err
	}
	if err := e.refresh(caller); err != nil {
		return nil, err
	}
	e.emit(events.LockCreated{Owner: caller, Nonce: nonce, Amount: new(big.Int).Set(payment.Amount), UnlockEpoch: unlock})
	return &Receipt{
		Output:  types.Payment{Token: e.params.LockedToken, Nonce: nonce, Amount: new(big.Int).Set(payment.Amount)},
		Penalty: big.NewInt(0),
		Energy:  entry,
	}, nil
}

// Unlock releases a matured lot back into base tokens without penalty.
func (e *Engine) Unlock(caller [20]byte, payment types.Payment) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := e.checkPayment(payment, e.params.LockedToken); err != nil {
		return nil, err
	}
	lot, err := e.Lot(payment.Nonce)
	if err != nil {
		return nil, err
	}
	current := e.clock.CurrentEpoch()
	if lot.UnlockEpoch > current {
		return nil, fmt.Errorf("%w: unlocks at epoch %d", errStillLocked, lot.UnlockEpoch)
	}
	if err := e.bank.Transfer(caller, e.account, e.params.LockedToken, lot.Nonce, payment.Amount); err != nil {
		return nil, err
	}
	if err := e.bank.Burn(e.account, e.params.LockedToken, lot.Nonce, payment.Amount); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.account, caller, e.params.BaseToken, 0, payment.Amount); err != nil {
		return nil, err
	}
	entry, err := e.energy.ApplyUnlock(caller, payment.Amount, lot.UnlockEpoch, current)
	if err != nil {
		return nil, err
	}
	if err := e.refresh(caller); err != nil {
		return nil, err
	}
	e.emit(events.LockReleased{Owner: caller, Nonce: lot.Nonce, Amount: new(big.Int).Set(payment.Amount)})
	return &Receipt{
		Output:  types.Payment{Token: e.params.BaseToken, Amount: new(big.Int).Set(payment.Amount)},
		Penalty: big.NewInt(0),
		Energy:  entry,
	}, nil
}

// UnlockEarly exits a lot immediately, paying the full-duration penalty.
func (e *Engine) UnlockEarly(caller [20]byte, payment types.Payment) (*Receipt, error) {
	return e.reduce(caller, payment, 0, true)
}

// ReduceLockPeriod shortens a lot by epochsToReduce, paying a penalty that
// grows with the reduction.
func (e *Engine) ReduceLockPeriod(caller [20]byte, payment types.Payment, epochsToReduce uint64) (*Receipt, error) {
	if epochsToReduce == 0 || epochsToReduce%e.params.ReductionGranularity != 0 {
		return nil, fmt.Errorf("%w: %d is not a positive multiple of %d", errInvalidEpochsToReduce, epochsToReduce, e.params.ReductionGranularity)
	}
	return e.reduce(caller, payment, epochsToReduce, false)
}

func (e *Engine) reduce(caller [20]byte, payment types.Payment, epochsToReduce uint64, full bool) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if err := e.checkPayment(payment, e.params.LockedToken); err != nil {
		return nil, err
	}
	lot, err := e.Lot(payment.Nonce)
	if err != nil {
		return nil, err
	}
	current := e.clock.CurrentEpoch()
	if lot.UnlockEpoch <= current {
		return nil, errAlreadyUnlockable
	}
	remaining := lot.UnlockEpoch - current
	if full {
		epochsToReduce = remaining
	}
	if epochsToReduce > remaining {
		return nil, fmt.Errorf("%w: %d exceeds remaining %d", errInvalidEpochsToReduce, epochsToReduce, remaining)
	}
	calc, err := e.Calculator()
	if err != nil {
		return nil, err
	}
	amount := payment.Amount
	penalty := calc.Penalty(amount, epochsToReduce)
	remainder := new(big.Int).Sub(amount, penalty)
	if remainder.Sign() <= 0 {
		return nil, errNothingRemaining
	}

	if err := e.bank.Transfer(caller, e.account, e.params.LockedToken, lot.Nonce, amount); err != nil {
		return nil, err
	}
	entry, err := e.energy.ApplyUnlock(caller, amount, lot.UnlockEpoch, current)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Burn(e.account, e.params.LockedToken, lot.Nonce, remainder); err != nil {
		return nil, err
	}
	if penalty.Sign() > 0 {
		if err := e.chargePenalty(caller, lot, penalty, current); err != nil {
			return nil, err
		}
	}

	newUnlock := lot.UnlockEpoch - epochsToReduce
	receipt := &Receipt{Penalty: penalty}
	if newUnlock == current {
		if err := e.bank.Transfer(e.account, caller, e.params.BaseToken, 0, remainder); err != nil {
			return nil, err
		}
		receipt.Output = types.Payment{Token: e.params.BaseToken, Amount: new(big.Int).Set(remainder)}
		e.emit(events.LockReleased{Owner: caller, Nonce: lot.Nonce, Amount: new(big.Int).Set(remainder), Early: true})
	} else {
		nonce, err := e.newLot(caller, newUnlock, current)
		if err != nil {
			return nil, err
		}
		if err := e.bank.Mint(caller, e.params.LockedToken, nonce, remainder); err != nil {
			return nil, err
		}
		if entry, err = e.energy.ApplyLock(caller, remainder, newUnlock, current); err != nil {
			return nil, err
		}
		receipt.Output = types.Payment{Token: e.params.LockedToken, Nonce: nonce, Amount: new(big.Int).Set(remainder)}
		e.emit(events.LockReduced{
			Owner:          caller,
			OldNonce:       lot.Nonce,
			NewNonce:       nonce,
			EpochsReduced:  epochsToReduce,
			NewUnlockEpoch: newUnlock,
			Amount:         new(big.Int).Set(remainder),
		})
	}
	if err := e.refresh(caller); err != nil {
		return nil, err
	}
	receipt.Energy = entry
	return receipt, nil
}

// CreditLockedTransfer accounts energy for locked tokens delivered to user by
// a contract payout. The bank transfer itself is the caller's job.
func (e *Engine) CreditLockedTransfer(user [20]byte, nonce uint64, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	lot, err := e.Lot(nonce)
	if err != nil {
		return err
	}
	current := e.clock.CurrentEpoch()
	if _, err := e.energy.ApplyLock(user, amount, lot.UnlockEpoch, current); err != nil {
		return err
	}
	return nil
}

// SendFeesToCollector forwards the pending penalty lot to the collector.
func (e *Engine) SendFeesToCollector() (*PendingFees, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	return e.forwardFees(e.clock.CurrentEpoch())
}

func (e *Engine) chargePenalty(caller [20]byte, lot *Lot, penalty *big.Int, current uint64) error {
	burnBps, err := e.feesBurnBps()
	if err != nil {
		return err
	}
	burned := bpsOf(penalty, burnBps)
	if burned.Sign() > 0 {
		if err := e.bank.Burn(e.account, e.params.LockedToken, lot.Nonce, burned); err != nil {
			return err
		}
		if err := e.bank.Burn(e.account, e.params.BaseToken, 0, burned); err != nil {
			return err
		}
	}
	kept := new(big.Int).Sub(penalty, burned)
	if kept.Sign() > 0 {
		if err := e.accumulateFees(lot, kept); err != nil {
			return err
		}
	}
	e.telemetry.RecordPenalty(penalty, burned)
	e.emit(events.LockPenaltyApplied{Owner: caller, Nonce: lot.Nonce, Penalty: new(big.Int).Set(penalty), Burned: burned, Pending: kept})
	if kept.Sign() == 0 {
		return nil
	}
	return e.maybeForward(current)
}

func (e *Engine) accumulateFees(lot *Lot, amount *big.Int) error {
	pending, ok, err := e.state.LockPendingFees()
	if err != nil {
		return err
	}
	if !ok || pending == nil || pending.Amount == nil || pending.Amount.Sign() == 0 {
		return e.state.LockPutPendingFees(&PendingFees{Nonce: lot.Nonce, Amount: new(big.Int).Set(amount)})
	}
	existing, err := e.Lot(pending.Nonce)
	if err != nil {
		return fmt.Errorf("pending fees lot: %w", err)
	}
	chosen := e.merge(*existing, *lot)
	if err := e.moveLot(pending.Nonce, chosen.Nonce, pending.Amount); err != nil {
		return err
	}
	if err := e.moveLot(lot.Nonce, chosen.Nonce, amount); err != nil {
		return err
	}
	total := new(big.Int).Add(pending.Amount, amount)
	return e.state.LockPutPendingFees(&PendingFees{Nonce: chosen.Nonce, Amount: total})
}

// moveLot re-issues amount held by the module from one nonce to another.
func (e *Engine) moveLot(from, to uint64, amount *big.Int) error {
	if from == to || amount.Sign() == 0 {
		return nil
	}
	if err := e.bank.Burn(e.account, e.params.LockedToken, from, amount); err != nil {
		return err
	}
	return e.bank.Mint(e.account, e.params.LockedToken, to, amount)
}

func (e *Engine) maybeForward(current uint64) error {
	collector, err := e.feesCollector()
	if err != nil {
		return err
	}
	if collector == ([20]byte{}) {
		return nil
	}
	last, err := e.state.LockLastForwardEpoch()
	if err != nil {
		return err
	}
	if current < last+e.params.FeeForwardInterval {
		return nil
	}
	_, err = e.forwardFees(current)
	return err
}

func (e *Engine) forwardFees(current uint64) (*PendingFees, error) {
	pending, ok, err := e.state.LockPendingFees()
	if err != nil {
		return nil, err
	}
	if !ok || pending == nil || pending.Amount == nil || pending.Amount.Sign() == 0 {
		return nil, errNoPendingFees
	}
	collector, err := e.feesCollector()
	if err != nil {
		return nil, err
	}
	if collector == ([20]byte{}) {
		return nil, errCollectorNotSet
	}
	if e.router == nil {
		return nil, errMissingCollaborator
	}
	payment := types.Payment{Token: e.params.LockedToken, Nonce: pending.Nonce, Amount: new(big.Int).Set(pending.Amount)}
	if err := e.router.Forward(e.account, collector, DepositFeesEndpoint, payment); err != nil {
		return nil, fmt.Errorf("forward fees: %w", err)
	}
	if err := e.state.LockClearPendingFees(); err != nil {
		return nil, err
	}
	if err := e.state.LockPutLastForwardEpoch(current); err != nil {
		return nil, err
	}
	e.telemetry.RecordFeesForwarded(pending.Amount)
	e.emit(events.LockFeesForwarded{Collector: collector, Nonce: pending.Nonce, Amount: new(big.Int).Set(pending.Amount), Epoch: current})
	return pending, nil
}

func (e *Engine) newLot(owner [20]byte, unlock, current uint64) (uint64, error) {
	if unlock <= current {
		return 0, errInvalidLotSchedule
	}
	nonce, err := e.state.LockNextNonce()
	if err != nil {
		return 0, err
	}
	lot := &Lot{Nonce: nonce, Owner: owner, UnlockEpoch: unlock, CreatedEpoch: current}
	if err := e.state.LockPutLot(lot); err != nil {
		return 0, err
	}
	return nonce, nil
}

func (e *Engine) refresh(user [20]byte) error {
	if e.observer == nil {
		return nil
	}
	return e.observer.RefreshNextWeek(user)
}

func (e *Engine) checkPayment(payment types.Payment, token string) error {
	if payment.Amount == nil || payment.Amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if !strings.EqualFold(payment.Token, token) {
		return fmt.Errorf("%w: got %s, want %s", errWrongToken, payment.Token, token)
	}
	return nil
}
