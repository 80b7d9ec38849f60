package feecollector

import (
	"fmt"
	"math/big"
	"strings"

	"nhbenergy/core/epoch"
	coreerrors "nhbenergy/core/errors"
	"nhbenergy/core/events"
	"nhbenergy/core/types"
	"nhbenergy/native/common"
)

// ModuleName is the pause key guarding deposits.
const ModuleName = "feecollector"

var (
	errNilState            = coreerrors.Invariant("fee collector: state not configured")
	errMissingCollaborator = coreerrors.Invariant("fee collector: collaborator not configured")
	errInventoryShort      = coreerrors.Invariant("fee collector: locked inventory cannot cover payout")
	errInvalidDeposit      = coreerrors.Validation("fee collector: deposit must be positive")
	errNonFungibleDeposit  = coreerrors.Validation("fee collector: only the locked token may carry a nonce")
	errLockedDeposit       = coreerrors.Validation("fee collector: locked lots are only accepted from the lock module")
)

type engineState interface {
	FeeCollectorWeekRewards(week uint64) ([]types.TokenAmount, error)
	FeeCollectorPutWeekRewards(week uint64, rewards []types.TokenAmount) error
	FeeCollectorCollected(week uint64) (bool, error)
	FeeCollectorMarkCollected(week uint64) error
	FeeCollectorLockedInventory() ([]types.Payment, error)
	FeeCollectorPutLockedInventory(lots []types.Payment) error
}

// Bank moves tokens out of the collector account.
type Bank interface {
	Transfer(from, to [20]byte, token string, nonce uint64, amount *big.Int) error
}

// LockedReceiver accounts energy for locked lots handed to a user.
type LockedReceiver interface {
	CreditLockedTransfer(user [20]byte, nonce uint64, amount *big.Int) error
}

// Collector accumulates fees per week and pays out claimed rewards. Locked
// token deposits are held as individual lots and paid out oldest first.
type Collector struct {
	state        engineState
	emitter      events.Emitter
	bank         Bank
	locked       LockedReceiver
	clock        epoch.Clock
	weeks        epoch.Timekeeper
	pauses       common.PauseView
	account      [20]byte
	lockedToken  string
	lockedSource [20]byte
}

// NewCollector returns a collector owning account. lockedToken identifies
// the token whose deposits carry lot nonces.
func NewCollector(account [20]byte, lockedToken string, weeks epoch.Timekeeper) *Collector {
	return &Collector{
		emitter:     events.NoopEmitter{},
		account:     account,
		lockedToken: strings.ToUpper(strings.TrimSpace(lockedToken)),
		weeks:       weeks,
	}
}

func (c *Collector) SetState(state engineState) { c.state = state }

func (c *Collector) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

func (c *Collector) SetBank(bank Bank)                   { c.bank = bank }
func (c *Collector) SetLockedReceiver(r LockedReceiver) { c.locked = r }
func (c *Collector) SetClock(clock epoch.Clock)          { c.clock = clock }
func (c *Collector) SetPauses(p common.PauseView)        { c.pauses = p }

// SetLockedSource names the only account allowed to deposit locked lots. The
// energy of a lot stays with its holder, so a lot arriving from anywhere else
// would be weighted twice once it is paid out.
func (c *Collector) SetLockedSource(source [20]byte) { c.lockedSource = source }

// Account returns the collector's contract address.
func (c *Collector) Account() [20]byte { return c.account }

// DepositWeek returns the week a deposit made now is credited to: the current
// week, or the next one once the current week has been collected.
func (c *Collector) DepositWeek() (uint64, error) {
	if c == nil || c.state == nil {
		return 0, errNilState
	}
	if c.clock == nil {
		return 0, errMissingCollaborator
	}
	week := c.weeks.WeekForEpoch(c.clock.CurrentEpoch())
	if week == 0 {
		week = 1
	}
	for {
		collected, err := c.state.FeeCollectorCollected(week)
		if err != nil {
			return 0, err
		}
		if !collected {
			return week, nil
		}
		week++
	}
}

// HandleDeposit books a payment that has already been transferred to the
// collector account.
func (c *Collector) HandleDeposit(from [20]byte, payment types.Payment) error {
	if c == nil || c.state == nil {
		return errNilState
	}
	if err := common.Guard(c.pauses, ModuleName); err != nil {
		return err
	}
	if payment.Amount == nil || payment.Amount.Sign() <= 0 {
		return errInvalidDeposit
	}
	token := strings.ToUpper(strings.TrimSpace(payment.Token))
	if payment.Nonce != 0 && token != c.lockedToken {
		return errNonFungibleDeposit
	}
	if token == c.lockedToken && (c.lockedSource == ([20]byte{}) || from != c.lockedSource) {
		return errLockedDeposit
	}
	week, err := c.DepositWeek()
	if err != nil {
		return err
	}
	existing, err := c.state.FeeCollectorWeekRewards(week)
	if err != nil {
		return err
	}
	merged := types.MergeTokenAmounts(existing, []types.TokenAmount{{Token: token, Amount: payment.Amount}})
	if err := c.state.FeeCollectorPutWeekRewards(week, merged); err != nil {
		return err
	}
	if token == c.lockedToken {
		if err := c.addInventory(payment.Nonce, payment.Amount); err != nil {
			return err
		}
	}
	c.emitter.Emit(events.FeesDeposited{From: from, Week: week, Token: token, Amount: new(big.Int).Set(payment.Amount)})
	return nil
}

// WeekRewards returns what has accumulated for week so far.
func (c *Collector) WeekRewards(week uint64) ([]types.TokenAmount, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	return c.state.FeeCollectorWeekRewards(week)
}

// CollectRewardsForWeek drains week's accumulator and marks it collected.
// Later calls for the same week return nothing.
func (c *Collector) CollectRewardsForWeek(week uint64) ([]types.TokenAmount, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	collected, err := c.state.FeeCollectorCollected(week)
	if err != nil {
		return nil, err
	}
	if collected {
		return nil, nil
	}
	rewards, err := c.state.FeeCollectorWeekRewards(week)
	if err != nil {
		return nil, err
	}
	if err := c.state.FeeCollectorPutWeekRewards(week, nil); err != nil {
		return nil, err
	}
	if err := c.state.FeeCollectorMarkCollected(week); err != nil {
		return nil, err
	}
	return rewards, nil
}

// PayRewards transfers the rewards to user. Locked token amounts are drawn
// from the oldest held lots and credited to the user's energy.
func (c *Collector) PayRewards(to [20]byte, rewards []types.TokenAmount) error {
	if c == nil || c.state == nil {
		return errNilState
	}
	if c.bank == nil {
		return errMissingCollaborator
	}
	for _, reward := range rewards {
		if reward.Amount == nil || reward.Amount.Sign() <= 0 {
			continue
		}
		token := strings.ToUpper(strings.TrimSpace(reward.Token))
		if token == c.lockedToken {
			if err := c.payLocked(to, reward.Amount); err != nil {
				return err
			}
			continue
		}
		if err := c.bank.Transfer(c.account, to, token, 0, reward.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) payLocked(to [20]byte, amount *big.Int) error {
	if c.locked == nil {
		return errMissingCollaborator
	}
	inventory, err := c.state.FeeCollectorLockedInventory()
	if err != nil {
		return err
	}
	owed := new(big.Int).Set(amount)
	for len(inventory) > 0 && owed.Sign() > 0 {
		lot := &inventory[0]
		take := new(big.Int).Set(owed)
		if lot.Amount.Cmp(take) < 0 {
			take.Set(lot.Amount)
		}
		if err := c.bank.Transfer(c.account, to, c.lockedToken, lot.Nonce, take); err != nil {
			return err
		}
		if err := c.locked.CreditLockedTransfer(to, lot.Nonce, take); err != nil {
			return err
		}
		owed.Sub(owed, take)
		lot.Amount = new(big.Int).Sub(lot.Amount, take)
		if lot.Amount.Sign() == 0 {
			inventory = inventory[1:]
		}
	}
	if owed.Sign() > 0 {
		return fmt.Errorf("%w: short by %s", errInventoryShort, owed)
	}
	return c.state.FeeCollectorPutLockedInventory(inventory)
}

func (c *Collector) addInventory(nonce uint64, amount *big.Int) error {
	inventory, err := c.state.FeeCollectorLockedInventory()
	if err != nil {
		return err
	}
	for i := range inventory {
		if inventory[i].Nonce == nonce {
			inventory[i].Amount = new(big.Int).Add(inventory[i].Amount, amount)
			return c.state.FeeCollectorPutLockedInventory(inventory)
		}
	}
	inventory = append(inventory, types.Payment{Token: c.lockedToken, Nonce: nonce, Amount: new(big.Int).Set(amount)})
	return c.state.FeeCollectorPutLockedInventory(inventory)
}
