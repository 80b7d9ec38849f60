package energy

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	coreerrors "nhbenergy/core/errors"
)

// ErrCorruptedEnergyState is returned when a depletion exceeds the stored
// energy or the schedule does not hold the tokens being removed. It is never
// clamped.
var ErrCorruptedEnergyState = coreerrors.Invariant("energy: corrupted energy state")

var errNegativeAmount = errors.New("energy: amount must not be negative")

// Bucket groups the locked quantity maturing at a single epoch.
type Bucket struct {
	UnlockEpoch uint64
	Amount      *big.Int
}

// Entry is a user's energy as of LastUpdateEpoch. Amount always equals the sum
// of bucket.Amount × (bucket.UnlockEpoch − LastUpdateEpoch) over the schedule.
type Entry struct {
	Amount            *big.Int
	LastUpdateEpoch   uint64
	TotalLockedTokens *big.Int
	Schedule          []Bucket
}

// NewEntry returns an empty entry anchored at epoch.
func NewEntry(epoch uint64) *Entry {
	return &Entry{Amount: big.NewInt(0), LastUpdateEpoch: epoch, TotalLockedTokens: big.NewInt(0)}
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := &Entry{
		Amount:            copyBigInt(e.Amount),
		LastUpdateEpoch:   e.LastUpdateEpoch,
		TotalLockedTokens: copyBigInt(e.TotalLockedTokens),
	}
	if len(e.Schedule) > 0 {
		out.Schedule = make([]Bucket, len(e.Schedule))
		for i, bucket := range e.Schedule {
			out.Schedule[i] = Bucket{UnlockEpoch: bucket.UnlockEpoch, Amount: copyBigInt(bucket.Amount)}
		}
	}
	return out
}

func (e *Entry) ensure() {
	if e.Amount == nil {
		e.Amount = big.NewInt(0)
	}
	if e.TotalLockedTokens == nil {
		e.TotalLockedTokens = big.NewInt(0)
	}
}

// DecayTo advances the entry to epoch. Each bucket stops decaying once it
// matures, so the amount bottoms out at zero instead of going negative.
func (e *Entry) DecayTo(epoch uint64) {
	e.ensure()
	if epoch <= e.LastUpdateEpoch {
		return
	}
	live := e.Schedule[:0]
	for _, bucket := range e.Schedule {
		end := bucket.UnlockEpoch
		if end > epoch {
			end = epoch
		}
		if end > e.LastUpdateEpoch {
			decay := new(big.Int).Mul(bucket.Amount, new(big.Int).SetUint64(end-e.LastUpdateEpoch))
			e.Amount.Sub(e.Amount, decay)
		}
		if bucket.UnlockEpoch <= epoch {
			e.TotalLockedTokens.Sub(e.TotalLockedTokens, bucket.Amount)
			continue
		}
		live = append(live, bucket)
	}
	e.Schedule = live
	e.LastUpdateEpoch = epoch
}

// AddAfterLock credits amount locked until unlockEpoch. The entry is decayed
// to current first. Locks that are already mature carry no weight.
func (e *Entry) AddAfterLock(amount *big.Int, unlockEpoch, current uint64) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	e.DecayTo(current)
	e.LastUpdateEpoch = current
	if amount.Sign() == 0 || unlockEpoch <= current {
		return nil
	}
	weight := new(big.Int).Mul(amount, new(big.Int).SetUint64(unlockEpoch-current))
	e.Amount.Add(e.Amount, weight)
	e.TotalLockedTokens.Add(e.TotalLockedTokens, amount)

	idx := sort.Search(len(e.Schedule), func(i int) bool { return e.Schedule[i].UnlockEpoch >= unlockEpoch })
	if idx < len(e.Schedule) && e.Schedule[idx].UnlockEpoch == unlockEpoch {
		e.Schedule[idx].Amount = new(big.Int).Add(e.Schedule[idx].Amount, amount)
		return nil
	}
	e.Schedule = append(e.Schedule, Bucket{})
	copy(e.Schedule[idx+1:], e.Schedule[idx:])
	e.Schedule[idx] = Bucket{UnlockEpoch: unlockEpoch, Amount: new(big.Int).Set(amount)}
	return nil
}

// DepleteAfterUnlock removes amount that was locked until unlockEpoch. The
// entry is decayed to current first. Mature positions deplete nothing.
func (e *Entry) DepleteAfterUnlock(amount *big.Int, unlockEpoch, current uint64) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	e.DecayTo(current)
	e.LastUpdateEpoch = current
	if amount.Sign() == 0 || unlockEpoch <= current {
		return nil
	}
	depletion := new(big.Int).Mul(amount, new(big.Int).SetUint64(unlockEpoch-current))
	if depletion.Cmp(e.Amount) > 0 {
		return fmt.Errorf("%w: depletion %s exceeds energy %s", ErrCorruptedEnergyState, depletion, e.Amount)
	}
	idx := sort.Search(len(e.Schedule), func(i int) bool { return e.Schedule[i].UnlockEpoch >= unlockEpoch })
	if idx >= len(e.Schedule) || e.Schedule[idx].UnlockEpoch != unlockEpoch {
		return fmt.Errorf("%w: no tokens scheduled to unlock at epoch %d", ErrCorruptedEnergyState, unlockEpoch)
	}
	bucket := e.Schedule[idx]
	if bucket.Amount.Cmp(amount) < 0 {
		return fmt.Errorf("%w: removing %s from bucket holding %s", ErrCorruptedEnergyState, amount, bucket.Amount)
	}
	e.Amount.Sub(e.Amount, depletion)
	e.TotalLockedTokens.Sub(e.TotalLockedTokens, amount)
	remaining := new(big.Int).Sub(bucket.Amount, amount)
	if remaining.Sign() == 0 {
		e.Schedule = append(e.Schedule[:idx], e.Schedule[idx+1:]...)
	} else {
		e.Schedule[idx].Amount = remaining
	}
	return nil
}

// NonNegative returns the amount clamped at zero for reward weighting.
func (e *Entry) NonNegative() *big.Int {
	if e == nil || e.Amount == nil || e.Amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(e.Amount)
}

// Check verifies the schedule is consistent with the cached totals.
func (e *Entry) Check() error {
	e.ensure()
	amount := new(big.Int)
	locked := new(big.Int)
	var prev uint64
	for i, bucket := range e.Schedule {
		if bucket.Amount == nil || bucket.Amount.Sign() <= 0 {
			return fmt.Errorf("%w: empty bucket at epoch %d", ErrCorruptedEnergyState, bucket.UnlockEpoch)
		}
		if bucket.UnlockEpoch <= e.LastUpdateEpoch || (i > 0 && bucket.UnlockEpoch <= prev) {
			return fmt.Errorf("%w: schedule out of order at epoch %d", ErrCorruptedEnergyState, bucket.UnlockEpoch)
		}
		prev = bucket.UnlockEpoch
		amount.Add(amount, new(big.Int).Mul(bucket.Amount, new(big.Int).SetUint64(bucket.UnlockEpoch-e.LastUpdateEpoch)))
		locked.Add(locked, bucket.Amount)
	}
	if amount.Cmp(e.Amount) != 0 || locked.Cmp(e.TotalLockedTokens) != 0 {
		return fmt.Errorf("%w: totals disagree with schedule", ErrCorruptedEnergyState)
	}
	return nil
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
