package energy

import (
	"fmt"
	"math/big"

	"nhbenergy/core/events"
)

// Reasons attached to energy update events.
const (
	ReasonLock   = "lock"
	ReasonUnlock = "unlock"
)

type engineState interface {
	EnergyEntry(user [20]byte) (*Entry, bool, error)
	PutEnergyEntry(user [20]byte, entry *Entry) error
}

// Ledger owns the per-user energy entries.
type Ledger struct {
	state   engineState
	emitter events.Emitter
}

// NewLedger returns a ledger with a no-op emitter. Callers must configure the
// state via SetState before use.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

func (l *Ledger) SetState(state engineState) { l.state = state }

func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) load(user [20]byte, current uint64) (*Entry, error) {
	if l == nil || l.state == nil {
		return nil, fmt.Errorf("energy: state not configured")
	}
	entry, ok, err := l.state.EnergyEntry(user)
	if err != nil {
		return nil, err
	}
	if !ok || entry == nil {
		return NewEntry(current), nil
	}
	return entry, nil
}

// Energy returns the user's entry decayed to current. Users without history
// get a zero entry anchored at current.
func (l *Ledger) Energy(user [20]byte, current uint64) (*Entry, error) {
	entry, err := l.load(user, current)
	if err != nil {
		return nil, err
	}
	entry.DecayTo(current)
	return entry, nil
}

// NonNegative returns the user's energy clamped at zero.
func (l *Ledger) NonNegative(user [20]byte, current uint64) (*big.Int, error) {
	entry, err := l.Energy(user, current)
	if err != nil {
		return nil, err
	}
	return entry.NonNegative(), nil
}

// ApplyLock records amount newly locked until unlockEpoch.
func (l *Ledger) ApplyLock(user [20]byte, amount *big.Int, unlockEpoch, current uint64) (*Entry, error) {
	entry, err := l.load(user, current)
	if err != nil {
		return nil, err
	}
	if err := entry.AddAfterLock(amount, unlockEpoch, current); err != nil {
		return nil, err
	}
	return entry, l.store(user, entry, ReasonLock)
}

// ApplyUnlock removes amount that was locked until unlockEpoch. A depletion
// larger than the stored energy is reported as ErrCorruptedEnergyState.
func (l *Ledger) ApplyUnlock(user [20]byte, amount *big.Int, unlockEpoch, current uint64) (*Entry, error) {
	entry, err := l.load(user, current)
	if err != nil {
		return nil, err
	}
	if err := entry.DepleteAfterUnlock(amount, unlockEpoch, current); err != nil {
		return nil, err
	}
	return entry, l.store(user, entry, ReasonUnlock)
}

func (l *Ledger) store(user [20]byte, entry *Entry, reason string) error {
	if err := l.state.PutEnergyEntry(user, entry); err != nil {
		return err
	}
	l.emitter.Emit(events.EnergyUpdated{
		User:        user,
		Amount:      copyBigInt(entry.Amount),
		TotalLocked: copyBigInt(entry.TotalLockedTokens),
		Epoch:       entry.LastUpdateEpoch,
		Reason:      reason,
	})
	return nil
}
