package lock

import (
	"math/big"

	"nhbenergy/core/types"
	"nhbenergy/native/energy"
)

// Lot holds the attributes of a locked token nonce. The quantity held by any
// account lives in the bank under (LockedToken, Nonce).
type Lot struct {
	Nonce        uint64
	Owner        [20]byte
	UnlockEpoch  uint64
	CreatedEpoch uint64
}

// PendingFees is the penalty share awaiting forward to the collector. It is
// always a single lot held by the module account.
type PendingFees struct {
	Nonce  uint64
	Amount *big.Int
}

// Clone returns a deep copy.
func (p *PendingFees) Clone() *PendingFees {
	if p == nil {
		return nil
	}
	out := &PendingFees{Nonce: p.Nonce, Amount: big.NewInt(0)}
	if p.Amount != nil {
		out.Amount.Set(p.Amount)
	}
	return out
}

// Receipt describes what a lock-changing operation handed back to the caller.
type Receipt struct {
	Output  types.Payment
	Penalty *big.Int
	Energy  *energy.Entry
}

// Settings is the runtime-adjustable configuration as currently stored.
type Settings struct {
	Penalty          PenaltyPercentage
	FeesBurnBps      uint64
	FeesCollector    [20]byte
	LastForwardEpoch uint64
	Pending          *PendingFees
}
