package events

import (
	"math/big"
	"strconv"

	"nhbenergy/core/types"
	"nhbenergy/crypto"
)

const (
	TypeLockCreated        = "lock.created"
	TypeLockReleased       = "lock.released"
	TypeLockReduced        = "lock.reduced"
	TypeLockPenaltyApplied = "lock.penalty"
	TypeLockFeesForwarded  = "lock.fees.forwarded"
	TypeLockParamsUpdated  = "lock.params.updated"
)

// LockCreated is emitted when base tokens are locked into a new lot.
type LockCreated struct {
	Owner       [20]byte
	Nonce       uint64
	Amount      *big.Int
	UnlockEpoch uint64
}

func (LockCreated) EventType() string { return TypeLockCreated }

func (e LockCreated) Event() *types.Event {
	return &types.Event{Type: TypeLockCreated, Attributes: map[string]string{
		"owner":       crypto.Address(e.Owner).String(),
		"nonce":       strconv.FormatUint(e.Nonce, 10),
		"amount":      bigString(e.Amount),
		"unlockEpoch": strconv.FormatUint(e.UnlockEpoch, 10),
	}}
}

// LockReleased is emitted when locked tokens are turned back into base tokens.
type LockReleased struct {
	Owner  [20]byte
	Nonce  uint64
	Amount *big.Int
	Early  bool
}

func (LockReleased) EventType() string { return TypeLockReleased }

func (e LockReleased) Event() *types.Event {
	return &types.Event{Type: TypeLockReleased, Attributes: map[string]string{
		"owner":  crypto.Address(e.Owner).String(),
		"nonce":  strconv.FormatUint(e.Nonce, 10),
		"amount": bigString(e.Amount),
		"early":  strconv.FormatBool(e.Early),
	}}
}

// LockReduced is emitted when a lot is relocked with a shorter duration.
type LockReduced struct {
	Owner          [20]byte
	OldNonce       uint64
	NewNonce       uint64
	EpochsReduced  uint64
	NewUnlockEpoch uint64
	Amount         *big.Int
}

func (LockReduced) EventType() string { return TypeLockReduced }

func (e LockReduced) Event() *types.Event {
	return &types.Event{Type: TypeLockReduced, Attributes: map[string]string{
		"owner":          crypto.Address(e.Owner).String(),
		"oldNonce":       strconv.FormatUint(e.OldNonce, 10),
		"newNonce":       strconv.FormatUint(e.NewNonce, 10),
		"epochsReduced":  strconv.FormatUint(e.EpochsReduced, 10),
		"newUnlockEpoch": strconv.FormatUint(e.NewUnlockEpoch, 10),
		"amount":         bigString(e.Amount),
	}}
}

// LockPenaltyApplied records how an early-exit penalty was split.
type LockPenaltyApplied struct {
	Owner   [20]byte
	Nonce   uint64
	Penalty *big.Int
	Burned  *big.Int
	Pending *big.Int
}

func (LockPenaltyApplied) EventType() string { return TypeLockPenaltyApplied }

func (e LockPenaltyApplied) Event() *types.Event {
	return &types.Event{Type: TypeLockPenaltyApplied, Attributes: map[string]string{
		"owner":   crypto.Address(e.Owner).String(),
		"nonce":   strconv.FormatUint(e.Nonce, 10),
		"penalty": bigString(e.Penalty),
		"burned":  bigString(e.Burned),
		"pending": bigString(e.Pending),
	}}
}

// LockFeesForwarded is emitted when pending penalty fees reach the collector.
type LockFeesForwarded struct {
	Collector [20]byte
	Nonce     uint64
	Amount    *big.Int
	Epoch     uint64
}

func (LockFeesForwarded) EventType() string { return TypeLockFeesForwarded }

func (e LockFeesForwarded) Event() *types.Event {
	return &types.Event{Type: TypeLockFeesForwarded, Attributes: map[string]string{
		"collector": crypto.Address(e.Collector).String(),
		"nonce":     strconv.FormatUint(e.Nonce, 10),
		"amount":    bigString(e.Amount),
		"epoch":     strconv.FormatUint(e.Epoch, 10),
	}}
}

// LockParamsUpdated is emitted by the admin setters.
type LockParamsUpdated struct {
	Field string
	Value string
}

func (LockParamsUpdated) EventType() string { return TypeLockParamsUpdated }

func (e LockParamsUpdated) Event() *types.Event {
	return &types.Event{Type: TypeLockParamsUpdated, Attributes: map[string]string{
		"field": e.Field,
		"value": e.Value,
	}}
}
