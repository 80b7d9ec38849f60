package events

import (
	"math/big"
	"strconv"

	"nhbenergy/core/types"
	"nhbenergy/crypto"
)

const (
	// TypeEnergyUpdated is emitted whenever a user's energy entry changes.
	TypeEnergyUpdated = "energy.updated"
)

// EnergyUpdated captures a user's energy right after a lock or unlock.
type EnergyUpdated struct {
	User        [20]byte
	Amount      *big.Int
	TotalLocked *big.Int
	Epoch       uint64
	Reason      string
}

func (EnergyUpdated) EventType() string { return TypeEnergyUpdated }

func (e EnergyUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeEnergyUpdated,
		Attributes: map[string]string{
			"user":        crypto.Address(e.User).String(),
			"amount":      bigString(e.Amount),
			"totalLocked": bigString(e.TotalLocked),
			"epoch":       strconv.FormatUint(e.Epoch, 10),
			"reason":      e.Reason,
		},
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
