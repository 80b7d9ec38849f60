package state

import (
	"fmt"

	"nhbenergy/native/energy"
)

// EnergyEntry loads the user's stored energy entry.
func (m *Manager) EnergyEntry(user [20]byte) (*energy.Entry, bool, error) {
	entry := new(energy.Entry)
	ok, err := m.KVGet(withAddress(energyEntryPrefix, user), entry)
	if err != nil || !ok {
		return nil, ok, err
	}
	if entry.Schedule == nil {
		entry.Schedule = []energy.Bucket{}
	}
	return entry, true, nil
}

// PutEnergyEntry persists the entry. Negative amounts never reach storage.
func (m *Manager) PutEnergyEntry(user [20]byte, entry *energy.Entry) error {
	if entry == nil {
		return fmt.Errorf("energy entry must not be nil")
	}
	if (entry.Amount != nil && entry.Amount.Sign() < 0) || (entry.TotalLockedTokens != nil && entry.TotalLockedTokens.Sign() < 0) {
		return fmt.Errorf("%w: refusing to persist negative totals", energy.ErrCorruptedEnergyState)
	}
	return m.KVPut(withAddress(energyEntryPrefix, user), entry.Clone())
}
