package state

import (
	"nhbenergy/core/types"
)

func (m *Manager) FeeCollectorWeekRewards(week uint64) ([]types.TokenAmount, error) {
	var rewards []types.TokenAmount
	if err := m.KVGetList(withUint(feeCollectorWeekPrefix, week), &rewards); err != nil {
		return nil, err
	}
	return rewards, nil
}

func (m *Manager) FeeCollectorPutWeekRewards(week uint64, rewards []types.TokenAmount) error {
	key := withUint(feeCollectorWeekPrefix, week)
	if len(rewards) == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, rewards)
}

func (m *Manager) FeeCollectorCollected(week uint64) (bool, error) {
	var collected bool
	_, err := m.KVGet(withUint(feeCollectorCollectedPrefix, week), &collected)
	return collected, err
}

func (m *Manager) FeeCollectorMarkCollected(week uint64) error {
	return m.KVPut(withUint(feeCollectorCollectedPrefix, week), true)
}

func (m *Manager) FeeCollectorLockedInventory() ([]types.Payment, error) {
	var lots []types.Payment
	if err := m.KVGetList(feeCollectorInventoryKey, &lots); err != nil {
		return nil, err
	}
	return lots, nil
}

func (m *Manager) FeeCollectorPutLockedInventory(lots []types.Payment) error {
	if len(lots) == 0 {
		return m.KVDelete(feeCollectorInventoryKey)
	}
	return m.KVPut(feeCollectorInventoryKey, lots)
}
