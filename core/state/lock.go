package state

import (
	"math/big"

	"nhbenergy/native/lock"
)

func (m *Manager) LockLot(nonce uint64) (*lock.Lot, bool, error) {
	lot := new(lock.Lot)
	ok, err := m.KVGet(withUint(lockLotPrefix, nonce), lot)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lot, true, nil
}

func (m *Manager) LockPutLot(lot *lock.Lot) error {
	return m.KVPut(withUint(lockLotPrefix, lot.Nonce), lot)
}

// LockNextNonce increments and returns the locked token nonce counter.
// Nonces start at 1 so zero always denotes a fungible token.
func (m *Manager) LockNextNonce() (uint64, error) {
	var last uint64
	if _, err := m.KVGet(lockNonceKey, &last); err != nil {
		return 0, err
	}
	next := last + 1
	if err := m.KVPut(lockNonceKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

func (m *Manager) LockPenaltyPercentage() (*lock.PenaltyPercentage, bool, error) {
	pct := new(lock.PenaltyPercentage)
	ok, err := m.KVGet(lockPenaltyKey, pct)
	if err != nil || !ok {
		return nil, ok, err
	}
	return pct, true, nil
}

func (m *Manager) LockPutPenaltyPercentage(p lock.PenaltyPercentage) error {
	return m.KVPut(lockPenaltyKey, p)
}

func (m *Manager) LockFeesBurnBps() (uint64, bool, error) {
	var bps uint64
	ok, err := m.KVGet(lockBurnKey, &bps)
	return bps, ok, err
}

func (m *Manager) LockPutFeesBurnBps(bps uint64) error {
	return m.KVPut(lockBurnKey, bps)
}

func (m *Manager) LockFeesCollector() ([20]byte, bool, error) {
	var addr [20]byte
	ok, err := m.KVGet(lockCollectorKey, &addr)
	return addr, ok, err
}

func (m *Manager) LockPutFeesCollector(addr [20]byte) error {
	return m.KVPut(lockCollectorKey, addr)
}

func (m *Manager) LockPendingFees() (*lock.PendingFees, bool, error) {
	fees := new(lock.PendingFees)
	ok, err := m.KVGet(lockPendingFeesKey, fees)
	if err != nil || !ok {
		return nil, ok, err
	}
	if fees.Amount == nil {
		fees.Amount = big.NewInt(0)
	}
	return fees, true, nil
}

func (m *Manager) LockPutPendingFees(fees *lock.PendingFees) error {
	return m.KVPut(lockPendingFeesKey, fees)
}

func (m *Manager) LockClearPendingFees() error {
	return m.KVDelete(lockPendingFeesKey)
}

func (m *Manager) LockLastForwardEpoch() (uint64, error) {
	var epoch uint64
	_, err := m.KVGet(lockLastForwardEpochKey, &epoch)
	return epoch, err
}

func (m *Manager) LockPutLastForwardEpoch(epoch uint64) error {
	return m.KVPut(lockLastForwardEpochKey, epoch)
}
