package state

import (
	"fmt"
	"math/big"

	"nhbenergy/native/rewards"
)

func (m *Manager) RewardsWeeklyTotal(week uint64) (*rewards.WeeklyTotal, bool, error) {
	total := new(rewards.WeeklyTotal)
	ok, err := m.KVGet(withUint(rewardsWeeklyTotalPrefix, week), total)
	if err != nil || !ok {
		return nil, ok, err
	}
	if total.TotalEnergy == nil {
		total.TotalEnergy = big.NewInt(0)
	}
	return total, true, nil
}

// RewardsPutWeeklyTotal stores a week's total. Totals are write-once.
func (m *Manager) RewardsPutWeeklyTotal(total *rewards.WeeklyTotal) error {
	if total == nil {
		return fmt.Errorf("weekly total must not be nil")
	}
	key := withUint(rewardsWeeklyTotalPrefix, total.Week)
	exists, err := m.KVGet(key, nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("weekly total for week %d already stored", total.Week)
	}
	return m.KVPut(key, total)
}

func (m *Manager) RewardsUserEnergy(user [20]byte, week uint64) (*big.Int, error) {
	return m.bigOrZero(withAddressUint(rewardsUserEnergyPrefix, user, week))
}

func (m *Manager) RewardsPutUserEnergy(user [20]byte, week uint64, amount *big.Int) error {
	return m.putBig(withAddressUint(rewardsUserEnergyPrefix, user, week), amount)
}

func (m *Manager) RewardsTotalEnergy(week uint64) (*big.Int, error) {
	return m.bigOrZero(withUint(rewardsTotalEnergyPrefix, week))
}

func (m *Manager) RewardsPutTotalEnergy(week uint64, amount *big.Int) error {
	return m.putBig(withUint(rewardsTotalEnergyPrefix, week), amount)
}

func (m *Manager) RewardsTotalParticipants(week uint64) (uint64, error) {
	var count uint64
	_, err := m.KVGet(withUint(rewardsParticipantPrefix, week), &count)
	return count, err
}

func (m *Manager) RewardsPutTotalParticipants(week uint64, count uint64) error {
	return m.KVPut(withUint(rewardsParticipantPrefix, week), count)
}

func (m *Manager) RewardsClaimProgress(user [20]byte) (*rewards.ClaimProgress, bool, error) {
	progress := new(rewards.ClaimProgress)
	ok, err := m.KVGet(withAddress(rewardsProgressPrefix, user), progress)
	if err != nil || !ok {
		return nil, ok, err
	}
	if progress.Energy == nil {
		progress.Energy = big.NewInt(0)
	}
	return progress, true, nil
}

func (m *Manager) RewardsPutClaimProgress(user [20]byte, progress *rewards.ClaimProgress) error {
	if progress == nil {
		return fmt.Errorf("claim progress must not be nil")
	}
	current, ok, err := m.RewardsClaimProgress(user)
	if err != nil {
		return err
	}
	if ok && progress.Week < current.Week {
		return fmt.Errorf("claim progress cannot move backwards (%d < %d)", progress.Week, current.Week)
	}
	return m.KVPut(withAddress(rewardsProgressPrefix, user), progress)
}

func (m *Manager) bigOrZero(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (m *Manager) putBig(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative value not allowed")
	}
	return m.KVPut(key, amount)
}
