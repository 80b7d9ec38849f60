package state

import (
	"encoding/binary"
	"fmt"
	"strings"
)

var (
	energyEntryPrefix = []byte("energy/entry/")

	lockLotPrefix           = []byte("lock/lot/")
	lockNonceKey            = []byte("lock/nonce")
	lockPenaltyKey          = []byte("lock/penalty-percentage")
	lockBurnKey             = []byte("lock/fees-burn-bps")
	lockCollectorKey        = []byte("lock/fees-collector")
	lockPendingFeesKey      = []byte("lock/pending-fees")
	lockLastForwardEpochKey = []byte("lock/last-forward-epoch")

	rewardsWeeklyTotalPrefix = []byte("rewards/weekly-total/")
	rewardsUserEnergyPrefix  = []byte("rewards/user-energy/")
	rewardsTotalEnergyPrefix = []byte("rewards/total-energy/")
	rewardsParticipantPrefix = []byte("rewards/participants/")
	rewardsProgressPrefix    = []byte("rewards/progress/")

	feeCollectorWeekPrefix      = []byte("feecollector/week/")
	feeCollectorCollectedPrefix = []byte("feecollector/collected/")
	feeCollectorInventoryKey    = []byte("feecollector/locked-inventory")

	bankBalancePrefix = []byte("bank/balance/")
	tokenSupplyPrefix = []byte("token/supply/")
)

func withAddress(prefix []byte, addr [20]byte) []byte {
	key := make([]byte, len(prefix)+len(addr))
	copy(key, prefix)
	copy(key[len(prefix):], addr[:])
	return key
}

func withUint(prefix []byte, v uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], v)
	return key
}

func withAddressUint(prefix []byte, addr [20]byte, v uint64) []byte {
	key := withAddress(prefix, addr)
	return binary.BigEndian.AppendUint64(key, v)
}

func balanceKey(holder [20]byte, token string, nonce uint64) []byte {
	key := withAddress(bankBalancePrefix, holder)
	key = append(key, []byte(fmt.Sprintf("/%s/", normalizeToken(token)))...)
	return binary.BigEndian.AppendUint64(key, nonce)
}

func tokenSupplyKey(token string) []byte {
	normalized := normalizeToken(token)
	key := make([]byte, len(tokenSupplyPrefix)+len(normalized))
	copy(key, tokenSupplyPrefix)
	copy(key[len(tokenSupplyPrefix):], normalized)
	return key
}

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}
