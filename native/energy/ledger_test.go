package energy

import (
	"errors"
	"math/big"
	"testing"

	"nhbenergy/core/events"
)

type memState struct {
	entries map[[20]byte]*Entry
}

func newMemState() *memState {
	return &memState{entries: make(map[[20]byte]*Entry)}
}

func (m *memState) EnergyEntry(user [20]byte) (*Entry, bool, error) {
	entry, ok := m.entries[user]
	if !ok {
		return nil, false, nil
	}
	return entry.Clone(), true, nil
}

func (m *memState) PutEnergyEntry(user [20]byte, entry *Entry) error {
	m.entries[user] = entry.Clone()
	return nil
}

func newTestLedger() (*Ledger, *events.Recorder) {
	ledger := NewLedger()
	ledger.SetState(newMemState())
	rec := &events.Recorder{}
	ledger.SetEmitter(rec)
	return ledger, rec
}

func TestLockThenDecay(t *testing.T) {
	ledger, rec := newTestLedger()
	user := [20]byte{1}

	entry, err := ledger.ApplyLock(user, big.NewInt(100), 31, 1)
	if err != nil {
		t.Fatalf("apply lock: %v", err)
	}
	if entry.Amount.Cmp(big.NewInt(3000)) != 0 {
		t.Fatalf("expected 3000 energy, got %s", entry.Amount)
	}
	if len(rec.Events()) != 1 {
		t.Fatalf("expected one energy event")
	}

	at11, err := ledger.Energy(user, 11)
	if err != nil {
		t.Fatalf("energy: %v", err)
	}
	if at11.Amount.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("expected 2000 energy at epoch 11, got %s", at11.Amount)
	}
	if at11.TotalLockedTokens.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected locked tokens %s", at11.TotalLockedTokens)
	}
}

func TestEnergyNeverNegativeAfterMaturity(t *testing.T) {
	ledger, _ := newTestLedger()
	user := [20]byte{2}
	if _, err := ledger.ApplyLock(user, big.NewInt(50), 10, 0); err != nil {
		t.Fatalf("apply lock: %v", err)
	}
	if _, err := ledger.ApplyLock(user, big.NewInt(5), 40, 0); err != nil {
		t.Fatalf("apply lock: %v", err)
	}
	for _, epoch := range []uint64{5, 10, 25, 40, 400} {
		entry, err := ledger.Energy(user, epoch)
		if err != nil {
			t.Fatalf("energy at %d: %v", epoch, err)
		}
		if entry.Amount.Sign() < 0 {
			t.Fatalf("negative energy %s at epoch %d", entry.Amount, epoch)
		}
		if err := entry.Check(); err != nil {
			t.Fatalf("inconsistent entry at %d: %v", epoch, err)
		}
	}
	final, err := ledger.Energy(user, 400)
	if err != nil {
		t.Fatalf("energy: %v", err)
	}
	if final.Amount.Sign() != 0 || final.TotalLockedTokens.Sign() != 0 {
		t.Fatalf("expected empty entry after all buckets matured, got %+v", final)
	}
}

func TestUnlockDepletesRemainingWeight(t *testing.T) {
	ledger, _ := newTestLedger()
	user := [20]byte{3}
	if _, err := ledger.ApplyLock(user, big.NewInt(100), 31, 1); err != nil {
		t.Fatalf("apply lock: %v", err)
	}
	entry, err := ledger.ApplyUnlock(user, big.NewInt(40), 31, 11)
	if err != nil {
		t.Fatalf("apply unlock: %v", err)
	}
	// 100*20 remaining weight minus 40*20 removed.
	if entry.Amount.Cmp(big.NewInt(1200)) != 0 {
		t.Fatalf("expected 1200 energy, got %s", entry.Amount)
	}
	if entry.TotalLockedTokens.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected 60 locked tokens, got %s", entry.TotalLockedTokens)
	}
}

func TestUnlockMaturedPositionIsZeroDepletion(t *testing.T) {
	ledger, _ := newTestLedger()
	user := [20]byte{4}
	if _, err := ledger.ApplyLock(user, big.NewInt(10), 5, 0); err != nil {
		t.Fatalf("apply lock: %v", err)
	}
	entry, err := ledger.ApplyUnlock(user, big.NewInt(10), 5, 9)
	if err != nil {
		t.Fatalf("apply unlock: %v", err)
	}
	if entry.Amount.Sign() != 0 || entry.LastUpdateEpoch != 9 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestUnlockBeyondEnergyIsCorruption(t *testing.T) {
	ledger, _ := newTestLedger()
	user := [20]byte{5}
	if _, err := ledger.ApplyLock(user, big.NewInt(10), 20, 0); err != nil {
		t.Fatalf("apply lock: %v", err)
	}
	_, err := ledger.ApplyUnlock(user, big.NewInt(11), 20, 0)
	if !errors.Is(err, ErrCorruptedEnergyState) {
		t.Fatalf("expected corrupted state, got %v", err)
	}
	_, err = ledger.ApplyUnlock(user, big.NewInt(1), 15, 0)
	if !errors.Is(err, ErrCorruptedEnergyState) {
		t.Fatalf("expected corrupted state for unknown bucket, got %v", err)
	}
	untouched, err := ledger.Energy(user, 0)
	if err != nil {
		t.Fatalf("energy: %v", err)
	}
	if untouched.Amount.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("failed unlock mutated energy: %s", untouched.Amount)
	}
}

func TestUnknownUserHasZeroEnergy(t *testing.T) {
	ledger, _ := newTestLedger()
	got, err := ledger.NonNegative([20]byte{9}, 77)
	if err != nil {
		t.Fatalf("non negative: %v", err)
	}
	if got.Sign() != 0 {
		t.Fatalf("expected zero energy, got %s", got)
	}
}

func TestBucketsMergeByUnlockEpoch(t *testing.T) {
	entry := NewEntry(0)
	if err := entry.AddAfterLock(big.NewInt(3), 30, 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := entry.AddAfterLock(big.NewInt(4), 10, 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := entry.AddAfterLock(big.NewInt(5), 30, 0); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(entry.Schedule) != 2 || entry.Schedule[0].UnlockEpoch != 10 || entry.Schedule[1].Amount.Int64() != 8 {
		t.Fatalf("unexpected schedule %+v", entry.Schedule)
	}
	if err := entry.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
}
