package core

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"nhbenergy/core/epoch"
	coreerrors "nhbenergy/core/errors"
	"nhbenergy/core/events"
	"nhbenergy/core/types"
	"nhbenergy/native/common"
	"nhbenergy/native/feecollector"
	"nhbenergy/native/lock"
	"nhbenergy/native/rewards"
	"nhbenergy/storage"
)

var (
	testOwner = testAddr(0xAA)
	alice     = testAddr(0x01)
	bob       = testAddr(0x02)
)

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

type harness struct {
	p      *Processor
	clock  *epoch.ManualClock
	pauses *common.PauseSet
	events *events.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	params := lock.DefaultParams()
	params.LockOptions = []uint64{30, 360, 720, 1440}
	h := &harness{
		clock:  epoch.NewManualClock(1),
		pauses: common.NewPauseSet(),
		events: &events.Recorder{},
	}
	p, err := NewProcessor(storage.NewMemDB(), h.clock, Config{
		Owner:  testOwner,
		Lock:   params,
		Weeks:  epoch.DefaultTimekeeper(),
		Pauses: h.pauses,
	}, WithEmitter(h.events))
	require.NoError(t, err)
	h.p = p
	return h
}

func (h *harness) fund(t *testing.T, who [20]byte, token string, amount int64) {
	t.Helper()
	require.NoError(t, h.p.MintTokens(context.Background(), testOwner, who, token, big.NewInt(amount)))
}

func (h *harness) lock(t *testing.T, who [20]byte, amount int64, epochs uint64) *lock.Receipt {
	t.Helper()
	receipt, err := h.p.LockTokens(context.Background(), who, big.NewInt(amount), epochs)
	require.NoError(t, err)
	return receipt
}

func (h *harness) balance(t *testing.T, who [20]byte, token string, nonce uint64) *big.Int {
	t.Helper()
	bal, err := h.p.Balance(who, token, nonce)
	require.NoError(t, err)
	return bal
}

// Base tokens held by the lock module always back the locked supply.
func (h *harness) requireCustody(t *testing.T) {
	t.Helper()
	custody := h.balance(t, LockAccount, "NHB", 0)
	supply, err := h.p.Supply("LNHB")
	require.NoError(t, err)
	require.Zero(t, custody.Cmp(supply), "custody %s != locked supply %s", custody, supply)
}

func TestUnlockEarlyScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, alice, "NHB", 1_000_000_000)

	receipt := h.lock(t, alice, 1_000_000_000, 30)
	require.Equal(t, uint64(1), receipt.Output.Nonce)
	require.Equal(t, big.NewInt(30_000_000_000), receipt.Energy.Amount)

	early, err := h.p.UnlockEarly(ctx, alice, receipt.Output)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(108_300_000), early.Penalty)
	require.Equal(t, "NHB", early.Output.Token)
	require.Equal(t, big.NewInt(891_700_000), early.Output.Amount)
	require.Zero(t, early.Energy.Amount.Sign())
	require.Equal(t, big.NewInt(891_700_000), h.balance(t, alice, "NHB", 0))

	settings, err := h.p.LockSettings()
	require.NoError(t, err)
	require.NotNil(t, settings.Pending)
	require.Equal(t, uint64(1), settings.Pending.Nonce)
	require.Equal(t, big.NewInt(54_150_000), settings.Pending.Amount)
	require.Zero(t, settings.LastForwardEpoch)
	h.requireCustody(t)
}

func TestFullReductionMatchesUnlockEarly(t *testing.T) {
	h := newHarness(t)
	h.fund(t, alice, "NHB", 2_000_000)
	first := h.lock(t, alice, 1_000_000, 720)
	second := h.lock(t, alice, 1_000_000, 720)

	viaReduce, err := h.p.ReduceLockPeriod(context.Background(), alice, first.Output, 720)
	require.NoError(t, err)
	viaEarly, err := h.p.UnlockEarly(context.Background(), alice, second.Output)
	require.NoError(t, err)

	require.Equal(t, viaEarly.Penalty, viaReduce.Penalty)
	require.Equal(t, viaEarly.Output, viaReduce.Output)
	preview, err := h.p.PenaltyAmount(big.NewInt(1_000_000), 720)
	require.NoError(t, err)
	require.Equal(t, preview, viaEarly.Penalty)
	h.requireCustody(t)
}

func TestPenaltyMonotonic(t *testing.T) {
	h := newHarness(t)
	amount := big.NewInt(987_654_321)
	prev := big.NewInt(0)
	for epochs := uint64(1); epochs <= 2000; epochs += 7 {
		penalty, err := h.p.PenaltyAmount(amount, epochs)
		require.NoError(t, err)
		require.True(t, penalty.Cmp(prev) >= 0, "penalty decreased at %d", epochs)
		require.True(t, penalty.Cmp(amount) < 0)
		prev = penalty
	}
}

func TestReduceRelocksRemainder(t *testing.T) {
	h := newHarness(t)
	h.fund(t, alice, "NHB", 1000)
	receipt := h.lock(t, alice, 1000, 720)

	reduced, err := h.p.ReduceLockPeriod(context.Background(), alice, receipt.Output, 360)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(200), reduced.Penalty)
	require.Equal(t, "LNHB", reduced.Output.Token)
	require.Equal(t, uint64(2), reduced.Output.Nonce)
	require.Equal(t, big.NewInt(800), reduced.Output.Amount)
	require.Equal(t, big.NewInt(800*360), reduced.Energy.Amount)

	lot, err := h.p.Lot(reduced.Output.Nonce)
	require.NoError(t, err)
	require.Equal(t, uint64(361), lot.UnlockEpoch)
	require.Zero(t, h.balance(t, alice, "LNHB", 1).Sign())
	require.Equal(t, big.NewInt(800), h.balance(t, alice, "LNHB", 2))
	h.requireCustody(t)
}

func TestReduceToCurrentEpochReleasesBase(t *testing.T) {
	h := newHarness(t)
	h.fund(t, alice, "NHB", 1000)
	receipt := h.lock(t, alice, 1000, 360)

	reduced, err := h.p.ReduceLockPeriod(context.Background(), alice, receipt.Output, 360)
	require.NoError(t, err)
	require.Equal(t, "NHB", reduced.Output.Token)
	require.Equal(t, big.NewInt(800), reduced.Output.Amount)
	require.Equal(t, big.NewInt(800), h.balance(t, alice, "NHB", 0))
	h.requireCustody(t)
}

func TestReduceValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, alice, "NHB", 1000)
	receipt := h.lock(t, alice, 1000, 360)

	_, err := h.p.ReduceLockPeriod(ctx, alice, receipt.Output, 100)
	require.ErrorIs(t, err, coreerrors.ErrValidation)
	_, err = h.p.ReduceLockPeriod(ctx, alice, receipt.Output, 720)
	require.ErrorIs(t, err, coreerrors.ErrValidation)

	wrong := receipt.Output.Clone()
	wrong.Token = "NHB"
	_, err = h.p.UnlockEarly(ctx, alice, wrong)
	require.ErrorIs(t, err, coreerrors.ErrValidation)

	_, err = h.p.LockTokens(ctx, alice, big.NewInt(10), 45)
	require.ErrorIs(t, err, coreerrors.ErrValidation)

	require.NoError(t, h.clock.Set(361))
	_, err = h.p.UnlockEarly(ctx, alice, receipt.Output)
	require.ErrorIs(t, err, coreerrors.ErrPrecondition)
}

func TestMaturedUnlockReturnsBase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, alice, "NHB", 500)
	receipt := h.lock(t, alice, 500, 30)

	_, err := h.p.Unlock(ctx, alice, receipt.Output)
	require.ErrorIs(t, err, coreerrors.ErrPrecondition)

	require.NoError(t, h.clock.Set(31))
	released, err := h.p.Unlock(ctx, alice, receipt.Output)
	require.NoError(t, err)
	require.Zero(t, released.Penalty.Sign())
	require.Equal(t, big.NewInt(500), h.balance(t, alice, "NHB", 0))
	entry, err := h.p.Energy(alice)
	require.NoError(t, err)
	require.Zero(t, entry.Amount.Sign())
	h.requireCustody(t)
}

func TestAdminOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.ErrorIs(t, h.p.SetPenaltyPercentage(ctx, alice, 100, 200), coreerrors.ErrPermission)
	require.ErrorIs(t, h.p.SetPenaltyPercentage(ctx, testOwner, 0, 200), coreerrors.ErrValidation)
	require.ErrorIs(t, h.p.SetPenaltyPercentage(ctx, testOwner, 300, 200), coreerrors.ErrValidation)
	require.ErrorIs(t, h.p.SetPenaltyPercentage(ctx, testOwner, 100, 10_001), coreerrors.ErrValidation)
	require.NoError(t, h.p.SetPenaltyPercentage(ctx, testOwner, 100, 200))

	require.ErrorIs(t, h.p.SetFeesBurnPercentage(ctx, testOwner, 10_001), coreerrors.ErrValidation)
	require.NoError(t, h.p.SetFeesBurnPercentage(ctx, testOwner, 10_000))

	require.ErrorIs(t, h.p.SetFeesCollectorAddress(ctx, testOwner, bob), coreerrors.ErrValidation)
	require.NoError(t, h.p.SetFeesCollectorAddress(ctx, testOwner, FeeCollectorAccount))

	settings, err := h.p.LockSettings()
	require.NoError(t, err)
	require.Equal(t, lock.PenaltyPercentage{Min: 100, Max: 200}, settings.Penalty)
	require.Equal(t, uint64(10_000), settings.FeesBurnBps)
	require.Equal(t, FeeCollectorAccount, settings.FeesCollector)

	require.ErrorIs(t, h.p.MintTokens(ctx, alice, alice, "NHB", big.NewInt(1)), coreerrors.ErrPermission)
	require.ErrorIs(t, h.p.MintTokens(ctx, testOwner, alice, "lnhb", big.NewInt(1)), coreerrors.ErrValidation)
}

func TestMintIsOwnerOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.ErrorIs(t, h.p.MintTokens(ctx, bob, bob, "USDC", big.NewInt(5)), coreerrors.ErrPermission)
	require.Zero(t, h.balance(t, bob, "USDC", 0).Sign())

	require.NoError(t, h.p.MintTokens(ctx, testOwner, bob, "usdc", big.NewInt(5)))
	require.Equal(t, big.NewInt(5), h.balance(t, bob, "USDC", 0))
	supply, err := h.p.Supply("USDC")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), supply)

	p, err := NewProcessor(storage.NewMemDB(), epoch.NewManualClock(1), Config{
		Lock:  lock.DefaultParams(),
		Weeks: epoch.DefaultTimekeeper(),
	})
	require.NoError(t, err)
	require.ErrorIs(t, p.MintTokens(ctx, testOwner, bob, "USDC", big.NewInt(5)), coreerrors.ErrPermission)
}

func TestSendFeesToCollector(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.p.SendFeesToCollector(ctx)
	require.ErrorIs(t, err, coreerrors.ErrPrecondition)

	h.fund(t, alice, "NHB", 1_000_000_000)
	receipt := h.lock(t, alice, 1_000_000_000, 30)
	_, err = h.p.UnlockEarly(ctx, alice, receipt.Output)
	require.NoError(t, err)

	sent, err := h.p.SendFeesToCollector(ctx)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(54_150_000), sent.Amount)
	require.Equal(t, big.NewInt(54_150_000), h.balance(t, FeeCollectorAccount, "LNHB", 1))

	settings, err := h.p.LockSettings()
	require.NoError(t, err)
	require.Nil(t, settings.Pending)
	require.Equal(t, uint64(1), settings.LastForwardEpoch)

	deposits, err := h.p.PendingDeposits(1)
	require.NoError(t, err)
	require.Equal(t, []types.TokenAmount{{Token: "LNHB", Amount: big.NewInt(54_150_000)}}, deposits)

	_, err = h.p.SendFeesToCollector(ctx)
	require.ErrorIs(t, err, coreerrors.ErrPrecondition)
	h.requireCustody(t)
}

func TestFailedOperationRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, alice, "NHB", 1_000_000_000)
	receipt := h.lock(t, alice, 1_000_000_000, 30)

	// A paused collector makes the automatic forward fail at the very end.
	h.pauses.Set(feecollector.ModuleName, true)
	require.NoError(t, h.clock.Set(8))
	before := len(h.events.Events())
	energyBefore, err := h.p.Energy(alice)
	require.NoError(t, err)

	_, err = h.p.UnlockEarly(ctx, alice, receipt.Output)
	require.ErrorIs(t, err, common.ErrModulePaused)
	require.Len(t, h.events.Events(), before)
	require.Equal(t, big.NewInt(1_000_000_000), h.balance(t, alice, "LNHB", 1))
	require.Zero(t, h.balance(t, alice, "NHB", 0).Sign())
	energyAfter, err := h.p.Energy(alice)
	require.NoError(t, err)
	require.Equal(t, energyBefore.Amount, energyAfter.Amount)
	settings, err := h.p.LockSettings()
	require.NoError(t, err)
	require.Nil(t, settings.Pending)
	h.requireCustody(t)

	h.pauses.Set(feecollector.ModuleName, false)
	_, err = h.p.UnlockEarly(ctx, alice, receipt.Output)
	require.NoError(t, err)
	require.Greater(t, len(h.events.Events()), before)
}

func TestClaimSplitsWeekByEnergy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, alice, "NHB", 1500)
	h.fund(t, bob, "NHB", 1000)
	h.fund(t, testOwner, "USDC", 1_079_000)

	h.lock(t, alice, 1000, 360)
	h.lock(t, bob, 1000, 360)
	require.NoError(t, h.clock.Set(2))
	h.lock(t, alice, 500, 720)

	weight, err := h.p.WeekWeight(alice, 2)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000*359+500*720), weight.UserEnergy)
	require.Equal(t, big.NewInt(1_079_000), weight.TotalEnergy)
	require.Equal(t, uint64(2), weight.TotalParticipants)

	require.NoError(t, h.clock.Set(8))
	require.NoError(t, h.p.DepositSwapFees(ctx, testOwner, types.Payment{Token: "USDC", Amount: big.NewInt(1_079_000)}))

	aliceClaim, err := h.p.ClaimRewards(ctx, alice, 2)
	require.NoError(t, err)
	require.Equal(t, []types.TokenAmount{{Token: "USDC", Amount: big.NewInt(719_000)}}, aliceClaim.Payouts)
	bobClaim, err := h.p.ClaimRewards(ctx, bob, 2)
	require.NoError(t, err)
	require.Equal(t, []types.TokenAmount{{Token: "USDC", Amount: big.NewInt(360_000)}}, bobClaim.Payouts)
	require.Zero(t, h.balance(t, FeeCollectorAccount, "USDC", 0).Sign())

	again, err := h.p.ClaimRewards(ctx, alice, 2)
	require.NoError(t, err)
	require.Empty(t, again.Payouts)
	require.Equal(t, big.NewInt(719_000), h.balance(t, alice, "USDC", 0))

	progress, err := h.p.ClaimProgress(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(2), progress.Week)
}

func TestWeekSnapshotCollectsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, alice, "NHB", 1000)
	h.fund(t, testOwner, "USDC", 300)
	h.lock(t, alice, 1000, 360)

	require.NoError(t, h.clock.Set(8))
	require.NoError(t, h.p.DepositSwapFees(ctx, testOwner, types.Payment{Token: "USDC", Amount: big.NewInt(100)}))

	snapshot, err := h.p.WeekSnapshot(2)
	require.NoError(t, err)
	require.Equal(t, rewards.NotYetComputed{Week: 2}, snapshot)

	_, err = h.p.ClaimRewards(ctx, alice, 2)
	require.NoError(t, err)
	first, err := h.p.WeekSnapshot(2)
	require.NoError(t, err)
	computed, ok := first.(rewards.Computed)
	require.True(t, ok)
	require.Equal(t, []types.TokenAmount{{Token: "USDC", Amount: big.NewInt(100)}}, computed.Total.Rewards)

	// Deposits after collection roll into the following week.
	require.NoError(t, h.p.DepositSwapFees(ctx, testOwner, types.Payment{Token: "USDC", Amount: big.NewInt(200)}))
	_, err = h.p.ClaimRewards(ctx, bob, 2)
	require.NoError(t, err)
	second, err := h.p.WeekSnapshot(2)
	require.NoError(t, err)
	require.Equal(t, first, second)

	week3, err := h.p.PendingDeposits(3)
	require.NoError(t, err)
	require.Equal(t, []types.TokenAmount{{Token: "USDC", Amount: big.NewInt(200)}}, week3)
}

func TestHolderCannotDepositLockedLot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, alice, "NHB", 1000)
	receipt := h.lock(t, alice, 1000, 360)

	err := h.p.DepositSwapFees(ctx, alice, receipt.Output)
	require.ErrorIs(t, err, coreerrors.ErrValidation)

	require.Equal(t, big.NewInt(1000), h.balance(t, alice, "LNHB", receipt.Output.Nonce))
	require.Zero(t, h.balance(t, FeeCollectorAccount, "LNHB", receipt.Output.Nonce).Sign())
	deposits, err := h.p.PendingDeposits(1)
	require.NoError(t, err)
	require.Empty(t, deposits)

	entry, err := h.p.Energy(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(360_000), entry.Amount)
	weight, err := h.p.WeekWeight(alice, 2)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(360_000), weight.UserEnergy)
	require.Equal(t, big.NewInt(360_000), weight.TotalEnergy)
	h.requireCustody(t)
}

func TestClaimPaysWeeksLongPast(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, alice, "NHB", 1000)
	h.fund(t, testOwner, "USDC", 1000)
	h.lock(t, alice, 1000, 360)

	require.NoError(t, h.clock.Set(8))
	require.NoError(t, h.p.DepositSwapFees(ctx, testOwner, types.Payment{Token: "USDC", Amount: big.NewInt(1000)}))

	require.NoError(t, h.clock.Set(36))
	res, err := h.p.ClaimRewards(ctx, alice, 6)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.FromWeek)
	require.Equal(t, []types.TokenAmount{{Token: "USDC", Amount: big.NewInt(1000)}}, res.Payouts)
	require.Equal(t, big.NewInt(1000), h.balance(t, alice, "USDC", 0))
}

func TestClaimWithoutEnergyFreezesWeek(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, testOwner, "USDC", 150)

	require.NoError(t, h.clock.Set(8))
	require.NoError(t, h.p.DepositSwapFees(ctx, testOwner, types.Payment{Token: "USDC", Amount: big.NewInt(100)}))
	res, err := h.p.ClaimRewards(ctx, bob, 2)
	require.NoError(t, err)
	require.Empty(t, res.Payouts)

	snapshot, err := h.p.WeekSnapshot(2)
	require.NoError(t, err)
	computed, ok := snapshot.(rewards.Computed)
	require.True(t, ok)
	require.Equal(t, []types.TokenAmount{{Token: "USDC", Amount: big.NewInt(100)}}, computed.Total.Rewards)

	require.NoError(t, h.p.DepositSwapFees(ctx, testOwner, types.Payment{Token: "USDC", Amount: big.NewInt(50)}))
	week3, err := h.p.PendingDeposits(3)
	require.NoError(t, err)
	require.Equal(t, []types.TokenAmount{{Token: "USDC", Amount: big.NewInt(50)}}, week3)
}

func TestClaimWeekBounds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.p.ClaimRewards(ctx, alice, 0)
	require.ErrorIs(t, err, coreerrors.ErrValidation)
	_, err = h.p.ClaimRewards(ctx, alice, h.p.CurrentWeek()+1)
	require.ErrorIs(t, err, coreerrors.ErrValidation)

	res, err := h.p.ClaimRewards(ctx, alice, h.p.CurrentWeek())
	require.NoError(t, err)
	require.Empty(t, res.Payouts)
}

func TestLockedRewardsCarryEnergy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fund(t, alice, "NHB", 1_000_000_000)
	h.fund(t, bob, "NHB", 1000)
	receipt := h.lock(t, alice, 1_000_000_000, 30)
	h.lock(t, bob, 1000, 360)

	// Penalty fees forward automatically once the interval has elapsed.
	require.NoError(t, h.clock.Set(8))
	early, err := h.p.UnlockEarly(ctx, alice, receipt.Output)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(106_300_000), early.Penalty)
	settings, err := h.p.LockSettings()
	require.NoError(t, err)
	require.Nil(t, settings.Pending)
	require.Equal(t, uint64(8), settings.LastForwardEpoch)

	bobClaim, err := h.p.ClaimRewards(ctx, bob, 2)
	require.NoError(t, err)
	require.Equal(t, []types.TokenAmount{{Token: "LNHB", Amount: big.NewInt(637)}}, bobClaim.Payouts)
	aliceClaim, err := h.p.ClaimRewards(ctx, alice, 2)
	require.NoError(t, err)
	require.Equal(t, []types.TokenAmount{{Token: "LNHB", Amount: big.NewInt(53_149_362)}}, aliceClaim.Payouts)

	require.Equal(t, big.NewInt(53_149_362), h.balance(t, alice, "LNHB", 1))
	entry, err := h.p.Energy(alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(53_149_362*23), entry.Amount)
	require.Equal(t, entry.Amount, aliceClaim.NextEnergy)

	// Share rounding leaves dust with the collector, never a deficit.
	dust := h.balance(t, FeeCollectorAccount, "LNHB", 1)
	require.Equal(t, big.NewInt(53_150_000-637-53_149_362), dust)
	h.requireCustody(t)

	require.NoError(t, h.clock.Set(31))
	_, err = h.p.Unlock(ctx, alice, types.Payment{Token: "LNHB", Nonce: 1, Amount: big.NewInt(53_149_362)})
	require.NoError(t, err)
	h.requireCustody(t)
}

func TestPausedModuleRejects(t *testing.T) {
	h := newHarness(t)
	h.fund(t, alice, "NHB", 10)
	h.pauses.Set(lock.ModuleName, true)
	_, err := h.p.LockTokens(context.Background(), alice, big.NewInt(10), 30)
	require.ErrorIs(t, err, coreerrors.ErrPrecondition)
	h.pauses.Set(rewards.ModuleName, true)
	_, err = h.p.ClaimRewards(context.Background(), alice, 1)
	require.ErrorIs(t, err, common.ErrModulePaused)
}

func TestOutcome(t *testing.T) {
	require.Equal(t, "ok", Outcome(nil))
	require.Equal(t, "validation", Outcome(coreerrors.Validation("x")))
	require.Equal(t, "invariant", Outcome(coreerrors.Invariant("x")))
	require.True(t, IsInvariantFault(coreerrors.Invariant("x")))
}
