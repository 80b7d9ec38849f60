package lock

import (
	"fmt"
	"math/big"

	coreerrors "nhbenergy/core/errors"
)

// MaxPercentage is the basis-point denominator for penalty and burn rates.
const MaxPercentage uint64 = 10_000

var errInvalidPercentage = coreerrors.Validation("lock engine: invalid percentage value")

// PenaltyPercentage bounds the early-exit penalty in basis points.
type PenaltyPercentage struct {
	Min uint64
	Max uint64
}

// Validate enforces 0 < Min <= Max <= MaxPercentage.
func (p PenaltyPercentage) Validate() error {
	if p.Min == 0 || p.Min > p.Max || p.Max > MaxPercentage {
		return fmt.Errorf("%w: min=%d max=%d", errInvalidPercentage, p.Min, p.Max)
	}
	return nil
}

// PenaltyCalculator scales the penalty linearly with the reduced duration.
type PenaltyCalculator struct {
	Percentage    PenaltyPercentage
	MaxLockOption uint64
}

// PercentageFor returns min + (max-min) × epochs / maxLockOption. Reductions
// longer than the largest lock option are charged the max rate.
func (c PenaltyCalculator) PercentageFor(epochsToReduce uint64) uint64 {
	if c.MaxLockOption == 0 {
		return c.Percentage.Max
	}
	if epochsToReduce > c.MaxLockOption {
		epochsToReduce = c.MaxLockOption
	}
	spread := new(big.Int).SetUint64(c.Percentage.Max - c.Percentage.Min)
	spread.Mul(spread, new(big.Int).SetUint64(epochsToReduce))
	spread.Quo(spread, new(big.Int).SetUint64(c.MaxLockOption))
	return c.Percentage.Min + spread.Uint64()
}

// Penalty returns amount × PercentageFor(epochs) / MaxPercentage.
func (c PenaltyCalculator) Penalty(amount *big.Int, epochsToReduce uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	penalty := new(big.Int).Mul(amount, new(big.Int).SetUint64(c.PercentageFor(epochsToReduce)))
	return penalty.Quo(penalty, new(big.Int).SetUint64(MaxPercentage))
}

func bpsOf(amount *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, new(big.Int).SetUint64(MaxPercentage))
}
