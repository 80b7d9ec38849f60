package lock

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultReductionGranularity is the step, in epochs, by which a lock may be
// shortened.
const DefaultReductionGranularity uint64 = 360

// Params captures the static configuration of the lock module. The penalty
// bounds, burn rate and collector here are defaults; the owner can override
// them at runtime.
type Params struct {
	BaseToken            string
	LockedToken          string
	LockOptions          []uint64
	ReductionGranularity uint64
	// FeeForwardInterval is the minimum number of epochs between automatic
	// forwards of pending penalty fees.
	FeeForwardInterval uint64
	Penalty            PenaltyPercentage
	FeesBurnBps        uint64
	FeesCollector      [20]byte
}

// DefaultParams mirrors the production deployment: 1, 2 and 4 year locks.
func DefaultParams() Params {
	return Params{
		BaseToken:            "NHB",
		LockedToken:          "LNHB",
		LockOptions:          []uint64{360, 720, 1440},
		ReductionGranularity: DefaultReductionGranularity,
		FeeForwardInterval:   7,
		Penalty:              PenaltyPercentage{Min: 1_000, Max: 5_000},
		FeesBurnBps:          5_000,
	}
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	clone := p
	clone.LockOptions = append([]uint64(nil), p.LockOptions...)
	return clone
}

// Validate ensures the configuration is self-consistent.
func (p Params) Validate() error {
	base := strings.TrimSpace(p.BaseToken)
	locked := strings.TrimSpace(p.LockedToken)
	if base == "" || locked == "" {
		return fmt.Errorf("lock params: base and locked tokens are required")
	}
	if strings.EqualFold(base, locked) {
		return fmt.Errorf("lock params: base and locked tokens must differ")
	}
	if len(p.LockOptions) == 0 {
		return fmt.Errorf("lock params: at least one lock option required")
	}
	seen := make(map[uint64]struct{}, len(p.LockOptions))
	for _, option := range p.LockOptions {
		if option == 0 {
			return fmt.Errorf("lock params: lock options must be positive")
		}
		if _, dup := seen[option]; dup {
			return fmt.Errorf("lock params: duplicate lock option %d", option)
		}
		seen[option] = struct{}{}
	}
	if p.ReductionGranularity == 0 {
		return fmt.Errorf("lock params: reduction granularity must be positive")
	}
	if p.FeeForwardInterval == 0 {
		return fmt.Errorf("lock params: fee forward interval must be positive")
	}
	if err := p.Penalty.Validate(); err != nil {
		return fmt.Errorf("lock params: %w", err)
	}
	if p.FeesBurnBps > MaxPercentage {
		return fmt.Errorf("lock params: fees burn bps %d exceeds %d", p.FeesBurnBps, MaxPercentage)
	}
	return nil
}

// MaxLockOption returns the longest configured lock option.
func (p Params) MaxLockOption() uint64 {
	var max uint64
	for _, option := range p.LockOptions {
		if option > max {
			max = option
		}
	}
	return max
}

// SortedLockOptions returns the lock options in ascending order.
func (p Params) SortedLockOptions() []uint64 {
	out := append([]uint64(nil), p.LockOptions...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p Params) hasLockOption(epochs uint64) bool {
	for _, option := range p.LockOptions {
		if option == epochs {
			return true
		}
	}
	return false
}
