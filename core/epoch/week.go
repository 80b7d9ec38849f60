package epoch

import "fmt"

// DefaultEpochsPerWeek is the number of epochs grouped into one reward week.
const DefaultEpochsPerWeek = 7

// Timekeeper maps epochs onto 1-based reward weeks.
type Timekeeper struct {
	// FirstWeekStartEpoch is the first epoch of week 1. Earlier epochs map to
	// week 0, which is never claimable.
	FirstWeekStartEpoch uint64
	// EpochsPerWeek must be greater than zero.
	EpochsPerWeek uint64
}

// DefaultTimekeeper starts week 1 at epoch 0.
func DefaultTimekeeper() Timekeeper {
	return Timekeeper{EpochsPerWeek: DefaultEpochsPerWeek}
}

// Validate ensures the configuration is self-consistent.
func (t Timekeeper) Validate() error {
	if t.EpochsPerWeek == 0 {
		return fmt.Errorf("epochs per week must be greater than zero")
	}
	return nil
}

// WeekForEpoch returns the week containing epoch.
func (t Timekeeper) WeekForEpoch(epoch uint64) uint64 {
	if t.EpochsPerWeek == 0 || epoch < t.FirstWeekStartEpoch {
		return 0
	}
	return (epoch-t.FirstWeekStartEpoch)/t.EpochsPerWeek + 1
}

// StartEpochForWeek returns the first epoch of week. Week 0 has no start.
func (t Timekeeper) StartEpochForWeek(week uint64) uint64 {
	if week == 0 {
		return 0
	}
	return t.FirstWeekStartEpoch + (week-1)*t.EpochsPerWeek
}
