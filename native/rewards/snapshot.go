package rewards

import "nhbenergy/core/types"

// Snapshot is the cached state of a week's reward total: either NotYetComputed
// or Computed.
type Snapshot interface {
	isSnapshot()
}

// NotYetComputed marks a week whose rewards have not been collected.
type NotYetComputed struct {
	Week uint64
}

// Computed carries the frozen total of a week.
type Computed struct {
	Total WeeklyTotal
}

func (NotYetComputed) isSnapshot() {}
func (Computed) isSnapshot()       {}

// CollectPolicy drains the rewards accumulated for a week. It is invoked at
// most once per week.
type CollectPolicy func(week uint64) ([]types.TokenAmount, error)

// Snapshot reports the cached state of week without computing it.
func (e *Engine) Snapshot(week uint64) (Snapshot, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	total, ok, err := e.state.RewardsWeeklyTotal(week)
	if err != nil {
		return nil, err
	}
	if !ok || total == nil {
		return NotYetComputed{Week: week}, nil
	}
	return Computed{Total: *total.Clone()}, nil
}

// WeekTotal returns the frozen total for week, collecting it on first use.
func (e *Engine) WeekTotal(week uint64) (*WeeklyTotal, error) {
	snapshot, err := e.Snapshot(week)
	if err != nil {
		return nil, err
	}
	switch s := snapshot.(type) {
	case Computed:
		return s.Total.Clone(), nil
	case NotYetComputed:
		return e.compute(s.Week)
	default:
		return nil, errUnknownSnapshot
	}
}

func (e *Engine) compute(week uint64) (*WeeklyTotal, error) {
	if e.collect == nil {
		return nil, errMissingCollaborator
	}
	collected, err := e.collect(week)
	if err != nil {
		return nil, err
	}
	totalEnergy, err := e.state.RewardsTotalEnergy(week)
	if err != nil {
		return nil, err
	}
	participants, err := e.state.RewardsTotalParticipants(week)
	if err != nil {
		return nil, err
	}
	total := &WeeklyTotal{
		Week:              week,
		Rewards:           types.MergeTokenAmounts(collected),
		TotalEnergy:       totalEnergy,
		TotalParticipants: participants,
	}
	if err := e.state.RewardsPutWeeklyTotal(total); err != nil {
		return nil, err
	}
	e.telemetry.RecordWeekComputed()
	e.emit(eventWeekComputed(total))
	return total.Clone(), nil
}
