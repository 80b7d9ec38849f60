package config

import "nhbenergy/crypto"

// Lock captures the static lock module parameters. Penalty bounds, burn rate
// and collector are initial values; the owner may override them at runtime.
type Lock struct {
	BaseToken            string         `toml:"BaseToken"`
	LockedToken          string         `toml:"LockedToken"`
	LockOptions          []uint64       `toml:"LockOptions"`
	ReductionGranularity uint64         `toml:"ReductionGranularity"`
	FeeForwardInterval   uint64         `toml:"FeeForwardInterval"`
	PenaltyMinBps        uint64         `toml:"PenaltyMinBps"`
	PenaltyMaxBps        uint64         `toml:"PenaltyMaxBps"`
	FeesBurnBps          uint64         `toml:"FeesBurnBps"`
	FeesCollector        crypto.Address `toml:"FeesCollector,omitempty"`
	MergePolicy          string         `toml:"MergePolicy"`
}

// Weeks maps epochs onto reward weeks.
type Weeks struct {
	FirstWeekStartEpoch uint64 `toml:"FirstWeekStartEpoch"`
	EpochsPerWeek       uint64 `toml:"EpochsPerWeek"`
}

// Rewards tunes the claim engine. MaxClaimWeeks caps the weeks a single claim
// settles; zero means unbounded.
type Rewards struct {
	MaxClaimWeeks uint64 `toml:"MaxClaimWeeks"`
}

// Clock selects the epoch source. Mode "wall" derives epochs from elapsed time
// since Genesis; mode "manual" starts at StartEpoch and only moves when told.
type Clock struct {
	Mode         string `toml:"Mode"`
	Genesis      string `toml:"Genesis"`
	EpochSeconds uint64 `toml:"EpochSeconds"`
	StartEpoch   uint64 `toml:"StartEpoch"`
}

type Pauses struct {
	Lock         bool `toml:"Lock"`
	Rewards      bool `toml:"Rewards"`
	FeeCollector bool `toml:"FeeCollector"`
}

// Storage selects the database backend.
type Storage struct {
	Backend string `toml:"Backend"`
	Path    string `toml:"Path"`
}
