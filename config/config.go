package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jonboulle/clockwork"

	"nhbenergy/core"
	"nhbenergy/core/epoch"
	"nhbenergy/crypto"
	"nhbenergy/native/common"
	"nhbenergy/native/feecollector"
	"nhbenergy/native/lock"
	"nhbenergy/native/rewards"
	"nhbenergy/storage"
)

const (
	ClockModeWall   = "wall"
	ClockModeManual = "manual"
)

// Config is the ledger parameter file.
type Config struct {
	Owner   crypto.Address `toml:"Owner"`
	Lock    Lock           `toml:"lock"`
	Weeks   Weeks          `toml:"weeks"`
	Rewards Rewards        `toml:"rewards"`
	Clock   Clock          `toml:"clock"`
	Pauses  Pauses         `toml:"pauses"`
	Storage Storage        `toml:"storage"`
}

// Default returns the production defaults with an unset owner.
func Default() *Config {
	params := lock.DefaultParams()
	return &Config{
		Lock: Lock{
			BaseToken:            params.BaseToken,
			LockedToken:          params.LockedToken,
			LockOptions:          params.LockOptions,
			ReductionGranularity: params.ReductionGranularity,
			FeeForwardInterval:   params.FeeForwardInterval,
			PenaltyMinBps:        params.Penalty.Min,
			PenaltyMaxBps:        params.Penalty.Max,
			FeesBurnBps:          params.FeesBurnBps,
			MergePolicy:          "earliest-acquired",
		},
		Weeks:   Weeks{EpochsPerWeek: epoch.DefaultEpochsPerWeek},
		Rewards: Rewards{MaxClaimWeeks: rewards.DefaultMaxClaimWeeks},
		Clock:   Clock{Mode: ClockModeWall, Genesis: "2024-01-01T00:00:00Z", EpochSeconds: 86400},
		Storage: Storage{Backend: storage.BackendLevelDB, Path: "./energy-data"},
	}
}

// Load loads the configuration from the given path, writing the defaults when
// the file does not exist yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Lock.BaseToken = strings.ToUpper(strings.TrimSpace(c.Lock.BaseToken))
	c.Lock.LockedToken = strings.ToUpper(strings.TrimSpace(c.Lock.LockedToken))
	c.Lock.MergePolicy = strings.ToLower(strings.TrimSpace(c.Lock.MergePolicy))
	c.Clock.Mode = strings.ToLower(strings.TrimSpace(c.Clock.Mode))
	if c.Clock.Mode == "" {
		c.Clock.Mode = ClockModeWall
	}
}

// LockParams converts the lock section into engine parameters.
func (c *Config) LockParams() lock.Params {
	return lock.Params{
		BaseToken:            c.Lock.BaseToken,
		LockedToken:          c.Lock.LockedToken,
		LockOptions:          append([]uint64(nil), c.Lock.LockOptions...),
		ReductionGranularity: c.Lock.ReductionGranularity,
		FeeForwardInterval:   c.Lock.FeeForwardInterval,
		Penalty:              lock.PenaltyPercentage{Min: c.Lock.PenaltyMinBps, Max: c.Lock.PenaltyMaxBps},
		FeesBurnBps:          c.Lock.FeesBurnBps,
		FeesCollector:        c.Lock.FeesCollector,
	}
}

// PauseSet seeds a mutable pause view from the pauses section.
func (c *Config) PauseSet() *common.PauseSet {
	set := common.NewPauseSet()
	set.Set(lock.ModuleName, c.Pauses.Lock)
	set.Set(rewards.ModuleName, c.Pauses.Rewards)
	set.Set(feecollector.ModuleName, c.Pauses.FeeCollector)
	return set
}

// ProcessorConfig assembles the processor wiring. pauses may be nil.
func (c *Config) ProcessorConfig(pauses common.PauseView) (core.Config, error) {
	policy, ok := lock.MergePolicyByName(c.Lock.MergePolicy)
	if !ok {
		return core.Config{}, fmt.Errorf("lock: unknown merge policy %q", c.Lock.MergePolicy)
	}
	return core.Config{
		Owner:         c.Owner,
		Lock:          c.LockParams(),
		Weeks:         epoch.Timekeeper{FirstWeekStartEpoch: c.Weeks.FirstWeekStartEpoch, EpochsPerWeek: c.Weeks.EpochsPerWeek},
		MaxClaimWeeks: c.Rewards.MaxClaimWeeks,
		MergePolicy:   policy,
		Pauses:        pauses,
	}, nil
}

// NewClock builds the configured epoch source on top of clock.
func (c *Config) NewClock(clock clockwork.Clock) (epoch.Clock, error) {
	switch c.Clock.Mode {
	case ClockModeManual:
		return epoch.NewManualClock(c.Clock.StartEpoch), nil
	case ClockModeWall:
		genesis, err := time.Parse(time.RFC3339, c.Clock.Genesis)
		if err != nil {
			return nil, fmt.Errorf("clock: invalid genesis: %w", err)
		}
		wall, err := epoch.NewWallClock(clock, genesis, time.Duration(c.Clock.EpochSeconds)*time.Second, c.Clock.StartEpoch)
		if err != nil {
			return nil, err
		}
		return wall, nil
	default:
		return nil, fmt.Errorf("clock: unknown mode %q", c.Clock.Mode)
	}
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
