package config

import (
	"fmt"
	"time"

	"nhbenergy/native/lock"
	"nhbenergy/storage"
)

// Validate checks the parameter file before any state is opened.
func (c *Config) Validate() error {
	if err := c.LockParams().Validate(); err != nil {
		return err
	}
	if _, ok := lock.MergePolicyByName(c.Lock.MergePolicy); !ok {
		return fmt.Errorf("lock: unknown merge policy %q", c.Lock.MergePolicy)
	}
	if c.Weeks.EpochsPerWeek == 0 {
		return fmt.Errorf("weeks: EpochsPerWeek must be greater than zero")
	}
	switch c.Clock.Mode {
	case ClockModeManual:
	case ClockModeWall:
		if c.Clock.EpochSeconds == 0 {
			return fmt.Errorf("clock: EpochSeconds must be greater than zero")
		}
		if _, err := time.Parse(time.RFC3339, c.Clock.Genesis); err != nil {
			return fmt.Errorf("clock: invalid genesis: %w", err)
		}
	default:
		return fmt.Errorf("clock: unknown mode %q", c.Clock.Mode)
	}
	switch c.Storage.Backend {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt, storage.BackendSQLite, storage.BackendPostgres:
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend != storage.BackendMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage: Path required for backend %s", c.Storage.Backend)
	}
	return nil
}
