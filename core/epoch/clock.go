package epoch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock reports the current epoch. Implementations must be monotonic
// non-decreasing.
type Clock interface {
	CurrentEpoch() uint64
}

var errEpochRegression = errors.New("epoch: clock cannot move backwards")

// ManualClock is advanced explicitly by the host.
type ManualClock struct {
	mu    sync.RWMutex
	epoch uint64
}

// NewManualClock returns a clock positioned at start.
func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{epoch: start}
}

func (c *ManualClock) CurrentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Set moves the clock to epoch. Decreases are rejected.
func (c *ManualClock) Set(epoch uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch < c.epoch {
		return fmt.Errorf("%w: %d < %d", errEpochRegression, epoch, c.epoch)
	}
	c.epoch = epoch
	return nil
}

// Advance moves the clock forward by n epochs and returns the new epoch.
func (c *ManualClock) Advance(n uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch += n
	return c.epoch
}

// WallClock derives epochs from elapsed wall time since genesis.
type WallClock struct {
	clock    clockwork.Clock
	genesis  time.Time
	duration time.Duration
	offset   uint64

	mu   sync.Mutex
	high uint64
}

// NewWallClock builds a wall clock where epoch offset starts at genesis and
// each epoch lasts duration. A nil clock uses the real wall clock.
func NewWallClock(clock clockwork.Clock, genesis time.Time, duration time.Duration, offset uint64) (*WallClock, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("epoch: duration must be positive")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WallClock{clock: clock, genesis: genesis, duration: duration, offset: offset, high: offset}, nil
}

// CurrentEpoch never returns less than a previously observed epoch, even if
// wall time steps backwards.
func (c *WallClock) CurrentEpoch() uint64 {
	elapsed := c.clock.Since(c.genesis)
	epoch := c.offset
	if elapsed > 0 {
		epoch += uint64(elapsed / c.duration)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch > c.high {
		c.high = epoch
	}
	return c.high
}

// Pinned wraps a source clock so that a single operation observes one epoch
// value no matter how many components ask for it.
type Pinned struct {
	source Clock

	mu     sync.RWMutex
	active bool
	epoch  uint64
}

// NewPinned wraps source.
func NewPinned(source Clock) *Pinned {
	return &Pinned{source: source}
}

// Pin reads the source once and freezes the value until Unpin.
func (p *Pinned) Pin() uint64 {
	epoch := p.source.CurrentEpoch()
	p.mu.Lock()
	p.epoch = epoch
	p.active = true
	p.mu.Unlock()
	return epoch
}

// Unpin releases the frozen value.
func (p *Pinned) Unpin() {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
}

func (p *Pinned) CurrentEpoch() uint64 {
	p.mu.RLock()
	if p.active {
		defer p.mu.RUnlock()
		return p.epoch
	}
	p.mu.RUnlock()
	return p.source.CurrentEpoch()
}
