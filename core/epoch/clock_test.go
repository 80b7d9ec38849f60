package epoch

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestManualClockRejectsRegression(t *testing.T) {
	clock := NewManualClock(10)
	if err := clock.Set(12); err != nil {
		t.Fatalf("set forward: %v", err)
	}
	if err := clock.Set(11); err == nil {
		t.Fatalf("expected regression to fail")
	}
	if got := clock.CurrentEpoch(); got != 12 {
		t.Fatalf("unexpected epoch %d", got)
	}
	if got := clock.Advance(3); got != 15 {
		t.Fatalf("unexpected epoch after advance %d", got)
	}
}

func TestWallClockCountsElapsedEpochs(t *testing.T) {
	fake := clockwork.NewFakeClock()
	genesis := fake.Now()
	clock, err := NewWallClock(fake, genesis, time.Hour, 5)
	if err != nil {
		t.Fatalf("new wall clock: %v", err)
	}
	if got := clock.CurrentEpoch(); got != 5 {
		t.Fatalf("expected offset epoch, got %d", got)
	}
	fake.Advance(3*time.Hour + time.Minute)
	if got := clock.CurrentEpoch(); got != 8 {
		t.Fatalf("expected epoch 8, got %d", got)
	}
}

func TestWallClockIsMonotonic(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	genesis := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock, err := NewWallClock(fake, genesis, 24*time.Hour, 0)
	if err != nil {
		t.Fatalf("new wall clock: %v", err)
	}
	if got := clock.CurrentEpoch(); got != 9 {
		t.Fatalf("expected epoch 9, got %d", got)
	}
	behind := clockwork.NewFakeClockAt(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	clock.clock = behind
	if got := clock.CurrentEpoch(); got != 9 {
		t.Fatalf("clock moved backwards to %d", got)
	}
}

func TestWallClockRejectsZeroDuration(t *testing.T) {
	if _, err := NewWallClock(nil, time.Now(), 0, 0); err == nil {
		t.Fatalf("expected error for zero duration")
	}
}

func TestPinnedFreezesEpoch(t *testing.T) {
	source := NewManualClock(4)
	pinned := NewPinned(source)

	if got := pinned.Pin(); got != 4 {
		t.Fatalf("unexpected pinned epoch %d", got)
	}
	source.Advance(10)
	if got := pinned.CurrentEpoch(); got != 4 {
		t.Fatalf("pinned clock leaked source epoch %d", got)
	}
	pinned.Unpin()
	if got := pinned.CurrentEpoch(); got != 14 {
		t.Fatalf("expected source epoch after unpin, got %d", got)
	}
}

func TestTimekeeperWeeks(t *testing.T) {
	tk := Timekeeper{FirstWeekStartEpoch: 10, EpochsPerWeek: 7}
	cases := map[uint64]uint64{0: 0, 9: 0, 10: 1, 16: 1, 17: 2, 30: 3}
	for epoch, want := range cases {
		if got := tk.WeekForEpoch(epoch); got != want {
			t.Fatalf("epoch %d: want week %d, got %d", epoch, want, got)
		}
	}
	if got := tk.StartEpochForWeek(3); got != 24 {
		t.Fatalf("unexpected start epoch %d", got)
	}
	if err := (Timekeeper{}).Validate(); err == nil {
		t.Fatalf("expected zero epochs per week to fail validation")
	}
}
