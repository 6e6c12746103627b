// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package throttle

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// tenPerSecond returns a throttle admitting 10 ops/sec with a one second burst.
func tenPerSecond(t *testing.T) *DeterministicThrottle {
	t.Helper()
	dt, err := NewDeterministicThrottle(10_000, 1_000)
	if err != nil {
		t.Fatalf("NewDeterministicThrottle() = %v", err)
	}
	return dt
}

func TestNewDeterministicThrottle(t *testing.T) {
	for _, tc := range []struct {
		desc         string
		milliRate    uint64
		burstMs      uint64
		wantCapacity uint64
		wantErr      bool
	}{
		{desc: "ten per second", milliRate: 10_000, burstMs: 1_000, wantCapacity: 10 * UnitsPerOp},
		{desc: "fractional rate", milliRate: 500, burstMs: 4_000, wantCapacity: 2 * UnitsPerOp},
		{desc: "one milli-op per second", milliRate: 1, burstMs: 1, wantCapacity: 1},
		{desc: "zero rate", milliRate: 0, burstMs: 1_000, wantErr: true},
		{desc: "zero burst", milliRate: 1_000, burstMs: 0, wantErr: true},
		{desc: "overflow", milliRate: math.MaxUint64, burstMs: 2, wantErr: true},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			dt, err := NewDeterministicThrottle(tc.milliRate, tc.burstMs)
			if gotErr := err != nil; gotErr != tc.wantErr {
				t.Fatalf("NewDeterministicThrottle(%d, %d) = %v, %v; wantErr %v", tc.milliRate, tc.burstMs, dt, err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if got, want := dt.Capacity(), tc.wantCapacity; got != want {
				t.Errorf("Capacity() = %d, want %d", got, want)
			}
			if got, want := dt.Snapshot(), (Snapshot{CapacityUnits: tc.wantCapacity}); got != want {
				t.Errorf("Snapshot() = %v, want %v", got, want)
			}
		})
	}
}

func TestCapacityRequiredFor(t *testing.T) {
	dt := tenPerSecond(t)
	if got, err := dt.CapacityRequiredFor(3); err != nil || got != 3*UnitsPerOp {
		t.Errorf("CapacityRequiredFor(3) = %d, %v; want %d, nil", got, err, 3*UnitsPerOp)
	}
	if _, err := dt.CapacityRequiredFor(math.MaxUint64/UnitsPerOp + 1); err != ErrOverflow {
		t.Errorf("CapacityRequiredFor(huge) = %v, want %v", err, ErrOverflow)
	}
}

func TestTryReserve(t *testing.T) {
	dt := tenPerSecond(t)
	type step struct {
		nOps uint64
		now  LogicalTime
		want bool
		used uint64
	}
	for i, s := range []step{
		{nOps: 10, now: 1_000, want: true, used: 10 * UnitsPerOp},
		{nOps: 1, now: 1_000, want: false, used: 10 * UnitsPerOp},
		// 100ms leaks exactly one op.
		{nOps: 1, now: 1_100, want: true, used: 10 * UnitsPerOp},
		{nOps: 2, now: 1_150, want: false, used: 10 * UnitsPerOp},
		{nOps: 1, now: 1_200, want: true, used: 10 * UnitsPerOp},
		// Time going backwards leaks nothing.
		{nOps: 1, now: 900, want: false, used: 10 * UnitsPerOp},
		// A full burst period drains everything.
		{nOps: 10, now: 2_200, want: true, used: 10 * UnitsPerOp},
		{nOps: 0, now: 2_250, want: true, used: 10*UnitsPerOp - 5*UnitsPerOp/10},
		{nOps: math.MaxUint64, now: 100_000, want: false, used: 10*UnitsPerOp - 5*UnitsPerOp/10},
		{nOps: 11, now: 100_000, want: false, used: 10*UnitsPerOp - 5*UnitsPerOp/10},
	} {
		if got := dt.TryReserve(s.nOps, s.now); got != s.want {
			t.Errorf("step %d: TryReserve(%d, %d) = %v, want %v", i, s.nOps, s.now, got, s.want)
		}
		if got := dt.Snapshot().UsedUnits; got != s.used {
			t.Errorf("step %d: UsedUnits = %d, want %d", i, got, s.used)
		}
	}
}

func TestTryReserveRejectionLeavesStateUntouched(t *testing.T) {
	dt := tenPerSecond(t)
	if !dt.TryReserve(8, 5_000) {
		t.Fatal("TryReserve(8) = false, want true")
	}
	before := dt.Snapshot()
	for _, nOps := range []uint64{3, 100, math.MaxUint64} {
		if dt.TryReserve(nOps, 5_050) {
			t.Fatalf("TryReserve(%d) = true, want false", nOps)
		}
		if diff := cmp.Diff(before, dt.Snapshot()); diff != "" {
			t.Errorf("TryReserve(%d) rejection changed state (-before +after):\n%s", nOps, diff)
		}
	}
}

func TestLastDecisionTimeNeverMovesBackwards(t *testing.T) {
	dt := tenPerSecond(t)
	dt.TryReserve(1, 2_000)
	dt.TryReserve(1, 1_000)
	if got, want := dt.Snapshot().LastDecisionTime, LogicalTime(2_000); got != want {
		t.Errorf("LastDecisionTime = %d, want %d", got, want)
	}
	// Had the clock been rewound to 1000, this would leak 1000ms twice.
	if got, want := dt.FreeCapacityAt(2_100), 9*UnitsPerOp; got != want {
		t.Errorf("FreeCapacityAt(2100) = %d, want %d", got, want)
	}
}

func TestLeakSaturates(t *testing.T) {
	dt, err := NewDeterministicThrottle(math.MaxUint64/1_000_000, 1)
	if err != nil {
		t.Fatalf("NewDeterministicThrottle() = %v", err)
	}
	if !dt.TryReserve(1, 1) {
		t.Fatal("TryReserve(1, 1) = false, want true")
	}
	if got, want := dt.FreeCapacityAt(math.MaxUint64), dt.Capacity(); got != want {
		t.Errorf("FreeCapacityAt(max) = %d, want %d", got, want)
	}
}

func TestReclaim(t *testing.T) {
	dt := tenPerSecond(t)
	dt.TryReserve(5, 100)
	dt.Reclaim(2)
	if got, want := dt.Snapshot().UsedUnits, 3*UnitsPerOp; got != want {
		t.Errorf("UsedUnits after Reclaim(2) = %d, want %d", got, want)
	}
	if got, want := dt.Snapshot().LastDecisionTime, LogicalTime(100); got != want {
		t.Errorf("LastDecisionTime after Reclaim(2) = %d, want %d", got, want)
	}
}

func TestReclaimMoreThanUsedPanics(t *testing.T) {
	dt := tenPerSecond(t)
	dt.TryReserve(1, 100)
	defer func() {
		if r := recover(); r == nil {
			t.Error("Reclaim(2) did not panic")
		}
	}()
	dt.Reclaim(2)
}

func TestReclaimLastAllowed(t *testing.T) {
	dt := tenPerSecond(t)
	dt.TryReserve(2, 100)
	dt.TryReserve(3, 100)
	dt.ReclaimLastAllowed()
	if got, want := dt.Snapshot().UsedUnits, 2*UnitsPerOp; got != want {
		t.Errorf("UsedUnits after ReclaimLastAllowed = %d, want %d", got, want)
	}
	// A second reclaim has nothing left to return.
	dt.ReclaimLastAllowed()
	if got, want := dt.Snapshot().UsedUnits, 2*UnitsPerOp; got != want {
		t.Errorf("UsedUnits after second ReclaimLastAllowed = %d, want %d", got, want)
	}

	dt.TryReserve(1, 100)
	dt.ResetLastAllowed()
	dt.ReclaimLastAllowed()
	if got, want := dt.Snapshot().UsedUnits, 3*UnitsPerOp; got != want {
		t.Errorf("UsedUnits after ResetLastAllowed = %d, want %d", got, want)
	}
}

func TestUtilizationPercent(t *testing.T) {
	dt := tenPerSecond(t)
	for _, tc := range []struct {
		nOps uint64
		want uint64
	}{
		{nOps: 0, want: 0},
		{nOps: 1, want: 10},
		{nOps: 8, want: 90},
		{nOps: 1, want: 100},
	} {
		dt.TryReserve(tc.nOps, 0)
		if got := dt.UtilizationPercent(); got != tc.want {
			t.Errorf("after %d more ops UtilizationPercent() = %d, want %d", tc.nOps, got, tc.want)
		}
	}
}

func TestRestore(t *testing.T) {
	dt := tenPerSecond(t)
	for _, tc := range []struct {
		desc    string
		snap    Snapshot
		wantErr bool
	}{
		{desc: "valid", snap: Snapshot{UsedUnits: 4 * UnitsPerOp, CapacityUnits: dt.Capacity(), LastDecisionTime: 7}},
		{desc: "empty", snap: Snapshot{CapacityUnits: dt.Capacity()}},
		{desc: "full", snap: Snapshot{UsedUnits: dt.Capacity(), CapacityUnits: dt.Capacity(), LastDecisionTime: 9}},
		{desc: "capacity mismatch", snap: Snapshot{UsedUnits: 1, CapacityUnits: dt.Capacity() + 1}, wantErr: true},
		{desc: "over capacity", snap: Snapshot{UsedUnits: dt.Capacity() + 1, CapacityUnits: dt.Capacity()}, wantErr: true},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			before := dt.Snapshot()
			err := dt.Restore(tc.snap)
			if gotErr := err != nil; gotErr != tc.wantErr {
				t.Fatalf("Restore(%v) = %v, wantErr %v", tc.snap, err, tc.wantErr)
			}
			want := tc.snap
			if tc.wantErr {
				want = before
			}
			if diff := cmp.Diff(want, dt.Snapshot()); diff != "" {
				t.Errorf("Snapshot() after Restore diff (-want +got):\n%s", diff)
			}
		})
	}
}

// TestRestoreReplaysIdentically checks that a throttle restored from a
// snapshot makes the same decisions as the throttle the snapshot came from.
func TestRestoreReplaysIdentically(t *testing.T) {
	type call struct {
		nOps uint64
		now  LogicalTime
	}
	warmup := []call{{3, 10}, {4, 20}, {5, 30}, {2, 250}}
	replay := []call{{1, 260}, {6, 300}, {4, 410}, {9, 1_300}, {2, 1_301}, {1, 1_302}, {10, 5_000}, {1, 5_000}}

	organic := tenPerSecond(t)
	for _, c := range warmup {
		organic.TryReserve(c.nOps, c.now)
	}
	restored := tenPerSecond(t)
	if err := restored.Restore(organic.Snapshot()); err != nil {
		t.Fatalf("Restore() = %v", err)
	}
	for i, c := range replay {
		want := organic.TryReserve(c.nOps, c.now)
		if got := restored.TryReserve(c.nOps, c.now); got != want {
			t.Errorf("call %d: TryReserve(%d, %d) = %v on restored, %v on organic", i, c.nOps, c.now, got, want)
		}
		if diff := cmp.Diff(organic.Snapshot(), restored.Snapshot()); diff != "" {
			t.Errorf("call %d: state diverged (-organic +restored):\n%s", i, diff)
		}
	}
}

func TestUsedNeverExceedsCapacity(t *testing.T) {
	dt, err := NewDeterministicThrottle(3_333, 700)
	if err != nil {
		t.Fatalf("NewDeterministicThrottle() = %v", err)
	}
	var now LogicalTime
	prevUsed := uint64(0)
	for i := uint64(0); i < 500; i++ {
		now += LogicalTime(i % 37)
		usedAfterLeak := dt.Capacity() - dt.FreeCapacityAt(now)
		if usedAfterLeak > prevUsed {
			t.Fatalf("step %d: leaking raised usage from %d to %d", i, prevUsed, usedAfterLeak)
		}
		dt.TryReserve(i%4, now)
		s := dt.Snapshot()
		if s.UsedUnits > s.CapacityUnits {
			t.Fatalf("step %d: used %d exceeds capacity %d", i, s.UsedUnits, s.CapacityUnits)
		}
		prevUsed = s.UsedUnits
	}
}
