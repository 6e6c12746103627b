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
	"fmt"
	"sync/atomic"
)

const (
	// UnitsPerOp is the number of capacity units consumed by one operation.
	UnitsPerOp uint64 = 1_000_000

	// MilliOpsPerOp converts operations per second to milli-operations per second.
	MilliOpsPerOp uint64 = 1_000

	msPerSecond uint64 = 1_000

	// rateTimeScale is the divisor that turns milli-ops/s * ms into operations.
	rateTimeScale = MilliOpsPerOp * msPerSecond
)

// CapacityFor returns the capacity, in units, of a throttle running at
// milliRate milli-operations per second with the given burst period:
// ceil(milliRate * burstPeriodMs * UnitsPerOp / 1e6).
func CapacityFor(milliRate, burstPeriodMs uint64) (uint64, error) {
	scaled, err := mulChecked(milliRate, burstPeriodMs)
	if err != nil {
		return 0, err
	}
	return mulDivCeil(scaled, UnitsPerOp, rateTimeScale)
}

// CapacityUnitsPerMs returns the number of units a throttle running at
// milliRate milli-operations per second leaks each millisecond:
// floor(milliRate * UnitsPerOp / 1e6).
func CapacityUnitsPerMs(milliRate uint64) (uint64, error) {
	return mulDivFloor(milliRate, UnitsPerOp, rateTimeScale)
}

// DeterministicThrottle is an integer leaky bucket. Admitted operations add
// to the used capacity, which drains at the configured rate as logical time
// advances.
type DeterministicThrottle struct {
	milliRate     uint64
	burstPeriodMs uint64
	capacityUnits uint64
	unitsPerMs    uint64

	usedUnits        uint64
	lastDecisionTime LogicalTime
	// lastAllowedUnits is the charge of the most recent successful TryReserve
	// that has not been reclaimed since.
	lastAllowedUnits uint64

	// published holds the state as of the last mutation, for readers on
	// other goroutines.
	published atomic.Pointer[Snapshot]
}

// NewDeterministicThrottle returns an empty throttle admitting milliRate
// milli-operations per second with bursts of up to burstPeriodMs worth of
// operations.
func NewDeterministicThrottle(milliRate, burstPeriodMs uint64) (*DeterministicThrottle, error) {
	if milliRate == 0 {
		return nil, fmt.Errorf("throttle: milli-rate must be positive")
	}
	capacity, err := CapacityFor(milliRate, burstPeriodMs)
	if err != nil {
		return nil, fmt.Errorf("throttle: capacity of %d mops over %dms: %w", milliRate, burstPeriodMs, err)
	}
	if capacity == 0 {
		return nil, fmt.Errorf("throttle: burst period of %dms leaves no capacity", burstPeriodMs)
	}
	perMs, err := CapacityUnitsPerMs(milliRate)
	if err != nil {
		return nil, fmt.Errorf("throttle: leak rate of %d mops: %w", milliRate, err)
	}
	t := &DeterministicThrottle{
		milliRate:     milliRate,
		burstPeriodMs: burstPeriodMs,
		capacityUnits: capacity,
		unitsPerMs:    perMs,
	}
	t.publish()
	return t, nil
}

// MilliRate returns the configured rate in milli-operations per second.
func (t *DeterministicThrottle) MilliRate() uint64 { return t.milliRate }

// BurstPeriodMs returns the configured burst period.
func (t *DeterministicThrottle) BurstPeriodMs() uint64 { return t.burstPeriodMs }

// Capacity returns the capacity in units.
func (t *DeterministicThrottle) Capacity() uint64 { return t.capacityUnits }

// CapacityRequiredFor returns the units needed to admit nOps operations,
// or ErrOverflow if that is not representable.
func (t *DeterministicThrottle) CapacityRequiredFor(nOps uint64) (uint64, error) {
	return mulChecked(nOps, UnitsPerOp)
}

// usedAt returns the used capacity after leaking up to now. It does not
// modify t.
func (t *DeterministicThrottle) usedAt(now LogicalTime) uint64 {
	if now <= t.lastDecisionTime {
		return t.usedUnits
	}
	elapsed := uint64(now - t.lastDecisionTime)
	leaked, err := mulChecked(elapsed, t.unitsPerMs)
	if err != nil {
		return 0
	}
	return saturatingSub(t.usedUnits, leaked)
}

// TryReserve leaks capacity up to now and then admits nOps operations if
// they fit. On rejection the throttle is left untouched.
func (t *DeterministicThrottle) TryReserve(nOps uint64, now LogicalTime) bool {
	required, err := t.CapacityRequiredFor(nOps)
	if err != nil {
		return false
	}
	used := t.usedAt(now)
	if required > t.capacityUnits-used {
		return false
	}
	t.usedUnits = used + required
	if now > t.lastDecisionTime {
		t.lastDecisionTime = now
	}
	t.lastAllowedUnits = required
	t.publish()
	return true
}

// Reclaim returns the capacity charged for nOps operations by an earlier
// successful TryReserve. Reclaiming more than is in use is a bookkeeping bug
// in the caller and panics.
func (t *DeterministicThrottle) Reclaim(nOps uint64) {
	required, err := t.CapacityRequiredFor(nOps)
	if err != nil {
		panic(fmt.Sprintf("throttle: reclaim of %d ops overflows", nOps))
	}
	t.free(required)
}

// ReclaimLastAllowed returns the capacity charged by the most recent
// successful TryReserve, if it has not already been reclaimed.
func (t *DeterministicThrottle) ReclaimLastAllowed() {
	t.free(t.lastAllowedUnits)
}

// ResetLastAllowed forgets the most recent successful TryReserve, so that a
// later ReclaimLastAllowed is a no-op.
func (t *DeterministicThrottle) ResetLastAllowed() {
	t.lastAllowedUnits = 0
}

func (t *DeterministicThrottle) free(units uint64) {
	if units > t.usedUnits {
		panic(fmt.Sprintf("throttle: cannot free %d units, only %d in use", units, t.usedUnits))
	}
	t.usedUnits -= units
	t.lastAllowedUnits = 0
	t.publish()
}

// FreeCapacityAt returns the number of units that would be free at now.
func (t *DeterministicThrottle) FreeCapacityAt(now LogicalTime) uint64 {
	return t.capacityUnits - t.usedAt(now)
}

// UtilizationPercent returns the used share of capacity as of the last
// decision, truncated to a whole percentage.
func (t *DeterministicThrottle) UtilizationPercent() uint64 {
	return t.Snapshot().UtilizationPercent()
}

// Snapshot returns the state of t as of its last mutation. It is safe to call
// concurrently with the mutating methods.
func (t *DeterministicThrottle) Snapshot() Snapshot {
	return *t.published.Load()
}

// Restore resets t to the state recorded in s. The snapshot must come from a
// throttle of identical capacity.
func (t *DeterministicThrottle) Restore(s Snapshot) error {
	if s.CapacityUnits != t.capacityUnits {
		return fmt.Errorf("throttle: snapshot capacity %d does not match %d", s.CapacityUnits, t.capacityUnits)
	}
	if s.UsedUnits > s.CapacityUnits {
		return fmt.Errorf("throttle: snapshot uses %d of %d units", s.UsedUnits, s.CapacityUnits)
	}
	t.usedUnits = s.UsedUnits
	t.lastDecisionTime = s.LastDecisionTime
	t.lastAllowedUnits = 0
	t.publish()
	return nil
}

func (t *DeterministicThrottle) publish() {
	t.published.Store(&Snapshot{
		UsedUnits:        t.usedUnits,
		CapacityUnits:    t.capacityUnits,
		LastDecisionTime: t.lastDecisionTime,
	})
}

// String returns a description of t.
func (t *DeterministicThrottle) String() string {
	return fmt.Sprintf("DeterministicThrottle{mops: %d, burst: %dms, state: %v}", t.milliRate, t.burstPeriodMs, t.Snapshot())
}
