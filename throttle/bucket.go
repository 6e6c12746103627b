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

	"k8s.io/klog/v2"
)

// ThrottleBucket is a set of throttle groups sharing one DeterministicThrottle.
// Group rates are normalized onto a single logical rate, their least common
// multiple, and each operation consumes the number of logical operations that
// makes its group's rate come out right.
//
// A ThrottleBucket is immutable apart from the state of its throttle; it is
// replaced as a whole when configuration changes.
type ThrottleBucket struct {
	name                    string
	configuredBurstPeriodMs uint64
	groups                  []ThrottleGroup

	logicalMilliRate   uint64
	effectiveMilliRate uint64
	burstPeriodMs      uint64
	opCosts            map[OperationKind]uint64
	operations         []OperationKind
	throttle           *DeterministicThrottle
}

// BuildBucket validates groups and builds the bucket's throttle for a node
// that receives 1/capacitySplit of the nominal rate. If the configured burst
// period cannot hold a single operation of every group, the burst period is
// extended to the smallest one that can; AutoScaled reports this.
func BuildBucket(name string, burstPeriodMs uint64, groups []ThrottleGroup, capacitySplit uint64) (*ThrottleBucket, error) {
	if capacitySplit == 0 {
		return nil, newBuildError(InvalidLiteral, name, nil, "capacity split must be at least 1")
	}
	if len(groups) == 0 {
		return nil, newBuildError(NoThrottleGroups, name, nil, "bucket declares no throttle groups")
	}

	claimed := make(map[OperationKind]int)
	var ops []OperationKind
	for i, g := range groups {
		if g.milliRate == 0 {
			return nil, newBuildError(ZeroRateGroup, name, nil, "group %d has a zero rate", i)
		}
		for _, op := range g.operations {
			if first, ok := claimed[op]; ok {
				return nil, newBuildError(OperationRepeatedAcrossGroups, name, nil, "operation %q of group %d already claimed by group %d", op, i, first)
			}
			claimed[op] = i
			ops = append(ops, op)
		}
	}

	logical := groups[0].milliRate
	for _, g := range groups[1:] {
		var err error
		if logical, err = lcm(logical, g.milliRate); err != nil {
			return nil, newBuildError(BucketCapacityOverflow, name, err, "least common multiple of group rates overflows")
		}
	}
	effective := maxUint64(1, logical/capacitySplit)

	costs := make([]uint64, len(groups))
	var minCapacity uint64
	for i, g := range groups {
		costs[i] = logical / g.milliRate
		required, err := mulChecked(costs[i], UnitsPerOp)
		if err != nil {
			return nil, newBuildError(NodeCapacityInsufficient, name, err, "one operation of group %d needs more than the maximum capacity", i)
		}
		minCapacity = maxUint64(minCapacity, required)
	}

	perMs, err := CapacityUnitsPerMs(effective)
	if err != nil || perMs == 0 {
		return nil, newBuildError(NodeCapacityInsufficient, name, err, "effective rate of %d mops cannot leak capacity", effective)
	}
	finalBurst := burstPeriodMs
	configured, err := CapacityFor(effective, burstPeriodMs)
	if err != nil {
		return nil, newBuildError(NodeCapacityInsufficient, name, err, "capacity of %d mops over %dms overflows", effective, burstPeriodMs)
	}
	if configured < minCapacity {
		finalBurst = maxUint64(burstPeriodMs, ceilDiv(minCapacity, perMs))
	}

	t, err := NewDeterministicThrottle(effective, finalBurst)
	if err != nil {
		return nil, newBuildError(NodeCapacityInsufficient, name, err, "cannot build throttle of %d mops over %dms", effective, finalBurst)
	}
	if t.Capacity() < minCapacity {
		return nil, newBuildError(NodeCapacityInsufficient, name, nil, "capacity %d below the %d units one operation needs", t.Capacity(), minCapacity)
	}
	if finalBurst != burstPeriodMs {
		klog.Warningf("Bucket %q: burst period auto-scaled from %dms to %dms to admit one operation of every group at %d mops (split %d)",
			name, burstPeriodMs, finalBurst, effective, capacitySplit)
	}

	opCosts := make(map[OperationKind]uint64, len(claimed))
	for op, i := range claimed {
		opCosts[op] = costs[i]
	}
	return &ThrottleBucket{
		name:                    name,
		configuredBurstPeriodMs: burstPeriodMs,
		groups:                  append([]ThrottleGroup(nil), groups...),
		logicalMilliRate:        logical,
		effectiveMilliRate:      effective,
		burstPeriodMs:           finalBurst,
		opCosts:                 opCosts,
		operations:              ops,
		throttle:                t,
	}, nil
}

// Name returns the bucket's name.
func (b *ThrottleBucket) Name() string { return b.name }

// Groups returns the bucket's groups in declared order.
func (b *ThrottleBucket) Groups() []ThrottleGroup {
	return append([]ThrottleGroup(nil), b.groups...)
}

// LogicalMilliRate returns the least common multiple of the group rates.
func (b *ThrottleBucket) LogicalMilliRate() uint64 { return b.logicalMilliRate }

// EffectiveMilliRate returns the logical rate divided by the capacity split.
func (b *ThrottleBucket) EffectiveMilliRate() uint64 { return b.effectiveMilliRate }

// BurstPeriodMs returns the burst period the throttle was built with.
func (b *ThrottleBucket) BurstPeriodMs() uint64 { return b.burstPeriodMs }

// AutoScaled reports whether the burst period had to be extended, and the
// configured value it was extended from.
func (b *ThrottleBucket) AutoScaled() (configuredBurstPeriodMs uint64, scaled bool) {
	return b.configuredBurstPeriodMs, b.burstPeriodMs != b.configuredBurstPeriodMs
}

// OpCost returns the number of logical operations one op consumes.
func (b *ThrottleBucket) OpCost(op OperationKind) (uint64, bool) {
	c, ok := b.opCosts[op]
	return c, ok
}

// Operations returns every operation gated by the bucket, in declared order.
func (b *ThrottleBucket) Operations() []OperationKind {
	return append([]OperationKind(nil), b.operations...)
}

// Throttle returns the bucket's throttle.
func (b *ThrottleBucket) Throttle() *DeterministicThrottle { return b.throttle }

// TryReserve admits nOps operations of kind op at now. Operations the bucket
// does not gate are rejected; callers should only ask buckets that gate op.
func (b *ThrottleBucket) TryReserve(op OperationKind, nOps uint64, now LogicalTime) bool {
	cost, ok := b.opCosts[op]
	if !ok {
		return false
	}
	logicalOps, err := mulChecked(cost, nOps)
	if err != nil {
		return false
	}
	return b.throttle.TryReserve(logicalOps, now)
}

// Reclaim returns the capacity of nOps operations of kind op admitted by an
// earlier TryReserve.
func (b *ThrottleBucket) Reclaim(op OperationKind, nOps uint64) {
	cost, ok := b.opCosts[op]
	if !ok {
		panic(fmt.Sprintf("bucket %q does not gate %q", b.name, op))
	}
	logicalOps, err := mulChecked(cost, nOps)
	if err != nil {
		panic(fmt.Sprintf("bucket %q: reclaim of %d %q overflows", b.name, nOps, op))
	}
	b.throttle.Reclaim(logicalOps)
}

// String returns a description of b.
func (b *ThrottleBucket) String() string {
	return fmt.Sprintf("ThrottleBucket{%q, logical: %d mops, effective: %d mops, burst: %dms}", b.name, b.logicalMilliRate, b.effectiveMilliRate, b.burstPeriodMs)
}
