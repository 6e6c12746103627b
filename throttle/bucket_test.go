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
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func mustGroup(t *testing.T, milliRate uint64, ops ...OperationKind) ThrottleGroup {
	t.Helper()
	g, err := NewThrottleGroup(milliRate, 0, ops...)
	if err != nil {
		t.Fatalf("NewThrottleGroup(%d, %v) = %v", milliRate, ops, err)
	}
	return g
}

func TestBuildBucketNormalizesGroupRates(t *testing.T) {
	x, err := NewThrottleGroup(0, 10, "OpX")
	if err != nil {
		t.Fatalf("NewThrottleGroup() = %v", err)
	}
	y, err := NewThrottleGroup(0, 5, "OpY")
	if err != nil {
		t.Fatalf("NewThrottleGroup() = %v", err)
	}
	b, err := BuildBucket("ThroughputLimits", 1_000, []ThrottleGroup{x, y}, 1)
	if err != nil {
		t.Fatalf("BuildBucket() = %v", err)
	}
	if got, want := b.LogicalMilliRate(), uint64(10_000); got != want {
		t.Errorf("LogicalMilliRate() = %d, want %d", got, want)
	}
	for _, tc := range []struct {
		op   OperationKind
		want uint64
	}{
		{op: "OpX", want: 1},
		{op: "OpY", want: 2},
	} {
		if got, ok := b.OpCost(tc.op); !ok || got != tc.want {
			t.Errorf("OpCost(%q) = %d, %v; want %d, true", tc.op, got, ok, tc.want)
		}
	}
	if _, ok := b.OpCost("OpZ"); ok {
		t.Error("OpCost(OpZ) found, want missing")
	}
	if _, scaled := b.AutoScaled(); scaled {
		t.Error("AutoScaled() = true, want false")
	}
	if got, want := b.Throttle().Capacity(), 10*UnitsPerOp; got != want {
		t.Errorf("Capacity() = %d, want %d", got, want)
	}
	if diff := cmp.Diff([]OperationKind{"OpX", "OpY"}, b.Operations()); diff != "" {
		t.Errorf("Operations() diff (-want +got):\n%s", diff)
	}

	// Ten OpX or five OpY fit in one second.
	for i := 0; i < 5; i++ {
		if !b.TryReserve("OpY", 1, 0) {
			t.Fatalf("OpY #%d rejected", i)
		}
	}
	if b.TryReserve("OpX", 1, 0) {
		t.Error("OpX admitted into a full bucket")
	}
	if !b.TryReserve("OpX", 1, 100) {
		t.Error("OpX rejected after leaking one logical op")
	}
	if b.TryReserve("OpZ", 1, 10_000) {
		t.Error("ungated OpZ admitted")
	}
	b.Reclaim("OpY", 2)
	if got, want := b.Throttle().Snapshot().UsedUnits, 6*UnitsPerOp; got != want {
		t.Errorf("UsedUnits after Reclaim(OpY, 2) = %d, want %d", got, want)
	}
}

func TestBuildBucketErrors(t *testing.T) {
	for _, tc := range []struct {
		desc   string
		groups []ThrottleGroup
		split  uint64
		want   Reason
	}{
		{desc: "no groups", split: 1, want: NoThrottleGroups},
		{desc: "zero rate", groups: []ThrottleGroup{mustGroup(t, 1_000, "A"), mustGroup(t, 0, "B")}, split: 1, want: ZeroRateGroup},
		{desc: "repeated across groups", groups: []ThrottleGroup{mustGroup(t, 1_000, "A", "B"), mustGroup(t, 2_000, "C", "A")}, split: 1, want: OperationRepeatedAcrossGroups},
		{desc: "lcm overflow", groups: []ThrottleGroup{mustGroup(t, 1<<63, "A"), mustGroup(t, 3, "B")}, split: 1, want: BucketCapacityOverflow},
		{desc: "op cost overflow", groups: []ThrottleGroup{mustGroup(t, 1<<62, "A"), mustGroup(t, 1, "B")}, split: 1, want: NodeCapacityInsufficient},
		{desc: "capacity overflow", groups: []ThrottleGroup{mustGroup(t, math.MaxUint64/2, "A")}, split: 1, want: NodeCapacityInsufficient},
		{desc: "zero split", groups: []ThrottleGroup{mustGroup(t, 1_000, "A")}, split: 0, want: InvalidLiteral},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := BuildBucket("bucket", 1_000, tc.groups, tc.split)
			if err == nil {
				t.Fatalf("BuildBucket() = %v, want error %v", b, tc.want)
			}
			if b != nil {
				t.Errorf("BuildBucket() returned a partial bucket %v", b)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("BuildBucket() = %v, want reason %v", err, tc.want)
			}
			if got := ReasonOf(err); got != tc.want {
				t.Errorf("ReasonOf() = %v, want %v", got, tc.want)
			}
			if got, want := status.Code(err), tc.want.Code(); got != want {
				t.Errorf("status.Code() = %v, want %v", got, want)
			}
		})
	}
}

func TestBuildBucketAutoScalesBurstPeriod(t *testing.T) {
	for _, tc := range []struct {
		desc        string
		groups      []ThrottleGroup
		burstMs     uint64
		split       uint64
		wantBurstMs uint64
		wantScaled  bool
	}{
		{
			desc:        "fits",
			groups:      []ThrottleGroup{mustGroup(t, 10_000, "A")},
			burstMs:     1_000,
			split:       4,
			wantBurstMs: 1_000,
		},
		{
			desc:        "slow group needs a longer burst",
			groups:      []ThrottleGroup{mustGroup(t, 1_000, "A"), mustGroup(t, 3, "B")},
			burstMs:     1_000,
			split:       1,
			wantBurstMs: 333_334,
			wantScaled:  true,
		},
		{
			desc:        "split drives rate to the floor",
			groups:      []ThrottleGroup{mustGroup(t, 10_000, "A")},
			burstMs:     1_000,
			split:       100_000,
			wantBurstMs: 1_000_000,
			wantScaled:  true,
		},
		{
			desc:        "zero configured burst",
			groups:      []ThrottleGroup{mustGroup(t, 2_000, "A")},
			burstMs:     0,
			split:       1,
			wantBurstMs: 500,
			wantScaled:  true,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := BuildBucket("bucket", tc.burstMs, tc.groups, tc.split)
			if err != nil {
				t.Fatalf("BuildBucket() = %v", err)
			}
			if got := b.BurstPeriodMs(); got != tc.wantBurstMs {
				t.Errorf("BurstPeriodMs() = %d, want %d", got, tc.wantBurstMs)
			}
			configured, scaled := b.AutoScaled()
			if configured != tc.burstMs || scaled != tc.wantScaled {
				t.Errorf("AutoScaled() = %d, %v; want %d, %v", configured, scaled, tc.burstMs, tc.wantScaled)
			}
			// Every operation must be admissible into an empty bucket.
			for _, op := range b.Operations() {
				cost, _ := b.OpCost(op)
				required, err := b.Throttle().CapacityRequiredFor(cost)
				if err != nil || required > b.Throttle().Capacity() {
					t.Errorf("one %q needs %d units (%v), capacity is %d", op, required, err, b.Throttle().Capacity())
				}
			}
		})
	}
}

func TestEffectiveMilliRateIsPositive(t *testing.T) {
	groups := []ThrottleGroup{mustGroup(t, 3, "A"), mustGroup(t, 7, "B")}
	for _, split := range []uint64{1, 2, 20, 21, 22, 1_000, math.MaxUint64} {
		b, err := BuildBucket("bucket", 1_000, groups, split)
		if err != nil {
			t.Fatalf("BuildBucket(split=%d) = %v", split, err)
		}
		if got := b.EffectiveMilliRate(); got < 1 {
			t.Errorf("EffectiveMilliRate(split=%d) = %d, want >= 1", split, got)
		}
		if got, want := b.EffectiveMilliRate(), maxUint64(1, 21/split); got != want {
			t.Errorf("EffectiveMilliRate(split=%d) = %d, want %d", split, got, want)
		}
	}
}

func TestBuildErrorMessages(t *testing.T) {
	err := newBuildError(ZeroRateGroup, "priority", nil, "group %d has a zero rate", 2)
	if got, want := err.Error(), `bucket "priority": ZERO_RATE_GROUP: group 2 has a zero rate`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	err = newBuildError(InvalidLiteral, "", ErrOverflow, "bad")
	if got, want := err.Error(), "INVALID_LITERAL: bad"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrOverflow) {
		t.Errorf("errors.Is(%v, ErrOverflow) = false, want true", err)
	}
	if got, want := Reason(99).String(), "Reason(99)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := ReasonOf(errors.New("other")); got != ReasonUnknown {
		t.Errorf("ReasonOf(other) = %v, want %v", got, ReasonUnknown)
	}
	if got, want := status.Code(newBuildError(NodeCapacityInsufficient, "b", nil, "x")), codes.FailedPrecondition; got != want {
		t.Errorf("status.Code() = %v, want %v", got, want)
	}
}
