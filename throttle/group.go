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

import "fmt"

// OperationKind names a kind of operation a throttle group applies to.
type OperationKind string

// ThrottleGroup declares that a rate applies to a set of operation kinds.
type ThrottleGroup struct {
	milliRate  uint64
	operations []OperationKind
}

// NewThrottleGroup returns a group with the given operations. The rate is
// milliRate if non-zero, otherwise legacyOpsPerSec*1000. A group whose rate
// resolves to zero is returned as-is and rejected when a bucket is built.
// Operations repeated within the group are merged, keeping the first
// occurrence's position.
func NewThrottleGroup(milliRate, legacyOpsPerSec uint64, operations ...OperationKind) (ThrottleGroup, error) {
	if milliRate == 0 {
		var err error
		milliRate, err = mulChecked(legacyOpsPerSec, MilliOpsPerOp)
		if err != nil {
			return ThrottleGroup{}, newBuildError(BucketCapacityOverflow, "", err, "legacy rate of %d ops/sec cannot be expressed in milli-ops", legacyOpsPerSec)
		}
	}
	seen := make(map[OperationKind]bool, len(operations))
	ops := make([]OperationKind, 0, len(operations))
	for _, op := range operations {
		if seen[op] {
			continue
		}
		seen[op] = true
		ops = append(ops, op)
	}
	return ThrottleGroup{milliRate: milliRate, operations: ops}, nil
}

// MilliRate returns the effective rate in milli-operations per second.
func (g ThrottleGroup) MilliRate() uint64 { return g.milliRate }

// Operations returns the group's operations in declared order.
func (g ThrottleGroup) Operations() []OperationKind {
	return append([]OperationKind(nil), g.operations...)
}

// String returns a description of g.
func (g ThrottleGroup) String() string {
	return fmt.Sprintf("%d mops: %v", g.milliRate, g.operations)
}
