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

// Package throttle implements the deterministic admission-control primitives
// used by validator nodes: integer leaky-bucket throttles, throttle groups and
// the buckets that share one physical throttle between several groups.
//
// Every decision made by this package is a pure function of the throttle
// state, the requested number of operations and the logical (consensus)
// timestamp supplied by the caller. No wall clock is consulted and no floating
// point arithmetic is used, so all nodes that apply the same operations in the
// same order reach bit-for-bit identical states.
//
// Capacity is measured in capacity units. One whole operation costs UnitsPerOp
// units, and a throttle configured with a rate of R milli-operations per second
// drains R*UnitsPerOp/1e6 units per millisecond. A throttle with burst period B
// milliseconds therefore holds R*B*UnitsPerOp/1e6 units, and leaking for exactly
// B milliseconds drains a full throttle to empty.
//
// Mutating methods (TryReserve, Reclaim, Restore) must only be called from the
// single goroutine that applies operations in consensus order. Snapshot may be
// called from any goroutine.
package throttle
