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

package congestion

import (
	"sync/atomic"

	"github.com/hashgraph/hedera-services-sub190/throttle"
)

// SnapshotSource is anything that can report a throttle's state as a single
// consistent value; *throttle.DeterministicThrottle is one.
type SnapshotSource interface {
	Snapshot() throttle.Snapshot
}

// MultiplierSource caches the congestion multiplier for one operation
// category. Recomputation is explicit; reading the multiplier never
// recomputes it, so every read between two recomputations sees the same value.
type MultiplierSource struct {
	name        string
	multipliers *Multipliers

	tracked        atomic.Pointer[[]SnapshotSource]
	current        atomic.Uint64
	maxUtilization atomic.Uint64
}

// NewMultiplierSource returns a source named name (used as a metric label)
// whose multiplier starts at 1.
func NewMultiplierSource(name string, multipliers *Multipliers, tracked ...SnapshotSource) *MultiplierSource {
	s := &MultiplierSource{name: name, multipliers: multipliers}
	s.current.Store(1)
	s.Track(tracked...)
	return s
}

// Name returns the source's name.
func (s *MultiplierSource) Name() string { return s.name }

// Track replaces the throttles read by RecomputeTracked. It is called when a
// new bucket set is published; the cached multiplier is left as is until the
// next recomputation.
func (s *MultiplierSource) Track(tracked ...SnapshotSource) {
	ts := append([]SnapshotSource(nil), tracked...)
	s.tracked.Store(&ts)
}

// Recompute sets the cached multiplier from snapshots. The most utilized
// snapshot decides; utilizations are never averaged.
func (s *MultiplierSource) Recompute(snapshots []throttle.Snapshot) uint64 {
	var maxUtilization uint64
	for _, snap := range snapshots {
		if u := snap.UtilizationPercent(); u > maxUtilization {
			maxUtilization = u
		}
	}
	m := s.multipliers.For(maxUtilization)
	s.maxUtilization.Store(maxUtilization)
	s.current.Store(m)
	Metrics.observe(s.name, maxUtilization, m)
	return m
}

// RecomputeTracked snapshots every tracked throttle and recomputes.
func (s *MultiplierSource) RecomputeTracked() uint64 {
	tracked := *s.tracked.Load()
	snapshots := make([]throttle.Snapshot, len(tracked))
	for i, t := range tracked {
		snapshots[i] = t.Snapshot()
	}
	return s.Recompute(snapshots)
}

// CurrentMultiplier returns the multiplier cached by the last recomputation.
func (s *MultiplierSource) CurrentMultiplier() uint64 {
	return s.current.Load()
}

// MaxUtilizationPercent returns the utilization the cached multiplier was
// derived from.
func (s *MultiplierSource) MaxUtilizationPercent() uint64 {
	return s.maxUtilization.Load()
}
