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

// Package bucketset assembles throttle buckets into immutable generations and
// publishes them for the admission path.
//
// A Generation is built completely from a list of bucket definitions before
// anything can see it. Reconfiguration never mutates a generation; it builds a
// new one and swaps it in through a Publisher.
package bucketset

import (
	"fmt"
	"sort"

	"github.com/hashgraph/hedera-services-sub190/throttle"
	"k8s.io/klog/v2"
)

// Definition describes one bucket to build.
type Definition struct {
	Name          string
	BurstPeriodMs uint64
	Groups        []throttle.ThrottleGroup
}

// BucketSnapshot is the state of one named bucket's throttle.
type BucketSnapshot struct {
	Bucket   string            `json:"bucket"`
	Snapshot throttle.Snapshot `json:"snapshot"`
}

// Generation is an immutable set of buckets built from one configuration.
// The state of each bucket's throttle changes as operations are admitted, but
// only from the consensus thread; see package throttle.
type Generation struct {
	id            uint64
	capacitySplit uint64
	buckets       []*throttle.ThrottleBucket
	byName        map[string]*throttle.ThrottleBucket
	byOp          map[throttle.OperationKind][]*throttle.ThrottleBucket
}

// Build builds every bucket in defs for a node receiving 1/capacitySplit of
// the nominal rates. It fails on the first invalid definition, and bucket
// names must be unique.
func Build(defs []Definition, capacitySplit uint64) (*Generation, error) {
	g := &Generation{
		capacitySplit: capacitySplit,
		buckets:       make([]*throttle.ThrottleBucket, 0, len(defs)),
		byName:        make(map[string]*throttle.ThrottleBucket, len(defs)),
		byOp:          make(map[throttle.OperationKind][]*throttle.ThrottleBucket),
	}
	for i, def := range defs {
		if def.Name == "" {
			return nil, &throttle.BuildError{Reason: throttle.InvalidLiteral, Detail: fmt.Sprintf("bucket %d has no name", i)}
		}
		if _, ok := g.byName[def.Name]; ok {
			return nil, &throttle.BuildError{Reason: throttle.DuplicateBucketName, Bucket: def.Name, Detail: "bucket name declared more than once"}
		}
		b, err := throttle.BuildBucket(def.Name, def.BurstPeriodMs, def.Groups, capacitySplit)
		if err != nil {
			return nil, err
		}
		klog.V(1).Infof("Built %v", b)
		g.buckets = append(g.buckets, b)
		g.byName[def.Name] = b
		for _, op := range b.Operations() {
			g.byOp[op] = append(g.byOp[op], b)
		}
	}
	return g, nil
}

// ID returns the generation number assigned by the Publisher, or 0 for a
// generation built directly.
func (g *Generation) ID() uint64 { return g.id }

// CapacitySplit returns the split the generation was built with.
func (g *Generation) CapacitySplit() uint64 { return g.capacitySplit }

// Buckets returns the buckets in declared order.
func (g *Generation) Buckets() []*throttle.ThrottleBucket {
	return append([]*throttle.ThrottleBucket(nil), g.buckets...)
}

// Bucket returns the bucket called name.
func (g *Generation) Bucket(name string) (*throttle.ThrottleBucket, bool) {
	b, ok := g.byName[name]
	return b, ok
}

// ThrottlesFor returns the throttles of every bucket gating op, in declared
// bucket order.
func (g *Generation) ThrottlesFor(op throttle.OperationKind) []*throttle.DeterministicThrottle {
	buckets := g.byOp[op]
	if len(buckets) == 0 {
		return nil
	}
	ts := make([]*throttle.DeterministicThrottle, len(buckets))
	for i, b := range buckets {
		ts[i] = b.Throttle()
	}
	return ts
}

// Admit decides whether nOps operations of kind op may proceed at now. Every
// bucket gating op must admit them; if one refuses, the buckets already
// charged give their charge back, so a rejected check consumes nothing.
// Operations gated by no bucket are admitted.
func (g *Generation) Admit(op throttle.OperationKind, nOps uint64, now throttle.LogicalTime) bool {
	buckets := g.byOp[op]
	for i, b := range buckets {
		if !b.TryReserve(op, nOps, now) {
			for _, charged := range buckets[:i] {
				charged.Throttle().ReclaimLastAllowed()
			}
			Metrics.decided(b.Name(), false)
			return false
		}
	}
	for _, b := range buckets {
		Metrics.decided(b.Name(), true)
	}
	return true
}

// Reclaim gives back the capacity of nOps operations of kind op that an
// earlier Admit let through but that were never performed.
func (g *Generation) Reclaim(op throttle.OperationKind, nOps uint64) {
	for _, b := range g.byOp[op] {
		b.Reclaim(op, nOps)
	}
}

// Snapshots returns the state of every bucket, ordered by bucket name.
func (g *Generation) Snapshots() []BucketSnapshot {
	snaps := make([]BucketSnapshot, 0, len(g.buckets))
	for _, b := range g.buckets {
		snaps = append(snaps, BucketSnapshot{Bucket: b.Name(), Snapshot: b.Throttle().Snapshot()})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Bucket < snaps[j].Bucket })
	return snaps
}

// RestoreSnapshots resets every bucket to the state in snaps, keyed by bucket
// name. snaps must cover exactly the generation's buckets with matching
// capacities; otherwise nothing is restored.
func (g *Generation) RestoreSnapshots(snaps map[string]throttle.Snapshot) error {
	if len(snaps) != len(g.buckets) {
		return fmt.Errorf("bucketset: have %d snapshots for %d buckets", len(snaps), len(g.buckets))
	}
	for name, s := range snaps {
		b, ok := g.byName[name]
		if !ok {
			return fmt.Errorf("bucketset: snapshot for unknown bucket %q", name)
		}
		if c := b.Throttle().Capacity(); s.CapacityUnits != c || s.UsedUnits > c {
			return fmt.Errorf("bucketset: bucket %q: snapshot %v does not fit capacity %d", name, s, c)
		}
	}
	for name, s := range snaps {
		if err := g.byName[name].Throttle().Restore(s); err != nil {
			// Already validated above.
			panic(fmt.Sprintf("bucketset: restoring %q: %v", name, err))
		}
	}
	return nil
}

// ObserveUtilization exports the current utilization of every bucket.
func (g *Generation) ObserveUtilization() {
	for _, b := range g.buckets {
		Metrics.utilization(b.Name(), b.Throttle().UtilizationPercent())
	}
}
