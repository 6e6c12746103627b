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

package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/hashgraph/hedera-services-sub190/throttle"
	"github.com/hashgraph/hedera-services-sub190/throttle/bucketset"
	"github.com/hashgraph/hedera-services-sub190/throttle/congestion"
	"k8s.io/klog/v2"
)

type opStats struct {
	Admitted, Throttled uint64
}

type report struct {
	Generation     uint64
	Events         int
	Ops            map[throttle.OperationKind]*opStats
	Multiplier     uint64
	PeakMultiplier uint64
	MaxUtilization uint64
	Snapshots      []bucketset.BucketSnapshot
}

// replay submits events to gen in order, recomputing the congestion
// multiplier after every decision.
func replay(gen *bucketset.Generation, src *congestion.MultiplierSource, events []event) *report {
	r := &report{
		Generation: gen.ID(),
		Events:     len(events),
		Ops:        make(map[throttle.OperationKind]*opStats),
	}
	for _, ev := range events {
		st, ok := r.Ops[ev.Op]
		if !ok {
			st = &opStats{}
			r.Ops[ev.Op] = st
		}
		admitted := gen.Admit(ev.Op, ev.NOps, ev.At)
		if admitted {
			st.Admitted += ev.NOps
		} else {
			st.Throttled += ev.NOps
		}
		m := src.RecomputeTracked()
		if m > r.PeakMultiplier {
			r.PeakMultiplier = m
		}
		klog.V(2).Infof("t=%d %s x%d admitted=%v multiplier=%d", ev.At, ev.Op, ev.NOps, admitted, m)
	}
	gen.ObserveUtilization()
	r.Multiplier = src.CurrentMultiplier()
	r.MaxUtilization = src.MaxUtilizationPercent()
	r.Snapshots = gen.Snapshots()
	return r
}

func (r *report) write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "generation %d, %d events\n\n", r.Generation, r.Events)

	ops := make([]string, 0, len(r.Ops))
	for op := range r.Ops {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	fmt.Fprintln(tw, "OPERATION\tADMITTED\tTHROTTLED\t")
	for _, op := range ops {
		st := r.Ops[throttle.OperationKind(op)]
		fmt.Fprintf(tw, "%s\t%d\t%d\t\n", op, st.Admitted, st.Throttled)
	}

	fmt.Fprintln(tw, "\nBUCKET\tUSED\tCAPACITY\tUTILIZATION\tLAST DECISION\t")
	for _, s := range r.Snapshots {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d%%\t%d\t\n", s.Bucket, s.Snapshot.UsedUnits, s.Snapshot.CapacityUnits, s.Snapshot.UtilizationPercent(), s.Snapshot.LastDecisionTime)
	}
	fmt.Fprintf(tw, "\ncongestion multiplier %dx (peak %dx) at %d%% utilization\n", r.Multiplier, r.PeakMultiplier, r.MaxUtilization)
	return tw.Flush()
}
