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

// The throttle_replay binary replays a trace of operations against a set of
// throttle bucket definitions, as a node with the configured capacity split
// would see them, and reports admission decisions, bucket utilization and
// the resulting congestion multiplier.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashgraph/hedera-services-sub190/cmd"
	"github.com/hashgraph/hedera-services-sub190/cmd/internal/serverutil"
	"github.com/hashgraph/hedera-services-sub190/monitoring/prometheus"
	"github.com/hashgraph/hedera-services-sub190/throttle"
	"github.com/hashgraph/hedera-services-sub190/throttle/bucketset"
	"github.com/hashgraph/hedera-services-sub190/throttle/config"
	"github.com/hashgraph/hedera-services-sub190/throttle/congestion"
	"k8s.io/klog/v2"
)

var (
	throttlesFile = flag.String("throttles", "", "YAML file of throttle bucket definitions")
	traceFile     = flag.String("trace", "-", "Trace of operations to replay, - for stdin")
	httpEndpoint  = flag.String("http_endpoint", "", "Endpoint for /metrics and /healthz (host:port, empty means disabled)")
	linger        = flag.Duration("linger", 0, "How long to keep serving metrics after the replay finishes")
	congestionOps = flag.String("congestion_ops", "", "Comma separated operations whose throttles drive the congestion multiplier; empty means every bucket")
	snapshotOut   = flag.String("snapshot_out", "", "If set, write the final bucket snapshots to this file as JSON")

	configFile = flag.String("config", "", "Config file containing flags, file contents can be overridden by command line flags")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *configFile != "" {
		if err := cmd.ParseFlagFile(*configFile); err != nil {
			klog.Exitf("Failed to load flags from config file %q: %s", *configFile, err)
		}
	}
	if *throttlesFile == "" {
		klog.Exit("--throttles must be supplied")
	}

	mf := prometheus.MetricFactory{Prefix: "throttle_replay_"}
	bucketset.InitMetrics(mf)
	congestion.InitMetrics(mf)

	f, err := config.Load(*throttlesFile)
	if err != nil {
		klog.Exitf("Failed to load throttle definitions: %v", err)
	}
	multipliers, err := f.Multipliers()
	if err != nil {
		klog.Exitf("Bad congestion multipliers: %v", err)
	}
	publisher := bucketset.NewPublisher()
	gen, err := f.Reload(publisher)
	if err != nil {
		klog.Exitf("Failed to build throttle buckets: %v", err)
	}
	src := congestion.NewMultiplierSource("replay", multipliers, congestionSources(gen, *congestionOps)...)

	events, err := readTrace(*traceFile)
	if err != nil {
		klog.Exitf("Failed to read trace: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go serverutil.AwaitSignal(ctx, cancel)

	m := &serverutil.Main{
		HTTPEndpoint: *httpEndpoint,
		IsHealthy: func(context.Context) error {
			if publisher.Current() == nil {
				return errNoGeneration
			}
			return nil
		},
	}
	err = m.Run(ctx, func(ctx context.Context) error {
		r := replay(publisher.Current(), src, events)
		if err := r.write(os.Stdout); err != nil {
			return err
		}
		if *snapshotOut != "" {
			if err := writeSnapshots(*snapshotOut, r.Snapshots); err != nil {
				return err
			}
		}
		if *httpEndpoint != "" && *linger > 0 {
			klog.Infof("Replay done, serving metrics for %v", *linger)
			select {
			case <-time.After(*linger):
			case <-ctx.Done():
			}
		}
		cancel()
		return nil
	})
	if err != nil {
		klog.Exitf("Replay failed: %v", err)
	}
}

var errNoGeneration = errors.New("no bucket set published")

// congestionSources returns the throttles gating ops, or every throttle of
// gen if ops is empty.
func congestionSources(gen *bucketset.Generation, ops string) []congestion.SnapshotSource {
	var srcs []congestion.SnapshotSource
	if strings.TrimSpace(ops) == "" {
		for _, b := range gen.Buckets() {
			srcs = append(srcs, b.Throttle())
		}
		return srcs
	}
	seen := make(map[*throttle.DeterministicThrottle]bool)
	for _, op := range strings.Split(ops, ",") {
		for _, t := range gen.ThrottlesFor(throttle.OperationKind(strings.TrimSpace(op))) {
			if !seen[t] {
				seen[t] = true
				srcs = append(srcs, t)
			}
		}
	}
	return srcs
}

func readTrace(path string) ([]event, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return parseTrace(r)
}

func writeSnapshots(path string, snaps []bucketset.BucketSnapshot) error {
	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
