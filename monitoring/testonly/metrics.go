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

// Package testonly holds checks shared by the MetricFactory implementations.
package testonly

import (
	"testing"

	"github.com/hashgraph/hedera-services-sub190/monitoring"
)

var labelCases = []struct {
	name       string
	labelNames []string
	labelVals  []string
}{
	{name: "unlabelled"},
	{name: "bucket", labelNames: []string{"bucket"}, labelVals: []string{"ThroughputLimits"}},
	{name: "bucket_outcome", labelNames: []string{"bucket", "outcome"}, labelVals: []string{"PriorityReservations", "admitted"}},
}

// TestCounter checks a Counter produced by factory.
func TestCounter(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, tc := range labelCases {
		counter := factory.NewCounter("test_counter_"+tc.name, "Test only", tc.labelNames...)
		if got, want := counter.Value(tc.labelVals...), 0.0; got != want {
			t.Errorf("counter %s: Value() = %v, want %v", tc.name, got, want)
		}
		counter.Inc(tc.labelVals...)
		counter.Add(4, tc.labelVals...)
		if got, want := counter.Value(tc.labelVals...), 5.0; got != want {
			t.Errorf("counter %s: Value() = %v, want %v", tc.name, got, want)
		}
		bogus := append(append([]string(nil), tc.labelVals...), "bogus")
		counter.Inc(bogus...)
		if got, want := counter.Value(bogus...), 0.0; got != want {
			t.Errorf("counter %s: Value(bogus) = %v, want %v", tc.name, got, want)
		}
		if got, want := counter.Value(tc.labelVals...), 5.0; got != want {
			t.Errorf("counter %s: Value() after bogus update = %v, want %v", tc.name, got, want)
		}
	}
}

// TestGauge checks a Gauge produced by factory.
func TestGauge(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, tc := range labelCases {
		gauge := factory.NewGauge("test_gauge_"+tc.name, "Test only", tc.labelNames...)
		if got, want := gauge.Value(tc.labelVals...), 0.0; got != want {
			t.Errorf("gauge %s: Value() = %v, want %v", tc.name, got, want)
		}
		gauge.Set(25, tc.labelVals...)
		gauge.Inc(tc.labelVals...)
		gauge.Dec(tc.labelVals...)
		gauge.Dec(tc.labelVals...)
		gauge.Add(0.5, tc.labelVals...)
		if got, want := gauge.Value(tc.labelVals...), 24.5; got != want {
			t.Errorf("gauge %s: Value() = %v, want %v", tc.name, got, want)
		}
		bogus := append(append([]string(nil), tc.labelVals...), "bogus")
		gauge.Set(100, bogus...)
		if got, want := gauge.Value(tc.labelVals...), 24.5; got != want {
			t.Errorf("gauge %s: Value() after bogus update = %v, want %v", tc.name, got, want)
		}
	}
}
