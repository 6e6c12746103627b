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

package bucketset

import (
	"fmt"
	"sync"

	"github.com/hashgraph/hedera-services-sub190/monitoring"
)

var (
	// Metrics groups the admission metrics of all published generations.
	// Nothing is recorded until InitMetrics is called.
	Metrics     = &m{}
	metricsOnce = sync.Once{}
)

type m struct {
	Decisions       monitoring.Counter
	Utilization     monitoring.Gauge
	Reloads         monitoring.Counter
	BurstPeriodMs   monitoring.Gauge
	AutoScaledBurst monitoring.Gauge
}

func outcome(admitted bool) string {
	if admitted {
		return "admitted"
	}
	return "throttled"
}

func (m *m) decided(bucket string, admitted bool) {
	if m.Decisions == nil {
		return
	}
	m.Decisions.Inc(bucket, outcome(admitted))
}

func (m *m) utilization(bucket string, percent uint64) {
	if m.Utilization == nil {
		return
	}
	m.Utilization.Set(float64(percent), bucket)
}

func (m *m) reloaded(success bool) {
	if m.Reloads == nil {
		return
	}
	m.Reloads.Inc(fmt.Sprint(success))
}

func (m *m) burst(bucket string, configuredMs, actualMs uint64, scaled bool) {
	if m.BurstPeriodMs != nil {
		m.BurstPeriodMs.Set(float64(actualMs), bucket)
	}
	if m.AutoScaledBurst != nil {
		v := 0.0
		if scaled {
			v = float64(actualMs - configuredMs)
		}
		m.AutoScaledBurst.Set(v, bucket)
	}
}

// InitMetrics initializes Metrics using mf to create the monitoring objects.
// May be called multiple times. If so, the first call is the one that counts.
func InitMetrics(mf monitoring.MetricFactory) {
	metricsOnce.Do(func() {
		Metrics.Decisions = mf.NewCounter("throttle_decisions", "Number of admission decisions taken by a bucket", "bucket", "outcome")
		Metrics.Utilization = mf.NewGauge("throttle_bucket_utilization_percent", "Utilization of a bucket's throttle as of its last decision", "bucket")
		Metrics.Reloads = mf.NewCounter("throttle_bucket_set_reloads", "Number of bucket set reloads attempted", "success")
		Metrics.BurstPeriodMs = mf.NewGauge("throttle_bucket_burst_period_ms", "Burst period a bucket's throttle was built with", "bucket")
		Metrics.AutoScaledBurst = mf.NewGauge("throttle_bucket_auto_scaled_burst_ms", "Milliseconds added to a bucket's configured burst period so one operation of every group fits", "bucket")
	})
}
