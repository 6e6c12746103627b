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
	"sync"

	"github.com/hashgraph/hedera-services-sub190/monitoring"
)

var (
	// Metrics holds the congestion pricing metrics. They stay inert until
	// InitMetrics is called.
	Metrics     = &m{}
	metricsOnce sync.Once
)

type m struct {
	Multiplier     monitoring.Gauge
	MaxUtilization monitoring.Gauge
}

func (m *m) observe(source string, maxUtilization, multiplier uint64) {
	if m.Multiplier != nil {
		m.Multiplier.Set(float64(multiplier), source)
	}
	if m.MaxUtilization != nil {
		m.MaxUtilization.Set(float64(maxUtilization), source)
	}
}

// InitMetrics creates Metrics using mf. Only the first call has any effect.
func InitMetrics(mf monitoring.MetricFactory) {
	metricsOnce.Do(func() {
		Metrics.Multiplier = mf.NewGauge("congestion_multiplier", "Current congestion fee multiplier", "source")
		Metrics.MaxUtilization = mf.NewGauge("congestion_max_utilization_percent", "Utilization of the tightest tracked throttle", "source")
	})
}
