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

package monitoring

import (
	"fmt"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// InertMetricFactory creates metrics that only live in memory. It is used
// in tests and when no metrics backend is configured.
type InertMetricFactory struct{}

// NewCounter returns an in-memory Counter.
func (InertMetricFactory) NewCounter(name, help string, labelNames ...string) Counter {
	return newInertValue(len(labelNames))
}

// NewGauge returns an in-memory Gauge.
func (InertMetricFactory) NewGauge(name, help string, labelNames ...string) Gauge {
	return newInertValue(len(labelNames))
}

// inertValue implements both Counter and Gauge.
type inertValue struct {
	labelCount int

	mu   sync.Mutex
	vals map[string]float64
}

func newInertValue(labelCount int) *inertValue {
	return &inertValue{labelCount: labelCount, vals: make(map[string]float64)}
}

func (v *inertValue) Inc(labelVals ...string) { v.Add(1, labelVals...) }

func (v *inertValue) Dec(labelVals ...string) { v.Add(-1, labelVals...) }

func (v *inertValue) Add(val float64, labelVals ...string) {
	v.update(labelVals, func(cur float64) float64 { return cur + val })
}

func (v *inertValue) Set(val float64, labelVals ...string) {
	v.update(labelVals, func(float64) float64 { return val })
}

func (v *inertValue) Value(labelVals ...string) float64 {
	key, err := labelKey(labelVals, v.labelCount)
	if err != nil {
		klog.Error(err)
		return 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vals[key]
}

func (v *inertValue) update(labelVals []string, f func(float64) float64) {
	key, err := labelKey(labelVals, v.labelCount)
	if err != nil {
		klog.Error(err)
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vals[key] = f(v.vals[key])
}

func labelKey(labelVals []string, want int) (string, error) {
	if len(labelVals) != want {
		return "", fmt.Errorf("got %d label values %v, want %d", len(labelVals), labelVals, want)
	}
	return strings.Join(labelVals, "|"), nil
}
