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

// Package prometheus provides a Prometheus-backed MetricFactory.
package prometheus

import (
	"fmt"

	"github.com/hashgraph/hedera-services-sub190/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"k8s.io/klog/v2"
)

// MetricFactory creates Prometheus metrics.
type MetricFactory struct {
	// Prefix is prepended to every metric name.
	Prefix string
	// Registerer receives the created metrics. If nil, the default
	// Prometheus registry is used.
	Registerer prometheus.Registerer
}

func (pmf MetricFactory) register(c prometheus.Collector) {
	r := pmf.Registerer
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	r.MustRegister(c)
}

// NewCounter creates a Counter backed by a Prometheus counter.
func (pmf MetricFactory) NewCounter(name, help string, labelNames ...string) monitoring.Counter {
	opts := prometheus.CounterOpts{Name: pmf.Prefix + name, Help: help}
	if len(labelNames) == 0 {
		c := prometheus.NewCounter(opts)
		pmf.register(c)
		return &Counter{single: c}
	}
	vec := prometheus.NewCounterVec(opts, labelNames)
	pmf.register(vec)
	return &Counter{labelNames: labelNames, vec: vec}
}

// NewGauge creates a Gauge backed by a Prometheus gauge.
func (pmf MetricFactory) NewGauge(name, help string, labelNames ...string) monitoring.Gauge {
	opts := prometheus.GaugeOpts{Name: pmf.Prefix + name, Help: help}
	if len(labelNames) == 0 {
		g := prometheus.NewGauge(opts)
		pmf.register(g)
		return &Gauge{single: g}
	}
	vec := prometheus.NewGaugeVec(opts, labelNames)
	pmf.register(vec)
	return &Gauge{labelNames: labelNames, vec: vec}
}

// Counter wraps a Prometheus Counter or CounterVec.
type Counter struct {
	labelNames []string
	single     prometheus.Counter
	vec        *prometheus.CounterVec
}

func (m *Counter) metric(labelVals []string) (prometheus.Counter, bool) {
	if m.vec == nil {
		if len(labelVals) != 0 {
			klog.Errorf("got %d label values for an unlabelled counter", len(labelVals))
			return nil, false
		}
		return m.single, true
	}
	labels, err := labelsFor(m.labelNames, labelVals)
	if err != nil {
		klog.Error(err)
		return nil, false
	}
	return m.vec.With(labels), true
}

// Inc adds 1 to the counter.
func (m *Counter) Inc(labelVals ...string) {
	if c, ok := m.metric(labelVals); ok {
		c.Inc()
	}
}

// Add adds val to the counter.
func (m *Counter) Add(val float64, labelVals ...string) {
	if c, ok := m.metric(labelVals); ok {
		c.Add(val)
	}
}

// Value returns the counter's current value.
func (m *Counter) Value(labelVals ...string) float64 {
	c, ok := m.metric(labelVals)
	if !ok {
		return 0
	}
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		klog.Errorf("failed to Write counter: %v", err)
		return 0
	}
	return pb.GetCounter().GetValue()
}

// Gauge wraps a Prometheus Gauge or GaugeVec.
type Gauge struct {
	labelNames []string
	single     prometheus.Gauge
	vec        *prometheus.GaugeVec
}

func (m *Gauge) metric(labelVals []string) (prometheus.Gauge, bool) {
	if m.vec == nil {
		if len(labelVals) != 0 {
			klog.Errorf("got %d label values for an unlabelled gauge", len(labelVals))
			return nil, false
		}
		return m.single, true
	}
	labels, err := labelsFor(m.labelNames, labelVals)
	if err != nil {
		klog.Error(err)
		return nil, false
	}
	return m.vec.With(labels), true
}

// Inc adds 1 to the gauge.
func (m *Gauge) Inc(labelVals ...string) {
	if g, ok := m.metric(labelVals); ok {
		g.Inc()
	}
}

// Dec subtracts 1 from the gauge.
func (m *Gauge) Dec(labelVals ...string) {
	if g, ok := m.metric(labelVals); ok {
		g.Dec()
	}
}

// Add adds val to the gauge.
func (m *Gauge) Add(val float64, labelVals ...string) {
	if g, ok := m.metric(labelVals); ok {
		g.Add(val)
	}
}

// Set sets the gauge to val.
func (m *Gauge) Set(val float64, labelVals ...string) {
	if g, ok := m.metric(labelVals); ok {
		g.Set(val)
	}
}

// Value returns the gauge's current value.
func (m *Gauge) Value(labelVals ...string) float64 {
	g, ok := m.metric(labelVals)
	if !ok {
		return 0
	}
	var pb dto.Metric
	if err := g.Write(&pb); err != nil {
		klog.Errorf("failed to Write gauge: %v", err)
		return 0
	}
	return pb.GetGauge().GetValue()
}

func labelsFor(names, values []string) (prometheus.Labels, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("got %d values %v for %d labels %v", len(values), values, len(names), names)
	}
	labels := make(prometheus.Labels, len(names))
	for i, name := range names {
		labels[name] = values[i]
	}
	return labels, nil
}
