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

package testonly

import (
	"fmt"
	"strings"

	"github.com/hashgraph/hedera-services-sub190/monitoring"
)

// CounterSnapshot remembers counter values so a test can assert on how much
// they moved, independent of what earlier tests recorded.
type CounterSnapshot struct {
	c      monitoring.Counter
	values map[string]float64
}

// NewCounterSnapshot returns an empty CounterSnapshot of c.
func NewCounterSnapshot(c monitoring.Counter) CounterSnapshot {
	return CounterSnapshot{c: c, values: make(map[string]float64)}
}

// Record stores the current value of the counter for labels.
func (s CounterSnapshot) Record(labels ...string) {
	s.values[strings.Join(labels, "|")] = s.c.Value(labels...)
}

// Delta returns how far the counter for labels moved since Record. It panics
// if Record was never called for labels.
func (s CounterSnapshot) Delta(labels ...string) float64 {
	old, ok := s.values[strings.Join(labels, "|")]
	if !ok {
		panic(fmt.Sprintf("no value recorded for %v", labels))
	}
	return s.c.Value(labels...) - old
}
