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
	"sync"
	"sync/atomic"

	"k8s.io/klog/v2"
)

// Publisher holds the generation the admission path reads. Reloads are
// serialized; readers never block.
type Publisher struct {
	mu      sync.Mutex
	nextID  uint64
	current atomic.Pointer[Generation]
}

// NewPublisher returns a Publisher with no generation.
func NewPublisher() *Publisher {
	return &Publisher{nextID: 1}
}

// Current returns the published generation, or nil if no Reload has
// succeeded. Callers should take it once per admission check.
func (p *Publisher) Current() *Generation {
	return p.current.Load()
}

// Reload builds a generation from defs and publishes it. If the build fails
// the previous generation stays published and the error is returned.
func (p *Publisher) Reload(defs []Definition, capacitySplit uint64) (*Generation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, err := Build(defs, capacitySplit)
	if err != nil {
		Metrics.reloaded(false)
		klog.Warningf("Bucket set reload rejected, keeping generation %d: %v", p.currentID(), err)
		return nil, err
	}
	g.id = p.nextID
	p.nextID++
	for _, b := range g.buckets {
		configured, scaled := b.AutoScaled()
		Metrics.burst(b.Name(), configured, b.BurstPeriodMs(), scaled)
	}
	p.current.Store(g)
	Metrics.reloaded(true)
	klog.Infof("Published bucket set generation %d: %d buckets, capacity split %d", g.id, len(g.buckets), capacitySplit)
	return g, nil
}

func (p *Publisher) currentID() uint64 {
	if g := p.current.Load(); g != nil {
		return g.id
	}
	return 0
}
