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

// Package config decodes throttle bucket definitions from YAML.
//
// A definitions file looks like:
//
//	capacitySplit: "1:4"
//	congestionMultipliers: "90,10x,95,25x,99,100x"
//	buckets:
//	- name: ThroughputLimits
//	  burstPeriodMs: 1000
//	  throttleGroups:
//	  - opsPerSec: 10
//	    operations: [CryptoTransfer]
//	  - milliOpsPerSec: 5000
//	    operations: [TokenMint]
//
// capacitySplit is either a whole number of nodes or a scale factor "n:d",
// in which case the node's share is derived from it. A bucket may give its
// burst period in whole seconds as burstPeriod; burstPeriodMs wins if both
// are set. Likewise milliOpsPerSec wins over opsPerSec.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashgraph/hedera-services-sub190/throttle"
	"github.com/hashgraph/hedera-services-sub190/throttle/bucketset"
	"github.com/hashgraph/hedera-services-sub190/throttle/congestion"
	yaml "gopkg.in/yaml.v2"
)

// File is a decoded definitions file.
type File struct {
	CapacitySplit         string   `yaml:"capacitySplit"`
	CongestionMultipliers string   `yaml:"congestionMultipliers"`
	Buckets               []Bucket `yaml:"buckets"`
}

// Bucket is one bucket definition.
type Bucket struct {
	Name           string  `yaml:"name"`
	BurstPeriodMs  uint64  `yaml:"burstPeriodMs"`
	BurstPeriod    uint64  `yaml:"burstPeriod"`
	ThrottleGroups []Group `yaml:"throttleGroups"`
}

// Group is one throttle group of a bucket.
type Group struct {
	MilliOpsPerSec uint64   `yaml:"milliOpsPerSec"`
	OpsPerSec      uint64   `yaml:"opsPerSec"`
	Operations     []string `yaml:"operations"`
}

// Parse decodes a definitions file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &f, nil
}

// Load reads and decodes the definitions file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Split returns the capacity split. An empty value means the node receives
// the whole nominal rate.
func (f *File) Split() (uint64, error) {
	literal := strings.TrimSpace(f.CapacitySplit)
	switch {
	case literal == "":
		return 1, nil
	case strings.Contains(literal, ":"):
		sf, err := throttle.ParseScaleFactor(literal)
		if err != nil {
			return 0, err
		}
		return sf.ApproxCapacitySplit(), nil
	}
	split, err := strconv.ParseUint(literal, 10, 64)
	if err != nil || split == 0 {
		return 0, &throttle.BuildError{Reason: throttle.InvalidLiteral, Detail: fmt.Sprintf("capacity split %q is neither a positive integer nor a scale factor", literal)}
	}
	return split, nil
}

// Multipliers returns the congestion multiplier table.
func (f *File) Multipliers() (*congestion.Multipliers, error) {
	return congestion.ParseMultipliers(f.CongestionMultipliers)
}

// Definitions converts the buckets into build inputs, in declared order.
func (f *File) Definitions() ([]bucketset.Definition, error) {
	defs := make([]bucketset.Definition, 0, len(f.Buckets))
	for _, b := range f.Buckets {
		def, err := b.definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (b Bucket) definition() (bucketset.Definition, error) {
	burstMs := b.BurstPeriodMs
	if burstMs == 0 {
		burstMs = b.BurstPeriod * 1000
		if b.BurstPeriod != 0 && burstMs/1000 != b.BurstPeriod {
			return bucketset.Definition{}, &throttle.BuildError{Reason: throttle.InvalidLiteral, Bucket: b.Name, Detail: fmt.Sprintf("burst period of %ds overflows", b.BurstPeriod)}
		}
	}
	groups := make([]throttle.ThrottleGroup, 0, len(b.ThrottleGroups))
	for _, g := range b.ThrottleGroups {
		ops := make([]throttle.OperationKind, len(g.Operations))
		for i, op := range g.Operations {
			ops[i] = throttle.OperationKind(op)
		}
		tg, err := throttle.NewThrottleGroup(g.MilliOpsPerSec, g.OpsPerSec, ops...)
		if err != nil {
			var be *throttle.BuildError
			if errors.As(err, &be) && be.Bucket == "" {
				be.Bucket = b.Name
			}
			return bucketset.Definition{}, err
		}
		groups = append(groups, tg)
	}
	return bucketset.Definition{Name: b.Name, BurstPeriodMs: burstMs, Groups: groups}, nil
}

// Reload builds the file's buckets and publishes them through p.
func (f *File) Reload(p *bucketset.Publisher) (*bucketset.Generation, error) {
	split, err := f.Split()
	if err != nil {
		return nil, err
	}
	defs, err := f.Definitions()
	if err != nil {
		return nil, err
	}
	return p.Reload(defs, split)
}
