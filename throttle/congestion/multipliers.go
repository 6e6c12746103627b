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

// Package congestion derives the congestion fee multiplier from the
// utilization of the throttles gating an operation category.
//
// The multiplier is graduated backpressure: as the tightest tracked throttle
// fills up, fees rise through configured breakpoints instead of operations
// being rejected outright.
package congestion

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/btree"
	"github.com/hashgraph/hedera-services-sub190/throttle"
)

// btreeDegree is small; breakpoint lists hold a handful of entries.
const btreeDegree = 4

// Breakpoint applies Multiplier once utilization reaches UtilizationPercent.
type Breakpoint struct {
	UtilizationPercent uint8
	Multiplier         uint64
}

func (b Breakpoint) String() string {
	return fmt.Sprintf("%d%%->%dx", b.UtilizationPercent, b.Multiplier)
}

// breakpointItem orders breakpoints by threshold for btree lookups. The
// threshold is widened so that any uint64 utilization can act as a pivot.
type breakpointItem struct {
	percent    uint64
	multiplier uint64
}

func (a breakpointItem) Less(than btree.Item) bool {
	return a.percent < than.(breakpointItem).percent
}

// Multipliers is an immutable, validated breakpoint table.
type Multipliers struct {
	points []Breakpoint
	tree   *btree.BTree
}

// NewMultipliers validates points and returns the table. Thresholds must be
// strictly ascending and at most 100; multipliers must be at least 1 and
// non-decreasing.
func NewMultipliers(points []Breakpoint) (*Multipliers, error) {
	tree := btree.New(btreeDegree)
	for i, p := range points {
		switch {
		case p.UtilizationPercent > 100:
			return nil, invalidf("breakpoint %d: utilization %d%% exceeds 100%%", i, p.UtilizationPercent)
		case p.Multiplier == 0:
			return nil, invalidf("breakpoint %d: multiplier must be at least 1", i)
		case i > 0 && p.UtilizationPercent <= points[i-1].UtilizationPercent:
			return nil, invalidf("breakpoint %d: utilization %d%% does not exceed %d%%", i, p.UtilizationPercent, points[i-1].UtilizationPercent)
		case i > 0 && p.Multiplier < points[i-1].Multiplier:
			return nil, invalidf("breakpoint %d: multiplier %d is below %d", i, p.Multiplier, points[i-1].Multiplier)
		}
		tree.ReplaceOrInsert(breakpointItem{percent: uint64(p.UtilizationPercent), multiplier: p.Multiplier})
	}
	return &Multipliers{points: append([]Breakpoint(nil), points...), tree: tree}, nil
}

// ParseMultipliers parses a literal of alternating utilization percentages
// and multipliers, for example "90,10x,95,25x,99,100x". The trailing "x" on
// multipliers is optional.
func ParseMultipliers(literal string) (*Multipliers, error) {
	literal = strings.TrimSpace(literal)
	if literal == "" {
		return NewMultipliers(nil)
	}
	parts := strings.Split(literal, ",")
	if len(parts)%2 != 0 {
		return nil, invalidf("congestion multipliers %q must pair every utilization with a multiplier", literal)
	}
	points := make([]Breakpoint, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		pct, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 8)
		if err != nil {
			return nil, invalidf("congestion multipliers %q: bad utilization %q", literal, parts[i])
		}
		mult, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimSpace(parts[i+1]), "x"), 10, 64)
		if err != nil {
			return nil, invalidf("congestion multipliers %q: bad multiplier %q", literal, parts[i+1])
		}
		points = append(points, Breakpoint{UtilizationPercent: uint8(pct), Multiplier: mult})
	}
	return NewMultipliers(points)
}

func invalidf(format string, args ...interface{}) error {
	return &throttle.BuildError{Reason: throttle.InvalidLiteral, Detail: fmt.Sprintf(format, args...)}
}

// For returns the multiplier of the highest breakpoint whose threshold does
// not exceed utilizationPercent, or 1 if there is none.
func (m *Multipliers) For(utilizationPercent uint64) uint64 {
	multiplier := uint64(1)
	m.tree.DescendLessOrEqual(breakpointItem{percent: utilizationPercent}, func(i btree.Item) bool {
		multiplier = i.(breakpointItem).multiplier
		return false
	})
	return multiplier
}

// Breakpoints returns the breakpoints in ascending order.
func (m *Multipliers) Breakpoints() []Breakpoint {
	return append([]Breakpoint(nil), m.points...)
}

// String returns the literal form accepted by ParseMultipliers.
func (m *Multipliers) String() string {
	parts := make([]string, 0, 2*len(m.points))
	for _, p := range m.points {
		parts = append(parts, strconv.FormatUint(uint64(p.UtilizationPercent), 10), strconv.FormatUint(p.Multiplier, 10)+"x")
	}
	return strings.Join(parts, ",")
}
