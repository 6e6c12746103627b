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

package throttle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ScaleFactor is an immutable rational n:d used to scale nominal operation
// counts, for example to derive throttle usage from gas.
type ScaleFactor struct {
	numerator, denominator uint32
}

// NewScaleFactor returns the ScaleFactor n:d. Both parts must be positive.
func NewScaleFactor(numerator, denominator uint32) (ScaleFactor, error) {
	if numerator == 0 || denominator == 0 {
		return ScaleFactor{}, newBuildError(InvalidLiteral, "", nil, "scale factor %d:%d must have positive parts", numerator, denominator)
	}
	return ScaleFactor{numerator: numerator, denominator: denominator}, nil
}

// ParseScaleFactor parses a literal of the form "n:d".
func ParseScaleFactor(literal string) (ScaleFactor, error) {
	parts := strings.Split(literal, ":")
	if len(parts) != 2 {
		return ScaleFactor{}, newBuildError(InvalidLiteral, "", nil, "scale factor %q is not of the form n:d", literal)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return ScaleFactor{}, newBuildError(InvalidLiteral, "", err, "scale factor %q has bad numerator", literal)
	}
	d, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
	if err != nil {
		return ScaleFactor{}, newBuildError(InvalidLiteral, "", err, "scale factor %q has bad denominator", literal)
	}
	return NewScaleFactor(uint32(n), uint32(d))
}

// Numerator returns n.
func (s ScaleFactor) Numerator() uint32 { return s.numerator }

// Denominator returns d.
func (s ScaleFactor) Denominator() uint32 { return s.denominator }

// Scaling returns max(1, nominalOps*n/d). Products that would overflow
// saturate at MaxUint64/d instead of wrapping.
func (s ScaleFactor) Scaling(nominalOps uint64) uint64 {
	n, d := uint64(s.numerator), uint64(s.denominator)
	var scaled uint64
	if nominalOps > math.MaxUint64/n {
		scaled = math.MaxUint64 / d
	} else {
		scaled = nominalOps * n / d
	}
	return maxUint64(1, scaled)
}

// ApproxCapacitySplit returns ceil(d/n), the integral number of nodes a
// nominal capacity is split between.
func (s ScaleFactor) ApproxCapacitySplit() uint64 {
	return ceilDiv(uint64(s.denominator), uint64(s.numerator))
}

// Compare returns -1, 0 or +1 as s is less than, equal to or greater than
// other. Ratios are compared by cross multiplication.
func (s ScaleFactor) Compare(other ScaleFactor) int {
	lhs := uint64(s.numerator) * uint64(other.denominator)
	rhs := uint64(other.numerator) * uint64(s.denominator)
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	}
	return 0
}

// String returns the "n:d" literal form.
func (s ScaleFactor) String() string {
	return fmt.Sprintf("%d:%d", s.numerator, s.denominator)
}
