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
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// LogicalTime is a consensus timestamp in milliseconds since the Unix epoch.
// It is supplied by the caller and never derived from the local clock.
type LogicalTime uint64

// LogicalTimeOf converts a consensus timestamp to a LogicalTime, truncating
// to whole milliseconds. Times before the epoch map to zero.
func LogicalTimeOf(t time.Time) LogicalTime {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return LogicalTime(ms)
}

// Time returns lt as a UTC time.Time.
func (lt LogicalTime) Time() time.Time {
	return time.UnixMilli(int64(lt)).UTC()
}

// Snapshot is the complete, consensus-visible state of a DeterministicThrottle.
// Restoring a throttle from a Snapshot makes it behave exactly like a throttle
// that reached the same state organically.
type Snapshot struct {
	UsedUnits        uint64      `json:"usedUnits,string"`
	CapacityUnits    uint64      `json:"capacityUnits,string"`
	LastDecisionTime LogicalTime `json:"lastDecisionTime,string"`
}

// UtilizationPercent returns UsedUnits*100/CapacityUnits, truncated.
// A snapshot with no capacity reports zero.
func (s Snapshot) UtilizationPercent() uint64 {
	if s.CapacityUnits == 0 {
		return 0
	}
	p, err := mulDivFloor(s.UsedUnits, 100, s.CapacityUnits)
	if err != nil {
		// Only reachable for UsedUnits > CapacityUnits*2^64/100, which no
		// throttle can produce.
		return 100
	}
	return p
}

// String returns a description of s.
func (s Snapshot) String() string {
	return fmt.Sprintf("{used: %d, capacity: %d, last: %d}", s.UsedUnits, s.CapacityUnits, s.LastDecisionTime)
}

// Wire field numbers of the binary Snapshot encoding. They must never change.
const (
	usedUnitsField        protowire.Number = 1
	capacityUnitsField    protowire.Number = 2
	lastDecisionTimeField protowire.Number = 3
)

// MarshalBinary encodes s in protocol buffer wire format. All three fields are
// always written, so the encoding of a given Snapshot is unique.
func (s Snapshot) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 3*(1+protowire.SizeVarint(^uint64(0))))
	b = protowire.AppendTag(b, usedUnitsField, protowire.VarintType)
	b = protowire.AppendVarint(b, s.UsedUnits)
	b = protowire.AppendTag(b, capacityUnitsField, protowire.VarintType)
	b = protowire.AppendVarint(b, s.CapacityUnits)
	b = protowire.AppendTag(b, lastDecisionTimeField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.LastDecisionTime))
	return b, nil
}

// UnmarshalBinary decodes a Snapshot produced by MarshalBinary. Unknown
// fields are skipped; missing fields decode as zero.
func (s *Snapshot) UnmarshalBinary(b []byte) error {
	var out Snapshot
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("snapshot: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("snapshot: bad field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return fmt.Errorf("snapshot: bad varint in field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case usedUnitsField:
			out.UsedUnits = v
		case capacityUnitsField:
			out.CapacityUnits = v
		case lastDecisionTimeField:
			out.LastDecisionTime = LogicalTime(v)
		}
	}
	*s = out
	return nil
}
