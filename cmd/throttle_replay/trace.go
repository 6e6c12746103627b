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

package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashgraph/hedera-services-sub190/throttle"
)

// event is one line of a trace: nOps operations of kind op submitted at a
// consensus time.
type event struct {
	At   throttle.LogicalTime
	Op   throttle.OperationKind
	NOps uint64
}

// parseTrace reads events from r. Each line holds a consensus time in
// milliseconds, an operation kind and optionally a count, which defaults to
// 1. Blank lines and text after '#' are ignored. Times must not go
// backwards.
func parseTrace(r io.Reader) ([]event, error) {
	var events []event
	s := bufio.NewScanner(r)
	for line := 1; s.Scan(); line++ {
		text := s.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("line %d: want <millis> <op> [count], got %d fields", line, len(fields))
		}
		at, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad time %q: %w", line, fields[0], err)
		}
		ev := event{At: throttle.LogicalTime(at), Op: throttle.OperationKind(fields[1]), NOps: 1}
		if len(fields) == 3 {
			if ev.NOps, err = strconv.ParseUint(fields[2], 10, 64); err != nil {
				return nil, fmt.Errorf("line %d: bad count %q: %w", line, fields[2], err)
			}
		}
		if n := len(events); n > 0 && ev.At < events[n-1].At {
			return nil, fmt.Errorf("line %d: time %d is before %d", line, ev.At, events[n-1].At)
		}
		events = append(events, ev)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
